package analyzer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// BatchSize is the number of pages fetched concurrently.
const BatchSize = 3

// AnalyzePages analyzes urls in batches of BatchSize, keeping their order.
// Failed and noindex pages are dropped. The loop stops early without error
// once quota is exhausted; cancellation returns an error wrapping
// progress.ErrCancelled and discards in-flight results.
func (a *Analyzer) AnalyzePages(ctx context.Context, urls []string, opts Options, quota QuotaChecker, onPage PageFunc) ([]*report.PageAnalysisResult, error) {
	results := make([]*report.PageAnalysisResult, 0, len(urls))

	for start := 0; start < len(urls); start += BatchSize {
		if err := progress.Check(ctx); err != nil {
			return nil, err
		}
		if quota != nil && quota.Remaining() <= 0 {
			a.log.WithField("remaining", len(urls)-start).Info("Page quota exhausted, stopping analysis early")
			break
		}

		end := min(start+BatchSize, len(urls))
		batch := urls[start:end]
		slots := make([]*report.PageAnalysisResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, pageURL := range batch {
			g.Go(func() error {
				if err := progress.Check(ctx); err != nil {
					return err
				}
				if quota != nil && !quota.Take() {
					return nil
				}
				page, err := a.analyzeOne(gctx, pageURL, opts)
				if err != nil {
					if quota != nil {
						quota.Release()
					}
					if cerr := progress.Check(ctx); cerr != nil {
						return cerr
					}
					return nil
				}
				slots[i] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := progress.Check(ctx); err != nil {
			return nil, err
		}

		for _, page := range slots {
			if page == nil {
				continue
			}
			results = append(results, page)
			if onPage != nil {
				onPage(page, len(results), len(urls))
			}
		}

		more := end < len(urls)
		if more && opts.CrawlDelay > 0 && (quota == nil || quota.Remaining() > 0) {
			if err := progress.Sleep(ctx, opts.CrawlDelay); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// analyzeOne returns an error only when the page yields no result at all.
func (a *Analyzer) analyzeOne(ctx context.Context, pageURL string, opts Options) (*report.PageAnalysisResult, error) {
	log := a.log.WithField("url", pageURL)

	page, err := a.AnalyzePage(ctx, pageURL, opts)
	if err == nil {
		return page, nil
	}
	if errors.Is(err, ErrNoIndex) {
		log.Debug("Skipping noindex page")
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if meta, ok := opts.Fallback[pageURL]; ok {
		log.WithError(err).Warn("Full analysis failed, using crawl metadata")
		return FallbackPage(pageURL, meta), nil
	}
	log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to analyze page")
	return nil, err
}
