package analyzer

import (
	"context"
	"time"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// Options control one AnalyzePages call.
type Options struct {
	UseAI        bool
	SkipAltText  bool
	IsCompetitor bool
	// CrawlDelay is inserted between batches while work and quota remain.
	CrawlDelay time.Duration
	// Fallback holds crawl metadata used when a page cannot be fetched.
	Fallback map[string]report.CrawlMeta
}

func (o Options) altTextEnabled() bool {
	return o.UseAI && !o.SkipAltText && !o.IsCompetitor
}

// AltTextGenerator suggests alt text for images. The returned map is keyed
// by image src.
type AltTextGenerator interface {
	GenerateAltText(ctx context.Context, pageURL, pageContext string, images []extract.Image) (map[string]string, error)
}

// QuotaChecker hands out page slots. quota.PageCounter implements it.
type QuotaChecker interface {
	Remaining() int
	Take() bool
	Release()
}

// PageFunc is called after each finished page with the number of pages
// done so far and the total requested.
type PageFunc func(page *report.PageAnalysisResult, done, total int)
