// Package insights turns analyzed pages into AI-generated business context
// and per-page SEO suggestions.
package insights

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seo-optimizer/siteanalyzer/ai"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	BatchSize          = 3
	DefaultBatchDelay  = time.Second
	TrialSuggestionCap = 5
)

// CreditManager deducts and refunds per-page AI credits.
type CreditManager interface {
	Deduct(ctx context.Context, userID string, n int) (int, error)
	Refund(ctx context.Context, userID string, n int, reason string) error
}

// Config configures a Generator.
type Config struct {
	Completer  ai.Completer
	Cache      *Cache
	Credits    CreditManager
	Retry      ai.RetryPolicy
	BatchDelay time.Duration
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// Generator is safe for concurrent use by multiple runs.
type Generator struct {
	completer  ai.Completer
	cache      *Cache
	credits    CreditManager
	retry      ai.RetryPolicy
	batchDelay time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
	sanitizer  *bluemonday.Policy
}

// SuggestionOptions tunes one Suggestions call.
type SuggestionOptions struct {
	ForceRefresh bool
}

// SuggestionStats summarises one Suggestions call.
type SuggestionStats struct {
	AICalls              int
	CacheHits            int
	CreditsUsed          int
	CreditsRefunded      int
	PagesWithSuggestions int
}

// ProgressFunc is called after each page has been handled.
type ProgressFunc func(pageURL string, done, total int)

func NewGenerator(cfg Config) *Generator {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseBackoff == 0 {
		cfg.Retry = ai.DefaultRetryPolicy
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{
		completer:  cfg.Completer,
		cache:      cfg.Cache,
		credits:    cfg.Credits,
		retry:      cfg.Retry,
		batchDelay: cfg.BatchDelay,
		log:        cfg.Logger,
		now:        cfg.Now,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Available reports whether an AI service is configured.
func (g *Generator) Available() bool {
	if g.completer == nil {
		return false
	}
	if a, ok := g.completer.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// BusinessContext infers the industry, business type, audience and services
// of the site. Any failure other than cancellation yields the fallback
// context.
func (g *Generator) BusinessContext(ctx context.Context, pages []*report.PageAnalysisResult, additionalInfo string) (report.BusinessContext, error) {
	fallback := report.FallbackBusinessContext()
	if len(pages) == 0 || !g.Available() {
		return fallback, nil
	}

	prompt := buildBusinessPrompt(Summarize(pages), additionalInfo)
	raw, err := ai.WithRetry(ctx, g.retry, g.log, func(ctx context.Context) (string, error) {
		return g.completer.Complete(ctx, businessSystemPrompt, prompt)
	})
	if err != nil {
		if errors.Is(err, progress.ErrCancelled) {
			return fallback, err
		}
		g.log.WithError(err).Warn("Business context generation failed, using fallback")
		return fallback, nil
	}

	var bc report.BusinessContext
	if err := ai.DecodeJSON(raw, &bc); err != nil {
		g.log.WithError(err).Warn("Unreadable business context, using fallback")
		return fallback, nil
	}

	bc.Industry = orDefault(g.clean(bc.Industry), fallback.Industry)
	bc.BusinessType = orDefault(g.clean(bc.BusinessType), fallback.BusinessType)
	bc.TargetAudience = orDefault(g.clean(bc.TargetAudience), fallback.TargetAudience)
	bc.Location = g.clean(bc.Location)
	services := make([]string, 0, len(bc.MainServices))
	for _, s := range bc.MainServices {
		if s = g.clean(s); s != "" {
			services = append(services, s)
		}
	}
	bc.MainServices = services
	bc.Fallback = false
	return bc, nil
}

// Suggestions fills Suggestions (and for trial users Teaser and
// AdditionalSuggestions) on the pages the budget allows. Trial users get
// the first budget.AISuggestions pages for free; paid users pay one credit
// per page, refunded when the page ends up with no suggestions. Only
// cancellation is returned as an error.
func (g *Generator) Suggestions(ctx context.Context, pages []*report.PageAnalysisResult, bctx report.BusinessContext,
	budget quota.Budget, opts SuggestionOptions, onProgress ProgressFunc) (SuggestionStats, error) {
	var stats SuggestionStats
	if !budget.AIEnabled || budget.AISuggestions <= 0 || !g.Available() || len(pages) == 0 {
		return stats, nil
	}

	eligible := pages[:min(len(pages), budget.AISuggestions)]
	total := len(eligible)

	var mu sync.Mutex
	record := func(fn func(*SuggestionStats)) {
		mu.Lock()
		fn(&stats)
		mu.Unlock()
	}

	logger := g.log.WithFields(logrus.Fields{
		"userId": budget.UserID,
		"trial":  budget.Trial,
		"pages":  total,
	})
	logger.Info("Generating AI suggestions")

	var outOfCredits atomic.Bool
	done := 0
	for start := 0; start < total; start += BatchSize {
		if err := progress.Check(ctx); err != nil {
			return stats, err
		}
		end := min(start+BatchSize, total)
		batch := eligible[start:end]

		eg, egCtx := errgroup.WithContext(ctx)
		for _, page := range batch {
			if outOfCredits.Load() {
				page.Suggestions = []string{}
				continue
			}
			eg.Go(func() error {
				return g.suggestPage(egCtx, page, pages, bctx, budget, opts, record, &outOfCredits)
			})
		}
		err := eg.Wait()
		if err == nil {
			err = progress.Check(ctx)
		}
		if err != nil {
			return stats, err
		}

		for _, page := range batch {
			done++
			if len(page.Suggestions) > 0 {
				stats.PagesWithSuggestions++
			}
			if onProgress != nil {
				onProgress(page.URL, done, total)
			}
		}

		if end < total && g.batchDelay > 0 {
			if err := progress.Sleep(ctx, g.batchDelay); err != nil {
				return stats, err
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"aiCalls":         stats.AICalls,
		"cacheHits":       stats.CacheHits,
		"creditsUsed":     stats.CreditsUsed,
		"creditsRefunded": stats.CreditsRefunded,
	}).Info("AI suggestions complete")
	return stats, nil
}

func (g *Generator) suggestPage(ctx context.Context, page *report.PageAnalysisResult, site []*report.PageAnalysisResult,
	bctx report.BusinessContext, budget quota.Budget, opts SuggestionOptions,
	record func(func(*SuggestionStats)), outOfCredits *atomic.Bool) error {
	page.Suggestions = []string{}
	if err := progress.Check(ctx); err != nil {
		return err
	}

	paid := !budget.Trial && !budget.Anonymous && g.credits != nil
	if paid {
		if _, err := g.credits.Deduct(ctx, budget.UserID, 1); err != nil {
			if errors.Is(err, quota.ErrInsufficientCredits) {
				outOfCredits.Store(true)
				return nil
			}
			if ctx.Err() != nil {
				return progress.Check(ctx)
			}
			g.log.WithField("url", page.URL).WithError(err).Warn("Credit deduction failed, skipping page")
			return nil
		}
		record(func(s *SuggestionStats) { s.CreditsUsed++ })
	}
	refund := func(reason string) {
		if !paid {
			return
		}
		if err := g.credits.Refund(context.WithoutCancel(ctx), budget.UserID, 1, reason); err != nil {
			g.log.WithField("url", page.URL).WithError(err).Error("Credit refund failed")
			return
		}
		record(func(s *SuggestionStats) { s.CreditsRefunded++ })
	}

	// cached suggestions are charged like fresh ones
	key := Fingerprint(page, g.now())
	if g.cache != nil && !opts.ForceRefresh {
		if cached, ok := g.cache.Get(key); ok && len(cached) > 0 {
			g.apply(page, cached, budget.Trial)
			record(func(s *SuggestionStats) { s.CacheHits++ })
			return nil
		}
	}

	prompt := buildSuggestionPrompt(page, site, bctx)
	record(func(s *SuggestionStats) { s.AICalls++ })
	raw, err := ai.WithRetry(ctx, g.retry, g.log, func(ctx context.Context) (string, error) {
		return g.completer.Complete(ctx, suggestionSystemPrompt, prompt)
	})
	if err != nil {
		if errors.Is(err, progress.ErrCancelled) {
			refund("analysis cancelled")
			return err
		}
		g.log.WithField("url", page.URL).WithError(err).Warn("AI suggestions failed")
		refund("ai call failed")
		return nil
	}

	parsed, err := ai.ParseSuggestions(raw)
	suggestions := make([]string, 0, len(parsed))
	for _, s := range parsed {
		if s = g.clean(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		if err != nil && !errors.Is(err, ai.ErrNoSuggestions) {
			g.log.WithField("url", page.URL).WithError(err).Warn("Unreadable AI suggestions")
		}
		refund("no suggestions")
		return nil
	}

	if g.cache != nil {
		g.cache.Put(key, suggestions)
	}
	g.apply(page, suggestions, budget.Trial)
	return nil
}

// apply stores suggestions on the page, capping them for trial users.
func (g *Generator) apply(page *report.PageAnalysisResult, suggestions []string, trial bool) {
	if trial && len(suggestions) > TrialSuggestionCap {
		extra := len(suggestions) - TrialSuggestionCap
		page.Suggestions = suggestions[:TrialSuggestionCap]
		page.AdditionalSuggestions = extra
		page.Teaser = fmt.Sprintf("%d more suggestions are available with a full analysis.", extra)
		return
	}
	page.Suggestions = suggestions
	page.AdditionalSuggestions = 0
	page.Teaser = ""
}

// clean strips any markup from AI output.
func (g *Generator) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(g.sanitizer.Sanitize(s)))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
