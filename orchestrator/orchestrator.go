// Package orchestrator sequences one site analysis: quota, discovery, page
// analysis, AI insights, scoring and persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/analyzer"
	"github.com/seo-optimizer/siteanalyzer/discovery"
	"github.com/seo-optimizer/siteanalyzer/insights"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
	"github.com/seo-optimizer/siteanalyzer/scoring"
	"github.com/seo-optimizer/siteanalyzer/stats"
)

// ErrNothingAnalyzed is returned when every discovered page failed.
var ErrNothingAnalyzed = errors.New("no page could be analyzed")

// Stage percentages.
const (
	pctDiscoveryEnd = 15
	pctPagesEnd     = 40
	pctBusiness     = 42
	pctSuggestStart = 45
	pctAIEnd        = 80
	pctScoring      = 70
	pctScoringEnd   = 90
	pctDesign       = 92
	pctPersist      = 98
)

// Options are the caller's choices for one run.
type Options struct {
	UseSitemap     bool          `json:"useSitemap"`
	UseAI          bool          `json:"useAI"`
	SkipAltText    bool          `json:"skipAltTextGeneration"`
	MaxPages       int           `json:"maxPages"`
	CrawlDelay     time.Duration `json:"-"`
	FollowExternal bool          `json:"followExternalLinks"`
	AdditionalInfo string        `json:"additionalInfo,omitempty"`
	IsCompetitor   bool          `json:"isCompetitorAnalysis"`
	ForceRefresh   bool          `json:"forceRefresh"`
}

// Budgeter resolves and records a user's quota. quota.Manager implements it.
type Budgeter interface {
	Budget(ctx context.Context, userID string, requested int) (quota.Budget, error)
	RecordUsage(ctx context.Context, userID string, pages int) error
}

// PageDiscoverer is implemented by discovery.Discoverer.
type PageDiscoverer interface {
	Discover(ctx context.Context, domain string, opts discovery.Options) (*discovery.Result, error)
}

// PageAnalyzer is implemented by analyzer.Analyzer.
type PageAnalyzer interface {
	AnalyzePages(ctx context.Context, urls []string, opts analyzer.Options, quota analyzer.QuotaChecker, onPage analyzer.PageFunc) ([]*report.PageAnalysisResult, error)
}

// InsightsGenerator is implemented by insights.Generator.
type InsightsGenerator interface {
	Available() bool
	BusinessContext(ctx context.Context, pages []*report.PageAnalysisResult, additionalInfo string) (report.BusinessContext, error)
	Suggestions(ctx context.Context, pages []*report.PageAnalysisResult, bctx report.BusinessContext,
		budget quota.Budget, opts insights.SuggestionOptions, onProgress insights.ProgressFunc) (insights.SuggestionStats, error)
}

// ResultStore receives finished analyses.
type ResultStore interface {
	SaveAnalysis(ctx context.Context, result *report.AnalysisResult) error
}

// StatsRecorder is implemented by stats.Storage.
type StatsRecorder interface {
	Record(d stats.Delta)
}

// Config wires the collaborators. Insights, Design, Store and Stats are
// optional.
type Config struct {
	Tracker    *progress.Tracker
	Quota      Budgeter
	Discovery  PageDiscoverer
	Analyzer   PageAnalyzer
	Insights   InsightsGenerator
	Design     insights.DesignScorer
	Store      ResultStore
	Stats      StatsRecorder
	CrawlDelay time.Duration
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// Orchestrator is safe for concurrent runs on different domains.
type Orchestrator struct {
	cfg Config
	log logrus.FieldLogger
	now func() time.Time
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tracker == nil {
		cfg.Tracker = progress.NewTracker(cfg.Logger)
	}
	return &Orchestrator{cfg: cfg, log: cfg.Logger, now: cfg.Now}
}

// Tracker returns the progress tracker runs publish to.
func (o *Orchestrator) Tracker() *progress.Tracker {
	return o.cfg.Tracker
}

// Cancel aborts the run registered for domain.
func (o *Orchestrator) Cancel(domain string) bool {
	return o.cfg.Tracker.Cancel(domain)
}

// Run analyzes domain for userID (empty for anonymous callers). Quota
// rejections are returned before anything is registered. Cancellation
// returns an error wrapping progress.ErrCancelled and nothing is persisted.
func (o *Orchestrator) Run(ctx context.Context, domain string, opts Options, userID string) (*report.AnalysisResult, error) {
	started := o.now()
	budget, err := o.cfg.Quota.Budget(ctx, userID, opts.MaxPages)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.WithFields(logrus.Fields{"domain": domain, "run": runID, "userId": userID})
	ctx, run := o.cfg.Tracker.Register(ctx, domain, runID)
	defer run.Deregister()

	o.record(stats.Delta{RunsStarted: 1})
	log.WithFields(logrus.Fields{"pages": budget.Pages, "aiSuggestions": budget.AISuggestions, "trial": budget.Trial}).
		Info("Starting analysis")

	result, err := o.run(ctx, run, domain, opts, budget, log)
	if err != nil {
		run.Fail(err)
		if errors.Is(err, progress.ErrCancelled) {
			o.record(stats.Delta{RunsCancelled: 1})
			log.Info("Analysis cancelled")
		} else {
			o.record(stats.Delta{RunsFailed: 1})
			log.WithError(err).Error("Analysis failed")
		}
		return nil, err
	}

	result.ID = runID
	result.UserID = userID
	result.Stats.StartedAt = started
	result.Stats.ElapsedMs = o.now().Sub(started).Milliseconds()

	if o.cfg.Store != nil {
		run.Stage("saving", pctPersist, "Saving results")
		if err := progress.Check(ctx); err != nil {
			run.Fail(err)
			o.record(stats.Delta{RunsCancelled: 1})
			return nil, err
		}
		if err := o.cfg.Store.SaveAnalysis(ctx, result); err != nil {
			err = fmt.Errorf("saving analysis: %w", err)
			run.Fail(err)
			o.record(stats.Delta{RunsFailed: 1})
			log.WithError(err).Error("Analysis failed")
			return nil, err
		}
	}

	o.record(stats.Delta{RunsCompleted: 1})
	run.Complete(result)
	log.WithFields(logrus.Fields{
		"pages":     len(result.Pages),
		"elapsedMs": result.Stats.ElapsedMs,
		"aiCalls":   result.Stats.AICalls,
	}).Info("Analysis complete")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, run *progress.Run, domain string, opts Options, budget quota.Budget, log logrus.FieldLogger) (*report.AnalysisResult, error) {
	delay := opts.CrawlDelay
	if delay <= 0 {
		delay = o.cfg.CrawlDelay
	}

	// Discovery
	run.Stage("discovery", 0, "Discovering pages")
	found, err := o.cfg.Discovery.Discover(ctx, domain, discovery.Options{
		UseSitemap:     opts.UseSitemap,
		MaxPages:       budget.Pages,
		Delay:          delay,
		FollowExternal: opts.FollowExternal,
		OnProgress: func(n int) {
			run.Stage("discovery", scale(0, pctDiscoveryEnd-1, n, budget.Pages), fmt.Sprintf("Found %d pages", n))
		},
	})
	if err != nil {
		return nil, err
	}
	run.PagesFound(len(found.URLs), pctDiscoveryEnd)

	// Page analysis
	useAI := opts.UseAI && budget.AIEnabled
	pages, err := o.cfg.Analyzer.AnalyzePages(ctx, found.URLs, analyzer.Options{
		UseAI:        useAI,
		SkipAltText:  opts.SkipAltText,
		IsCompetitor: opts.IsCompetitor,
		CrawlDelay:   delay,
		Fallback:     found.SEOData,
	}, quota.NewPageCounter(budget.Pages), func(page *report.PageAnalysisResult, done, total int) {
		run.PageAnalyzed(page.URL, scale(pctDiscoveryEnd, pctPagesEnd, done, total))
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNothingAnalyzed, domain)
	}
	if err := o.cfg.Quota.RecordUsage(context.WithoutCancel(ctx), budget.UserID, len(pages)); err != nil {
		log.WithError(err).Warn("Could not record page usage")
	}
	o.record(stats.Delta{PagesAnalyzed: len(pages)})

	result := &report.AnalysisResult{
		Domain:    domain,
		Trial:     budget.Trial,
		Pages:     pages,
		CreatedAt: o.now(),
		Stats: report.ProcessingStats{
			PagesDiscovered: len(found.URLs),
			PagesAnalyzed:   len(pages),
			DiscoverySource: found.Source,
		},
	}

	// AI insights
	if useAI && o.cfg.Insights != nil && o.cfg.Insights.Available() {
		if err := o.insights(ctx, run, result, opts, budget); err != nil {
			return nil, err
		}
	}

	// Scoring
	if err := progress.Check(ctx); err != nil {
		return nil, err
	}
	run.Stage("scoring", pctScoring, "Scoring technical, content, link and performance health")
	result.Enhanced = scoring.Enhanced(pages)
	run.Stage("scoring", pctScoringEnd, fmt.Sprintf("SEO effectiveness %.1f", result.Enhanced.SEOEffectiveness))

	// Design
	if o.cfg.Design != nil && !opts.IsCompetitor {
		if err := progress.Check(ctx); err != nil {
			return nil, err
		}
		run.Stage("design", pctDesign, "Scoring design")
		design, err := o.cfg.Design.ScoreDesign(ctx, pages[0].URL)
		switch {
		case err == nil:
			result.Design = design
		case ctx.Err() != nil:
			return nil, progress.Check(ctx)
		default:
			log.WithError(err).Warn("Design scoring failed")
		}
	}

	return result, progress.Check(ctx)
}

func (o *Orchestrator) insights(ctx context.Context, run *progress.Run, result *report.AnalysisResult, opts Options, budget quota.Budget) error {
	run.Stage("business-context", pctBusiness, "Understanding the business")
	bctx, err := o.cfg.Insights.BusinessContext(ctx, result.Pages, opts.AdditionalInfo)
	if err != nil {
		return err
	}
	result.SiteOverview = &bctx

	run.Stage("suggestions", pctSuggestStart, "Generating suggestions")
	sstats, err := o.cfg.Insights.Suggestions(ctx, result.Pages, bctx, budget,
		insights.SuggestionOptions{ForceRefresh: opts.ForceRefresh},
		func(pageURL string, done, total int) {
			run.Stage("suggestions", scale(pctSuggestStart, pctAIEnd, done, total), "Suggestions ready for "+pageURL)
		})
	if err != nil {
		return err
	}

	result.Stats.AICalls = sstats.AICalls
	result.Stats.CacheHits = sstats.CacheHits
	result.Stats.CreditsUsed = sstats.CreditsUsed
	result.Stats.CreditsRefunded = sstats.CreditsRefunded
	o.record(stats.Delta{
		AICalls:             sstats.AICalls,
		SuggestionCacheHits: sstats.CacheHits,
		SuggestionCacheMiss: sstats.AICalls,
		CreditsUsed:         sstats.CreditsUsed,
		CreditsRefunded:     sstats.CreditsRefunded,
	})
	return nil
}

func (o *Orchestrator) record(d stats.Delta) {
	if o.cfg.Stats != nil {
		o.cfg.Stats.Record(d)
	}
}

// scale maps done/total onto [from, to].
func scale(from, to, done, total int) int {
	if total <= 0 {
		return from
	}
	done = min(max(done, 0), total)
	return from + (to-from)*done/total
}
