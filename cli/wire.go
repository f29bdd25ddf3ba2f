package cli

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/ai"
	"github.com/seo-optimizer/siteanalyzer/analyzer"
	"github.com/seo-optimizer/siteanalyzer/config"
	"github.com/seo-optimizer/siteanalyzer/discovery"
	"github.com/seo-optimizer/siteanalyzer/insights"
	"github.com/seo-optimizer/siteanalyzer/orchestrator"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/stats"
	"github.com/seo-optimizer/siteanalyzer/store"
)

// app is the wired service graph shared by serve and analyze.
type app struct {
	store    *store.SQLite
	runStats *stats.Storage
	cache    *insights.Cache
	tracker  *progress.Tracker
	orch     *orchestrator.Orchestrator
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	db, err := store.OpenSQLite(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}
	runStats, err := stats.NewStorage(cfg.DataDir, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = analyzer.DefaultUserAgent
	}

	manager := quota.NewManager(db, quota.Limits{
		DefaultPages:     cfg.MaxPagesDefault,
		TrialPages:       cfg.TrialPageLimit,
		TrialSuggestions: cfg.TrialSuggestionLimit,
	}, log)

	client := ai.NewClient(ai.Config{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})
	if !client.Available() {
		log.Warn("No AI API key configured, AI suggestions are disabled")
	}

	cache := insights.NewCache(cfg.SuggestionCacheTTL, insights.DefaultCacheSize)
	generator := insights.NewGenerator(insights.Config{
		Completer: client,
		Cache:     cache,
		Credits:   manager,
		Logger:    log,
	})

	var altText analyzer.AltTextGenerator
	if client.Available() {
		altText = insights.NewAltText(client, ai.DefaultRetryPolicy, log)
	}
	pageAnalyzer := analyzer.New(analyzer.Config{
		Timeout:    cfg.FetchTimeout,
		UserAgent:  userAgent,
		Heuristics: cfg.Heuristics,
		AltText:    altText,
		Logger:     log,
	})

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	discoverer := discovery.New(
		discovery.NewHTTPSitemapParser(httpClient, userAgent, log),
		discovery.NewCollyCrawler(httpClient, userAgent, cfg.FetchTimeout, log),
		log,
	)

	var design insights.DesignScorer
	if cfg.DesignServiceURL != "" {
		design = insights.NewHTTPDesignScorer(cfg.DesignServiceURL, 0)
	}

	tracker := progress.NewTracker(log)
	orch := orchestrator.New(orchestrator.Config{
		Tracker:    tracker,
		Quota:      manager,
		Discovery:  discoverer,
		Analyzer:   pageAnalyzer,
		Insights:   generator,
		Design:     design,
		Store:      db,
		Stats:      runStats,
		CrawlDelay: cfg.CrawlDelay,
		Logger:     log,
	})

	return &app{store: db, runStats: runStats, cache: cache, tracker: tracker, orch: orch}, nil
}

func (a *app) Close() error {
	a.cache.Close()
	return errors.Join(a.runStats.Close(), a.store.Close())
}
