package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/discovery"
	"github.com/seo-optimizer/siteanalyzer/middleware"
	"github.com/seo-optimizer/siteanalyzer/orchestrator"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/store"
)

// UserHeader carries the caller's user id when the body does not.
const UserHeader = "X-User-ID"

type analyzeRequest struct {
	Domain         string `json:"domain" binding:"required"`
	UserID         string `json:"userId"`
	UseSitemap     *bool  `json:"useSitemap"`
	UseAI          bool   `json:"useAI"`
	SkipAltText    bool   `json:"skipAltTextGeneration"`
	MaxPages       int    `json:"maxPages" binding:"gte=0"`
	CrawlDelayMs   int    `json:"crawlDelayMs" binding:"gte=0"`
	FollowExternal bool   `json:"followExternalLinks"`
	AdditionalInfo string `json:"additionalInfo"`
	IsCompetitor   bool   `json:"isCompetitorAnalysis"`
	ForceRefresh   bool   `json:"forceRefresh"`
}

func (r analyzeRequest) options() orchestrator.Options {
	useSitemap := true
	if r.UseSitemap != nil {
		useSitemap = *r.UseSitemap
	}
	return orchestrator.Options{
		UseSitemap:     useSitemap,
		UseAI:          r.UseAI,
		SkipAltText:    r.SkipAltText,
		MaxPages:       r.MaxPages,
		CrawlDelay:     time.Duration(r.CrawlDelayMs) * time.Millisecond,
		FollowExternal: r.FollowExternal,
		AdditionalInfo: r.AdditionalInfo,
		IsCompetitor:   r.IsCompetitor,
		ForceRefresh:   r.ForceRefresh,
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: a domain is required",
		})
		return
	}
	if _, err := discovery.RootURL(req.Domain); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain provided"})
		return
	}
	c.Set(middleware.DomainKey, req.Domain)

	userID := req.UserID
	if userID == "" {
		userID = c.GetHeader(UserHeader)
	}

	log := s.log.WithFields(logrus.Fields{"domain": req.Domain, "userId": userID, "clientIp": c.ClientIP()})
	log.Info("Analyze request received")

	result, err := s.cfg.Runner.Run(c.Request.Context(), req.Domain, req.options(), userID)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, result)
}

// errorStatus maps run errors to HTTP answers.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, quota.ErrLimitReached):
		return http.StatusPaymentRequired, "Page limit reached. Upgrade or add credits to analyze more pages."
	case errors.Is(err, quota.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "Not enough credits."
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Unknown user"
	case errors.Is(err, progress.ErrCancelled):
		return http.StatusConflict, "Analysis cancelled"
	case errors.Is(err, discovery.ErrNoPages):
		return http.StatusBadRequest, "Invalid domain provided"
	case errors.Is(err, orchestrator.ErrNothingAnalyzed):
		return http.StatusBadGateway, "None of the site's pages could be fetched"
	default:
		return http.StatusInternalServerError, "Failed to analyze site: " + err.Error()
	}
}

// progress streams the domain's progress updates as server-sent events
// until a terminal update or the client goes away.
func (s *Server) progress(c *gin.Context) {
	domain := c.Param("domain")
	sub := s.cfg.Tracker.Subscribe(domain, progress.DefaultBuffer)
	defer sub.Unsubscribe()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("progress", u)
			return !u.Status.Terminal()
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) cancel(c *gin.Context) {
	domain := c.Param("domain")
	if !s.cfg.Runner.Cancel(domain) {
		c.JSON(http.StatusNotFound, gin.H{
			"cancelled": false,
			"error":     "No ongoing analysis for this domain",
		})
		return
	}
	s.log.WithField("domain", domain).Info("Analysis cancellation requested")
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) statistics(c *gin.Context) {
	out := gin.H{}
	if s.cfg.Visitors != nil {
		for k, v := range s.cfg.Visitors.Snapshot() {
			out[k] = v
		}
	}
	if s.cfg.RunStats != nil {
		current := s.cfg.RunStats.GetCurrentStats()
		out["runs"] = current
		out["suggestionCacheHitRate"] = current.CacheHitRate()
		out["months"] = s.cfg.RunStats.GetAllMonths()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) analysis(c *gin.Context) {
	if s.cfg.Analyses == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analyses are not stored"})
		return
	}
	result, err := s.cfg.Analyses.GetAnalysis(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
	default:
		c.JSON(http.StatusOK, result)
	}
}
