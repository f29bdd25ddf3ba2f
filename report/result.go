package report

import "time"

// BusinessContext is the AI-inferred profile of the analysed site.
type BusinessContext struct {
	Industry       string   `json:"industry"`
	BusinessType   string   `json:"businessType"`
	TargetAudience string   `json:"targetAudience"`
	MainServices   []string `json:"mainServices"`
	Location       string   `json:"location,omitempty"`
	Fallback       bool     `json:"fallback,omitempty"`
}

// FallbackBusinessContext is used when the AI call fails.
func FallbackBusinessContext() BusinessContext {
	return BusinessContext{
		Industry:       "General",
		BusinessType:   "Business",
		TargetAudience: "General audience",
		MainServices:   []string{},
		Fallback:       true,
	}
}

// ProcessingStats describes how a run went.
type ProcessingStats struct {
	StartedAt       time.Time `json:"startedAt"`
	ElapsedMs       int64     `json:"elapsedMs"`
	PagesDiscovered int       `json:"pagesDiscovered"`
	PagesAnalyzed   int       `json:"pagesAnalyzed"`
	DiscoverySource string    `json:"discoverySource"`
	AICalls         int       `json:"aiCalls"`
	CreditsUsed     int       `json:"creditsUsed"`
	CreditsRefunded int       `json:"creditsRefunded"`
	CacheHits       int       `json:"cacheHits"`
}

// AnalysisResult is the aggregate output of one run.
type AnalysisResult struct {
	ID           string                `json:"id"`
	Domain       string                `json:"domain"`
	UserID       string                `json:"userId,omitempty"`
	Trial        bool                  `json:"trial"`
	Pages        []*PageAnalysisResult `json:"pages"`
	SiteOverview *BusinessContext      `json:"siteOverview,omitempty"`
	Enhanced     *EnhancedInsights     `json:"enhancedInsights,omitempty"`
	Design       *DesignScore          `json:"design,omitempty"`
	Stats        ProcessingStats       `json:"processingStats"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// DesignScore is returned by the optional screenshot/design scoring service.
type DesignScore struct {
	Score    float64  `json:"score"`
	Findings []string `json:"findings,omitempty"`
}
