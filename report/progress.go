package report

import "time"

// Status of a run as seen by progress subscribers.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further updates follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ProgressUpdate is one event on a domain's progress channel.
type ProgressUpdate struct {
	Status         Status          `json:"status"`
	Domain         string          `json:"domain"`
	RunID          string          `json:"runId,omitempty"`
	Stage          string          `json:"stage,omitempty"`
	Message        string          `json:"message,omitempty"`
	PagesFound     int             `json:"pagesFound"`
	PagesAnalyzed  int             `json:"pagesAnalyzed"`
	CurrentPageURL string          `json:"currentPageUrl,omitempty"`
	AnalyzedPages  []string        `json:"analyzedPages,omitempty"`
	Percentage     int             `json:"percentage"`
	Error          string          `json:"error,omitempty"`
	Result         *AnalysisResult `json:"result,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
