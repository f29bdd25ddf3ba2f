package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/seo-optimizer/siteanalyzer/report"
)

// Run is the handle of one registered analysis. It publishes that run's
// progress and guarantees the percentage never goes backwards and exactly
// one terminal event is sent.
type Run struct {
	tracker *Tracker
	key     string
	domain  string
	id      string
	cancel  func(error)
	started time.Time

	mu       sync.Mutex
	percent  int
	found    int
	analyzed []string
	done     bool
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Domain returns the domain as given to Register.
func (r *Run) Domain() string { return r.domain }

// Started returns when the run was registered.
func (r *Run) Started() time.Time { return r.started }

// Percentage returns the last published percentage.
func (r *Run) Percentage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Deregister releases the registry entry if it still belongs to this run.
// The context is cancelled as well to free its resources.
func (r *Run) Deregister() {
	r.tracker.deregister(r)
	r.cancel(nil)
}

// Stage publishes an in-progress update.
func (r *Run) Stage(stage string, percent int, message string) {
	r.emit(report.ProgressUpdate{Status: report.StatusInProgress, Stage: stage, Percentage: percent, Message: message})
}

// PagesFound records the discovery result and publishes it.
func (r *Run) PagesFound(n int, percent int) {
	r.mu.Lock()
	r.found = n
	r.mu.Unlock()
	r.emit(report.ProgressUpdate{Status: report.StatusInProgress, Stage: "discovery", Percentage: percent})
}

// PageAnalyzed records one more finished page.
func (r *Run) PageAnalyzed(pageURL string, percent int) {
	r.mu.Lock()
	r.analyzed = append(r.analyzed, pageURL)
	r.mu.Unlock()
	r.emit(report.ProgressUpdate{Status: report.StatusInProgress, Stage: "analysis", CurrentPageURL: pageURL, Percentage: percent})
}

// Complete publishes the terminal success event with the final result.
func (r *Run) Complete(result *report.AnalysisResult) {
	r.emit(report.ProgressUpdate{Status: report.StatusCompleted, Stage: "complete", Percentage: 100, Result: result})
}

// Fail publishes the terminal event for err. Cancellation is reported as
// StatusCancelled.
func (r *Run) Fail(err error) {
	if errors.Is(err, ErrCancelled) {
		r.emit(report.ProgressUpdate{Status: report.StatusCancelled, Stage: "cancelled", Message: "Analysis cancelled"})
		return
	}
	msg := "analysis failed"
	if err != nil {
		msg = err.Error()
	}
	r.emit(report.ProgressUpdate{Status: report.StatusError, Stage: "error", Error: msg})
}

func (r *Run) emit(u report.ProgressUpdate) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	if u.Percentage > 100 {
		u.Percentage = 100
	}
	if u.Percentage < r.percent {
		u.Percentage = r.percent
	}
	r.percent = u.Percentage
	if u.Status.Terminal() {
		r.done = true
	}
	u.Domain = r.domain
	u.RunID = r.id
	u.PagesFound = r.found
	u.PagesAnalyzed = len(r.analyzed)
	u.AnalyzedPages = append([]string(nil), r.analyzed...)
	u.Timestamp = time.Now()

	// publish under r.mu so concurrent emitters deliver in clamp order
	r.tracker.publish(r.key, u)
	r.mu.Unlock()
}
