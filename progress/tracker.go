// Package progress owns the per-domain cancellation registry and the
// progress topics subscribers listen on.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/report"
)

// ErrCancelled is returned by every stage once a run's context is done.
var ErrCancelled = errors.New("analysis cancelled")

// Check returns an error wrapping ErrCancelled when ctx is done.
func Check(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return Check(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Check(ctx)
	case <-timer.C:
		return nil
	}
}

// DefaultBuffer is the channel size used when Subscribe gets a zero buffer.
const DefaultBuffer = 32

// Tracker is safe for concurrent use. Create one per process and inject it.
type Tracker struct {
	mu     sync.Mutex
	runs   map[string]*Run
	subs   map[string]map[*Subscription]struct{}
	latest map[string]report.ProgressUpdate
	log    logrus.FieldLogger
}

// NewTracker creates an empty tracker.
func NewTracker(log logrus.FieldLogger) *Tracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		runs:   make(map[string]*Run),
		subs:   make(map[string]map[*Subscription]struct{}),
		latest: make(map[string]report.ProgressUpdate),
		log:    log,
	}
}

// NormalizeDomain lower-cases a domain and strips scheme, path and "www.".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// Register creates the cancellable context for a new run on domain. A run
// already registered for the domain stays alive but can no longer be
// cancelled through Cancel: the last registration wins.
func (t *Tracker) Register(parent context.Context, domain, runID string) (context.Context, *Run) {
	key := NormalizeDomain(domain)
	ctx, cancel := context.WithCancelCause(parent)
	run := &Run{
		tracker: t,
		key:     key,
		domain:  domain,
		id:      runID,
		cancel:  cancel,
		started: time.Now(),
	}

	t.mu.Lock()
	if prev, ok := t.runs[key]; ok {
		t.log.WithFields(logrus.Fields{"domain": key, "previousRun": prev.id, "run": runID}).
			Warn("Replacing ongoing analysis registration")
	}
	t.runs[key] = run
	delete(t.latest, key)
	t.mu.Unlock()

	return ctx, run
}

// Cancel aborts the run currently registered for domain.
func (t *Tracker) Cancel(domain string) bool {
	key := NormalizeDomain(domain)
	t.mu.Lock()
	run, ok := t.runs[key]
	t.mu.Unlock()
	if !ok {
		return false
	}
	run.cancel(ErrCancelled)
	t.log.WithFields(logrus.Fields{"domain": key, "run": run.id}).Info("Cancellation requested")
	return true
}

// Active reports whether a run is registered for domain.
func (t *Tracker) Active(domain string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.runs[NormalizeDomain(domain)]
	return ok
}

// Latest returns the most recent update of the registered run, if any.
func (t *Tracker) Latest(domain string) (report.ProgressUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.latest[NormalizeDomain(domain)]
	return u, ok
}

func (t *Tracker) deregister(run *Run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.runs[run.key]; ok && current == run {
		delete(t.runs, run.key)
		delete(t.latest, run.key)
	}
}

// Subscription receives the updates published for one domain. Call
// Unsubscribe when the consumer goes away.
type Subscription struct {
	C <-chan report.ProgressUpdate

	ch      chan report.ProgressUpdate
	key     string
	tracker *Tracker
	once    sync.Once
}

// Subscribe registers a consumer for domain. If a run is in flight its
// latest update is delivered first.
func (t *Tracker) Subscribe(domain string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan report.ProgressUpdate, buffer)
	sub := &Subscription{C: ch, ch: ch, key: NormalizeDomain(domain), tracker: t}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs[sub.key] == nil {
		t.subs[sub.key] = make(map[*Subscription]struct{})
	}
	t.subs[sub.key][sub] = struct{}{}
	if last, ok := t.latest[sub.key]; ok {
		ch <- last
	}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. It is safe
// to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		t := s.tracker
		t.mu.Lock()
		defer t.mu.Unlock()
		if subs, ok := t.subs[s.key]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(t.subs, s.key)
			}
		}
		close(s.ch)
	})
}

// Subscribers returns the number of live subscriptions for domain.
func (t *Tracker) Subscribers(domain string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[NormalizeDomain(domain)])
}

// publish fans an update out without blocking. A full subscriber loses its
// oldest pending update so the newest one, terminal events included, is
// always delivered.
func (t *Tracker) publish(key string, u report.ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.runs[key]; ok && current.id == u.RunID {
		t.latest[key] = u
	}
	for sub := range t.subs[key] {
		select {
		case sub.ch <- u:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- u:
		default:
			t.log.WithField("domain", key).Warn("Dropping progress update for slow subscriber")
		}
	}
}
