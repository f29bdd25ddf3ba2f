// Package quota computes per-user page and AI-suggestion budgets and wraps
// the datastore's credit operations.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	// ErrLimitReached is returned before a run starts when the user has no
	// page budget left.
	ErrLimitReached = errors.New("usage limit reached")
	// ErrInsufficientCredits is returned when an atomic deduction is refused.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Tier is the plan a user is on.
type Tier string

const (
	TierTrial Tier = "trial"
	TierPaid  Tier = "paid"
)

// Settings are the per-user options held by the datastore.
type Settings struct {
	UserID    string `db:"id" json:"userId"`
	Tier      Tier   `db:"tier" json:"tier"`
	AIEnabled bool   `db:"ai_enabled" json:"aiEnabled"`
	MaxPages  int    `db:"max_pages" json:"maxPages"`
}

// Usage is what a user has consumed and what is left.
type Usage struct {
	PagesUsed int `db:"pages_used" json:"pagesUsed"`
	Credits   int `db:"credits" json:"credits"`
}

// DeductResult is the outcome of an atomic check-and-decrement.
type DeductResult struct {
	Success   bool `json:"success"`
	Remaining int  `json:"remaining"`
}

// Store is the datastore contract the manager consumes.
type Store interface {
	GetSettings(ctx context.Context, userID string) (Settings, error)
	GetUserUsage(ctx context.Context, userID string) (Usage, error)
	AtomicDeductCredits(ctx context.Context, userID string, n int) (DeductResult, error)
	RefundCredits(ctx context.Context, userID string, n int, reason string) error
	IncrementUserUsage(ctx context.Context, userID string, n int) error
}

// Limits are the service-wide allocation knobs.
type Limits struct {
	DefaultPages     int
	TrialPages       int
	TrialSuggestions int
}

// Budget is what one run may consume. It is computed once per run.
type Budget struct {
	UserID        string `json:"userId,omitempty"`
	Anonymous     bool   `json:"anonymous"`
	Trial         bool   `json:"trial"`
	AIEnabled     bool   `json:"aiEnabled"`
	Pages         int    `json:"pages"`
	AISuggestions int    `json:"aiSuggestions"`
	Credits       int    `json:"credits"`
}

// Manager is safe for concurrent use.
type Manager struct {
	store  Store
	limits Limits
	log    logrus.FieldLogger
}

// NewManager creates a manager over store.
func NewManager(store Store, limits Limits, log logrus.FieldLogger) *Manager {
	if limits.DefaultPages <= 0 {
		limits.DefaultPages = 10
	}
	if limits.TrialPages <= 0 {
		limits.TrialPages = 3
	}
	if limits.TrialSuggestions <= 0 {
		limits.TrialSuggestions = 3
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{store: store, limits: limits, log: log}
}

// Budget resolves the page and AI allowance of userID for a run asking for
// requested pages. Anonymous callers get the trial page limit and no AI.
func (m *Manager) Budget(ctx context.Context, userID string, requested int) (Budget, error) {
	if requested <= 0 {
		requested = m.limits.DefaultPages
	}
	if userID == "" {
		return Budget{Anonymous: true, Trial: true, Pages: min(requested, m.limits.TrialPages)}, nil
	}

	settings, err := m.store.GetSettings(ctx, userID)
	if err != nil {
		return Budget{}, fmt.Errorf("loading settings for %s: %w", userID, err)
	}
	usage, err := m.store.GetUserUsage(ctx, userID)
	if err != nil {
		return Budget{}, fmt.Errorf("loading usage for %s: %w", userID, err)
	}

	b := Budget{UserID: userID, Trial: settings.Tier != TierPaid, AIEnabled: settings.AIEnabled, Credits: usage.Credits}
	if settings.MaxPages > 0 {
		requested = min(requested, settings.MaxPages)
	}
	if b.Trial {
		b.Pages = min(requested, max(m.limits.TrialPages-usage.PagesUsed, 0))
		b.AISuggestions = min(m.limits.TrialSuggestions, max(usage.Credits, 0))
	} else {
		b.Pages = min(requested, max(usage.Credits, 0))
		b.AISuggestions = max(usage.Credits, 0)
	}
	if !b.AIEnabled {
		b.AISuggestions = 0
	}

	m.log.WithFields(logrus.Fields{
		"userId": userID, "trial": b.Trial, "pages": b.Pages, "aiSuggestions": b.AISuggestions,
	}).Debug("Resolved budget")

	if b.Pages == 0 {
		return b, fmt.Errorf("%w for user %s", ErrLimitReached, userID)
	}
	return b, nil
}

// Deduct atomically takes n credits from userID and returns what is left.
func (m *Manager) Deduct(ctx context.Context, userID string, n int) (int, error) {
	res, err := m.store.AtomicDeductCredits(ctx, userID, n)
	if err != nil {
		return 0, fmt.Errorf("deducting %d credits: %w", n, err)
	}
	if !res.Success {
		return res.Remaining, ErrInsufficientCredits
	}
	return res.Remaining, nil
}

// Refund gives n credits back to userID.
func (m *Manager) Refund(ctx context.Context, userID string, n int, reason string) error {
	if err := m.store.RefundCredits(ctx, userID, n, reason); err != nil {
		return fmt.Errorf("refunding %d credits: %w", n, err)
	}
	m.log.WithFields(logrus.Fields{"userId": userID, "credits": n, "reason": reason}).Info("Credits refunded")
	return nil
}

// RecordUsage adds pages to the user's usage counter. Anonymous runs are
// not recorded.
func (m *Manager) RecordUsage(ctx context.Context, userID string, pages int) error {
	if userID == "" || pages <= 0 {
		return nil
	}
	if err := m.store.IncrementUserUsage(ctx, userID, pages); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// PageCounter hands out a fixed number of page slots across goroutines.
type PageCounter struct {
	left atomic.Int64
}

// NewPageCounter returns a counter holding n slots.
func NewPageCounter(n int) *PageCounter {
	c := &PageCounter{}
	c.left.Store(int64(max(n, 0)))
	return c
}

// Remaining returns the number of slots left.
func (c *PageCounter) Remaining() int {
	return int(c.left.Load())
}

// Take claims one slot. It returns false once the counter is exhausted.
func (c *PageCounter) Take() bool {
	for {
		n := c.left.Load()
		if n <= 0 {
			return false
		}
		if c.left.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Release returns a slot claimed by a page that produced no result.
func (c *PageCounter) Release() {
	c.left.Add(1)
}
