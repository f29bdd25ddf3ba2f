package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// Memory is a mutex-guarded Store for tests and one-off CLI runs.
type Memory struct {
	mu       sync.Mutex
	users    map[string]User
	ledger   []LedgerEntry
	analyses map[string][]byte
}

func NewMemory(users ...User) *Memory {
	m := &Memory{users: make(map[string]User), analyses: make(map[string][]byte)}
	for _, u := range users {
		if u.Tier == "" {
			u.Tier = quota.TierTrial
		}
		m.users[u.UserID] = u
	}
	return m
}

func (m *Memory) Close() error { return nil }

func (m *Memory) UpsertUser(_ context.Context, u User) error {
	if u.Tier == "" {
		u.Tier = quota.TierTrial
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
	return nil
}

func (m *Memory) user(userID string) (User, error) {
	u, ok := m.users[userID]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) GetSettings(_ context.Context, userID string) (quota.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	return u.Settings, err
}

func (m *Memory) GetUserUsage(_ context.Context, userID string) (quota.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	return u.Usage, err
}

func (m *Memory) AtomicDeductCredits(_ context.Context, userID string, n int) (quota.DeductResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return quota.DeductResult{}, err
	}
	if u.Credits < n {
		return quota.DeductResult{Remaining: u.Credits}, nil
	}
	u.Credits -= n
	m.users[userID] = u
	m.ledger = append(m.ledger, LedgerEntry{UserID: userID, Delta: -n, Reason: reasonDeduct})
	return quota.DeductResult{Success: true, Remaining: u.Credits}, nil
}

func (m *Memory) RefundCredits(_ context.Context, userID string, n int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return err
	}
	u.Credits += n
	m.users[userID] = u
	m.ledger = append(m.ledger, LedgerEntry{UserID: userID, Delta: n, Reason: reason})
	return nil
}

func (m *Memory) IncrementUserUsage(_ context.Context, userID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return err
	}
	u.PagesUsed += n
	m.users[userID] = u
	return nil
}

func (m *Memory) Ledger(_ context.Context, userID string) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// SaveAnalysis stores an encoded copy so later changes to result are not
// visible through GetAnalysis.
func (m *Memory) SaveAnalysis(_ context.Context, result *report.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding analysis %s: %w", result.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[result.ID] = payload
	return nil
}

func (m *Memory) GetAnalysis(_ context.Context, id string) (*report.AnalysisResult, error) {
	m.mu.Lock()
	payload, ok := m.analyses[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	var result report.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Analyses returns the number of stored analyses.
func (m *Memory) Analyses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.analyses)
}
