// Package store persists users, credits and finished analyses.
package store

import (
	"context"
	"errors"

	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// ErrNotFound is returned for unknown users and analyses.
var ErrNotFound = errors.New("not found")

// User is a row of the users table.
type User struct {
	quota.Settings
	quota.Usage
}

// LedgerEntry is one credit movement.
type LedgerEntry struct {
	UserID string `db:"user_id" json:"userId"`
	Delta  int    `db:"delta" json:"delta"`
	Reason string `db:"reason" json:"reason"`
}

// Store is the full datastore used by the service.
type Store interface {
	quota.Store
	UpsertUser(ctx context.Context, u User) error
	SaveAnalysis(ctx context.Context, result *report.AnalysisResult) error
	GetAnalysis(ctx context.Context, id string) (*report.AnalysisResult, error)
	Ledger(ctx context.Context, userID string) ([]LedgerEntry, error)
	Close() error
}

const (
	reasonDeduct = "ai suggestion"
)
