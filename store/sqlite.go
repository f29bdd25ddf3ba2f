package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	tier       TEXT    NOT NULL DEFAULT 'trial',
	credits    INTEGER NOT NULL DEFAULT 0,
	pages_used INTEGER NOT NULL DEFAULT 0,
	ai_enabled INTEGER NOT NULL DEFAULT 1,
	max_pages  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS credit_ledger (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT    NOT NULL REFERENCES users(id),
	delta      INTEGER NOT NULL,
	reason     TEXT    NOT NULL,
	created_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	user_id    TEXT,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_domain ON analyses(domain, created_at);
`

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLite is the embedded datastore.
type SQLite struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLite, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// one writer; pragmas are per connection
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	log.WithField("path", path).Info("Datastore opened")
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) UpsertUser(ctx context.Context, u User) error {
	if u.Tier == "" {
		u.Tier = quota.TierTrial
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tier, credits, pages_used, ai_enabled, max_pages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tier = excluded.tier,
			credits = excluded.credits,
			pages_used = excluded.pages_used,
			ai_enabled = excluded.ai_enabled,
			max_pages = excluded.max_pages`,
		u.UserID, string(u.Tier), u.Credits, u.PagesUsed, u.AIEnabled, u.MaxPages)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.UserID, err)
	}
	return nil
}

func (s *SQLite) GetSettings(ctx context.Context, userID string) (quota.Settings, error) {
	var settings quota.Settings
	err := s.db.GetContext(ctx, &settings,
		`SELECT id, tier, ai_enabled, max_pages FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return settings, err
}

func (s *SQLite) GetUserUsage(ctx context.Context, userID string) (quota.Usage, error) {
	var usage quota.Usage
	err := s.db.GetContext(ctx, &usage,
		`SELECT pages_used, credits FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return usage, err
}

// AtomicDeductCredits takes n credits only if the balance covers them. The
// check and the decrement are a single statement.
func (s *SQLite) AtomicDeductCredits(ctx context.Context, userID string, n int) (quota.DeductResult, error) {
	var result quota.DeductResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET credits = credits - ? WHERE id = ? AND credits >= ?`, n, userID, n)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &result.Remaining, `SELECT credits FROM users WHERE id = ?`, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return err
		}
		if affected == 0 {
			return nil
		}
		result.Success = true
		return s.ledger(ctx, tx, userID, -n, reasonDeduct)
	})
	if err != nil {
		return quota.DeductResult{}, fmt.Errorf("deducting credits for %s: %w", userID, err)
	}
	return result, nil
}

func (s *SQLite) RefundCredits(ctx context.Context, userID string, n int, reason string) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + ? WHERE id = ?`, n, userID)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return s.ledger(ctx, tx, userID, n, reason)
	})
	if err != nil {
		return fmt.Errorf("refunding credits for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLite) IncrementUserUsage(ctx context.Context, userID string, n int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET pages_used = pages_used + ? WHERE id = ?`, n, userID)
	if err != nil {
		return fmt.Errorf("incrementing usage for %s: %w", userID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) Ledger(ctx context.Context, userID string) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT user_id, delta, reason FROM credit_ledger WHERE user_id = ? ORDER BY id`, userID)
	return entries, err
}

func (s *SQLite) SaveAnalysis(ctx context.Context, result *report.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding analysis %s: %w", result.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, domain, user_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		result.ID, result.Domain, nullable(result.UserID), string(payload), result.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving analysis %s: %w", result.ID, err)
	}
	return nil
}

func (s *SQLite) GetAnalysis(ctx context.Context, id string) (*report.AnalysisResult, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM analyses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var result report.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding analysis %s: %w", id, err)
	}
	return &result, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLite) ledger(ctx context.Context, tx *sqlx.Tx, userID string, delta int, reason string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (user_id, delta, reason, created_at) VALUES (?, ?, ?, ?)`,
		userID, delta, reason, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
