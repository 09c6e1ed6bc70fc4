package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/inbox-triage/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

type feedbackRow struct {
	ID              string    `db:"id"`
	Category        string    `db:"category"`
	Action          string    `db:"action"`
	Reply           string    `db:"reply"`
	Sender          string    `db:"sender"`
	SubjectKeywords string    `db:"subject_keywords"`
	CreatedAt       time.Time `db:"created_at"`
}

// SaveFeedback inserts a learning record. A missing ID or timestamp is
// filled in.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb model.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	keywords := fb.SubjectKeywords
	if keywords == nil {
		keywords = []string{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshaling subject keywords for %s: %w", fb.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			id, category, action, reply, sender, subject_keywords, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, string(fb.Category), string(fb.Action), fb.Reply, fb.Sender,
		string(kw), fb.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving feedback %s: %w", fb.ID, err)
	}

	return nil
}

// ListFeedback returns the most recent records first. A non-positive
// limit returns everything.
func (s *SQLiteStore) ListFeedback(ctx context.Context, limit int) ([]model.Feedback, error) {
	query := "SELECT * FROM feedback ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []feedbackRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}

	out := make([]model.Feedback, 0, len(rows))
	for _, r := range rows {
		var keywords []string
		if err := json.Unmarshal([]byte(r.SubjectKeywords), &keywords); err != nil {
			return nil, fmt.Errorf("unmarshaling subject keywords for %s: %w", r.ID, err)
		}
		out = append(out, model.Feedback{
			ID:              r.ID,
			Category:        model.Category(r.Category),
			Action:          model.FeedbackAction(r.Action),
			Reply:           r.Reply,
			Sender:          r.Sender,
			SubjectKeywords: keywords,
			CreatedAt:       r.CreatedAt,
		})
	}

	return out, nil
}

// RecordCycle stores the counters of one finished cycle.
func (s *SQLiteStore) RecordCycle(ctx context.Context, run model.CycleRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_runs (
			id, total_unread, processed_count, auto_replies_sent,
			failures, quota_limited, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TotalUnread, run.ProcessedCount, run.AutoRepliesSent,
		run.Failures, boolToInt(run.QuotaLimited),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording cycle %s: %w", run.ID, err)
	}

	return nil
}

// RecentCycles returns the latest cycles first.
func (s *SQLiteStore) RecentCycles(ctx context.Context, limit int) ([]model.CycleRun, error) {
	query := "SELECT * FROM cycle_runs ORDER BY finished_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var runs []model.CycleRun
	if err := s.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("querying cycle runs: %w", err)
	}

	return runs, nil
}

// Stats aggregates all recorded cycles.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var agg struct {
		Cycles      int `db:"cycles"`
		Processed   int `db:"processed"`
		AutoReplies int `db:"auto_replies"`
		Failures    int `db:"failures"`
	}
	err := s.db.GetContext(ctx, &agg, `
		SELECT
			COUNT(*) AS cycles,
			COALESCE(SUM(processed_count), 0) AS processed,
			COALESCE(SUM(auto_replies_sent), 0) AS auto_replies,
			COALESCE(SUM(failures), 0) AS failures
		FROM cycle_runs`)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregating cycle runs: %w", err)
	}

	st := Stats{
		Cycles:           agg.Cycles,
		TotalProcessed:   agg.Processed,
		TotalAutoReplies: agg.AutoReplies,
		TotalFailures:    agg.Failures,
	}

	var last time.Time
	err = s.db.GetContext(ctx, &last, "SELECT finished_at FROM cycle_runs ORDER BY finished_at DESC LIMIT 1")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Stats{}, fmt.Errorf("reading last cycle: %w", err)
	default:
		st.LastProcessed = &last
	}

	if err := s.db.GetContext(ctx, &st.FeedbackCount, "SELECT COUNT(*) FROM feedback"); err != nil {
		return Stats{}, fmt.Errorf("counting feedback: %w", err)
	}

	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
