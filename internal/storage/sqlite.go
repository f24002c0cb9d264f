package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"homeboard/internal/model"
	"homeboard/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
// The pool is limited to one connection so that ":memory:" databases are
// shared by all callers.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordCheck inserts c and populates its ID. A zero CheckedAt is set to now.
func (s *SQLite) RecordCheck(ctx context.Context, c *model.SourceCheck) error {
	if c.CheckedAt.IsZero() {
		c.CheckedAt = s.now()
	}
	c.CheckedAt = c.CheckedAt.UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO source_checks (run_id, source, ok, error_kind, message, duration_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Source, boolToInt(c.OK), c.ErrorKind, c.Message, c.Duration.Milliseconds(),
		c.CheckedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// ListChecks returns the most recent checks, newest first.
func (s *SQLite) ListChecks(ctx context.Context, limit int) ([]model.SourceCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, source, ok, error_kind, message, duration_ms, checked_at
		 FROM source_checks ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChecks(rows)
}

// LatestChecks returns the newest check of every source, ordered by source.
func (s *SQLite) LatestChecks(ctx context.Context) ([]model.SourceCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, source, ok, error_kind, message, duration_ms, checked_at
		 FROM source_checks c
		 WHERE id = (SELECT MAX(id) FROM source_checks WHERE source = c.source)
		 ORDER BY source`,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest checks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChecks(rows)
}

// LastFailures returns the newest check of every source whose newest check
// failed.
func (s *SQLite) LastFailures(ctx context.Context) ([]model.SourceCheck, error) {
	latest, err := s.LatestChecks(ctx)
	if err != nil {
		return nil, err
	}
	var failed []model.SourceCheck
	for _, c := range latest {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed, nil
}

// PruneChecks deletes checks older than before and returns how many went.
func (s *SQLite) PruneChecks(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM source_checks WHERE checked_at < ?`, before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune checks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// MarkSent records that the notification identified by key was delivered.
func (s *SQLite) MarkSent(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (key, sent_at) VALUES (?, ?)`,
		key, s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// IsSent checks whether the notification identified by key was delivered.
func (s *SQLite) IsSent(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications WHERE key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheck(row scannable) (model.SourceCheck, error) {
	var c model.SourceCheck
	var ok int
	var durationMS int64
	var checked string
	err := row.Scan(&c.ID, &c.RunID, &c.Source, &ok, &c.ErrorKind, &c.Message, &durationMS, &checked)
	if err != nil {
		return c, fmt.Errorf("scan check: %w", err)
	}
	c.OK = ok == 1
	c.Duration = time.Duration(durationMS) * time.Millisecond
	c.CheckedAt, _ = time.Parse(timeLayout, checked)
	return c, nil
}

func scanChecks(rows *sql.Rows) ([]model.SourceCheck, error) {
	var checks []model.SourceCheck
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
