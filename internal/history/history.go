// Package history keeps an optional log of sync and check runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"driversync/internal/syncer"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "~/.driversync/history.db"

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uuid        TEXT UNIQUE NOT NULL,
    mode            TEXT NOT NULL,
    action          TEXT NOT NULL,
    reason          TEXT,
    browser_version TEXT,
    driver_version  TEXT,
    driver_path     TEXT,
    platform        TEXT,
    url             TEXT,
    error           TEXT,
    started_at      TEXT NOT NULL,
    duration_ms     INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Entry is one recorded run.
type Entry struct {
	ID             string
	Mode           string
	Action         string
	Reason         string
	BrowserVersion string
	DriverVersion  string
	DriverPath     string
	Platform       string
	URL            string
	Error          string
	StartedAt      time.Time
	Duration       time.Duration
}

// Store is a SQLite-backed run log. It satisfies syncer.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

var _ syncer.Recorder = (*Store)(nil)

// Open creates or opens the database at path, creating its directory.
func Open(path string) (*Store, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G301: user data directory
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{db: db, path: resolved}, nil
}

// ResolvePath expands a leading ~ and falls back to DefaultPath.
func ResolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		p = DefaultPath
	}
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p), nil
}

// Path returns the resolved database path.
func (s *Store) Path() string { return s.path }

// Record stores a finished run under a fresh id.
func (s *Store) Record(ctx context.Context, r syncer.Report) error {
	started := r.Started
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_uuid, mode, action, reason, browser_version, driver_version,
			driver_path, platform, url, error, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), string(r.Mode), string(r.Action), string(r.Reason),
		r.BrowserVersion, r.DriverVersion, r.DriverPath, r.Platform, r.URL, r.Error,
		started.UTC().Format(timeLayout), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_uuid, mode, action, COALESCE(reason, ''), COALESCE(browser_version, ''),
			COALESCE(driver_version, ''), COALESCE(driver_path, ''), COALESCE(platform, ''),
			COALESCE(url, ''), COALESCE(error, ''), started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			started string
			ms      int64
		)
		if err := rows.Scan(&e.ID, &e.Mode, &e.Action, &e.Reason, &e.BrowserVersion,
			&e.DriverVersion, &e.DriverPath, &e.Platform, &e.URL, &e.Error, &started, &ms); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(timeLayout, started); err == nil {
			e.StartedAt = t
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
