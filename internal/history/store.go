// Package history keeps an audit trail of observed page loads and the
// prefetches they issued in a SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/urlhandler"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Run statuses
const (
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Store wraps the SQL database connection holding run history.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RunEntry represents a record in the runs table.
type RunEntry struct {
	ID         int64
	PageURL    string
	Site       string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Accepted   int64
	Rejected   int64
	Duplicates int64
	Succeeded  int64
	Failed     int64
	Abandoned  int64
	Anomalies  int
}

// PrefetchEntry represents a record in the prefetches table.
type PrefetchEntry struct {
	RunID      int64
	URL        string
	Mode       string
	Source     string
	StatusCode int
	Bytes      int64
	DurationMs int64
	Error      sql.NullString
}

// NewStore opens the database at dataSourceName and ensures the schema is set up.
func NewStore(dataSourceName string, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "HistoryStore").Logger()
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing history database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error().Err(err).Str("directory", dbDir).Msg("Failed to create history database directory")
		return nil, fmt.Errorf("failed to create history database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		logger.Error().Err(err).Str("db_path", dataSourceName).Msg("Failed to open history database")
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// A single connection serialises writers from concurrent prefetches.
	dbInstance.SetMaxOpenConns(1)

	store := &Store{
		db:     dbInstance,
		logger: logger,
	}

	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates the runs and prefetches tables if they don't already exist.
func (s *Store) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_url TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		accepted INTEGER DEFAULT 0,
		rejected INTEGER DEFAULT 0,
		duplicates INTEGER DEFAULT 0,
		succeeded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		abandoned INTEGER DEFAULT 0,
		anomalies INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS prefetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		mode TEXT NOT NULL,
		source TEXT NOT NULL,
		status_code INTEGER,
		bytes INTEGER,
		duration_ms INTEGER,
		started_at DATETIME NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_prefetches_run_id ON prefetches(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	`
	if _, err := s.db.Exec(query); err != nil {
		s.logger.Error().Err(err).Msg("Failed to initialize history schema")
		return err
	}
	s.logger.Debug().Msg("History schema initialized")
	return nil
}

// StartRun inserts a new run with status STARTED and returns its ID.
// Runs are grouped by the registrable domain of the page.
func (s *Store) StartRun(pageURL string, startedAt time.Time) (int64, error) {
	query := `INSERT INTO runs (page_url, site, started_at, status) VALUES (?, ?, ?, ?)`
	result, err := s.db.Exec(query, pageURL, siteOf(pageURL), startedAt, StatusStarted)
	if err != nil {
		s.logger.Error().Err(err).Str("page_url", pageURL).Msg("Failed to record run start")
		return 0, fmt.Errorf("failed to insert run start record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	s.logger.Debug().Int64("run_id", id).Str("page_url", pageURL).Msg("Recorded run start")
	return id, nil
}

// FinishRun stores the summary of a run and marks it with status.
func (s *Store) FinishRun(runID int64, summary *models.SessionSummary, status string) error {
	query := `UPDATE runs SET finished_at = ?, status = ?, accepted = ?, rejected = ?, duplicates = ?, succeeded = ?, failed = ?, abandoned = ?, anomalies = ? WHERE id = ?`

	finishedAt := time.Now()
	var stats models.DispatchStats
	anomalies := 0
	if summary != nil {
		if !summary.FinishedAt.IsZero() {
			finishedAt = summary.FinishedAt
		}
		stats = summary.Stats
		anomalies = summary.Anomalies
	}

	_, err := s.db.Exec(query, finishedAt, status, stats.Accepted, stats.Rejected, stats.Duplicates,
		stats.Succeeded, stats.Failed, stats.Abandoned, anomalies, runID)
	if err != nil {
		s.logger.Error().Err(err).Int64("run_id", runID).Msg("Failed to update run completion")
		return fmt.Errorf("failed to update run completion for ID %d: %w", runID, err)
	}
	s.logger.Debug().Int64("run_id", runID).Str("status", status).Msg("Recorded run completion")
	return nil
}

// RecordPrefetch stores the outcome of one prefetch of run runID.
func (s *Store) RecordPrefetch(runID int64, outcome models.Outcome) error {
	query := `INSERT INTO prefetches (run_id, url, mode, source, status_code, bytes, duration_ms, started_at, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var errText sql.NullString
	if outcome.Err != nil {
		errText = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}

	_, err := s.db.Exec(query, runID, outcome.URL, outcome.Mode.String(), string(outcome.Source),
		outcome.StatusCode, outcome.Bytes, outcome.Duration.Milliseconds(), outcome.StartedAt, errText)
	if err != nil {
		return fmt.Errorf("failed to insert prefetch record for %s: %w", outcome.URL, err)
	}
	return nil
}

// Recorder returns a sink that stores outcomes under runID. Write failures
// are logged and dropped.
func (s *Store) Recorder(runID int64) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// Recorder stores prefetch outcomes for one run
type Recorder struct {
	store *Store
	runID int64
}

// Record implements dispatcher.OutcomeSink
func (r *Recorder) Record(outcome models.Outcome) {
	if err := r.store.RecordPrefetch(r.runID, outcome); err != nil {
		r.store.logger.Warn().Err(err).Int64("run_id", r.runID).Msg("Failed to record prefetch outcome")
	}
}

const runColumns = `id, page_url, site, started_at, finished_at, status, accepted, rejected, duplicates, succeeded, failed, abandoned, anomalies`

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRuns(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
}

// RunsForSite returns up to limit runs of pages under site, newest first.
func (s *Store) RunsForSite(site string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRuns(`SELECT `+runColumns+` FROM runs WHERE site = ? ORDER BY id DESC LIMIT ?`, strings.ToLower(site), limit)
}

func (s *Store) queryRuns(query string, args ...any) ([]RunEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.PageURL, &e.Site, &e.StartedAt, &e.FinishedAt, &e.Status, &e.Accepted, &e.Rejected,
			&e.Duplicates, &e.Succeeded, &e.Failed, &e.Abandoned, &e.Anomalies); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prefetches returns the prefetches recorded for runID in insertion order.
func (s *Store) Prefetches(runID int64) ([]PrefetchEntry, error) {
	query := `SELECT run_id, url, mode, source, status_code, bytes, duration_ms, error FROM prefetches WHERE run_id = ? ORDER BY id`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prefetches for run %d: %w", runID, err)
	}
	defer rows.Close()

	var entries []PrefetchEntry
	for rows.Next() {
		var e PrefetchEntry
		if err := rows.Scan(&e.RunID, &e.URL, &e.Mode, &e.Source, &e.StatusCode, &e.Bytes, &e.DurationMs, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan prefetch: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func siteOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	site, err := urlhandler.GetBaseDomain(u.Hostname())
	if err != nil {
		return strings.ToLower(u.Hostname())
	}
	return site
}
