package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gemirror/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "gemirror.db"

// HistoryDB provides SQLite-based storage for run history.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per mirror run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		state TEXT NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		summary_json TEXT NOT NULL,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Latest known state of each page, per site
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		url TEXT NOT NULL,
		target_path TEXT NOT NULL,
		title TEXT,
		converted INTEGER NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		last_run_id INTEGER NOT NULL REFERENCES runs(id),
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(site, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_site ON pages(site);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run and updates the latest state of its pages.
// The run's ID is set on success.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}
	runJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var finishedAt sql.NullString
	if !run.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTimestamp(run.FinishedAt), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (site, output_dir, state, cancelled, started_at, finished_at, summary_json, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Site,
		run.OutputDir,
		string(run.State),
		run.Cancelled,
		formatTimestamp(run.StartedAt),
		finishedAt,
		string(summaryJSON),
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	upsert := `
	INSERT INTO pages (site, url, target_path, title, converted, degraded, error, last_run_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(site, url) DO UPDATE SET
		target_path = excluded.target_path,
		title = excluded.title,
		converted = excluded.converted,
		degraded = excluded.degraded,
		error = excluded.error,
		last_run_id = excluded.last_run_id,
		updated_at = CURRENT_TIMESTAMP
	`
	for _, p := range run.Pages {
		if _, err := tx.ExecContext(ctx, upsert,
			run.Site, p.URL, p.TargetPath, p.Title, p.Converted, p.Degraded, p.Error, id,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return id, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for listing history without loading the full run.
type RunMetadata struct {
	ID         int64
	Site       string
	OutputDir  string
	State      model.State
	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    model.Summary
}

// Duration returns how long the run took, or zero if it never finished.
func (m RunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// ListRuns returns stored runs, newest first. An empty site lists every
// site; a limit of zero or less lists all runs.
func (hdb *HistoryDB) ListRuns(ctx context.Context, site string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, site, output_dir, state, cancelled, started_at, finished_at, summary_json
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var state, startedAt, summaryJSON string
		var finishedAt sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Site, &meta.OutputDir, &state, &meta.Cancelled,
			&startedAt, &finishedAt, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.State = model.State(state)
		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		if err := json.Unmarshal([]byte(summaryJSON), &meta.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary of run %d: %w", meta.ID, err)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun retrieves a stored run by its ID.
// Returns nil without error when no such run exists.
func (hdb *HistoryDB) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	var runJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	run.ID = id

	return &run, nil
}

// PageRecord is the latest known state of a page.
type PageRecord struct {
	Site      string
	LastRunID int64
	UpdatedAt time.Time
	model.Page
}

// GetPage retrieves the latest state of a page.
// Returns nil without error when the page was never mirrored.
func (hdb *HistoryDB) GetPage(ctx context.Context, site, url string) (*PageRecord, error) {
	query := `
	SELECT site, url, target_path, title, converted, degraded, error, last_run_id, updated_at
	FROM pages
	WHERE site = ? AND url = ?
	`

	var rec PageRecord
	var title, pageErr sql.NullString
	var updatedAt string

	err := hdb.db.QueryRowContext(ctx, query, site, url).Scan(
		&rec.Site,
		&rec.URL,
		&rec.TargetPath,
		&title,
		&rec.Converted,
		&rec.Degraded,
		&pageErr,
		&rec.LastRunID,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	rec.Title = title.String
	rec.Error = pageErr.String
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return &rec, nil
}

// ListSites returns every site with at least one stored run.
func (hdb *HistoryDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM runs ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := make([]string, 0)
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// formatTimestamp stores times in UTC with a fixed width so that text
// ordering matches time ordering.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
