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

	"github.com/ngoiyaeric/queuelab/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "queuelab.db"

// startedAtFormat is fixed width so that stored start times sort as text.
const startedAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RunDB provides SQLite-based storage for run reports and their artifacts.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run verify first to record history)", dbPath)
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

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Runs store complete scenario run reports as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		scenario TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Artifacts list the files each run wrote
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		digest TEXT NOT NULL,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_path ON artifacts(path);
	CREATE INDEX IF NOT EXISTS idx_artifacts_digest ON artifacts(digest);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport saves a finalized run report and its artifacts in one
// transaction and returns the database ID of the run.
func (rdb *RunDB) SaveRunReport(ctx context.Context, report *model.RunReport) (int64, error) {
	if report == nil {
		return 0, errors.New("cannot save nil report")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, scenario, url, status, started_at, duration_ms, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Scenario,
		report.URL,
		statusName(report.Status),
		report.StartedAt.UTC().Format(startedAtFormat),
		report.Duration().Milliseconds(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, a := range report.Artifacts {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, path, kind, digest, width, height, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, a.Path, string(a.Kind), a.Digest, a.Width, a.Height, a.Bytes)
		if err != nil {
			return 0, fmt.Errorf("failed to save artifact %s: %w", a.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run report: %w", err)
	}
	return id, nil
}

func statusName(s model.Status) string {
	text, _ := s.MarshalText() //nolint:errcheck // never fails
	return string(text)
}

// GetLatestRunReport retrieves the most recent run of a scenario.
// It returns nil without error when the scenario has no history.
func (rdb *RunDB) GetLatestRunReport(ctx context.Context, scenario string) (*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE scenario = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return rdb.queryReport(ctx, query, scenario)
}

// GetRunReportByID retrieves a run report by its database ID.
// It returns nil without error when no such run exists.
func (rdb *RunDB) GetRunReportByID(ctx context.Context, id int64) (*model.RunReport, error) {
	return rdb.queryReport(ctx, `SELECT report_json FROM runs WHERE id = ?`, id)
}

func (rdb *RunDB) queryReport(ctx context.Context, query string, arg any) (*model.RunReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetRunHistory retrieves the runs of a scenario, newest first.
// A limit of zero or less returns every run.
func (rdb *RunDB) GetRunHistory(ctx context.Context, scenario string, limit int) ([]*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE scenario = ?
	ORDER BY started_at DESC, id DESC
	`
	args := []any{scenario}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.RunReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading full reports.
type RunMetadata struct {
	// ID is the database identifier used by GetRunReportByID.
	ID int64

	// RunID is the report's UUID.
	RunID string

	// Scenario is the scenario name.
	Scenario string

	// Status is the run outcome.
	Status model.Status

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall time of the run.
	Duration time.Duration

	// ArtifactCount is the number of files the run wrote.
	ArtifactCount int
}

// GetRunHistoryWithMetadata retrieves run metadata for a scenario, newest first.
func (rdb *RunDB) GetRunHistoryWithMetadata(ctx context.Context, scenario string) ([]RunMetadata, error) {
	query := `
	SELECT r.id, r.run_id, r.scenario, r.status, r.started_at, r.duration_ms,
		(SELECT COUNT(*) FROM artifacts a WHERE a.run_id = r.id)
	FROM runs r
	WHERE r.scenario = ?
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			status     string
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Scenario, &status, &startedAt, &durationMS, &meta.ArtifactCount); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		// An unknown status leaves the run pending rather than hiding it.
		meta.Status, _ = model.ParseStatus(status) //nolint:errcheck // see above
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListScenarios returns the names of all scenarios with recorded runs.
func (rdb *RunDB) ListScenarios(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT scenario FROM runs ORDER BY scenario`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []string
	for rows.Next() {
		var scenario string
		if err := rows.Scan(&scenario); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}

	return scenarios, rows.Err()
}

// ArtifactRecord is one stored artifact together with the run that wrote it.
type ArtifactRecord struct {
	RunID     int64
	Scenario  string
	StartedAt time.Time
	model.Artifact
}

// ArtifactHistory returns every recorded version of the file at path,
// newest first.
func (rdb *RunDB) ArtifactHistory(ctx context.Context, path string) ([]ArtifactRecord, error) {
	query := `
	SELECT r.id, r.scenario, r.started_at, a.path, a.kind, a.digest, a.width, a.height, a.bytes
	FROM artifacts a
	JOIN runs r ON r.id = a.run_id
	WHERE a.path = ?
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact history: %w", err)
	}
	defer rows.Close()

	var records []ArtifactRecord
	for rows.Next() {
		var (
			rec       ArtifactRecord
			kind      string
			startedAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.Scenario, &startedAt, &rec.Path, &kind,
			&rec.Digest, &rec.Width, &rec.Height, &rec.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		rec.Kind = model.ArtifactKind(kind)
		rec.StartedAt = parseTimestamp(startedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
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
