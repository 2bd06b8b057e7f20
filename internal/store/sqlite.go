package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/seantiz/conductor/internal/model"

	_ "modernc.org/sqlite"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS history (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id        TEXT NOT NULL UNIQUE,
    execution_id     TEXT NOT NULL,
    project_id       TEXT NOT NULL,
    project_name     TEXT NOT NULL,
    scenario_id      TEXT NOT NULL,
    scenario_name    TEXT NOT NULL,
    file             TEXT NOT NULL,
    tags             TEXT NOT NULL,
    environment_id   TEXT NOT NULL,
    environment_name TEXT NOT NULL,
    base_url         TEXT NOT NULL,
    status           TEXT NOT NULL,
    exit_code        INTEGER,
    created_at       DATETIME NOT NULL,
    started_at       DATETIME,
    finished_at      DATETIME,
    duration_ms      INTEGER
)`

const historyColumns = `record_id, execution_id, project_id, project_name, scenario_id,
	scenario_name, file, tags, environment_id, environment_name, base_url,
	status, exit_code, created_at, started_at, finished_at, duration_ms`

// Compile-time interface satisfaction check.
var _ HistoryStore = (*SQLiteStore)(nil)

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// capacity <= 0 selects DefaultCapacity.
func NewSQLiteStore(dbPath string, capacity int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}

	return newStoreWithDB(db, capacity), nil
}

func newStoreWithDB(db *sql.DB, capacity int) *SQLiteStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SQLiteStore{db: db, capacity: capacity}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts rec and trims the log to capacity in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.ExecutionID, rec.ProjectID, rec.ProjectName, rec.ScenarioID,
		rec.ScenarioName, rec.File, string(tagsJSON), rec.EnvironmentID, rec.EnvironmentName, rec.BaseURL,
		string(rec.Status), rec.ExitCode, rec.CreatedAt, rec.StartedAt, rec.FinishedAt, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE seq NOT IN (
			SELECT seq FROM history ORDER BY seq DESC LIMIT ?
		)`, s.capacity,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history record: %w", err)
	}
	return nil
}

// List returns up to limit records ordered newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	limit = ClampLimit(limit)
	if limit == 0 {
		return []model.HistoryRecord{}, nil
	}
	return s.query(ctx, `SELECT `+historyColumns+` FROM history ORDER BY seq DESC LIMIT ?`, limit)
}

// All returns every retained record ordered newest first.
func (s *SQLiteStore) All(ctx context.Context) ([]model.HistoryRecord, error) {
	return s.query(ctx, `SELECT `+historyColumns+` FROM history ORDER BY seq DESC`)
}

// Count returns the number of retained records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Clear deletes every record.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := []model.HistoryRecord{}
	for rows.Next() {
		var (
			r        model.HistoryRecord
			tagsJSON string
			status   string
		)
		if err := rows.Scan(
			&r.RecordID, &r.ExecutionID, &r.ProjectID, &r.ProjectName, &r.ScenarioID,
			&r.ScenarioName, &r.File, &tagsJSON, &r.EnvironmentID, &r.EnvironmentName, &r.BaseURL,
			&status, &r.ExitCode, &r.CreatedAt, &r.StartedAt, &r.FinishedAt, &r.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		r.Status = model.Status(status)
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", r.ExecutionID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}
