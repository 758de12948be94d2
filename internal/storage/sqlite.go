package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/schemalign/internal/models"
)

// SQLiteStore keeps records and the decision audit log in SQLite. It is both a Sink and a
// decision recorder.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection; one connection also serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		registry TEXT NOT NULL,
		region TEXT NOT NULL,
		school TEXT NOT NULL,
		activity TEXT NOT NULL,
		ingestion_time TIMESTAMP NOT NULL,
		columns TEXT NOT NULL,
		rows TEXT NOT NULL,
		renames TEXT,
		source_mod_time TIMESTAMP,
		source_size INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_registry ON records(registry);
	CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		registry TEXT NOT NULL,
		input TEXT NOT NULL,
		name TEXT NOT NULL,
		added INTEGER NOT NULL,
		path TEXT NOT NULL,
		score REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_registry ON decisions(registry, id);
	`
	_, err := db.Exec(schema)
	return err
}

// Save inserts rec or replaces the record with the same ID, keeping its original created_at.
func (s *SQLiteStore) Save(ctx context.Context, rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	columnsJSON, err := json.Marshal(rec.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(rec.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	renamesJSON, err := json.Marshal(rec.Renames)
	if err != nil {
		return fmt.Errorf("failed to marshal renames: %w", err)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, filename, registry, region, school, activity, ingestion_time,
			columns, rows, renames, source_mod_time, source_size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			registry = excluded.registry,
			region = excluded.region,
			school = excluded.school,
			activity = excluded.activity,
			ingestion_time = excluded.ingestion_time,
			columns = excluded.columns,
			rows = excluded.rows,
			renames = excluded.renames,
			source_mod_time = excluded.source_mod_time,
			source_size = excluded.source_size,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Filename, rec.Registry, rec.Metadata.Region, rec.Metadata.School, rec.Metadata.Activity,
		rec.Metadata.IngestionTime, string(columnsJSON), string(rowsJSON), string(renamesJSON),
		rec.SourceModTime, rec.SourceSize, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

const recordColumns = `id, filename, registry, region, school, activity, ingestion_time,
	columns, rows, renames, source_mod_time, source_size, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec                   models.Record
		columnsJSON, rowsJSON string
		renamesJSON           sql.NullString
		sourceModTime         sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Registry, &rec.Metadata.Region, &rec.Metadata.School,
		&rec.Metadata.Activity, &rec.Metadata.IngestionTime, &columnsJSON, &rowsJSON, &renamesJSON,
		&sourceModTime, &rec.SourceSize, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &rec.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	if renamesJSON.Valid && renamesJSON.String != "" && renamesJSON.String != "null" {
		if err := json.Unmarshal([]byte(renamesJSON.String), &rec.Renames); err != nil {
			return nil, fmt.Errorf("failed to unmarshal renames: %w", err)
		}
	}
	if sourceModTime.Valid {
		rec.SourceModTime = sourceModTime.Time
	}
	return &rec, nil
}

// GetRecord returns a record by ID.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SourceVersion returns the stored record for id, if any, so callers can compare source
// modification time and size.
func (s *SQLiteStore) SourceVersion(ctx context.Context, id string) (*models.Record, bool, error) {
	var (
		rec     models.Record
		modTime sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_mod_time, source_size FROM records WHERE id = ?`, id,
	).Scan(&rec.ID, &modTime, &rec.SourceSize)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if modTime.Valid {
		rec.SourceModTime = modTime.Time
	}
	return &rec, true, nil
}

// ListRecords returns records newest first.
func (s *SQLiteStore) ListRecords(ctx context.Context, offset, limit int) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteRecord removes a record by ID.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return err
}

// CountRecords returns the total number of records.
func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// RecordDecision appends d to the audit log.
func (s *SQLiteStore) RecordDecision(ctx context.Context, d models.Decision) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (registry, input, name, added, path, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Registry, d.Input, d.Name, d.Added, d.Path, d.Score, d.CreatedAt,
	)
	return err
}

// BatchRecordDecisions appends several decisions in one transaction.
func (s *SQLiteStore) BatchRecordDecisions(ctx context.Context, decisions []models.Decision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (registry, input, name, added, path, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, d := range decisions {
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, d.Registry, d.Input, d.Name, d.Added, d.Path, d.Score, d.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDecisions returns audit entries newest first, optionally for one registry.
func (s *SQLiteStore) ListDecisions(ctx context.Context, filter models.DecisionFilter) ([]models.Decision, error) {
	filter.Normalize()
	query := `SELECT registry, input, name, added, path, score, created_at FROM decisions`
	args := []any{}
	if filter.Registry != "" {
		query += ` WHERE registry = ?`
		args = append(args, filter.Registry)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decisions := []models.Decision{}
	for rows.Next() {
		var d models.Decision
		if err := rows.Scan(&d.Registry, &d.Input, &d.Name, &d.Added, &d.Path, &d.Score, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// CountDecisions returns the number of audit entries.
func (s *SQLiteStore) CountDecisions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
