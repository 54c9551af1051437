package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

// SchemaVersion is stored in the meta table of databases written by WriteSQLite.
const SchemaVersion = 1

// SQLiteReader provides read access to a jobs SQLite database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}
	if _, err := os.Stat(source.Path); err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		// Best effort; a read-only connection may refuse some pragmas.
		_, _ = db.Exec(pragma)
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadRecords reads all records in row order.
func (r *SQLiteReader) LoadRecords(ctx context.Context) ([]model.Record, error) {
	return r.LoadRecordsFiltered(ctx, nil)
}

// LoadRecordsFiltered reads records matching the filter function. Rows whose
// record column is not a JSON object are skipped.
func (r *SQLiteReader) LoadRecordsFiltered(ctx context.Context, filter func(*model.Record) bool) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT record FROM jobs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		if !raw.Valid {
			continue
		}
		rec, err := model.DecodeRecord([]byte(raw.String))
		if err != nil {
			continue
		}
		if filter != nil && !filter(&rec) {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return records, nil
}

// CountRecords returns the number of rows in the jobs table
func (r *SQLiteReader) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// WriteSQLite writes records to a new database at path, replacing any
// existing file. Besides the jobs table it fills a labels table
// (job, label, kind) so the graph can be queried with plain SQL.
func WriteSQLite(ctx context.Context, path string, records []model.Record) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := createSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	jobStmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs (i, record) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare jobs insert: %w", err)
	}
	defer jobStmt.Close()

	labelStmt, err := tx.PrepareContext(ctx, `INSERT INTO labels (job, label, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare labels insert: %w", err)
	}
	defer labelStmt.Close()

	for id, rec := range records {
		if _, err := jobStmt.ExecContext(ctx, id, rec.Canonical()); err != nil {
			return fmt.Errorf("insert job %d: %w", id, err)
		}
		for _, l := range model.FlattenLabels(rec.Ts) {
			if _, err := labelStmt.ExecContext(ctx, id, l, "produces"); err != nil {
				return fmt.Errorf("insert label for job %d: %w", id, err)
			}
		}
		for _, l := range model.FlattenLabels(rec.Ds) {
			if _, err := labelStmt.ExecContext(ctx, id, l, "consumes"); err != nil {
				return fmt.Errorf("insert label for job %d: %w", id, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	return tx.Commit()
}

func createSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			i INTEGER NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS labels (
			job INTEGER NOT NULL,
			label TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('produces', 'consumes'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label, kind)`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
