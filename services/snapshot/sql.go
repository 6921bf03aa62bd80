package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/pkg/errors"
)

// Dialect captures the SQL differences between the supported databases
type Dialect struct {
	Name string

	// Placeholder returns the n-th (1-based) bind parameter
	Placeholder func(n int) string
}

var (
	SQLite   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

const createSnapshotTable = `CREATE TABLE IF NOT EXISTS snapshot_jobs (
	identity   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	saved_at   TEXT NOT NULL
)`

// SQLStore keeps one row per job in snapshot_jobs
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating if needed) a sqlite database file
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewSnapshot("sqlite", "failed to open "+path, err)
	}
	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewSQLStore(ctx, db, SQLite)
}

// OpenPostgres connects with a lib/pq connection string
func OpenPostgres(ctx context.Context, connStr string) (*SQLStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.NewSnapshot("postgres", "failed to open db", err)
	}
	return NewSQLStore(ctx, db, Postgres)
}

// NewSQLStore wraps an open database and ensures the table exists
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.NewSnapshot(dialect.Name, "failed to ping db", err)
	}
	if _, err := db.ExecContext(ctx, createSnapshotTable); err != nil {
		db.Close()
		return nil, errors.NewSnapshot(dialect.Name, "failed to create snapshot table", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Load reads every stored job ordered by identity
func (s *SQLStore) Load(ctx context.Context) ([]crawler.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM snapshot_jobs ORDER BY identity`)
	if err != nil {
		return nil, errors.NewSnapshot(s.dialect.Name, "failed to query snapshot", err)
	}
	defer rows.Close()

	var jobs []crawler.Job
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.NewSnapshot(s.dialect.Name, "failed to scan snapshot row", err)
		}
		job, err := decodeJob(s.dialect.Name, []byte(payload))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSnapshot(s.dialect.Name, "failed to read snapshot", err)
	}
	return jobs, nil
}

// Save replaces the stored jobs in one transaction
func (s *SQLStore) Save(ctx context.Context, jobs []crawler.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewSnapshot(s.dialect.Name, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_jobs`); err != nil {
		return errors.NewSnapshot(s.dialect.Name, "failed to clear snapshot", err)
	}

	insert := fmt.Sprintf(`INSERT INTO snapshot_jobs (identity, payload, saved_at) VALUES (%s, %s, %s) ON CONFLICT (identity) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.NewSnapshot(s.dialect.Name, "failed to prepare insert", err)
	}
	defer stmt.Close()

	savedAt := time.Now().UTC().Format(time.RFC3339)
	for _, job := range jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			return errors.NewSnapshot(s.dialect.Name, "failed to encode "+job.Identity, err)
		}
		if _, err := stmt.ExecContext(ctx, job.Identity, string(payload), savedAt); err != nil {
			return errors.NewSnapshot(s.dialect.Name, "failed to insert "+job.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewSnapshot(s.dialect.Name, "failed to commit snapshot", err)
	}
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
