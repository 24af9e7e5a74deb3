// Package index records each generation run and its accepted claims in a
// SQLite database, so claim history can be queried after the fact.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/coolbeans/zonegen/pkg/claims"
)

// Run describes one generation run.
type Run struct {
	// Key identifies the run outside this database. Empty means a new
	// random UUID is assigned.
	Key string

	StartedAt  time.Time
	RecordsDir string
	Accepted   int
	Dropped    int
}

// ClaimRow is one stored claim.
type ClaimRow struct {
	RunID     int64
	World     claims.World
	North     int
	East      int
	South     int
	West      int
	OwnerID   string
	OwnerName string
	Source    string
}

// SQLiteIndex is a claims index backed by a SQLite file.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLite opens or creates the index at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_key TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			records_dir TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			dropped INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			world TEXT NOT NULL,
			north INTEGER NOT NULL,
			east INTEGER NOT NULL,
			south INTEGER NOT NULL,
			west INTEGER NOT NULL,
			owner_id TEXT NOT NULL,
			owner_name TEXT NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS claims_run ON claims(run_id);`,
		`CREATE INDEX IF NOT EXISTS claims_owner ON claims(owner_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (index *SQLiteIndex) Close() error {
	return index.db.Close()
}

// RecordRun stores a run and its claims in one transaction and returns the
// run id.
func (index *SQLiteIndex) RecordRun(ctx context.Context, run Run, records []claims.Record) (int64, error) {
	if run.Key == "" {
		run.Key = uuid.NewString()
	} else if _, err := uuid.Parse(run.Key); err != nil {
		return 0, fmt.Errorf("run key %q: %w", run.Key, err)
	}

	tx, err := index.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO runs(run_key,started_at,records_dir,accepted,dropped) VALUES(?,?,?,?,?)`,
		run.Key, run.StartedAt.UTC().Format(time.RFC3339Nano), run.RecordsDir, run.Accepted, run.Dropped)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO claims(run_id,world,north,east,south,west,owner_id,owner_name,source) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, runID, string(record.World),
			record.North, record.East, record.South, record.West,
			record.OwnerID, record.Owner, record.Source); err != nil {
			return 0, fmt.Errorf("inserting claim %s: %w", record.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// RunByKey returns the id of the run stored under key.
func (index *SQLiteIndex) RunByKey(ctx context.Context, key string) (int64, error) {
	var runID int64
	err := index.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE run_key=?`, key).Scan(&runID)
	return runID, err
}

// CountClaims returns the number of claims stored for a run.
func (index *SQLiteIndex) CountClaims(ctx context.Context, runID int64) (int, error) {
	var count int
	err := index.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims WHERE run_id=?`, runID).Scan(&count)
	return count, err
}

// LatestRun returns the most recent run id, or 0 when nothing was recorded.
func (index *SQLiteIndex) LatestRun(ctx context.Context) (int64, error) {
	var runID sql.NullInt64
	if err := index.db.QueryRowContext(ctx, `SELECT MAX(id) FROM runs`).Scan(&runID); err != nil {
		return 0, err
	}
	return runID.Int64, nil
}

// ClaimsByOwner lists every stored claim of an owner across runs, newest run
// first.
func (index *SQLiteIndex) ClaimsByOwner(ctx context.Context, ownerID string) ([]ClaimRow, error) {
	rows, err := index.db.QueryContext(ctx,
		`SELECT run_id,world,north,east,south,west,owner_id,owner_name,source
		 FROM claims WHERE owner_id=? ORDER BY run_id DESC, source`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimRow
	for rows.Next() {
		var (
			row   ClaimRow
			world string
		)
		if err := rows.Scan(&row.RunID, &world, &row.North, &row.East, &row.South, &row.West,
			&row.OwnerID, &row.OwnerName, &row.Source); err != nil {
			return nil, err
		}
		row.World = claims.World(world)
		out = append(out, row)
	}
	return out, rows.Err()
}
