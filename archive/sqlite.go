package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/runmesh/run"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	task        TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	agents      TEXT NOT NULL,
	status      TEXT NOT NULL,
	background  INTEGER NOT NULL,
	depth       INTEGER NOT NULL,
	routed      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	started_at  INTEGER,
	finished_at INTEGER,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	preview     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	result      TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// SQLiteStore archives runs in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path. The parent
// directory is created and WAL mode enabled for concurrent readers.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		conn.SetMaxOpenConns(1)
	} else if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Archive implements Store.
func (s *SQLiteStore) Archive(ctx context.Context, recs []run.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, label, task, strategy, agents, status, background, depth, routed,
			created_at, started_at, finished_at, duration_ms, preview, error, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		agents, err := json.Marshal(orEmpty(r.Agents))
		if err != nil {
			return fmt.Errorf("encode agents of %s: %w", r.RunID, err)
		}

		var result sql.NullString
		if r.Result != nil {
			b, err := json.Marshal(r.Result)
			if err != nil {
				return fmt.Errorf("encode result of %s: %w", r.RunID, err)
			}
			result = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			r.RunID, r.Label, r.Task, string(r.Strategy), string(agents), string(r.Status),
			r.Background, r.Depth, r.Routed,
			r.CreatedAt.UnixMilli(), nullTime(r.StartedAt), nullTime(r.FinishedAt),
			r.DurationMs, r.ResultPreview, r.Error, result,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.RunID, err)
		}
	}

	return tx.Commit()
}

// History implements Store. Stored results come back as decoded JSON values.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]run.Record, error) {
	query := `SELECT run_id, label, task, strategy, agents, status, background, depth, routed,
		created_at, started_at, finished_at, duration_ms, preview, error, result
		FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []run.Record{}

	for rows.Next() {
		var (
			r                 run.Record
			strategy, status  string
			agents            string
			created           int64
			started, finished sql.NullInt64
			result            sql.NullString
		)

		if err := rows.Scan(
			&r.RunID, &r.Label, &r.Task, &strategy, &agents, &status, &r.Background, &r.Depth, &r.Routed,
			&created, &started, &finished, &r.DurationMs, &r.ResultPreview, &r.Error, &result,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Strategy = run.Strategy(strategy)
		r.Status = run.Status(status)
		r.CreatedAt = time.UnixMilli(created).UTC()
		if started.Valid {
			r.StartedAt = time.UnixMilli(started.Int64).UTC()
		}
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		if err := json.Unmarshal([]byte(agents), &r.Agents); err != nil {
			return nil, fmt.Errorf("decode agents of %s: %w", r.RunID, err)
		}
		if result.Valid {
			var v any
			if err := json.Unmarshal([]byte(result.String), &v); err == nil {
				r.Result = v
			}
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.conn.Close() }

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
