package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/observability"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists checkpoints via database/sql. Supports PostgreSQL,
// MySQL and SQLite with one portable schema.
type SQLStore struct {
	db           *sql.DB
	dialect      string
	historyLimit int
}

const createCheckpointsSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id VARCHAR(255) NOT NULL,
    version INTEGER NOT NULL,
    state TEXT NOT NULL,
    interrupt TEXT,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (thread_id, version)
);
`

func NewSQLStore(db *sql.DB, dialect string, historyLimit int) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{
		db:           db,
		dialect:      dialect,
		historyLimit: historyLimit,
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func NewSQLStoreFromConfig(cfg config.CheckpointConfig) (*SQLStore, error) {
	// Config uses "sqlite" but the go-sqlite3 driver registers as "sqlite3".
	driverName := cfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, cfg.Driver, cfg.HistoryLimit)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createCheckpointsSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// rebind swaps ? placeholders for $n on postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *SQLStore) Save(ctx context.Context, threadID string, state, interrupt json.RawMessage) (int, error) {
	startTime := time.Now()

	version, err := s.save(ctx, threadID, state, interrupt)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordCheckpointSave(ctx, "sql", time.Since(startTime), err)
	}
	return version, err
}

func (s *SQLStore) save(ctx context.Context, threadID string, state, interrupt json.RawMessage) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	query := s.rebind(`SELECT COALESCE(MAX(version), 0) FROM checkpoints WHERE thread_id = ?`)
	if err := tx.QueryRowContext(ctx, query, threadID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	version++

	interruptValue := sql.NullString{}
	if len(interrupt) > 0 && string(interrupt) != "null" {
		interruptValue = sql.NullString{String: string(interrupt), Valid: true}
	}

	query = s.rebind(`INSERT INTO checkpoints (thread_id, version, state, interrupt, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query, threadID, version, string(state), interruptValue, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	if s.historyLimit > 0 {
		query = s.rebind(`DELETE FROM checkpoints WHERE thread_id = ? AND version <= ?`)
		if _, err := tx.ExecContext(ctx, query, threadID, version-s.historyLimit); err != nil {
			return 0, fmt.Errorf("failed to prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return version, nil
}

func (s *SQLStore) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	query := s.rebind(`
SELECT thread_id, version, state, interrupt, created_at
FROM checkpoints
WHERE thread_id = ?
ORDER BY version DESC
LIMIT 1`)
	return s.queryOne(ctx, query, threadID)
}

func (s *SQLStore) Get(ctx context.Context, threadID string, version int) (*Snapshot, error) {
	query := s.rebind(`
SELECT thread_id, version, state, interrupt, created_at
FROM checkpoints
WHERE thread_id = ? AND version = ?`)
	return s.queryOne(ctx, query, threadID, version)
}

func (s *SQLStore) queryOne(ctx context.Context, query string, args ...interface{}) (*Snapshot, error) {
	var snap Snapshot
	var state string
	var interrupt sql.NullString

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&snap.ThreadID, &snap.Version, &state, &interrupt, &snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	snap.State = json.RawMessage(state)
	if interrupt.Valid {
		snap.Interrupt = json.RawMessage(interrupt.String)
	}
	return &snap, nil
}

// History returns the most recent checkpoints, oldest first.
func (s *SQLStore) History(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	query := `
SELECT thread_id, version, state, interrupt, created_at
FROM checkpoints
WHERE thread_id = ?
ORDER BY version DESC`
	args := []interface{}{threadID}
	if limit > 0 {
		query += `
LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var state string
		var interrupt sql.NullString
		if err := rows.Scan(&snap.ThreadID, &snap.Version, &state, &interrupt, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		snap.State = json.RawMessage(state)
		if interrupt.Valid {
			snap.Interrupt = json.RawMessage(interrupt.String)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLStore) DeleteThread(ctx context.Context, threadID string) error {
	query := s.rebind(`DELETE FROM checkpoints WHERE thread_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
