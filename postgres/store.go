// Package postgres provides a Postgres-backed checkpoint store. Checkpoints
// live in an append-only versioned table; the single-writer lease is a row in
// a companion leases table claimed with an insert that tolerates conflict.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/inkwell-ai/inkwell"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id  TEXT        NOT NULL,
    version    INTEGER     NOT NULL,
    stage      TEXT        NOT NULL,
    state      JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (thread_id, version)
);

CREATE TABLE IF NOT EXISTS thread_leases (
    thread_id   TEXT        PRIMARY KEY,
    acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Store implements the checkpoint store contract over Postgres.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ inkwell.CheckpointStore = (*Store)(nil)
	_ inkwell.ThreadLister    = (*Store)(nil)
)

// Open connects to Postgres, verifies the connection, and ensures the schema
// exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wires an existing sql.DB. Callers own the connection lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the checkpoint and lease tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends a new checkpoint version. The primary key rejects duplicate
// versions, so a retried write can never clobber an existing record.
func (s *Store) Save(ctx context.Context, record *inkwell.CheckpointRecord) error {
	state, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := s.sb.Insert("checkpoints").
		Columns("thread_id", "version", "stage", "state", "created_at").
		Values(record.ThreadID, record.Version, string(record.Stage), state, createdAt)
	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("save checkpoint %s v%d: %w", record.ThreadID, record.Version, err)
	}
	return nil
}

// LoadLatest returns the highest-version checkpoint for a thread, or nil when
// none exists.
func (s *Store) LoadLatest(ctx context.Context, threadID string) (*inkwell.CheckpointRecord, error) {
	query := s.sb.Select("thread_id", "version", "stage", "state", "created_at").
		From("checkpoints").
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("version DESC").
		Limit(1)

	var (
		record inkwell.CheckpointRecord
		stage  string
		state  []byte
	)
	err := query.RunWith(s.db).QueryRowContext(ctx).
		Scan(&record.ThreadID, &record.Version, &stage, &state, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	record.Stage = inkwell.Stage(stage)
	if err := json.Unmarshal(state, &record.State); err != nil {
		return nil, fmt.Errorf("decode state %s v%d: %w", threadID, record.Version, err)
	}
	return &record, nil
}

// Acquire claims the single-writer lease for a thread. A conflicting insert
// means another execution holds it.
func (s *Store) Acquire(ctx context.Context, threadID string) error {
	query := s.sb.Insert("thread_leases").
		Columns("thread_id").
		Values(threadID).
		Suffix("ON CONFLICT (thread_id) DO NOTHING")
	result, err := query.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", threadID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", threadID, err)
	}
	if affected == 0 {
		return inkwell.ErrThreadActive
	}
	return nil
}

// Release gives the lease back. Releasing an unheld lease is a no-op.
func (s *Store) Release(ctx context.Context, threadID string) error {
	query := s.sb.Delete("thread_leases").Where(sq.Eq{"thread_id": threadID})
	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("release lease %s: %w", threadID, err)
	}
	return nil
}

// Delete discards all checkpoint versions for a thread and any held lease.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.sb.Delete("checkpoints").
		Where(sq.Eq{"thread_id": threadID}).
		RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete checkpoints %s: %w", threadID, err)
	}
	return s.Release(ctx, threadID)
}

// ListThreads returns one summary per thread at its latest version, newest
// first.
func (s *Store) ListThreads(ctx context.Context) ([]*inkwell.ThreadSummary, error) {
	query := s.sb.Select("DISTINCT ON (thread_id) thread_id", "version", "stage", "state->>'topic'", "created_at").
		From("checkpoints").
		OrderBy("thread_id", "version DESC")

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var summaries []*inkwell.ThreadSummary
	for rows.Next() {
		var (
			summary inkwell.ThreadSummary
			stage   string
			topic   sql.NullString
		)
		if err := rows.Scan(&summary.ThreadID, &summary.Version, &stage, &topic, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread summary: %w", err)
		}
		summary.Stage = inkwell.Stage(stage)
		summary.Topic = topic.String
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
