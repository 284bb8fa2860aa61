package inkwell

import (
	"context"
	"time"
)

// CheckpointRecord is a durable, versioned snapshot of a thread: the full
// workflow state plus the machine's current position. Records are created on
// every stage boundary and superseded, never mutated, by later versions.
type CheckpointRecord struct {
	ThreadID  string         `json:"thread_id"`
	Version   int            `json:"version"`
	Stage     Stage          `json:"stage"`
	State     *WorkflowState `json:"state"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

// ThreadSummary provides a summary view of a checkpointed thread.
type ThreadSummary struct {
	ThreadID  string    `json:"thread_id"`
	Topic     string    `json:"topic"`
	Stage     Stage     `json:"stage"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointStore persists checkpoint records keyed by thread id. It also
// acts as the single-writer lock for a thread: Acquire must succeed before an
// engine may hold the live state, which enforces at-most-one-in-flight
// execution per thread.
type CheckpointStore interface {
	// Save appends a new checkpoint version. Implementations must write the
	// record atomically; a partially written record must never become the
	// latest version.
	Save(ctx context.Context, record *CheckpointRecord) error

	// LoadLatest returns the highest-version checkpoint for a thread, or nil
	// when the thread has no checkpoints.
	LoadLatest(ctx context.Context, threadID string) (*CheckpointRecord, error)

	// Acquire takes the single-writer lease for a thread. It returns
	// ErrThreadActive when another execution already holds it.
	Acquire(ctx context.Context, threadID string) error

	// Release gives the lease back.
	Release(ctx context.Context, threadID string) error

	// Delete discards a thread entirely: all checkpoint versions and any
	// held lease.
	Delete(ctx context.Context, threadID string) error
}

// ThreadLister is implemented by stores that can enumerate their threads.
type ThreadLister interface {
	ListThreads(ctx context.Context) ([]*ThreadSummary, error)
}
