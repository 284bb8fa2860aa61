package inkwell

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCheckpointStore keeps checkpoints in process memory. Useful for
// tests and for runs where durability doesn't matter.
type MemoryCheckpointStore struct {
	mutex   sync.Mutex
	records map[string][]*CheckpointRecord
	leases  map[string]struct{}
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		records: map[string][]*CheckpointRecord{},
		leases:  map[string]struct{}{},
	}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, record *CheckpointRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := *record
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if stored.State != nil {
		stored.State = stored.State.Clone()
	}
	s.records[record.ThreadID] = append(s.records[record.ThreadID], &stored)
	return nil
}

func (s *MemoryCheckpointStore) LoadLatest(ctx context.Context, threadID string) (*CheckpointRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	versions := s.records[threadID]
	if len(versions) == 0 {
		return nil, nil
	}
	latest := versions[0]
	for _, record := range versions[1:] {
		if record.Version > latest.Version {
			latest = record
		}
	}
	copied := *latest
	if copied.State != nil {
		copied.State = copied.State.Clone()
	}
	return &copied, nil
}

// LoadVersion returns the record for an exact version, or nil. Tests use it
// to walk a thread's full checkpoint history.
func (s *MemoryCheckpointStore) LoadVersion(threadID string, version int) *CheckpointRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, record := range s.records[threadID] {
		if record.Version == version {
			copied := *record
			if copied.State != nil {
				copied.State = copied.State.Clone()
			}
			return &copied
		}
	}
	return nil
}

func (s *MemoryCheckpointStore) Acquire(ctx context.Context, threadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, held := s.leases[threadID]; held {
		return ErrThreadActive
	}
	s.leases[threadID] = struct{}{}
	return nil
}

func (s *MemoryCheckpointStore) Release(ctx context.Context, threadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.leases, threadID)
	return nil
}

func (s *MemoryCheckpointStore) Delete(ctx context.Context, threadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.records, threadID)
	delete(s.leases, threadID)
	return nil
}

func (s *MemoryCheckpointStore) ListThreads(ctx context.Context) ([]*ThreadSummary, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var summaries []*ThreadSummary
	for threadID, versions := range s.records {
		if len(versions) == 0 {
			continue
		}
		latest := versions[0]
		for _, record := range versions[1:] {
			if record.Version > latest.Version {
				latest = record
			}
		}
		summary := &ThreadSummary{
			ThreadID:  threadID,
			Stage:     latest.Stage,
			Version:   latest.Version,
			UpdatedAt: latest.CreatedAt,
		}
		if latest.State != nil {
			summary.Topic = latest.State.Topic
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
