package inkwell

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// FileCheckpointStore persists checkpoints to disk, one directory per thread
// with a JSON file per version and a "latest.json" pointer to the newest.
// The single-writer lease is a lock file created with O_EXCL.
type FileCheckpointStore struct {
	dataDir string
}

// NewFileCheckpointStore creates a file-based checkpoint store rooted at
// dataDir; an empty dataDir defaults to ~/.inkwell/threads.
func NewFileCheckpointStore(dataDir string) (*FileCheckpointStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".inkwell", "threads")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointStore{dataDir: dataDir}, nil
}

func (s *FileCheckpointStore) threadDir(threadID string) string {
	return filepath.Join(s.dataDir, threadID)
}

// Save writes the checkpoint version to its own file, then atomically
// repoints latest.json. A crash between the two writes leaves the previous
// version as latest, never a torn record.
func (s *FileCheckpointStore) Save(ctx context.Context, record *CheckpointRecord) error {
	dir := s.threadDir(record.ThreadID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create thread directory: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	versionPath := filepath.Join(dir, fmt.Sprintf("checkpoint-%06d.json", record.Version))
	if err := os.WriteFile(versionPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return s.updateLatest(versionPath, filepath.Join(dir, "latest.json"))
}

// LoadLatest reads the latest checkpoint for a thread, or nil when none exists.
func (s *FileCheckpointStore) LoadLatest(ctx context.Context, threadID string) (*CheckpointRecord, error) {
	latestPath := filepath.Join(s.threadDir(threadID), "latest.json")
	data, err := os.ReadFile(latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var record CheckpointRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &record, nil
}

// Acquire takes the thread lease by exclusively creating a lock file.
func (s *FileCheckpointStore) Acquire(ctx context.Context, threadID string) error {
	dir := s.threadDir(threadID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create thread directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "lease.lock"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrThreadActive
		}
		return fmt.Errorf("failed to create lease file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f.Close()
}

// Release removes the thread lease.
func (s *FileCheckpointStore) Release(ctx context.Context, threadID string) error {
	err := os.Remove(filepath.Join(s.threadDir(threadID), "lease.lock"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lease file: %w", err)
	}
	return nil
}

// Delete removes all checkpoint data for a thread.
func (s *FileCheckpointStore) Delete(ctx context.Context, threadID string) error {
	if err := os.RemoveAll(s.threadDir(threadID)); err != nil {
		return fmt.Errorf("failed to delete thread directory: %w", err)
	}
	return nil
}

// ListThreads returns a summary per thread, newest first.
func (s *FileCheckpointStore) ListThreads(ctx context.Context) ([]*ThreadSummary, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ThreadSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read threads directory: %w", err)
	}

	var summaries []*ThreadSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.LoadLatest(ctx, entry.Name())
		if err != nil || record == nil {
			// Skip threads we can't read
			continue
		}
		summary := &ThreadSummary{
			ThreadID:  record.ThreadID,
			Stage:     record.Stage,
			Version:   record.Version,
			UpdatedAt: record.CreatedAt,
		}
		if record.State != nil {
			summary.Topic = record.State.Topic
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// updateLatest points latest.json at the newest version file. Symlinks are
// used where available; Windows falls back to copying.
func (s *FileCheckpointStore) updateLatest(versionPath, latestPath string) error {
	if _, err := os.Lstat(latestPath); err == nil {
		if err := os.Remove(latestPath); err != nil {
			return fmt.Errorf("failed to remove existing latest pointer: %w", err)
		}
	}
	if runtime.GOOS == "windows" {
		data, err := os.ReadFile(versionPath)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint for copy: %w", err)
		}
		return os.WriteFile(latestPath, data, 0644)
	}
	rel, err := filepath.Rel(filepath.Dir(latestPath), versionPath)
	if err != nil {
		return fmt.Errorf("failed to create relative path: %w", err)
	}
	return os.Symlink(rel, latestPath)
}
