package inkwell

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StepLogEntry records a single executed stage for a thread.
type StepLogEntry struct {
	ThreadID  string    `json:"thread_id"`
	Stage     Stage     `json:"stage"`
	Cursor    int       `json:"cursor"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
}

// StepLogger defines the step activity logging interface.
type StepLogger interface {
	// LogStep logs a completed stage execution
	LogStep(ctx context.Context, entry *StepLogEntry) error

	// GetStepHistory retrieves the stage log for a thread
	GetStepHistory(ctx context.Context, threadID string) ([]*StepLogEntry, error)
}

// NullStepLogger discards all entries.
type NullStepLogger struct{}

func NewNullStepLogger() *NullStepLogger {
	return &NullStepLogger{}
}

func (l *NullStepLogger) LogStep(ctx context.Context, entry *StepLogEntry) error {
	return nil
}

func (l *NullStepLogger) GetStepHistory(ctx context.Context, threadID string) ([]*StepLogEntry, error) {
	return nil, nil
}

// FileStepLogger logs stage executions to a newline-delimited JSON file, one
// file per thread.
type FileStepLogger struct {
	directory string
}

func NewFileStepLogger(directory string) *FileStepLogger {
	return &FileStepLogger{directory: directory}
}

func (l *FileStepLogger) threadLogPath(threadID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", threadID))
}

func (l *FileStepLogger) LogStep(ctx context.Context, entry *StepLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	filePath := l.threadLogPath(entry.ThreadID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (l *FileStepLogger) GetStepHistory(ctx context.Context, threadID string) ([]*StepLogEntry, error) {
	data, err := os.ReadFile(l.threadLogPath(threadID))
	if err != nil {
		return nil, err
	}
	var entries []*StepLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry StepLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
