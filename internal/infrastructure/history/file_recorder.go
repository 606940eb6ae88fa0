// Package history persists the audit trail of every run.
//
// The primary log is JSON Lines: one entry per line, human-greppable, appended
// with a single write on an O_APPEND descriptor so separate aish processes never
// interleave inside a line. An optional SQLite index mirrors entries for search.
package history

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/filesystem"
	"github.com/doeshing/aish/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxLineBytes = 4 * 1024 * 1024

// FileRecorder appends history entries to a jsonl file.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// NewFileRecorder creates a recorder at path (default ~/.aish/history.jsonl).
func NewFileRecorder(path string) *FileRecorder {
	if path == "" {
		path = filesystem.AppDir("history.jsonl")
	}
	return &FileRecorder{path: filesystem.ExpandPath(path)}
}

// Append implements ports.HistoryRecorder.
func (f *FileRecorder) Append(_ context.Context, entry domain.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return &domain.PersistenceError{Target: f.path, Err: err}
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return &domain.PersistenceError{Target: f.path, Err: err}
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.HistoryFilePermissions)
	if err != nil {
		return &domain.PersistenceError{Target: f.path, Err: err}
	}
	// one write per entry keeps concurrent appenders line-atomic
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return &domain.PersistenceError{Target: f.path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &domain.PersistenceError{Target: f.path, Err: err}
	}
	return nil
}

// Path returns the backing file path.
func (f *FileRecorder) Path() string {
	return f.path
}

// Clear removes the history file.
func (f *FileRecorder) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Recent returns up to limit of the newest entries, oldest first. Lines that do
// not decode are skipped.
func (f *FileRecorder) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var entries []domain.HistoryEntry
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

var (
	_ ports.HistoryRecorder = (*FileRecorder)(nil)
	_ ports.HistoryReader   = (*FileRecorder)(nil)
)
