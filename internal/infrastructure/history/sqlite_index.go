package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/filesystem"
	"github.com/doeshing/aish/internal/ports"
)

// SQLiteIndex mirrors history entries into a SQLite database for searching.
type SQLiteIndex struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLiteIndex creates (or opens) the index database at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if path == "" {
		path = filesystem.AppDir("history.db")
	}
	path = filesystem.ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history index: %w", err)
	}
	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history index: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		run_id TEXT,
		request TEXT,
		model TEXT,
		run_status TEXT,
		step_index INTEGER,
		command TEXT,
		status TEXT,
		exit_code INTEGER,
		attempts INTEGER,
		entry TEXT
	);`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_run_id ON runs(run_id);`)
	return err
}

// Append implements ports.HistoryRecorder.
func (s *SQLiteIndex) Append(ctx context.Context, entry domain.HistoryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return &domain.PersistenceError{Target: s.path, Err: err}
	}
	stepIndex, status, exitCode, attempts := 0, "", 0, 0
	if entry.Step != nil {
		stepIndex = entry.Step.Step.Index
		status = string(entry.Step.Status)
		attempts = len(entry.Step.Attempts)
		if last, ok := entry.Step.Last(); ok {
			exitCode = last.Result.ExitCode
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs
		(timestamp, run_id, request, model, run_status, step_index, command, status, exit_code, attempts, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.RunID,
		entry.Request,
		entry.Model,
		string(entry.RunStatus),
		stepIndex,
		entry.Command(),
		status,
		exitCode,
		attempts,
		string(raw),
	)
	if err != nil {
		return &domain.PersistenceError{Target: s.path, Err: err}
	}
	return nil
}

// Search implements ports.HistorySearcher. An empty query lists the newest rows.
func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]domain.HistoryEntry, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT entry FROM runs")
	var args []interface{}
	if query != "" {
		builder.WriteString(" WHERE request LIKE ? OR command LIKE ?")
		args = append(args, "%"+query+"%", "%"+query+"%")
	}
	builder.WriteString(" ORDER BY id DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Path returns the sqlite database path.
func (s *SQLiteIndex) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

var (
	_ ports.HistoryRecorder = (*SQLiteIndex)(nil)
	_ ports.HistorySearcher = (*SQLiteIndex)(nil)
)
