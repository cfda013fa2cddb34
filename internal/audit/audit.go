// Package audit writes the system's machine-parseable audit trail: one
// JSON object per line, append-only, for every evaluation and every
// actuation attempt. This file is a data product consumed by tooling;
// human-facing diagnostics go through the zap logger instead.
//
// The logger is injected into services with an explicit open/close
// lifecycle rather than living as a package singleton.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one audit record. The writer adds the timestamp; everything
// else is caller-supplied.
type Entry map[string]any

// Logger appends JSON-lines records to a single file.
type Logger struct {
	// mu serializes appends so records never interleave.
	mu sync.Mutex
	// file is the open append handle, nil for a discarding logger.
	file *os.File
}

// logPermissions restricts the audit file to the owning user.
const logPermissions = 0o600

// Open creates (or continues) the audit file at path, creating parent
// directories as needed.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, logPermissions)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	return &Logger{file: file}, nil
}

// Discard returns a logger that drops every record, for tests and
// commands that run without an audit trail.
func Discard() *Logger {
	return &Logger{}
}

// Log appends one record with a UTC timestamp. The caller's entry is not
// mutated.
func (l *Logger) Log(entry Entry) error {
	record := make(map[string]any, len(entry)+1)
	for key, value := range entry {
		record[key] = value
	}

	record["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	if _, err = l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	return nil
}

// Close flushes and releases the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}

	return nil
}
