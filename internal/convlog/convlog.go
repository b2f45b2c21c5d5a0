// Package convlog persists the append-only conversation log that turns a
// sequence of independent CLI invocations into a multi-turn
// conversation.
package convlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rashkov/gish/internal/chat"
)

// Entry records one completed exchange, success or user-visible error.
// Entries are immutable once appended; the log is never edited or
// compacted.
type Entry struct {
	Messages        []chat.Message `json:"messages"`
	Timestamp       string         `json:"timestamp"`
	TokenCount      int            `json:"tokenCount"`
	Cost            string         `json:"cost"`
	DurationSeconds float64        `json:"durationSeconds"`
}

// Log stores entries as a pretty-printed JSON array, oldest first. Every
// append is a whole-file read-modify-write; concurrent invocations
// racing on the same file lose updates (last writer wins), which is an
// accepted limitation.
type Log struct {
	path string
}

// New creates a log backed by the given file path. The file is created
// on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.path
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file is an empty sequence.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt log fails fast rather than being clobbered on the
		// next append.
		return nil, fmt.Errorf("failed to parse conversation log %s: %w", l.path, err)
	}
	return entries, nil
}

// Append adds one entry, rewriting the whole file.
func (l *Log) Append(entry Entry) error {
	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation log: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation log: %w", err)
	}
	return nil
}

// LastConversation returns the messages of the most recently appended
// entry, or an empty slice when the log is empty or absent. Only the
// newest entry is ever replayed; deeper history is not consulted.
func (l *Log) LastConversation() ([]chat.Message, error) {
	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []chat.Message{}, nil
	}
	return entries[len(entries)-1].Messages, nil
}

// Entries returns all logged exchanges, oldest first.
func (l *Log) Entries() ([]Entry, error) {
	return l.read()
}
