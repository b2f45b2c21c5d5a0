package convlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rashkov/gish/internal/chat"
)

func testEntry(user, assistant string) Entry {
	return Entry{
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: user},
			{Role: chat.RoleAssistant, Content: assistant},
		},
		Timestamp:       "2026-08-23T10:00:00Z",
		TokenCount:      12,
		Cost:            "$0.000002",
		DurationSeconds: 1.5,
	}
}

func TestAppend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	entry := testEntry("hello", "hi there")

	if err := New(path).Append(entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A fresh Log simulates the next process invocation.
	got, err := New(path).LastConversation()
	if err != nil {
		t.Fatalf("LastConversation failed: %v", err)
	}
	if diff := cmp.Diff(entry.Messages, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestLastConversation_OnlyNewestEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	log := New(path)

	if err := log.Append(testEntry("first", "one")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second := testEntry("second", "two")
	if err := log.Append(second); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := log.LastConversation()
	if err != nil {
		t.Fatalf("LastConversation failed: %v", err)
	}
	if diff := cmp.Diff(second.Messages, got); diff != "" {
		t.Errorf("expected only newest entry's messages (-want +got):\n%s", diff)
	}
}

func TestLastConversation_MissingFile(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "absent.json"))

	got, err := log.LastConversation()
	if err != nil {
		t.Fatalf("LastConversation failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty messages, got %v", got)
	}
}

func TestLastConversation_EmptyArrayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	if err := os.WriteFile(path, []byte("[]\n"), 0644); err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}

	got, err := New(path).LastConversation()
	if err != nil {
		t.Fatalf("LastConversation failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty messages, got %v", got)
	}
}

func TestAppend_CorruptFileFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	corrupt := []byte("{this is not json")
	if err := os.WriteFile(path, corrupt, 0644); err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}
	log := New(path)

	if err := log.Append(testEntry("q", "a")); err == nil {
		t.Error("expected Append to fail on corrupt log")
	}
	if _, err := log.LastConversation(); err == nil {
		t.Error("expected LastConversation to fail on corrupt log")
	}

	// The corrupt file must not be clobbered.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to re-read log: %v", err)
	}
	if string(data) != string(corrupt) {
		t.Error("corrupt log file was modified")
	}
}

func TestAppend_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	if err := New(path).Append(testEntry("q", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "[\n  {") {
		t.Errorf("expected 2-space-indented JSON array, got prefix %q", content[:10])
	}
	if !strings.HasSuffix(content, "]\n") {
		t.Error("expected trailing newline after closing bracket")
	}
	for _, key := range []string{`"messages"`, `"timestamp"`, `"tokenCount"`, `"cost"`, `"durationSeconds"`} {
		if !strings.Contains(content, key) {
			t.Errorf("expected log to contain key %s", key)
		}
	}
}

func TestAppend_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "chat_log.json")

	if err := New(path).Append(testEntry("q", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}

func TestEntries_Order(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_log.json")
	log := New(path)
	for _, user := range []string{"one", "two", "three"} {
		if err := log.Append(testEntry(user, "r")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Messages[0].Content != "one" || entries[2].Messages[0].Content != "three" {
		t.Error("expected entries in append order, oldest first")
	}
}
