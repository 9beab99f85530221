package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndRead(t *testing.T) {
	ws := t.TempDir()

	entries := []Entry{
		{Type: TypeInteraction, Timestamp: "2026-03-01T10:00:00Z", Source: "telegram", SessionKey: "telegram--1", UserMessage: "hi", AssistantResponse: "hello"},
		{Type: TypeToolCall, Timestamp: "2026-03-01T10:00:05Z", SessionKey: "telegram--1", ToolName: "Bash", ToolInput: "ls"},
		{Type: TypeError, Timestamp: "2026-03-01T10:00:09Z", Message: "boom"},
	}
	for _, e := range entries {
		if err := Append(ws, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := Read(ws, "2026-03-01")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Type != TypeInteraction || got[0].UserMessage != "hi" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].ToolName != "Bash" {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if got[2].Message != "boom" {
		t.Errorf("entry 2 = %+v", got[2])
	}
}

func TestDatePartitioning(t *testing.T) {
	ws := t.TempDir()

	Append(ws, Entry{Type: TypeError, Timestamp: "2026-03-01T23:59:00Z", Message: "day one"})
	Append(ws, Entry{Type: TypeError, Timestamp: "2026-03-02T00:01:00Z", Message: "day two"})

	d1, _ := Read(ws, "2026-03-01")
	d2, _ := Read(ws, "2026-03-02")
	if len(d1) != 1 || d1[0].Message != "day one" {
		t.Errorf("day one = %+v", d1)
	}
	if len(d2) != 1 || d2[0].Message != "day two" {
		t.Errorf("day two = %+v", d2)
	}
}

func TestReadMissingDateIsEmpty(t *testing.T) {
	got, err := Read(t.TempDir(), "2026-01-01")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("missing date should yield empty, got %v", got)
	}
}

func TestReadSkipsCorruptLines(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, "daily")
	os.MkdirAll(dir, 0755)
	content := `{"type":"error","timestamp":"2026-03-01T00:00:00Z","message":"ok"}
garbage line
`
	if err := os.WriteFile(filepath.Join(dir, "2026-03-01.jsonl"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Read(ws, "2026-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Message != "ok" {
		t.Errorf("got %+v, want the single valid line", got)
	}
}

func TestAppendFillsMissingTimestamp(t *testing.T) {
	ws := t.TempDir()
	if err := Append(ws, Entry{Type: TypeError, Message: "no ts"}); err != nil {
		t.Fatal(err)
	}
	files, _ := os.ReadDir(filepath.Join(ws, "daily"))
	if len(files) != 1 {
		t.Fatalf("expected one daily file, got %d", len(files))
	}
}
