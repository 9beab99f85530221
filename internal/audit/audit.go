// Package audit writes the day-partitioned JSONL activity log under
// {workspace}/daily/. Files are append-only and may be written by several
// subsystems at once; each entry is a single line.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry types.
const (
	TypeInteraction = "interaction"
	TypeToolCall    = "tool_call"
	TypeError       = "error"
)

// Entry is one audit log line. Type determines which optional fields
// are populated.
type Entry struct {
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"` // ISO-8601 UTC
	Source     string `json:"source,omitempty"`
	SessionKey string `json:"sessionKey,omitempty"`

	// interaction
	UserMessage       string `json:"userMessage,omitempty"`
	AssistantResponse string `json:"assistantResponse,omitempty"`

	// tool_call
	ToolName  string `json:"toolName,omitempty"`
	ToolInput string `json:"toolInput,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Append writes one entry to {workspaceDir}/daily/{YYYY-MM-DD}.jsonl. The
// date comes from the entry timestamp (UTC); a missing or unparseable
// timestamp falls back to today.
func Append(workspaceDir string, e Entry) error {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	date := dateOf(e.Timestamp)

	dir := filepath.Join(workspaceDir, "daily")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create daily dir: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	path := filepath.Join(dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// Read returns all entries for a date ("YYYY-MM-DD"). A missing file
// yields an empty slice; corrupt lines are skipped with a warning.
func Read(workspaceDir, date string) ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(workspaceDir, "daily", date+".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	entries := []Entry{}
	for _, raw := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			slog.Warn("audit: skipping corrupt log line", "date", date)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func dateOf(timestamp string) string {
	if ts, err := time.Parse(time.RFC3339, timestamp); err == nil {
		return ts.UTC().Format("2006-01-02")
	}
	return time.Now().UTC().Format("2006-01-02")
}
