package sessions

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Message roles.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolUse    = "tool_use"
	RoleToolResult = "tool_result"
)

// Message is one turn entry in a transcript.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // ISO-8601 UTC
	ToolName  string `json:"toolName,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CompactionEntry is the in-band marker left after trimming a transcript.
type CompactionEntry struct {
	Type           string `json:"type"` // always "compaction"
	Timestamp      string `json:"timestamp"`
	MessagesBefore int    `json:"messagesBefore"`
	MessagesAfter  int    `json:"messagesAfter"`
}

// Line is one transcript line: a message or a compaction marker.
type Line struct {
	Message    *Message
	Compaction *CompactionEntry
}

func (l Line) marshal() ([]byte, error) {
	if l.Compaction != nil {
		return json.Marshal(l.Compaction)
	}
	return json.Marshal(l.Message)
}

// Store persists session transcripts under {dataDir}/sessions/.
type Store struct {
	dataDir string
}

// NewStore creates a transcript store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// TranscriptPath returns the JSONL path for a session key.
func (s *Store) TranscriptPath(key string) string {
	return filepath.Join(s.dataDir, "sessions", sanitizeFilename(key)+".jsonl")
}

// AppendMessage appends a single message to the transcript.
func (s *Store) AppendMessage(key string, m Message) error {
	return s.AppendMessages(key, []Message{m})
}

// AppendMessages appends all messages of one turn as a single write, so a
// concurrent reader observes the whole turn or none of it.
func (s *Store) AppendMessages(key string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	path := s.TranscriptPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	var buf strings.Builder
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, buf.String()); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// LoadTranscript returns all lines of a transcript in order. A missing
// file yields an empty slice; blank lines are skipped silently; lines
// that fail to parse are skipped with a warning.
func (s *Store) LoadTranscript(key string) ([]Line, error) {
	data, err := os.ReadFile(s.TranscriptPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var lines []Line
	for _, raw := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line, ok := parseLine(raw)
		if !ok {
			slog.Warn("sessions: skipping corrupt transcript line", "session", key, "line", truncateForLog(raw))
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseLine(raw string) (Line, bool) {
	var probe struct {
		Type string `json:"type"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return Line{}, false
	}
	if probe.Type == "compaction" {
		var c CompactionEntry
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return Line{}, false
		}
		return Line{Compaction: &c}, true
	}
	if probe.Role == "" {
		return Line{}, false
	}
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Line{}, false
	}
	return Line{Message: &m}, true
}

// RewriteTranscript replaces the transcript with the given lines. The
// previous file, if any, is copied to ".bak" first; the new content goes
// through ".tmp" + rename so a crash never leaves a torn transcript.
func (s *Store) RewriteTranscript(key string, lines []Line) error {
	path := s.TranscriptPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read transcript for backup: %w", err)
	}

	var buf strings.Builder
	for _, line := range lines {
		data, err := line.marshal()
		if err != nil {
			return fmt.Errorf("marshal transcript line: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmpPath := path + ".tmp"
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	if _, err := io.WriteString(f, buf.String()); err != nil {
		f.Close()
		return fmt.Errorf("write temp transcript: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp transcript: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace transcript: %w", err)
	}
	cleanup = false
	return nil
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "/", "_"), string(filepath.Separator), "_")
}

func truncateForLog(s string) string {
	if len(s) > 120 {
		return s[:120] + "…"
	}
	return s
}
