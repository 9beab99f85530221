package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// SubprocessExecutor runs each turn as one invocation of an external
// agent CLI that emits newline-delimited JSON events on stdout. The
// provider session lives on the CLI's side; Resume carries its id back
// in on the next turn.
type SubprocessExecutor struct {
	Command string   // binary to invoke, e.g. "claude"
	Args    []string // base args before the per-turn flags
}

// NewSubprocessExecutor builds an executor for the given agent binary.
func NewSubprocessExecutor(command string, args ...string) *SubprocessExecutor {
	return &SubprocessExecutor{Command: command, Args: args}
}

// Execute launches one turn. The prompt goes in on stdin; stream events
// come out as JSON lines on stdout until the process exits.
func (e *SubprocessExecutor) Execute(ctx context.Context, prompt string, opts Options) (Stream, error) {
	args := append([]string(nil), e.Args...)
	args = append(args, "-p", "--output-format", "stream-json", "--verbose")
	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}
	for _, srv := range opts.MCPServers {
		args = append(args, "--mcp-server", srv.Name+":"+srv.Command+" "+strings.Join(srv.Args, " "))
	}
	if opts.MemoryContext != "" {
		args = append(args, "--append-system-prompt", opts.MemoryContext)
	}
	settingsPath := ""
	if opts.HookCommand != "" {
		path, err := writeHookSettings(opts.HookCommand)
		if err != nil {
			return nil, fmt.Errorf("write hook settings: %w", err)
		}
		settingsPath = path
		args = append(args, "--settings", path)
	}

	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = opts.WorkspaceDir
	cmd.Stdin = strings.NewReader(prompt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		removeIfSet(settingsPath)
		return nil, fmt.Errorf("agent stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		removeIfSet(settingsPath)
		return nil, fmt.Errorf("start agent process: %w", err)
	}

	s := &subprocessStream{
		cmd:          cmd,
		stdout:       stdout,
		settingsPath: settingsPath,
		events:       make(chan StreamEvent, 16),
	}
	go s.pump()
	return s, nil
}

type subprocessStream struct {
	cmd          *exec.Cmd
	stdout       io.ReadCloser
	settingsPath string
	events       chan StreamEvent

	closeOnce sync.Once
	closeErr  error
}

func (s *subprocessStream) Events() <-chan StreamEvent { return s.events }

// Close kills the process if still running and reaps it. Idempotent.
func (s *subprocessStream) Close() error {
	s.closeOnce.Do(func() {
		s.stdout.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.closeErr = s.cmd.Wait()
		removeIfSet(s.settingsPath)
	})
	return s.closeErr
}

// pump translates stdout JSON lines into stream events and closes the
// channel when the process is done.
func (s *subprocessStream) pump() {
	defer close(s.events)

	scanner := bufio.NewScanner(s.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		for _, ev := range decodeStreamLine(line) {
			s.events <- ev
		}
	}
	if err := scanner.Err(); err != nil {
		s.events <- StreamEvent{Kind: KindError, Err: fmt.Errorf("read agent stream: %w", err)}
	}
}

// wireEvent mirrors the CLI's stream-json line shape.
type wireEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Result    string `json:"result,omitempty"`
	Message   *struct {
		Content []json.RawMessage `json:"content"`
	} `json:"message,omitempty"`
}

// decodeStreamLine maps one stdout line to zero or more stream events.
// Unknown line shapes are dropped; the protocol grows over time.
func decodeStreamLine(line []byte) []StreamEvent {
	var we wireEvent
	if err := json.Unmarshal(line, &we); err != nil {
		return nil
	}

	switch we.Type {
	case "system":
		if we.Subtype == "init" && we.SessionID != "" {
			return []StreamEvent{{Kind: KindSession, SessionID: we.SessionID}}
		}
		return nil

	case "assistant":
		if we.Message == nil {
			return nil
		}
		var out []StreamEvent
		for _, raw := range we.Message.Content {
			out = append(out, decodeContentBlock(raw)...)
		}
		return out

	case "result":
		if we.IsError {
			return []StreamEvent{{Kind: KindError, Err: fmt.Errorf("agent turn failed: %s", we.Result)}}
		}
		return []StreamEvent{{Kind: KindResult}}
	}
	return nil
}

func decodeContentBlock(raw json.RawMessage) []StreamEvent {
	var block struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil
	}

	switch block.Type {
	case "text":
		if block.Text == "" {
			return nil
		}
		return []StreamEvent{{Kind: KindTextDelta, Content: []any{block.Text}}}
	case "tool_use":
		events := []StreamEvent{{Kind: KindToolStart, ToolName: block.Name}}
		if len(block.Input) > 0 && string(block.Input) != "null" {
			events = append(events, StreamEvent{
				Kind:      KindToolInput,
				ToolName:  block.Name,
				ToolInput: compactJSON(block.Input),
			})
		}
		return events
	}
	return nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// hookSettingsJSON builds the CLI settings document that runs command as
// a PreToolUse hook on every tool call. The hook reads the pending call
// on stdin and can deny it.
func hookSettingsJSON(command string) []byte {
	type hookEntry struct {
		Type    string `json:"type"`
		Command string `json:"command"`
	}
	type matcherEntry struct {
		Matcher string      `json:"matcher"`
		Hooks   []hookEntry `json:"hooks"`
	}
	settings := map[string]any{
		"hooks": map[string][]matcherEntry{
			"PreToolUse": {{
				Matcher: "*",
				Hooks:   []hookEntry{{Type: "command", Command: command}},
			}},
		},
	}
	data, _ := json.Marshal(settings)
	return data
}

// writeHookSettings persists the settings document to a temp file whose
// path rides the CLI's --settings flag. The stream removes it on Close.
func writeHookSettings(command string) (string, error) {
	f, err := os.CreateTemp("", "aide-settings-*.json")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(hookSettingsJSON(command)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeIfSet(path string) {
	if path != "" {
		os.Remove(path)
	}
}
