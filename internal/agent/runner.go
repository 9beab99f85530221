package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halcyonhq/aide/internal/audit"
	"github.com/halcyonhq/aide/internal/sessions"
)

// TurnResult is the outcome of one turn. Partial means the transport
// dropped after some text arrived; the text is still delivered.
type TurnResult struct {
	Response string
	Messages []sessions.Message
	Partial  bool
}

// Runner executes turns one at a time per caller. The session-id cache
// maps conversation keys to provider sessions; it lives only in memory,
// so a restart starts fresh provider sessions over the on-disk history.
type Runner struct {
	executor     TurnExecutor
	store        *sessions.Store
	opts         Options
	workspaceDir string

	mu         sync.RWMutex
	sessionIDs map[string]string
}

// NewRunner builds a runner around the executor.
func NewRunner(executor TurnExecutor, store *sessions.Store, opts Options, workspaceDir string) *Runner {
	return &Runner{
		executor:     executor,
		store:        store,
		opts:         opts,
		workspaceDir: workspaceDir,
		sessionIDs:   make(map[string]string),
	}
}

// ClearSession drops the cached provider session for a key, forcing the
// next turn to start a fresh provider session.
func (r *Runner) ClearSession(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessionIDs, sessionKey)
}

// RunTurn executes one turn and returns the final response.
func (r *Runner) RunTurn(ctx context.Context, sessionKey, text string) (TurnResult, error) {
	return r.StreamTurn(ctx, sessionKey, text, nil)
}

// StreamTurn executes one turn, forwarding every stream event to sink
// (when non-nil) as it arrives. On success the turn's messages are
// appended to the transcript and an interaction entry lands in the
// daily log.
func (r *Runner) StreamTurn(ctx context.Context, sessionKey, text string, sink func(StreamEvent)) (TurnResult, error) {
	opts := r.opts
	r.mu.RLock()
	opts.Resume = r.sessionIDs[sessionKey]
	r.mu.RUnlock()

	// With no provider session to resume (fresh start or daemon
	// restart), the on-disk transcript is the only continuity: fold the
	// recent history into the prompt.
	prompt := text
	if opts.Resume == "" {
		history, err := r.store.LoadHistory(sessionKey, opts.MaxHistoryMessages)
		if err != nil {
			slog.Warn("agent.history_load_failed", "session", sessionKey, "error", err)
		} else if len(history) > 0 {
			prompt = renderHistory(history) + text
		}
	}

	stream, err := r.executor.Execute(ctx, prompt, opts)
	if err != nil {
		return TurnResult{}, fmt.Errorf("start turn: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	partial := false
	sessionCached := false

consume:
	for ev := range stream.Events() {
		if sink != nil {
			sink(ev)
		}
		switch ev.Kind {
		case KindSession:
			if !sessionCached && ev.SessionID != "" {
				r.mu.Lock()
				r.sessionIDs[sessionKey] = ev.SessionID
				r.mu.Unlock()
				sessionCached = true
			}
		case KindTextDelta:
			sb.WriteString(TextOf(ev.Content))
		case KindError:
			if isTransportNotReady(ev.Err) && sb.Len() > 0 {
				slog.Warn("agent.partial_turn", "session", sessionKey, "error", ev.Err)
				partial = true
				break consume
			}
			return TurnResult{}, fmt.Errorf("turn failed: %w", ev.Err)
		case KindResult:
			break consume
		}
	}

	response := sb.String()
	now := time.Now().UTC().Format(time.RFC3339)
	msgs := []sessions.Message{
		{Role: sessions.RoleUser, Content: text, Timestamp: now},
		{Role: sessions.RoleAssistant, Content: response, Timestamp: now},
	}
	if err := r.store.SaveInteraction(sessionKey, msgs); err != nil {
		slog.Error("agent.transcript_write_failed", "session", sessionKey, "error", err)
	}
	if err := audit.Append(r.workspaceDir, audit.Entry{
		Type:              audit.TypeInteraction,
		Timestamp:         now,
		Source:            sessions.SourceOf(sessionKey),
		SessionKey:        sessionKey,
		UserMessage:       text,
		AssistantResponse: response,
	}); err != nil {
		slog.Error("agent.audit_write_failed", "session", sessionKey, "error", err)
	}

	return TurnResult{Response: response, Messages: msgs, Partial: partial}, nil
}

// renderHistory formats transcript messages as a prompt preamble.
func renderHistory(msgs []sessions.Message) string {
	var sb strings.Builder
	sb.WriteString("Previous conversation (restored from the transcript):\n\n")
	for _, m := range msgs {
		sb.WriteString("[")
		sb.WriteString(m.Role)
		sb.WriteString("] ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nCurrent message:\n")
	return sb.String()
}
