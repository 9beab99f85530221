// Package agent runs one conversational turn at a time against an
// external streaming turn executor, caching provider session ids per
// conversation and persisting each completed turn to the transcript and
// the daily audit log.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"
)

// StreamEvent kinds, in the order a typical turn emits them.
const (
	KindSession      = "session"
	KindTextDelta    = "text_delta"
	KindToolStart    = "tool_start"
	KindToolInput    = "tool_input"
	KindToolProgress = "tool_progress"
	KindResult       = "result"
	KindError        = "error"
)

// StreamEvent is one event from the turn executor's stream. Only the
// fields matching Kind are populated.
type StreamEvent struct {
	Kind      string
	SessionID string        // session
	Content   []any         // text_delta: blocks, each a string or {type:"text", text}
	ToolName  string        // tool_start, tool_progress
	ToolInput string        // tool_input
	Elapsed   time.Duration // tool_progress
	Err       error         // error
}

// Stream is a lazy sequence of events for one turn. Close is idempotent
// and must release the underlying transport.
type Stream interface {
	Events() <-chan StreamEvent
	Close() error
}

// TurnExecutor is the opaque language-model provider. Resume semantics:
// a non-empty Options.Resume continues the provider-side session.
type TurnExecutor interface {
	Execute(ctx context.Context, prompt string, opts Options) (Stream, error)
}

// ErrTransportNotReady marks the provider transport dropping mid-turn.
// When text was already collected the turn is salvaged as partial.
var ErrTransportNotReady = errors.New("transport not ready")

func isTransportNotReady(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransportNotReady) ||
		strings.Contains(err.Error(), "transport not ready")
}

// TextOf extracts the text carried by a content block list. Blocks may
// be plain strings or {type:"text", text} maps; anything else is
// ignored.
func TextOf(content []any) string {
	var sb strings.Builder
	for _, block := range content {
		switch b := block.(type) {
		case string:
			sb.WriteString(b)
		case map[string]any:
			if b["type"] == "text" {
				if text, ok := b["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
	}
	return sb.String()
}
