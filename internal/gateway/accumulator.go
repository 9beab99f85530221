// Package gateway owns the dispatch loop between the message queue and
// the agent runner, plus the live processing message that mirrors tool
// activity into transports that can edit their own messages.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halcyonhq/aide/internal/agent"
	"github.com/halcyonhq/aide/internal/bus"
)

const (
	// maxProcessingChars caps the processing-message body; overflow is
	// trimmed from the head so the latest activity stays visible.
	maxProcessingChars = 4000

	truncationMarker = "[...earlier output truncated...]"

	// toolInputPreview caps how much of a tool's input lands in the
	// processing display.
	toolInputPreview = 200
)

// Accumulator folds a turn's stream events into a single transport
// message that is created on the first flush carrying tool activity and
// edited in place on later flushes. Text-only turns never flush.
type Accumulator struct {
	adapter  bus.ProcessingAdapter
	sourceID string
	metadata map[string]string
	interval time.Duration

	flushMu sync.Mutex // a flush in progress makes re-entrant flushes no-ops

	mu           sync.Mutex
	lines        []string
	toolLineIdx  int    // index in lines of the active tool line, -1 none
	toolLineBase string // active tool line without the elapsed tail
	toolActivity bool
	dirty        bool
	messageID    string
	finalText    strings.Builder // text since the last tool event
}

// NewAccumulator builds an accumulator for one turn on one transport.
func NewAccumulator(adapter bus.ProcessingAdapter, sourceID string, metadata map[string]string, interval time.Duration) *Accumulator {
	return &Accumulator{
		adapter:     adapter,
		sourceID:    sourceID,
		metadata:    metadata,
		interval:    interval,
		toolLineIdx: -1,
	}
}

// Handle consumes one stream event. Safe to call from the consumer
// goroutine while the flush ticker runs concurrently.
func (a *Accumulator) Handle(ev agent.StreamEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Kind {
	case agent.KindTextDelta:
		text := agent.TextOf(ev.Content)
		if text == "" {
			return
		}
		a.finalText.WriteString(text)
		a.lines = append(a.lines, text)
		a.toolLineIdx = -1
		a.dirty = true

	case agent.KindToolStart:
		line := fmt.Sprintf("[tool] %s …", ev.ToolName)
		a.lines = append(a.lines, line)
		a.toolLineIdx = len(a.lines) - 1
		a.toolLineBase = line
		a.noteToolEvent()

	case agent.KindToolInput:
		line := fmt.Sprintf("[tool] %s: %s", ev.ToolName, previewInput(ev.ToolInput))
		if a.toolLineIdx >= 0 {
			a.lines[a.toolLineIdx] = line
		} else {
			a.lines = append(a.lines, line)
			a.toolLineIdx = len(a.lines) - 1
		}
		a.toolLineBase = line
		a.noteToolEvent()

	case agent.KindToolProgress:
		if a.toolLineIdx >= 0 {
			secs := int(ev.Elapsed.Seconds())
			a.lines[a.toolLineIdx] = fmt.Sprintf("%s — elapsed %ds", a.toolLineBase, secs)
		}
		a.noteToolEvent()
	}
}

// noteToolEvent marks tool activity and resets the final-text window so
// only text arriving after the last tool survives as the reply.
func (a *Accumulator) noteToolEvent() {
	a.toolActivity = true
	a.finalText.Reset()
	a.dirty = true
}

// FinalText returns the reply text: everything after the last tool
// event, or the whole text when no tool ran.
func (a *Accumulator) FinalText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalText.String()
}

// Flush pushes the current buffer to the transport. A flush while
// another is in progress is a no-op, as is a flush with no tool
// activity or no changes since the last one.
func (a *Accumulator) Flush(ctx context.Context) error {
	if !a.flushMu.TryLock() {
		return nil
	}
	defer a.flushMu.Unlock()

	a.mu.Lock()
	if !a.toolActivity || !a.dirty {
		a.mu.Unlock()
		return nil
	}
	content := renderProcessing(a.lines)
	messageID := a.messageID
	a.dirty = false
	a.mu.Unlock()

	if messageID == "" {
		id, err := a.adapter.CreateProcessingMessage(ctx, a.sourceID, content, a.metadata)
		if err != nil {
			return fmt.Errorf("create processing message: %w", err)
		}
		a.mu.Lock()
		a.messageID = id
		a.mu.Unlock()
		return nil
	}
	if err := a.adapter.UpdateProcessingMessage(ctx, a.sourceID, messageID, content, a.metadata); err != nil {
		return fmt.Errorf("update processing message: %w", err)
	}
	return nil
}

// Run flushes on the configured interval until ctx is cancelled, then
// performs one final flush.
func (a *Accumulator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := a.Flush(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("gateway.processing_flush_failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				slog.Warn("gateway.processing_flush_failed", "error", err)
			}
		}
	}
}

func renderProcessing(lines []string) string {
	content := strings.Join(lines, "\n")
	if len(content) <= maxProcessingChars {
		return content
	}
	keep := maxProcessingChars - len(truncationMarker) - 1
	return truncationMarker + "\n" + content[len(content)-keep:]
}

func previewInput(input string) string {
	input = strings.ReplaceAll(input, "\n", " ")
	if len(input) > toolInputPreview {
		return input[:toolInputPreview] + "…"
	}
	return input
}
