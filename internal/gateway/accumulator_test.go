package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/halcyonhq/aide/internal/agent"
)

// editRecord is one create/update observed by the mock transport.
type editRecord struct {
	op        string // "create" | "update"
	messageID string
	content   string
}

type mockProcessingAdapter struct {
	mockAdapter
	mu      sync.Mutex
	edits   []editRecord
	nextID  int
	failAll bool
}

func (m *mockProcessingAdapter) CreateProcessingMessage(_ context.Context, _ string, content string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", context.DeadlineExceeded
	}
	m.nextID++
	id := "msg-" + string(rune('0'+m.nextID))
	m.edits = append(m.edits, editRecord{op: "create", messageID: id, content: content})
	return id, nil
}

func (m *mockProcessingAdapter) UpdateProcessingMessage(_ context.Context, _ string, messageID, content string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editRecord{op: "update", messageID: messageID, content: content})
	return nil
}

func (m *mockProcessingAdapter) recorded() []editRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]editRecord(nil), m.edits...)
}

func newTestAccumulator(adapter *mockProcessingAdapter) *Accumulator {
	return NewAccumulator(adapter, "chat-1", nil, 50*time.Millisecond)
}

func TestAccumulatorNeverFlushesTextOnly(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)

	acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{"thinking out loud"}})
	if err := acc.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := adapter.recorded(); len(got) != 0 {
		t.Errorf("text-only turn must not create a processing message, got %v", got)
	}
}

func TestAccumulatorCreateThenUpdate(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)
	ctx := context.Background()

	acc.Handle(agent.StreamEvent{Kind: agent.KindToolStart, ToolName: "Bash"})
	if err := acc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	acc.Handle(agent.StreamEvent{Kind: agent.KindToolInput, ToolName: "Bash", ToolInput: "ls -la"})
	if err := acc.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	edits := adapter.recorded()
	if len(edits) != 2 {
		t.Fatalf("got %d edits, want create+update: %v", len(edits), edits)
	}
	if edits[0].op != "create" || !strings.Contains(edits[0].content, "[tool] Bash …") {
		t.Errorf("first edit = %+v", edits[0])
	}
	if edits[1].op != "update" || edits[1].messageID != edits[0].messageID {
		t.Errorf("second edit = %+v, want update of the same message", edits[1])
	}
	if !strings.Contains(edits[1].content, "[tool] Bash: ls -la") {
		t.Errorf("tool input should replace the tentative line: %q", edits[1].content)
	}
	if strings.Contains(edits[1].content, "…") {
		t.Errorf("tentative line should be gone after tool_input: %q", edits[1].content)
	}
}

func TestAccumulatorFlushWithoutChangesIsNoop(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)
	ctx := context.Background()

	acc.Handle(agent.StreamEvent{Kind: agent.KindToolStart, ToolName: "Grep"})
	acc.Flush(ctx)
	acc.Flush(ctx)
	acc.Flush(ctx)
	if edits := adapter.recorded(); len(edits) != 1 {
		t.Errorf("unchanged buffer re-flushed: %v", edits)
	}
}

func TestAccumulatorElapsedTailDoesNotStack(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)
	ctx := context.Background()

	acc.Handle(agent.StreamEvent{Kind: agent.KindToolInput, ToolName: "Bash", ToolInput: "sleep 60"})
	acc.Handle(agent.StreamEvent{Kind: agent.KindToolProgress, ToolName: "Bash", Elapsed: 5 * time.Second})
	acc.Handle(agent.StreamEvent{Kind: agent.KindToolProgress, ToolName: "Bash", Elapsed: 10 * time.Second})
	acc.Flush(ctx)

	edits := adapter.recorded()
	if len(edits) != 1 {
		t.Fatalf("edits = %v", edits)
	}
	if !strings.Contains(edits[0].content, "elapsed 10s") {
		t.Errorf("latest elapsed missing: %q", edits[0].content)
	}
	if strings.Count(edits[0].content, "elapsed") != 1 {
		t.Errorf("elapsed tails stacked: %q", edits[0].content)
	}
}

func TestAccumulatorHeadTruncation(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)

	acc.Handle(agent.StreamEvent{Kind: agent.KindToolStart, ToolName: "Bash"})
	for i := 0; i < 100; i++ {
		acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{strings.Repeat("x", 100)}})
	}
	acc.Flush(context.Background())

	edits := adapter.recorded()
	if len(edits) != 1 {
		t.Fatalf("edits = %v", edits)
	}
	content := edits[0].content
	if len(content) > maxProcessingChars {
		t.Errorf("content length %d exceeds cap %d", len(content), maxProcessingChars)
	}
	if !strings.HasPrefix(content, truncationMarker) {
		t.Errorf("truncated content should start with the marker, got %q", content[:40])
	}
}

func TestAccumulatorFinalTextWindow(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)

	acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{"let me check"}})
	acc.Handle(agent.StreamEvent{Kind: agent.KindToolStart, ToolName: "Read"})
	acc.Handle(agent.StreamEvent{Kind: agent.KindToolInput, ToolName: "Read", ToolInput: `{"file_path":"notes.md"}`})
	acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{"the file says 42"}})

	if got := acc.FinalText(); got != "the file says 42" {
		t.Errorf("FinalText = %q, want only post-tool text", got)
	}
}

func TestAccumulatorFinalTextNoTools(t *testing.T) {
	acc := newTestAccumulator(&mockProcessingAdapter{})
	acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{"plain "}})
	acc.Handle(agent.StreamEvent{Kind: agent.KindTextDelta, Content: []any{"answer"}})
	if got := acc.FinalText(); got != "plain answer" {
		t.Errorf("FinalText = %q", got)
	}
}

func TestAccumulatorRunFlushesPeriodically(t *testing.T) {
	adapter := &mockProcessingAdapter{}
	acc := newTestAccumulator(adapter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		acc.Run(ctx)
	}()

	acc.Handle(agent.StreamEvent{Kind: agent.KindToolStart, ToolName: "Bash"})
	deadline := time.Now().Add(3 * time.Second)
	for len(adapter.recorded()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ticker never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
