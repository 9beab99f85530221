package channels

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/halcyonhq/aide/internal/bus"
)

// syncBuffer guards the output writer against the read-loop goroutine.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func waitForQueue(t *testing.T, q *bus.Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for q.Size() < n {
		if time.Now().After(deadline) {
			t.Fatalf("queue never reached %d messages, have %d", n, q.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTerminalEnqueuesInputLines(t *testing.T) {
	queue := bus.NewQueue(10)
	out := &syncBuffer{}
	term := NewTerminal(queue, strings.NewReader("hello\n\n  what's up  \n"), out)

	if err := term.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { term.Stop(context.Background()) })

	waitForQueue(t, queue, 2)

	first, _ := queue.Pop()
	if first.Source != TerminalName || first.SourceID != "local" || first.Text != "hello" {
		t.Errorf("first = %+v", first)
	}
	second, _ := queue.Pop()
	if second.Text != "what's up" {
		t.Errorf("second = %+v, want trimmed text", second)
	}
}

func TestTerminalReportsQueueFull(t *testing.T) {
	queue := bus.NewQueue(1)
	out := &syncBuffer{}
	term := NewTerminal(queue, strings.NewReader("one\ntwo\n"), out)

	if err := term.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { term.Stop(context.Background()) })

	waitForQueue(t, queue, 1)
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "Queue full") {
		if time.Now().After(deadline) {
			t.Fatalf("overflow never reported, output = %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTerminalSendResponse(t *testing.T) {
	queue := bus.NewQueue(10)
	out := &syncBuffer{}
	term := NewTerminal(queue, strings.NewReader(""), out)

	err := term.SendResponse(context.Background(), bus.OutboundMessage{Text: "here you go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "here you go") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTerminalStartStopIdempotent(t *testing.T) {
	queue := bus.NewQueue(10)
	term := NewTerminal(queue, strings.NewReader(""), &syncBuffer{})

	ctx := context.Background()
	if err := term.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := term.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := term.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := term.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
