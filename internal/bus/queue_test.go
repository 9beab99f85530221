package bus

import (
	"context"
	"sync"
	"testing"
)

func TestQueueBoundAndFIFO(t *testing.T) {
	q := NewQueue(2)

	r1 := q.Enqueue(AdapterMessage{Source: "cli", SourceID: "a", Text: "one"})
	r2 := q.Enqueue(AdapterMessage{Source: "cli", SourceID: "a", Text: "two"})
	r3 := q.Enqueue(AdapterMessage{Source: "cli", SourceID: "a", Text: "three"})

	if !r1.Accepted || !r2.Accepted {
		t.Fatal("first two enqueues should be accepted")
	}
	if r3.Accepted {
		t.Fatal("third enqueue should be rejected at capacity 2")
	}
	if r3.Reason != "Queue full" {
		t.Errorf("rejection reason = %q, want %q", r3.Reason, "Queue full")
	}
	if q.Size() != 2 {
		t.Errorf("Size() = %d, want 2", q.Size())
	}

	m1, ok := q.Pop()
	if !ok || m1.Text != "one" {
		t.Errorf("first pop = %q, want \"one\"", m1.Text)
	}
	m2, _ := q.Pop()
	if m2.Text != "two" {
		t.Errorf("second pop = %q, want \"two\"", m2.Text)
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue should report empty")
	}

	// Capacity freed — enqueue works again.
	if r := q.Enqueue(AdapterMessage{Text: "four"}); !r.Accepted {
		t.Error("enqueue after drain should be accepted")
	}
}

func TestQueueConcurrentEnqueueNeverExceedsBound(t *testing.T) {
	q := NewQueue(5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(AdapterMessage{Text: "x"})
		}()
	}
	wg.Wait()
	if q.Size() != 5 {
		t.Errorf("Size() = %d, want exactly the bound 5", q.Size())
	}
}

func TestQueueWakeSignal(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(AdapterMessage{Text: "x"})
	select {
	case <-q.Wake():
	default:
		t.Fatal("enqueue should have signalled the wake channel")
	}

	q.Signal()
	select {
	case <-q.Wake():
	default:
		t.Fatal("Signal should wake the consumer")
	}
}

// mockAdapter records sent responses for routing assertions.
type mockAdapter struct {
	name string
	mu   sync.Mutex
	sent []OutboundMessage
}

func (m *mockAdapter) Name() string                   { return m.name }
func (m *mockAdapter) Start(ctx context.Context) error { return nil }
func (m *mockAdapter) Stop(ctx context.Context) error  { return nil }
func (m *mockAdapter) SendResponse(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockAdapter) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func TestRouterRouteAndUnknownSource(t *testing.T) {
	r := NewRouter()
	cli := &mockAdapter{name: "cli"}
	r.Register(cli)

	ctx := context.Background()
	if err := r.Route(ctx, OutboundMessage{Source: "cli", SourceID: "u1", Text: "hi"}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got := cli.Sent(); len(got) != 1 || got[0].Text != "hi" {
		t.Errorf("adapter received %v, want one message \"hi\"", got)
	}

	if err := r.Route(ctx, OutboundMessage{Source: "nope", Text: "x"}); err == nil {
		t.Error("unknown source should return an error")
	}

	r.Unregister("cli")
	if err := r.Route(ctx, OutboundMessage{Source: "cli", Text: "x"}); err == nil {
		t.Error("unregistered adapter should no longer route")
	}
}
