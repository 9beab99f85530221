// Package channels holds the built-in message transports. Concrete chat
// platform bindings plug in through the bus.Adapter interface; the only
// transport shipped with the core is the interactive terminal.
package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/halcyonhq/aide/internal/bus"
)

// TerminalName is the adapter name of the local terminal transport.
const TerminalName = "terminal"

// terminalSourceID identifies the single local conversation.
const terminalSourceID = "local"

// Terminal is a line-based adapter over stdin/stdout. Each input line
// becomes one queued message; replies print to the output writer.
type Terminal struct {
	queue *bus.Queue
	in    io.Reader
	out   io.Writer

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTerminal builds a terminal adapter reading from in and writing to
// out (usually os.Stdin / os.Stdout).
func NewTerminal(queue *bus.Queue, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{queue: queue, in: in, out: out}
}

func (t *Terminal) Name() string { return TerminalName }

// Start launches the read loop. Non-blocking.
func (t *Terminal) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.readLoop(ctx)
	return nil
}

// Stop cancels the read loop. The blocked read ends when the input
// stream closes.
func (t *Terminal) Stop(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false
	t.cancel()
	return nil
}

// SendResponse prints a reply to the output writer.
func (t *Terminal) SendResponse(_ context.Context, msg bus.OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.out, "\n%s\n\n> ", msg.Text); err != nil {
		return fmt.Errorf("terminal write: %w", err)
	}
	return nil
}

func (t *Terminal) readLoop(ctx context.Context) {
	defer close(t.done)

	fmt.Fprint(t.out, "> ")
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Fprint(t.out, "> ")
			continue
		}
		res := t.queue.Enqueue(bus.AdapterMessage{
			Source:   TerminalName,
			SourceID: terminalSourceID,
			Text:     text,
		})
		if !res.Accepted {
			fmt.Fprintf(t.out, "[%s]\n> ", res.Reason)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("terminal.read_failed", "error", err)
	}
}
