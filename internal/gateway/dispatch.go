package gateway

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halcyonhq/aide/internal/agent"
	"github.com/halcyonhq/aide/internal/bus"
	"github.com/halcyonhq/aide/internal/config"
	"github.com/halcyonhq/aide/internal/heartbeat"
	"github.com/halcyonhq/aide/internal/sessions"
)

// Canned replies the dispatch loop sends without consulting the agent.
const (
	clearedReply  = "Conversation cleared. Starting fresh."
	rephraseReply = "I couldn't come up with a response — could you rephrase that?"
	errorReply    = "Something went wrong while processing your message. Please try again."
	partialNotice = "\n\n[The connection dropped mid-response; the text above may be incomplete.]"
)

// Dispatcher is the single consumer of the message queue. One agent
// turn runs at a time; Stop lets the in-flight turn finish.
type Dispatcher struct {
	queue  *bus.Queue
	router *bus.Router
	runner *agent.Runner
	store  *sessions.Store
	cfg    *config.Config

	mu                  sync.Mutex
	lastAdapterName     string
	lastSourceByAdapter map[string]string

	running bool
	runMu   sync.Mutex
	done    chan struct{}
}

// NewDispatcher wires the dispatch loop. All adapters must be registered
// on the router before Start.
func NewDispatcher(queue *bus.Queue, router *bus.Router, runner *agent.Runner, store *sessions.Store, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		queue:               queue,
		router:              router,
		runner:              runner,
		store:               store,
		cfg:                 cfg,
		lastSourceByAdapter: make(map[string]string),
	}
}

// Start launches the consumer loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.done = make(chan struct{})
	go d.loop(ctx)
}

// Stop signals the loop to exit and waits for the in-flight turn.
func (d *Dispatcher) Stop() {
	d.runMu.Lock()
	if !d.running {
		d.runMu.Unlock()
		return
	}
	d.running = false
	done := d.done
	d.runMu.Unlock()

	d.queue.Signal()
	<-done
}

func (d *Dispatcher) isRunning() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.running
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		for {
			msg, ok := d.queue.Pop()
			if !ok {
				break
			}
			d.processNext(ctx, msg)
			if !d.isRunning() {
				return
			}
		}
		if !d.isRunning() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-d.queue.Wake():
		}
	}
}

// processNext handles one queued message end to end. Panics are
// contained: the user gets a generic apology and the loop continues.
func (d *Dispatcher) processNext(ctx context.Context, msg bus.AdapterMessage) {
	target, ok := d.resolveTarget(msg)
	if !ok {
		return
	}
	sessionKey := sessions.Key(msg.Source, msg.SourceID, msg.Metadata["threadId"])

	if strings.TrimSpace(msg.Text) == "/clear" {
		d.runner.ClearSession(sessionKey)
		d.send(ctx, target, clearedReply)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("gateway.turn_panicked", "session", sessionKey, "panic", r)
			d.send(ctx, target, errorReply)
		}
	}()

	reply, partial, err := d.runTurn(ctx, target, sessionKey, msg.Text)
	if err != nil {
		slog.Error("gateway.turn_failed", "session", sessionKey, "error", err)
		d.send(ctx, target, errorReply)
		return
	}

	if msg.Source == bus.SourceHeartbeat && heartbeat.IsHeartbeatOK(reply) {
		slog.Debug("gateway.heartbeat_ok_suppressed", "session", sessionKey)
		return
	}
	if strings.TrimSpace(reply) == "" {
		d.send(ctx, target, rephraseReply)
		return
	}
	if partial {
		reply += partialNotice
	}
	d.send(ctx, target, reply)

	if d.cfg.Session.CompactionEnabled {
		now := func() string { return time.Now().UTC().Format(time.RFC3339) }
		if _, err := d.store.CompactIfNeeded(sessionKey, d.cfg.Session.CompactionThreshold, now); err != nil {
			slog.Warn("gateway.compaction_failed", "session", sessionKey, "error", err)
		}
	}
}

// runTurn picks the streaming path when the target transport can host a
// processing message, else the plain turn.
func (d *Dispatcher) runTurn(ctx context.Context, target bus.OutboundMessage, sessionKey, text string) (string, bool, error) {
	adapter, ok := d.router.Get(target.Source)
	if pa, streaming := adapter.(bus.ProcessingAdapter); ok && streaming {
		interval := time.Duration(d.cfg.Gateway.ProcessingUpdateIntervalMs) * time.Millisecond
		acc := NewAccumulator(pa, target.SourceID, target.Metadata, interval)

		accCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Run(accCtx)
		}()

		res, err := d.runner.StreamTurn(ctx, sessionKey, text, acc.Handle)
		cancel()
		wg.Wait()
		if err != nil {
			return "", false, err
		}
		if final := acc.FinalText(); final != "" {
			return final, res.Partial, nil
		}
		return res.Response, res.Partial, nil
	}

	res, err := d.runner.RunTurn(ctx, sessionKey, text)
	if err != nil {
		return "", false, err
	}
	return res.Response, res.Partial, nil
}

// resolveTarget decides where the reply goes. Ordinary sources reply to
// themselves and are remembered for heartbeat routing; heartbeats follow
// the deliver-to policy and drop with a warning when nothing resolves.
func (d *Dispatcher) resolveTarget(msg bus.AdapterMessage) (bus.OutboundMessage, bool) {
	if msg.Source != bus.SourceHeartbeat {
		d.mu.Lock()
		d.lastAdapterName = msg.Source
		d.lastSourceByAdapter[msg.Source] = msg.SourceID
		d.mu.Unlock()
		return bus.OutboundMessage{Source: msg.Source, SourceID: msg.SourceID, Metadata: msg.Metadata}, true
	}

	name := d.cfg.Heartbeat.DeliverTo
	d.mu.Lock()
	if name == "" || name == "last" {
		name = d.lastAdapterName
	}
	sourceID := d.lastSourceByAdapter[name]
	d.mu.Unlock()

	if name == "" || sourceID == "" {
		slog.Warn("gateway.heartbeat_undeliverable", "deliver_to", d.cfg.Heartbeat.DeliverTo)
		return bus.OutboundMessage{}, false
	}
	return bus.OutboundMessage{Source: name, SourceID: sourceID}, true
}

func (d *Dispatcher) send(ctx context.Context, target bus.OutboundMessage, text string) {
	target.Text = text
	if err := d.router.Route(ctx, target); err != nil {
		slog.Warn("gateway.reply_dropped", "source", target.Source, "error", err)
	}
}
