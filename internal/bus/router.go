package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router maps adapter names to transports and delivers outbound replies.
// Adapters must be registered before the dispatch loop starts.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name. Re-registering replaces.
func (r *Router) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Unregister removes an adapter by name.
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, name)
}

// Get returns the adapter registered under name.
func (r *Router) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered adapter names.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Route delivers msg through the adapter named by msg.Source.
// An unknown source drops the message with a warning.
func (r *Router) Route(ctx context.Context, msg OutboundMessage) error {
	a, ok := r.Get(msg.Source)
	if !ok {
		slog.Warn("router: no adapter for source, dropping reply", "source", msg.Source, "source_id", msg.SourceID)
		return fmt.Errorf("no adapter registered for source %q", msg.Source)
	}
	return a.SendResponse(ctx, msg)
}
