// Package procs tracks background shell commands the agent launched, so
// their completion can surface in the next heartbeat.
package procs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one tracked background command.
type Session struct {
	ID        string
	PID       int
	Command   string
	Output    string
	ExitCode  *int
	StartedAt time.Time
	ExitedAt  *time.Time
}

// Running reports whether the command has not exited yet.
func (s Session) Running() bool { return s.ExitedAt == nil }

// Notifier receives the completion event; the heartbeat event buffer
// satisfies this.
type Notifier interface {
	Enqueue(text, eventType string)
}

// outputCap bounds retained output per session; overflow drops the head.
const outputCap = 64 * 1024

// Registry is a mutex-guarded map of background command sessions.
type Registry struct {
	notifier Notifier

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry. notifier may be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{notifier: notifier, sessions: make(map[string]*Session)}
}

// Add registers a newly started command and returns its session id.
func (r *Registry) Add(pid int, command string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.sessions[id] = &Session{
		ID:        id,
		PID:       pid,
		Command:   command,
		StartedAt: time.Now(),
	}
	return id
}

// Get returns a snapshot of one session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// List returns snapshots of all sessions, running first, newest first
// within each group.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sortSessions(out)
	return out
}

// AppendOutput accumulates command output, trimming from the head past
// the cap.
func (r *Registry) AppendOutput(id, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.Output += chunk
	if len(s.Output) > outputCap {
		s.Output = s.Output[len(s.Output)-outputCap:]
	}
}

// SetExited records completion and pushes an exec event for the next
// heartbeat.
func (r *Registry) SetExited(id string, exitCode int) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	s.ExitCode = &exitCode
	s.ExitedAt = &now
	summary := summarize(*s)
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Enqueue(summary, "exec")
	}
}

func summarize(s Session) string {
	status := "succeeded"
	if s.ExitCode != nil && *s.ExitCode != 0 {
		status = fmt.Sprintf("failed (exit %d)", *s.ExitCode)
	}
	tail := s.Output
	if len(tail) > 500 {
		tail = "…" + tail[len(tail)-500:]
	}
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return fmt.Sprintf("Background command %s: `%s`", status, s.Command)
	}
	return fmt.Sprintf("Background command %s: `%s`\n%s", status, s.Command, tail)
}

// sortSessions orders running sessions first, then by start time
// descending.
func sortSessions(ss []Session) {
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Running() != ss[j].Running() {
			return ss[i].Running()
		}
		return ss[i].StartedAt.After(ss[j].StartedAt)
	})
}
