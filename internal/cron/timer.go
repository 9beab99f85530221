package cron

import (
	"log/slog"
	"sync"
	"time"
)

// maxSleep bounds the timer so externally edited job files are picked up
// within the hour even without an explicit rearm.
const maxSleep = time.Hour

// Timer arms a single OS timer for the earliest enabled job. Rearm is
// idempotent: the pending fire is cancelled before a new one is
// installed. The fire callback runs on the timer goroutine.
type Timer struct {
	store  *Store
	onFire func(Job)

	mu       sync.Mutex
	timer    *time.Timer
	armedRef time.Time // reference instant next-fire times were computed from
	stopped  bool
}

// NewTimer builds a timer over the store. onFire is invoked once per due
// job; delivery and error handling are the caller's concern.
func NewTimer(store *Store, onFire func(Job)) *Timer {
	return &Timer{store: store, onFire: onFire}
}

// Rearm recomputes the earliest fire time across enabled jobs and resets
// the timer. With no upcoming job the timer sleeps maxSleep and rechecks.
func (t *Timer) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	now := time.Now()
	t.armedRef = now
	wait := maxSleep
	for _, j := range t.store.Load() {
		if !j.Enabled {
			continue
		}
		next, ok, err := NextFire(j, now)
		if err != nil {
			slog.Warn("cron.bad_schedule", "job", j.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if d := next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	t.timer = time.AfterFunc(wait, t.fire)
	slog.Debug("cron.armed", "wait", wait.String())
}

// Stop cancels the pending fire; subsequent Rearm calls are no-ops.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// fire runs every job whose target (computed from the arm instant) has
// passed, stamps lastFiredAt, persists, and re-arms.
func (t *Timer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	ref := t.armedRef
	t.mu.Unlock()

	now := time.Now()
	var due []Job
	err := t.store.Mutate(func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if !jobs[i].Enabled {
				continue
			}
			next, ok, err := NextFire(jobs[i], ref)
			if err != nil || !ok {
				continue
			}
			if next.After(now) {
				continue
			}
			due = append(due, jobs[i])
			jobs[i].LastFiredAt = now.UTC().Format(time.RFC3339)
		}
		return jobs, nil
	})
	if err != nil {
		slog.Error("cron.fire_persist_failed", "error", err)
	}

	for _, j := range due {
		slog.Info("cron.job_fired", "job", j.ID, "label", j.Label)
		t.onFire(j)
	}
	t.Rearm()
}
