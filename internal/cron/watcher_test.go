package cron

import (
	"context"
	"testing"
	"time"
)

func TestWatchStoreRearmsOnExternalWrite(t *testing.T) {
	store := NewStore(t.TempDir())

	fired := make(chan Job, 1)
	timer := NewTimer(store, func(j Job) { fired <- j })
	timer.Rearm() // empty store: nothing scheduled
	t.Cleanup(timer.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := WatchStore(ctx, store, timer); err != nil {
		t.Fatal(err)
	}

	// Simulate another process adding an already-due job.
	job := Job{
		ID:        "w1",
		Label:     "external",
		Schedule:  Schedule{Kind: KindOneshot, ISO: time.Now().Add(50 * time.Millisecond).Format(time.RFC3339Nano)},
		Payload:   Payload{Text: "added externally"},
		Enabled:   true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.Save([]Job{job}); err != nil {
		t.Fatal(err)
	}

	select {
	case j := <-fired:
		if j.ID != "w1" {
			t.Errorf("fired job = %+v", j)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timer never re-armed after external write")
	}
}
