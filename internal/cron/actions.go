package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionResult is the uniform reply of the job CRUD surface, shaped for
// direct serialization back to the agent tool call.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Jobs    []Job  `json:"jobs,omitempty"`
}

// Actions is the add/list/update/remove facade over the store. Invalid
// input never mutates; mutations re-arm the timer when one is attached.
type Actions struct {
	store *Store
	timer *Timer
}

// NewActions builds the facade. timer may be nil (e.g. in the CLI).
func NewActions(store *Store, timer *Timer) *Actions {
	return &Actions{store: store, timer: timer}
}

func fail(format string, args ...any) ActionResult {
	return ActionResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func (a *Actions) rearm() {
	if a.timer != nil {
		a.timer.Rearm()
	}
}

// Add validates and appends a new enabled job.
func (a *Actions) Add(label string, schedule Schedule, text string) ActionResult {
	if strings.TrimSpace(text) == "" {
		return fail("payload text must be non-empty")
	}
	if err := ValidateSchedule(schedule); err != nil {
		return fail("%v", err)
	}

	job := Job{
		ID:        uuid.NewString(),
		Label:     label,
		Schedule:  schedule,
		Payload:   Payload{Text: text},
		Enabled:   true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	err := a.store.Mutate(func(jobs []Job) ([]Job, error) {
		return append(jobs, job), nil
	})
	if err != nil {
		return fail("persist job: %v", err)
	}
	a.rearm()
	return ActionResult{Success: true, Message: "job added", Jobs: []Job{job}}
}

// List returns every stored job.
func (a *Actions) List() ActionResult {
	return ActionResult{Success: true, Jobs: a.store.Load()}
}

// JobUpdate carries the optional fields Update may change.
type JobUpdate struct {
	Label    *string
	Schedule *Schedule
	Text     *string
	Enabled  *bool
}

// Update applies the non-nil fields of upd to the job with the given id.
func (a *Actions) Update(id string, upd JobUpdate) ActionResult {
	if upd.Schedule != nil {
		if err := ValidateSchedule(*upd.Schedule); err != nil {
			return fail("%v", err)
		}
	}
	if upd.Text != nil && strings.TrimSpace(*upd.Text) == "" {
		return fail("payload text must be non-empty")
	}

	found := false
	err := a.store.Mutate(func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if jobs[i].ID != id {
				continue
			}
			found = true
			if upd.Label != nil {
				jobs[i].Label = *upd.Label
			}
			if upd.Schedule != nil {
				jobs[i].Schedule = *upd.Schedule
				jobs[i].LastFiredAt = ""
			}
			if upd.Text != nil {
				jobs[i].Payload.Text = *upd.Text
			}
			if upd.Enabled != nil {
				jobs[i].Enabled = *upd.Enabled
			}
			return jobs, nil
		}
		return nil, fmt.Errorf("job not found: %s", id)
	})
	if err != nil {
		return fail("%v", err)
	}
	if !found {
		return fail("job not found: %s", id)
	}
	a.rearm()
	return ActionResult{Success: true, Message: "job updated"}
}

// Remove deletes the job with the given id.
func (a *Actions) Remove(id string) ActionResult {
	found := false
	err := a.store.Mutate(func(jobs []Job) ([]Job, error) {
		out := jobs[:0]
		for _, j := range jobs {
			if j.ID == id {
				found = true
				continue
			}
			out = append(out, j)
		}
		if !found {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return out, nil
	})
	if err != nil {
		return fail("%v", err)
	}
	a.rearm()
	return ActionResult{Success: true, Message: "job removed"}
}
