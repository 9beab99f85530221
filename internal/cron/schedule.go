package cron

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// NextFire computes when a job should next fire relative to now. The
// second return is false when the job has no upcoming fire (e.g. a
// oneshot that already ran).
func NextFire(j Job, now time.Time) (time.Time, bool, error) {
	switch j.Schedule.Kind {
	case KindCron:
		next, err := gronx.NextTickAfter(j.Schedule.Expr, now.UTC(), false)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("cron expression %q: %w", j.Schedule.Expr, err)
		}
		return next, true, nil

	case KindOneshot:
		at, err := time.Parse(time.RFC3339, j.Schedule.ISO)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("oneshot instant %q: %w", j.Schedule.ISO, err)
		}
		// An already-fired oneshot never fires again; an overdue one
		// that has not fired yet fires immediately.
		if at.Before(now) && j.LastFiredAt != "" {
			return time.Time{}, false, nil
		}
		return at, true, nil

	case KindInterval:
		if j.Schedule.EveryMs <= 0 {
			return time.Time{}, false, fmt.Errorf("interval must be positive, got %d", j.Schedule.EveryMs)
		}
		period := time.Duration(j.Schedule.EveryMs) * time.Millisecond
		if j.LastFiredAt != "" {
			if last, err := time.Parse(time.RFC3339, j.LastFiredAt); err == nil {
				return last.Add(period), true, nil
			}
		}
		return now.Add(period), true, nil

	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule kind %q", j.Schedule.Kind)
	}
}

// ValidateSchedule checks a schedule without reference to the clock.
func ValidateSchedule(s Schedule) error {
	switch s.Kind {
	case KindCron:
		if !gronx.New().IsValid(s.Expr) {
			return fmt.Errorf("invalid cron expression %q", s.Expr)
		}
	case KindOneshot:
		if _, err := time.Parse(time.RFC3339, s.ISO); err != nil {
			return fmt.Errorf("invalid oneshot instant %q: %w", s.ISO, err)
		}
	case KindInterval:
		if s.EveryMs <= 0 {
			return fmt.Errorf("everyMs must be a positive integer, got %d", s.EveryMs)
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	return nil
}
