package heartbeat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler fires the callback every interval while the local hour is
// inside the active window [startHour, endHour).
type Scheduler struct {
	interval  time.Duration
	startHour int
	endHour   int
	onTick    func()

	now func() time.Time // stubbed in tests

	mu      sync.Mutex
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool
}

// NewScheduler builds a scheduler; onTick typically enqueues a heartbeat
// message on the dispatch queue.
func NewScheduler(intervalMinutes, startHour, endHour int, onTick func()) *Scheduler {
	return &Scheduler{
		interval:  time.Duration(intervalMinutes) * time.Minute,
		startHour: startHour,
		endHour:   endHour,
		onTick:    onTick,
		now:       time.Now,
	}
}

// Start launches the ticking goroutine. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.interval)
	s.stopCh = make(chan struct{})

	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}(s.ticker, s.stopCh)

	slog.Info("heartbeat.started",
		"interval", s.interval.String(),
		"activeHours", s.windowString())
}

// Stop makes any pending tick a no-op and releases the timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.stopCh)
	slog.Info("heartbeat.stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	if !s.inActiveWindow(s.now()) {
		slog.Debug("heartbeat.outside_active_hours", "window", s.windowString())
		return
	}
	s.onTick()
}

// inActiveWindow checks local time against [startHour, endHour).
func (s *Scheduler) inActiveWindow(t time.Time) bool {
	hour := t.Local().Hour()
	return hour >= s.startHour && hour < s.endHour
}

func (s *Scheduler) windowString() string {
	return fmt.Sprintf("%d-%d", s.startHour, s.endHour)
}
