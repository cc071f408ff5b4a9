package lifecycle

import (
	"slices"
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
// Cancel is idempotent and safe to call after the callback has fired.
type Handle interface {
	Cancel()
}

// Scheduler runs deferred callbacks.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// Schedule runs onFire once after delay unless the handle is cancelled.
	Schedule(delay time.Duration, onFire func()) Handle
}

// TimerScheduler schedules callbacks on the runtime timer heap.
type TimerScheduler struct{}

// NewTimerScheduler returns a wall-clock scheduler.
func NewTimerScheduler() TimerScheduler {
	return TimerScheduler{}
}

// Now returns the wall-clock time.
func (TimerScheduler) Now() time.Time {
	return time.Now()
}

// Schedule runs onFire on its own goroutine after delay.
func (TimerScheduler) Schedule(delay time.Duration, onFire func()) Handle {
	return timerHandle{timer: time.AfterFunc(delay, onFire)}
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Cancel() {
	h.timer.Stop()
}

// ManualScheduler is a virtual clock. Callbacks fire only from Advance,
// on the caller's goroutine, in deadline order (ties in scheduling order).
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	s      *ManualScheduler
	at     time.Time
	seq    uint64
	onFire func()
}

// NewManualScheduler creates a virtual clock starting at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the virtual time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers onFire to run once the clock reaches now+delay.
func (s *ManualScheduler) Schedule(delay time.Duration, onFire func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, at: s.now.Add(delay), seq: s.seq, onFire: onFire}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that falls due.
// Callbacks run without the scheduler lock held and may schedule or cancel.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		s.removeLocked(next)
		s.mu.Unlock()

		next.onFire()
	}
}

// Pending returns the number of callbacks that have not fired or been cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ManualScheduler) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range s.pending {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (s *ManualScheduler) removeLocked(t *manualTimer) {
	s.pending = slices.DeleteFunc(s.pending, func(p *manualTimer) bool { return p == t })
}

func (t *manualTimer) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.removeLocked(t)
}
