package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/jmylchreest/callhud/internal/model"
)

// DefaultDelay is how long a call stays on screen without outside action.
const DefaultDelay = 5000 * time.Millisecond

// State is the lifecycle state of a controller.
type State uint8

const (
	// StateActive is the initial state: the call is visible and its timer is pending.
	StateActive State = iota
	// StateExpired is terminal: the delay elapsed and removal was requested.
	StateExpired
	// StateCancelled is terminal: the controller was torn down before expiry.
	StateCancelled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateCancelled
}

// Remover drops a call from the shared queue by id.
// Removing an id that is already gone must be a no-op.
type Remover interface {
	Remove(id string)
}

// RemoverFunc adapts a function to Remover.
type RemoverFunc func(id string)

// Remove calls f(id).
func (f RemoverFunc) Remove(id string) {
	f(id)
}

// Controller owns the single Active -> Expired|Cancelled transition of one call.
// Controllers are never reused: a new call id needs a new controller.
type Controller struct {
	mu sync.Mutex

	call      model.Call
	delay     time.Duration
	scheduler Scheduler
	remover   Remover

	state     State
	started   bool
	handle    Handle
	createdAt time.Time

	// Deregisters the StartContext hook
	release func() bool
}

// NewController creates a controller for call. The expiry deadline is
// measured from now (per the scheduler's clock), not from Start.
// A non-positive delay falls back to DefaultDelay.
func NewController(call model.Call, delay time.Duration, scheduler Scheduler, remover Remover) *Controller {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if scheduler == nil {
		scheduler = NewTimerScheduler()
	}

	return &Controller{
		call:      call,
		delay:     delay,
		scheduler: scheduler,
		remover:   remover,
		state:     StateActive,
		createdAt: scheduler.Now(),
	}
}

// Start schedules the expiry timer. Calling Start more than once, or after
// the controller reached a terminal state, does nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.state != StateActive {
		return
	}
	c.started = true

	remaining := c.deadlineLocked().Sub(c.scheduler.Now())
	if remaining < 0 {
		remaining = 0
	}
	c.handle = c.scheduler.Schedule(remaining, c.expire)
}

// StartContext starts the controller and tears it down when ctx is done.
// The hook on ctx is dropped as soon as the controller goes terminal, so a
// long-lived ctx does not keep finished controllers reachable.
func (c *Controller) StartContext(ctx context.Context) {
	c.Start()
	stop := context.AfterFunc(ctx, func() { c.Stop() })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		stop()
		return
	}
	c.release = stop
}

// Stop tears the controller down. If it is still active the timer is
// cancelled and no removal will be issued. Returns true if this call
// performed the Active -> Cancelled transition.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return false
	}
	c.state = StateCancelled
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.releaseLocked()
	return true
}

// expire is the timer callback.
func (c *Controller) expire() {
	c.mu.Lock()
	if c.state != StateActive {
		// Torn down before we got the lock
		c.mu.Unlock()
		return
	}
	c.state = StateExpired
	c.handle = nil
	c.releaseLocked()
	id := c.call.ID
	remover := c.remover
	c.mu.Unlock()

	if remover != nil {
		remover.Remove(id)
	}
}

// Refresh replaces the call's displayed fields. The timer is untouched.
// Returns false if call has a different identity.
func (c *Controller) Refresh(call model.Call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.call.SameIdentity(call) {
		return false
	}
	c.call = call
	return true
}

// ID returns the id of the controlled call.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call.ID
}

// Call returns the controlled call.
func (c *Controller) Call() model.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CreatedAt returns when the controller was created.
func (c *Controller) CreatedAt() time.Time {
	return c.createdAt
}

// ExpiresAt returns the expiry deadline.
func (c *Controller) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadlineLocked()
}

// Remaining returns the time left before expiry at now, or zero once
// the controller is terminal or the deadline has passed.
func (c *Controller) Remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return 0
	}
	return max(c.deadlineLocked().Sub(now), 0)
}

func (c *Controller) releaseLocked() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

func (c *Controller) deadlineLocked() time.Time {
	return c.createdAt.Add(c.delay)
}
