package display

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/lifecycle"
	"github.com/jmylchreest/callhud/internal/model"
	"github.com/jmylchreest/callhud/internal/queue"
)

// ErrUnknownCall is returned by actions on a call that is not queued.
var ErrUnknownCall = errors.New("call is not on screen")

// Manager owns one lifecycle controller per queued call.
//
// It observes the queue and reconciles by id: a new id gets a fresh
// controller, a vanished id has its controller stopped, and an id that is
// still present keeps its controller (and its deadline) untouched, even if
// other fields of the call changed.
type Manager struct {
	queue     *queue.Queue
	scheduler lifecycle.Scheduler
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Handed to controllers; removes with the expired cause
	expiry lifecycle.Remover

	mu          sync.Mutex
	config      *config.Config
	controllers map[string]*lifecycle.Controller
	actions     ActionHandler
	closed      bool

	// Pending events, delivered by Flush
	eventsMu sync.Mutex
	pending  []Event
	sinks    []Sink
	notifyCh chan struct{}
}

// NewManager creates a display manager bound to q.
// Calls already queued get controllers immediately.
func NewManager(q *queue.Queue, cfg *config.Config, scheduler lifecycle.Scheduler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if scheduler == nil {
		scheduler = lifecycle.NewTimerScheduler()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		queue:       q,
		scheduler:   scheduler,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
		controllers: make(map[string]*lifecycle.Controller),
		notifyCh:    make(chan struct{}, 1),
	}
	m.expiry = lifecycle.RemoverFunc(func(id string) {
		q.RemoveWithCause(id, EventExpired.String())
	})

	q.Observe(m.reconcile)
	return m
}

// AddSink registers an event sink.
func (m *Manager) AddSink(s Sink) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.sinks = append(m.sinks, s)
}

// SetActionHandler sets the collaborator for attach and waypoint actions.
func (m *Manager) SetActionHandler(h ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = h
}

// UpdateConfig swaps the configuration. Only calls that arrive afterwards
// use the new timeout; running controllers keep their deadlines.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	old := m.config.Timeout()
	m.config = cfg
	m.mu.Unlock()

	m.logger.Debug("display manager config updated",
		"old_timeout", old,
		"new_timeout", cfg.Timeout(),
	)
}

// reconcile is the queue observer. It runs under the queue's writer lock,
// so it must not call back into the queue.
func (m *Manager) reconcile(calls []model.Call, change queue.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	now := m.scheduler.Now()
	present := make(map[string]struct{}, len(calls))
	for _, c := range calls {
		present[c.ID] = struct{}{}
	}

	// Tear down controllers whose call left the queue
	for id, ctrl := range m.controllers {
		if _, ok := present[id]; ok {
			continue
		}

		ctrl.Stop()
		evType := closeReason(id, ctrl, change)

		delete(m.controllers, id)
		m.emit(Event{Type: evType, Call: ctrl.Call(), At: now})

		m.logger.Debug("closed call",
			"id", id,
			"reason", evType,
			"active_calls", len(m.controllers),
		)
	}

	// Start controllers for new ids, refresh the rest in place
	for _, call := range calls {
		if ctrl, ok := m.controllers[call.ID]; ok {
			if ctrl.Call() != call && ctrl.Refresh(call) {
				m.emit(Event{Type: EventUpdated, Call: call, At: now})
			}
			continue
		}

		timeout := m.config.Timeout()
		ctrl := lifecycle.NewController(call, timeout, m.scheduler, m.expiry)
		ctrl.StartContext(m.ctx)
		m.controllers[call.ID] = ctrl
		m.emit(Event{Type: EventShown, Call: call, At: now})

		m.logger.Debug("showed call",
			"id", call.ID,
			"code", call.Code,
			"timeout", timeout,
			"change", change.Type,
			"active_calls", len(m.controllers),
		)
	}
}

// closeReason names the event for a call that left the queue. The caller
// whose removal took effect decides; removals from outside the manager are
// dismissals unless the controller had already expired.
func closeReason(id string, ctrl *lifecycle.Controller, change queue.ChangeEvent) EventType {
	if change.Type == queue.ChangeTypeRemove && change.ID == id {
		switch change.Cause {
		case EventExpired.String():
			return EventExpired
		case EventDismissed.String():
			return EventDismissed
		case EventAttached.String():
			return EventAttached
		}
	}
	if ctrl.State() == lifecycle.StateExpired {
		return EventExpired
	}
	return EventDismissed
}

// Dismiss removes a call before it expires. Returns false if it was not queued.
func (m *Manager) Dismiss(id string) bool {
	return m.queue.RemoveWithCause(id, EventDismissed.String())
}

// Attach hands the call to the action handler and removes it from the screen.
// The call is removed even if the handler fails.
func (m *Manager) Attach(id string) error {
	call, ok := m.queue.Get(id)
	if !ok {
		return ErrUnknownCall
	}

	m.mu.Lock()
	handler := m.actions
	m.mu.Unlock()

	var err error
	if handler != nil {
		if err = handler.Attach(call); err != nil {
			m.logger.Warn("attach handler failed", "id", id, "error", err)
		}
	}

	// A no-op if the call expired meanwhile; the event then says expired
	m.queue.RemoveWithCause(id, EventAttached.String())
	return err
}

// Waypoint asks the action handler to mark the call's location.
// The call stays on screen.
func (m *Manager) Waypoint(id string) error {
	call, ok := m.queue.Get(id)
	if !ok {
		return ErrUnknownCall
	}

	m.mu.Lock()
	handler := m.actions
	m.mu.Unlock()

	if handler != nil {
		if err := handler.Waypoint(call); err != nil {
			m.logger.Warn("waypoint handler failed", "id", id, "error", err)
			return err
		}
	}

	m.emit(Event{Type: EventWaypoint, Call: call, At: m.scheduler.Now()})
	return nil
}

// State returns the lifecycle state of the call's controller.
func (m *Manager) State(id string) (lifecycle.State, bool) {
	m.mu.Lock()
	ctrl, ok := m.controllers[id]
	m.mu.Unlock()

	if !ok {
		return 0, false
	}
	return ctrl.State(), true
}

// Remaining returns how long the call has left on screen.
func (m *Manager) Remaining(id string) time.Duration {
	m.mu.Lock()
	ctrl, ok := m.controllers[id]
	m.mu.Unlock()

	if !ok {
		return 0
	}
	return ctrl.Remaining(m.scheduler.Now())
}

// ActiveCount returns the number of live controllers.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Run delivers events to sinks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.Flush()
		select {
		case <-ctx.Done():
			m.Flush()
			return nil
		case <-m.notifyCh:
		}
	}
}

// Flush delivers pending events to sinks on the caller's goroutine.
func (m *Manager) Flush() {
	m.eventsMu.Lock()
	events := m.pending
	m.pending = nil
	sinks := append([]Sink(nil), m.sinks...)
	m.eventsMu.Unlock()

	for _, ev := range events {
		for _, s := range sinks {
			s.HandleEvent(ev)
		}
	}
}

// Close stops every controller without issuing removals.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	controllers := m.controllers
	m.controllers = make(map[string]*lifecycle.Controller)
	m.mu.Unlock()

	for _, ctrl := range controllers {
		ctrl.Stop()
	}
	m.cancel()

	m.logger.Info("display manager stopped", "stopped_calls", len(controllers))
}

// emit queues an event for the next Flush.
func (m *Manager) emit(ev Event) {
	m.eventsMu.Lock()
	m.pending = append(m.pending, ev)
	m.eventsMu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}
