package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/lifecycle"
	"github.com/jmylchreest/callhud/internal/model"
	"github.com/jmylchreest/callhud/internal/queue"
)

var epoch = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testCall(id string) model.Call {
	return model.Call{
		ID:      id,
		Offense: "Pursuit in Progress",
		Code:    "10-80",
		Info: model.Info{
			Time:     epoch,
			Location: "Great Ocean Hwy",
			Plate:    "03ABC123",
			Vehicle:  "Bravado Buffalo",
		},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) HandleEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) summary() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type.String()+":"+ev.Call.ID)
	}
	return out
}

type fixture struct {
	sched   *lifecycle.ManualScheduler
	queue   *queue.Queue
	manager *Manager
	log     *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		sched: lifecycle.NewManualScheduler(epoch),
		queue: queue.New(),
		log:   &eventLog{},
	}
	f.manager = NewManager(f.queue, config.DefaultConfig(), f.sched, nil)
	f.manager.AddSink(f.log)

	t.Cleanup(func() {
		f.manager.Close()
		f.queue.Close()
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.sched.Advance(d)
	f.manager.Flush()
}

func (f *fixture) push(t *testing.T, calls ...model.Call) {
	t.Helper()
	for _, c := range calls {
		require.NoError(t, f.queue.Push(c))
	}
	f.manager.Flush()
}

func TestManager_ExpiresAfterTimeout(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"), testCall("c2"))

	assert.Equal(t, 2, f.manager.ActiveCount())
	assert.Equal(t, []string{"shown:c1", "shown:c2"}, f.log.summary())

	f.advance(4999 * time.Millisecond)
	assert.Equal(t, 2, f.queue.Len())

	f.advance(time.Millisecond)
	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, 0, f.manager.ActiveCount())
	assert.Equal(t, []string{"shown:c1", "shown:c2", "expired:c1", "expired:c2"}, f.log.summary())
}

func TestManager_DismissCancelsTimer(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"), testCall("c2"))

	f.advance(2000 * time.Millisecond)
	assert.True(t, f.manager.Dismiss("c1"))
	assert.False(t, f.manager.Dismiss("c1"), "second dismissal is a no-op")
	assert.Equal(t, 1, f.sched.Pending(), "c1's timer was cancelled")

	f.advance(3000 * time.Millisecond)
	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, []string{"shown:c1", "shown:c2", "dismissed:c1", "expired:c2"}, f.log.summary())
}

func TestManager_UpdateKeepsDeadline(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"))

	f.advance(4 * time.Second)

	updated := testCall("c1")
	updated.Info.Location = "Route 68"
	f.push(t, updated)

	assert.Equal(t, 1, f.sched.Pending(), "no second timer")
	assert.Equal(t, time.Second, f.manager.Remaining("c1"))

	// Re-pushing the identical call is not an update
	f.push(t, updated)

	f.advance(time.Second)
	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, []string{"shown:c1", "updated:c1", "expired:c1"}, f.log.summary())
}

func TestManager_Isolation(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("a"))
	f.advance(3 * time.Second)
	f.push(t, testCall("b"))

	f.advance(2 * time.Second)
	assert.False(t, f.queue.Contains("a"))
	assert.True(t, f.queue.Contains("b"))

	state, ok := f.manager.State("b")
	require.True(t, ok)
	assert.Equal(t, lifecycle.StateActive, state)
	assert.Equal(t, 3*time.Second, f.manager.Remaining("b"))
}

func TestManager_ExistingCallsGetControllers(t *testing.T) {
	sched := lifecycle.NewManualScheduler(epoch)
	q := queue.New()
	defer q.Close()
	require.NoError(t, q.Push(testCall("early")))

	m := NewManager(q, nil, sched, nil)
	defer m.Close()

	assert.Equal(t, 1, m.ActiveCount())
	sched.Advance(lifecycle.DefaultDelay)
	assert.False(t, q.Contains("early"))
}

func TestManager_ReappearingIDGetsFreshController(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"))
	f.advance(5 * time.Second)
	require.False(t, f.queue.Contains("c1"))

	f.advance(10 * time.Second)
	f.push(t, testCall("c1"))
	assert.Equal(t, 5*time.Second, f.manager.Remaining("c1"))

	f.advance(5 * time.Second)
	assert.Equal(t, []string{"shown:c1", "expired:c1", "shown:c1", "expired:c1"}, f.log.summary())
}

func TestManager_ExternalUpdateRemoval(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"), testCall("c2"))

	require.NoError(t, f.queue.Update(func(calls []model.Call) []model.Call {
		return queue.Without(calls, "c2")
	}))
	f.manager.Flush()

	_, ok := f.manager.State("c2")
	assert.False(t, ok)
	assert.Equal(t, 1, f.sched.Pending())
	assert.Contains(t, f.log.summary(), "dismissed:c2")
}

type actionRecorder struct {
	attached  []string
	waypoints []string
	err       error
}

func (a *actionRecorder) Attach(call model.Call) error {
	a.attached = append(a.attached, call.ID)
	return a.err
}

func (a *actionRecorder) Waypoint(call model.Call) error {
	a.waypoints = append(a.waypoints, call.ID)
	return a.err
}

func TestManager_Attach(t *testing.T) {
	f := newFixture(t)
	actions := &actionRecorder{}
	f.manager.SetActionHandler(actions)
	f.push(t, testCall("c1"), testCall("c2"))

	require.NoError(t, f.manager.Attach("c1"))
	f.manager.Flush()

	assert.Equal(t, []string{"c1"}, actions.attached)
	assert.False(t, f.queue.Contains("c1"))
	assert.Equal(t, []string{"shown:c1", "shown:c2", "attached:c1"}, f.log.summary())

	assert.ErrorIs(t, f.manager.Attach("c1"), ErrUnknownCall)
}

func TestManager_AttachHandlerErrorStillRemoves(t *testing.T) {
	f := newFixture(t)
	actions := &actionRecorder{err: errors.New("mdt offline")}
	f.manager.SetActionHandler(actions)
	f.push(t, testCall("c1"))

	err := f.manager.Attach("c1")
	assert.EqualError(t, err, "mdt offline")
	assert.False(t, f.queue.Contains("c1"))
}

func TestManager_RemovalInExpiryGap(t *testing.T) {
	tests := []struct {
		name   string
		remove func(t *testing.T, m *Manager, id string)
		want   string
	}{
		{"dismiss", func(t *testing.T, m *Manager, id string) { assert.True(t, m.Dismiss(id)) }, "dismissed:c1"},
		{"attach", func(t *testing.T, m *Manager, id string) { assert.NoError(t, m.Attach(id)) }, "attached:c1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			expire := f.manager.expiry
			// The controller is already expired when the user acts, but its
			// own removal has not reached the queue yet
			f.manager.expiry = lifecycle.RemoverFunc(func(id string) {
				tt.remove(t, f.manager, id)
				expire.Remove(id)
			})

			f.push(t, testCall("c1"))
			f.advance(lifecycle.DefaultDelay)

			assert.False(t, f.queue.Contains("c1"))
			assert.Equal(t, []string{"shown:c1", tt.want}, f.log.summary())
		})
	}
}

func TestManager_ExpiryAfterUserRemoval(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("c1"))

	// A late expiry removal of an already dismissed call changes nothing
	require.True(t, f.manager.Dismiss("c1"))
	f.manager.expiry.Remove("c1")
	f.manager.Flush()

	assert.Equal(t, []string{"shown:c1", "dismissed:c1"}, f.log.summary())
}

func TestManager_Waypoint(t *testing.T) {
	f := newFixture(t)
	actions := &actionRecorder{}
	f.manager.SetActionHandler(actions)
	f.push(t, testCall("c1"))

	require.NoError(t, f.manager.Waypoint("c1"))
	f.manager.Flush()

	assert.Equal(t, []string{"c1"}, actions.waypoints)
	assert.True(t, f.queue.Contains("c1"), "waypoint keeps the call on screen")
	assert.Equal(t, []string{"shown:c1", "waypoint:c1"}, f.log.summary())
	assert.ErrorIs(t, f.manager.Waypoint("missing"), ErrUnknownCall)
}

func TestManager_UpdateConfigAffectsNewCallsOnly(t *testing.T) {
	f := newFixture(t)
	f.push(t, testCall("old"))

	cfg := config.DefaultConfig()
	cfg.Notification.Timeout = config.Duration(10 * time.Second)
	f.manager.UpdateConfig(cfg)
	f.push(t, testCall("new"))

	assert.Equal(t, 5*time.Second, f.manager.Remaining("old"))
	assert.Equal(t, 10*time.Second, f.manager.Remaining("new"))

	f.advance(5 * time.Second)
	assert.False(t, f.queue.Contains("old"))
	assert.True(t, f.queue.Contains("new"))
}

func TestManager_CloseStopsWithoutRemoving(t *testing.T) {
	sched := lifecycle.NewManualScheduler(epoch)
	q := queue.New()
	defer q.Close()

	m := NewManager(q, nil, sched, nil)
	require.NoError(t, q.Push(testCall("c1")))

	m.Close()
	m.Close()
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(time.Minute)
	assert.True(t, q.Contains("c1"))
}

func TestManager_Run(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.manager.Run(ctx) }()

	require.NoError(t, f.queue.Push(testCall("c1")))
	require.Eventually(t, func() bool {
		return len(f.log.summary()) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestEventType(t *testing.T) {
	tests := []struct {
		typ    EventType
		name   string
		closed bool
	}{
		{EventShown, "shown", false},
		{EventUpdated, "updated", false},
		{EventExpired, "expired", true},
		{EventDismissed, "dismissed", true},
		{EventAttached, "attached", true},
		{EventWaypoint, "waypoint", false},
		{EventType(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.typ.String())
			assert.Equal(t, tt.closed, tt.typ.Closed())
		})
	}
}
