package dbus

import (
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
)

type fakeNotifier struct {
	nextID   uint32
	notified []*Notification
	closed   []uint32
	err      error
}

func (f *fakeNotifier) Notify(n *Notification) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.notified = append(f.notified, n)
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeNotifier) CloseNotification(id uint32) error {
	f.closed = append(f.closed, id)
	return f.err
}

type fakeTarget struct {
	attached  []string
	waypoints []string
	dismissed []string
}

func (f *fakeTarget) Attach(id string) error {
	f.attached = append(f.attached, id)
	return nil
}

func (f *fakeTarget) Waypoint(id string) error {
	f.waypoints = append(f.waypoints, id)
	return nil
}

func (f *fakeTarget) Dismiss(id string) bool {
	f.dismissed = append(f.dismissed, id)
	return true
}

func testCall(id string) model.Call {
	return model.Call{
		ID:      id,
		Offense: "Store Robbery",
		Code:    "10-90",
		Info: model.Info{
			Time:     time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			Location: "Innocence Blvd",
		},
	}
}

func event(typ display.EventType, call model.Call) display.Event {
	return display.Event{Type: typ, Call: call}
}

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestBuildNotification(t *testing.T) {
	call := testCall("c1")
	call.Info.Plate = "46EEK572"

	n := BuildNotification(call, "callhud", 7)

	assert.Equal(t, "callhud", n.AppName)
	assert.Equal(t, uint32(7), n.ReplacesID)
	assert.Equal(t, "[10-90] Store Robbery", n.Summary)
	assert.Equal(t, "Location: Innocence Blvd\nPlate: 46EEK572", n.Body)
	assert.Equal(t, int32(0), n.ExpireTimeout)
	assert.Equal(t, UrgencyCritical, n.Urgency())
	assert.Equal(t, "c1", n.StackTag())
	assert.Equal(t, []Action{
		{Key: ActionAttach, Label: "Attach"},
		{Key: ActionWaypoint, Label: "Add waypoint"},
	}, n.ParsedActions())

	args := n.Args()
	require.Len(t, args, 8)
	assert.Equal(t, "callhud", args[0])
	assert.Equal(t, uint32(7), args[1])
	assert.Equal(t, int32(0), args[7])
}

func TestNotification_Defaults(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, UrgencyNormal, n.Urgency())
	assert.Equal(t, "", n.StackTag())
	assert.Equal(t, []Action{}, n.ParsedActions())

	args := n.Args()
	assert.Equal(t, []string{}, args[5])
	assert.Equal(t, map[string]dbus.Variant{}, args[6])
}

func TestParsedActions_OddCount(t *testing.T) {
	n := &Notification{Actions: []string{"default", "Open", "orphan"}}
	assert.Equal(t, []Action{{Key: "default", Label: "Open"}}, n.ParsedActions())
}

func TestMirror_Lifecycle(t *testing.T) {
	notifier := &fakeNotifier{}
	m := NewMirror(notifier, "callhud", nil)

	m.HandleEvent(event(display.EventShown, testCall("c1")))
	m.HandleEvent(event(display.EventShown, testCall("c2")))
	require.Len(t, notifier.notified, 2)
	assert.Equal(t, 2, m.Tracked())

	// Updates replace the existing desktop notification
	moved := testCall("c1")
	moved.Info.Location = "Route 68"
	m.HandleEvent(event(display.EventUpdated, moved))
	require.Len(t, notifier.notified, 3)
	assert.Equal(t, uint32(1), notifier.notified[2].ReplacesID)

	m.HandleEvent(event(display.EventWaypoint, testCall("c1")))
	assert.Len(t, notifier.notified, 3, "waypoint does not re-notify")

	m.HandleEvent(event(display.EventExpired, testCall("c1")))
	m.HandleEvent(event(display.EventDismissed, testCall("c2")))
	assert.Equal(t, []uint32{1, 2}, notifier.closed)
	assert.Equal(t, 0, m.Tracked())

	// Closing an untracked call is a no-op
	m.HandleEvent(event(display.EventAttached, testCall("c1")))
	assert.Equal(t, []uint32{1, 2}, notifier.closed)
}

func TestMirror_NotifyFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("no daemon")}
	m := NewMirror(notifier, "callhud", nil)

	m.HandleEvent(event(display.EventShown, testCall("c1")))
	assert.Equal(t, 0, m.Tracked())

	m.HandleEvent(event(display.EventExpired, testCall("c1")))
	assert.Empty(t, notifier.closed)
}

func TestMirror_Actions(t *testing.T) {
	notifier := &fakeNotifier{}
	target := &fakeTarget{}
	m := NewMirror(notifier, "callhud", nil)
	m.SetActionTarget(target)

	m.HandleEvent(event(display.EventShown, testCall("c1")))
	m.HandleEvent(event(display.EventShown, testCall("c2")))

	m.HandleActionInvoked(1, ActionWaypoint)
	m.HandleActionInvoked(2, ActionAttach)
	m.HandleActionInvoked(2, "unknown")
	m.HandleActionInvoked(99, ActionAttach)

	assert.Equal(t, []string{"c1"}, target.waypoints)
	assert.Equal(t, []string{"c2"}, target.attached)
}

func TestMirror_DesktopClose(t *testing.T) {
	tests := []struct {
		name          string
		reason        CloseReason
		wantDismissed []string
	}{
		{"user dismissed on desktop", CloseReasonDismissed, []string{"c1"}},
		{"daemon expired it", CloseReasonExpired, nil},
		{"closed by request", CloseReasonClosed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			target := &fakeTarget{}
			m := NewMirror(notifier, "callhud", nil)
			m.SetActionTarget(target)

			m.HandleEvent(event(display.EventShown, testCall("c1")))
			m.HandleNotificationClosed(1, tt.reason)

			assert.Equal(t, tt.wantDismissed, target.dismissed)
			assert.Equal(t, 0, m.Tracked())

			// The HUD's own close event no longer reaches the daemon
			m.HandleEvent(event(display.EventDismissed, testCall("c1")))
			assert.Empty(t, notifier.closed)
		})
	}
}

func TestMirror_CloseAll(t *testing.T) {
	notifier := &fakeNotifier{}
	m := NewMirror(notifier, "callhud", nil)

	m.HandleEvent(event(display.EventShown, testCall("c1")))
	m.HandleEvent(event(display.EventShown, testCall("c2")))
	m.CloseAll()

	assert.ElementsMatch(t, []uint32{1, 2}, notifier.closed)
	assert.Equal(t, 0, m.Tracked())

	m.CloseAll()
	assert.Len(t, notifier.closed, 2)
}
