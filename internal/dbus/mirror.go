package dbus

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
)

// ActionTarget receives actions the user invoked on the desktop.
// *display.Manager satisfies it.
type ActionTarget interface {
	Attach(id string) error
	Waypoint(id string) error
	Dismiss(id string) bool
}

// Mirror is a display sink that keeps one desktop notification per
// on-screen call. Desktop notifications never expire on their own; the
// mirror closes them when the call leaves the HUD.
type Mirror struct {
	notifier Notifier
	appName  string
	logger   *slog.Logger

	mu     sync.Mutex
	byCall map[string]uint32 // call id -> notification id
	byNote map[uint32]string // notification id -> call id
	target ActionTarget
}

// NewMirror creates a mirror that sends notifications through n.
func NewMirror(n Notifier, appName string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		notifier: n,
		appName:  appName,
		logger:   logger,
		byCall:   make(map[string]uint32),
		byNote:   make(map[uint32]string),
	}
}

// SetActionTarget sets where desktop actions are routed.
func (m *Mirror) SetActionTarget(t ActionTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = t
}

// HandleEvent implements display.Sink.
func (m *Mirror) HandleEvent(ev display.Event) {
	switch {
	case ev.Type == display.EventShown || ev.Type == display.EventUpdated:
		m.show(ev.Call)
	case ev.Type.Closed():
		m.close(ev.Call.ID, ev.Type)
	}
}

func (m *Mirror) show(call model.Call) {
	m.mu.Lock()
	replaces := m.byCall[call.ID]
	m.mu.Unlock()

	id, err := m.notifier.Notify(BuildNotification(call, m.appName, replaces))
	if err != nil {
		m.logger.Warn("failed to mirror call", "id", call.ID, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if replaces != 0 && replaces != id {
		delete(m.byNote, replaces)
	}
	m.byCall[call.ID] = id
	m.byNote[id] = call.ID
}

func (m *Mirror) close(callID string, reason display.EventType) {
	m.mu.Lock()
	id, ok := m.byCall[callID]
	if ok {
		delete(m.byCall, callID)
		delete(m.byNote, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := m.notifier.CloseNotification(id); err != nil {
		m.logger.Warn("failed to close mirrored call",
			"id", callID, "notification_id", id, "reason", reason, "error", err)
	}
}

// HandleActionInvoked routes a desktop action to the action target.
func (m *Mirror) HandleActionInvoked(id uint32, actionKey string) {
	m.mu.Lock()
	callID, ok := m.byNote[id]
	target := m.target
	m.mu.Unlock()

	if !ok || target == nil {
		return
	}

	var err error
	switch actionKey {
	case ActionAttach, "default":
		err = target.Attach(callID)
	case ActionWaypoint:
		err = target.Waypoint(callID)
	default:
		m.logger.Debug("ignoring unknown desktop action", "id", callID, "action", actionKey)
		return
	}
	if err != nil {
		m.logger.Warn("desktop action failed", "id", callID, "action", actionKey, "error", err)
	}
}

// HandleNotificationClosed forgets notifications the daemon closed and
// dismisses the call when the user closed it on the desktop.
func (m *Mirror) HandleNotificationClosed(id uint32, reason CloseReason) {
	m.mu.Lock()
	callID, ok := m.byNote[id]
	if ok {
		delete(m.byNote, id)
		delete(m.byCall, callID)
	}
	target := m.target
	m.mu.Unlock()

	if !ok {
		return
	}

	m.logger.Debug("desktop notification closed", "id", callID, "reason", reason)
	if reason == CloseReasonDismissed && target != nil {
		target.Dismiss(callID)
	}
}

// CloseAll closes every mirrored notification. Used at shutdown, when
// calls leave the screen without close events.
func (m *Mirror) CloseAll() {
	m.mu.Lock()
	ids := make([]uint32, 0, len(m.byNote))
	for id := range m.byNote {
		ids = append(ids, id)
	}
	m.byCall = make(map[string]uint32)
	m.byNote = make(map[uint32]string)
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.notifier.CloseNotification(id); err != nil {
			m.logger.Debug("failed to close mirrored notification", "notification_id", id, "error", err)
		}
	}
}

// Tracked returns the number of mirrored calls.
func (m *Mirror) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCall)
}

// BuildNotification maps a call onto Notify arguments.
func BuildNotification(call model.Call, appName string, replaces uint32) *Notification {
	summary := call.Offense
	if call.Code != "" {
		summary = "[" + call.Code + "] " + call.Offense
	}

	var body []string
	if call.HasLocation() {
		body = append(body, "Location: "+call.Info.Location)
	}
	if call.HasPlate() {
		body = append(body, "Plate: "+call.Info.Plate)
	}
	if call.HasVehicle() {
		body = append(body, "Vehicle: "+call.Info.Vehicle)
	}

	return &Notification{
		AppName:    appName,
		ReplacesID: replaces,
		AppIcon:    "dialog-warning",
		Summary:    summary,
		Body:       strings.Join(body, "\n"),
		Actions: []string{
			ActionAttach, "Attach",
			ActionWaypoint, "Add waypoint",
		},
		Hints: map[string]dbus.Variant{
			"urgency":           dbus.MakeVariant(UrgencyCritical),
			"category":          dbus.MakeVariant("call"),
			"transient":         dbus.MakeVariant(true),
			"x-dunst-stack-tag": dbus.MakeVariant(call.ID),
		},
		ExpireTimeout: 0,
	}
}
