package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// SignalHandler receives notification signals from the daemon.
type SignalHandler interface {
	HandleActionInvoked(id uint32, actionKey string)
	HandleNotificationClosed(id uint32, reason CloseReason)
}

// Listen subscribes to ActionInvoked and NotificationClosed and dispatches
// them to h until ctx is done.
func (c *Client) Listen(ctx context.Context, h SignalHandler) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return fmt.Errorf("failed to add signal match: %w", err)
	}
	defer func() {
		if err := c.conn.RemoveMatchSignal(opts...); err != nil {
			c.logger.Debug("failed to remove signal match", "error", err)
		}
	}()

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			c.dispatch(sig, h)
		}
	}
}

func (c *Client) dispatch(sig *dbus.Signal, h SignalHandler) {
	switch sig.Name {
	case DBusInterface + ".ActionInvoked":
		if len(sig.Body) < 2 {
			c.logger.Warn("malformed ActionInvoked signal", "body_len", len(sig.Body))
			return
		}
		id, ok1 := sig.Body[0].(uint32)
		key, ok2 := sig.Body[1].(string)
		if !ok1 || !ok2 {
			c.logger.Warn("invalid ActionInvoked argument types")
			return
		}
		h.HandleActionInvoked(id, key)

	case DBusInterface + ".NotificationClosed":
		if len(sig.Body) < 2 {
			c.logger.Warn("malformed NotificationClosed signal", "body_len", len(sig.Body))
			return
		}
		id, ok1 := sig.Body[0].(uint32)
		reason, ok2 := sig.Body[1].(uint32)
		if !ok1 || !ok2 {
			c.logger.Warn("invalid NotificationClosed argument types")
			return
		}
		h.HandleNotificationClosed(id, CloseReason(reason))
	}
}
