package dbus

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Notifier is the subset of the notification daemon the mirror calls.
type Notifier interface {
	Notify(n *Notification) (uint32, error)
	CloseNotification(id uint32) error
}

// Client talks to the notification daemon on the session bus.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// Connect opens a private session bus connection.
func Connect(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Client{
		conn:   conn,
		obj:    conn.Object(DBusBusName, DBusPath),
		logger: logger,
	}, nil
}

// Notify sends a notification and returns the id the daemon assigned.
func (c *Client) Notify(n *Notification) (uint32, error) {
	var id uint32
	call := c.obj.Call(DBusInterface+".Notify", 0, n.Args()...)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to call Notify: %w", err)
	}

	c.logger.Debug("sent desktop notification",
		"id", id,
		"replaces_id", n.ReplacesID,
		"summary", n.Summary,
	)
	return id, nil
}

// CloseNotification asks the daemon to close a notification.
func (c *Client) CloseNotification(id uint32) error {
	if err := c.obj.Call(DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("failed to call CloseNotification: %w", err)
	}
	c.logger.Debug("closed desktop notification", "id", id)
	return nil
}

// ServerInformation queries the daemon's identity.
func (c *Client) ServerInformation() (ServerInfo, error) {
	var info ServerInfo
	call := c.obj.Call(DBusInterface+".GetServerInformation", 0)
	if err := call.Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion); err != nil {
		return ServerInfo{}, fmt.Errorf("failed to call GetServerInformation: %w", err)
	}
	return info, nil
}

// Capabilities queries the capabilities the daemon advertises.
func (c *Client) Capabilities() ([]string, error) {
	var caps []string
	if err := c.obj.Call(DBusInterface+".GetCapabilities", 0).Store(&caps); err != nil {
		return nil, fmt.Errorf("failed to call GetCapabilities: %w", err)
	}
	return caps, nil
}

// Connection returns the underlying D-Bus connection.
func (c *Client) Connection() *dbus.Conn {
	return c.conn
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
