// Package dbus mirrors on-screen calls to the desktop notification daemon
// over the org.freedesktop.Notifications D-Bus interface.
//
// The mirror is a display event sink: it sends Notify when a call is shown
// or updated and CloseNotification when it leaves the screen. Actions the
// user invokes on the desktop notification are routed back to the HUD.
package dbus
