// Package dbus implements the org.freedesktop.Notifications D-Bus interface
// and the toastd control interface.
//
// The notification server receives notifications from applications and
// exposes GetCapabilities, Notify, CloseNotification, and GetServerInformation
// per the freedesktop.org notification specification. The control interface,
// io.github.jmylchreest.toastd.Control, exposes the engine operations to
// toastctl and to surface content.
package dbus
