// Package daemon wires the toast engine to the outside world for toastd.
// It maps freedesktop notification ids onto engine ids, arms the auto-dismiss
// timers, plays notification sounds and reloads the configuration file.
package daemon
