// Package display implements the engine's surface and monitor providers on
// GTK4 layer-shell windows. Every GTK call is marshalled onto the GTK main
// loop, so providers must not be called from the main loop itself.
package display
