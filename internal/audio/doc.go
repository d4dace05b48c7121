// Package audio plays notification sounds.
// It uses the beep library to play WAV, OGG, and MP3 files with volume
// control and a sound per notification type.
package audio
