// Package audio plays an alert when a call appears on the HUD.
// It uses the beep library to play WAV, OGG, and MP3 files, with a
// built-in tone when no file is configured and per-code sound overrides.
package audio
