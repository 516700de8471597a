// Package rtcore implements the DMX512 frame engine and command dispatcher
// that run on the real-time core. Two hardware variants exist, selected at
// compile time: `largecore` (RT-Thread-class MCU, two threads) and
// `tinycore` (bare Cortex-M0+, one cooperative loop). This file defines the
// Engine contract both variants implement; software.go adds a software-only
// Engine used by cmd/dmxsim and by Linux-side tests where no real UART exists.
package rtcore

import "errors"

// ErrRange is returned when a channel range or timing value falls outside
// the values the engine accepts.
var ErrRange = errors.New("rtcore: value out of range")

// Timing constraints, mirrored from the wire protocol's documented ranges.
const (
	MinRefreshHz = 1
	MaxRefreshHz = 44
	MinBreakUs   = 88
	MaxBreakUs   = 1000
	MinMABUs     = 8
	MaxMABUs     = 100

	DefaultRefreshHz = 44
	DefaultBreakUs   = 150
	DefaultMABUs     = 12
)

// NumChannels is the DMX512 universe size.
const NumChannels = 512

// Status is the frame engine's point-in-time state, returned by Status().
type Status struct {
	Enabled    bool
	FrameCount uint32
	FPSHundred uint32 // frames per second * 100
}

// Timing is the current frame-rate/BREAK/MAB configuration.
type Timing struct {
	RefreshHz uint16
	BreakUs   uint16
	MABUs     uint16
}

// Engine is the frame engine's public contract (spec C2): own the universe
// buffer, hold the line at 250kBaud 8N2, and emit one frame every
// 1/refresh_hz seconds while enabled. Every method is safe to call from the
// command dispatcher's goroutine/loop while the transmit side runs
// concurrently (or cooperatively, on tinycore).
type Engine interface {
	// Enable starts continuous frame emission. Idempotent.
	Enable()
	// Disable stops emission after the current frame finishes. Idempotent.
	Disable()
	// SetChannels commits values into the universe starting at start (a
	// 0-based slot), under exclusive access. Returns ErrRange if
	// start+len(values) > NumChannels.
	SetChannels(start int, values []byte) error
	// Blackout sets every channel to 0. The start code is unaffected.
	Blackout()
	// SetTiming updates refresh rate / BREAK / MAB. A zero field leaves
	// that value unchanged. Returns ErrRange for an out-of-range non-zero
	// value.
	SetTiming(t Timing) error
	// GetTiming returns the current timing configuration.
	GetTiming() Timing
	// Status reports enabled state, frame count, and measured fps.
	Status() Status
}
