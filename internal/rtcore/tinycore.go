//go:build tinycore

package rtcore

import (
	"sync/atomic"

	"dmx-gateway/internal/rthw"
)

// pollState is dmx_poll's state machine: Idle while waiting for the next
// frame's turn, TxData while incrementally stuffing the 64-byte TX FIFO
// across main-loop iterations.
type pollState int

const (
	pollIdle pollState = iota
	pollTxData
)

// TinyCoreEngine is the single-cooperative-loop variant: there is no OS, no
// goroutines, and no mutex. The main loop calls Poll(now) every iteration
// alongside draining the mailbox ring (see rtipc); Poll advances a small
// state machine rather than blocking, so a slow frame never stalls command
// processing. Mutation methods (SetChannels, etc.) touch the universe
// directly since everything runs on one core with interrupts as the only
// preemption source — the timing-critical section below still disables
// those explicitly.
type TinyCoreEngine struct {
	uart  UARTRegs
	timer rthw.Timer
	irq   rthw.InterruptController

	universe [NumChannels]byte
	timing   Timing

	enabled    bool
	frameCount uint32
	errorCount uint32
	fpsHundred uint32

	state      pollState
	frameBuf   [NumChannels + 1]byte
	txIdx      int
	frameStart uint32
	lastFPSAt  uint32
	lastFrames uint32
}

// NewTinyCoreEngine constructs an idle engine at default timing. Enable
// must still be called before Poll starts emitting frames.
func NewTinyCoreEngine(uart UARTRegs, timer rthw.Timer, irq rthw.InterruptController) *TinyCoreEngine {
	return &TinyCoreEngine{
		uart:   uart,
		timer:  timer,
		irq:    irq,
		timing: Timing{RefreshHz: DefaultRefreshHz, BreakUs: DefaultBreakUs, MABUs: DefaultMABUs},
	}
}

// Poll advances the frame state machine by one main-loop iteration. now is
// a free-running millisecond (or tick) counter; the caller supplies it so
// the engine never reads a system clock itself.
func (e *TinyCoreEngine) Poll(now uint32) {
	if !e.enabled {
		return
	}

	switch e.state {
	case pollIdle:
		period := uint32(1000 / int(e.timing.RefreshHz))
		if e.timing.RefreshHz >= MaxRefreshHz || now-e.frameStart >= period {
			e.beginFrame(now)
		}

	case pollTxData:
		e.stuffFIFO()
	}
}

func (e *TinyCoreEngine) beginFrame(now uint32) {
	if e.uart.USR.Get()&usrTFE == 0 || e.uart.USR.Get()&usrBusy != 0 {
		e.errorCount++
		return
	}

	e.frameBuf[0] = 0x00
	copy(e.frameBuf[1:], e.universe[:])

	// BREAK + MAB: absolute LCR writes, interrupts off for the critical
	// section only, never across the whole frame.
	state := e.irq.Disable()
	e.uart.LCR.Set(lcr8N2 | lcrBreak)
	e.timer.BusyWaitMicros(uint32(e.timing.BreakUs))
	e.uart.LCR.Set(lcr8N2)
	e.timer.BusyWaitMicros(uint32(e.timing.MABUs))
	e.irq.Restore(state)

	e.uart.FCR.Set(fcrFIFOEn)
	e.txIdx = 0
	e.state = pollTxData
	e.frameStart = now
	e.stuffFIFO()
}

// stuffFIFO pushes as many bytes as currently fit without blocking,
// resuming from e.txIdx next call — this is the "incremental FIFO stuffing"
// the tiny-core's cooperative loop requires instead of a blocking write.
func (e *TinyCoreEngine) stuffFIFO() {
	for e.txIdx < len(e.frameBuf) {
		if e.uart.USR.Get()&usrTFNF == 0 {
			return // FIFO full; resume next Poll call
		}
		e.uart.THR.Set(uint32(e.frameBuf[e.txIdx]))
		e.txIdx++
	}

	e.frameCount++
	if e.frameStart-e.lastFPSAt >= 1000 {
		elapsedMs := e.frameStart - e.lastFPSAt
		frames := e.frameCount - e.lastFrames
		if elapsedMs > 0 {
			e.fpsHundred = frames * 100000 / elapsedMs
		}
		e.lastFPSAt = e.frameStart
		e.lastFrames = e.frameCount
	}
	e.state = pollIdle
}

func (e *TinyCoreEngine) Enable() {
	e.enabled = true
	e.frameCount = 0
	e.state = pollIdle
}

func (e *TinyCoreEngine) Disable() { e.enabled = false }

func (e *TinyCoreEngine) SetChannels(start int, values []byte) error {
	if start < 0 || start+len(values) > NumChannels {
		return ErrRange
	}
	copy(e.universe[start:], values)
	return nil
}

func (e *TinyCoreEngine) Blackout() {
	for i := range e.universe {
		e.universe[i] = 0
	}
}

func (e *TinyCoreEngine) SetTiming(t Timing) error {
	if t.RefreshHz != 0 && (t.RefreshHz < MinRefreshHz || t.RefreshHz > MaxRefreshHz) {
		return ErrRange
	}
	if t.BreakUs != 0 && (t.BreakUs < MinBreakUs || t.BreakUs > MaxBreakUs) {
		return ErrRange
	}
	if t.MABUs != 0 && (t.MABUs < MinMABUs || t.MABUs > MaxMABUs) {
		return ErrRange
	}
	if t.RefreshHz != 0 {
		e.timing.RefreshHz = t.RefreshHz
	}
	if t.BreakUs != 0 {
		e.timing.BreakUs = t.BreakUs
	}
	if t.MABUs != 0 {
		e.timing.MABUs = t.MABUs
	}
	return nil
}

func (e *TinyCoreEngine) GetTiming() Timing { return e.timing }

func (e *TinyCoreEngine) Status() Status {
	return Status{Enabled: e.enabled, FrameCount: e.frameCount, FPSHundred: e.fpsHundred}
}

// systemResetGuard is the 4-byte magic CmdSystemReset must match, named
// after the guard in the dispatcher table (tiny-core only).
var systemResetGuard = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

// SystemResetMagic returns the guard bytes, for wiring into Dispatcher.ResetMagic.
func SystemResetMagic() []byte {
	return systemResetGuard[:]
}

// resetRequested lets the main loop know a validated reset command arrived,
// since the actual SoC reset call lives outside this package (it's a
// runtime/arch call, not a frame-engine concern).
var resetRequested atomic.Bool

// ResetRequested reports and clears a pending reset request.
func ResetRequested() bool {
	return resetRequested.Swap(false)
}

func requestReset() { resetRequested.Store(true) }
