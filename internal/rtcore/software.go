//go:build !tinycore && !largecore

package rtcore

import (
	"sync"
	"sync/atomic"
	"time"
)

// SoftwareEngine is a software-only implementation of Engine: no UART, no
// interrupts. It runs the same frame-rate bookkeeping as the hardware
// variants on a goroutine, so cmd/dmxsim and Linux-side integration tests
// exercise the exact same public contract the real hardware does. A
// FrameSink, if set, receives each fully assembled 513-byte frame (start
// code + 512 channels) as it would have gone out over the wire.
type SoftwareEngine struct {
	mu       sync.Mutex
	universe [NumChannels]byte
	timing   Timing

	enabled    atomic.Bool
	frameCount atomic.Uint32
	fpsHundred atomic.Uint32

	FrameSink func(frame [NumChannels + 1]byte)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSoftwareEngine returns a stopped engine at default timing.
func NewSoftwareEngine() *SoftwareEngine {
	e := &SoftwareEngine{
		timing: Timing{RefreshHz: DefaultRefreshHz, BreakUs: DefaultBreakUs, MABUs: DefaultMABUs},
	}
	return e
}

// Enable starts the transmit loop goroutine if it isn't already running.
func (e *SoftwareEngine) Enable() {
	if !e.enabled.CompareAndSwap(false, true) {
		return
	}
	e.frameCount.Store(0)
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go e.run(e.stop)
}

// Disable stops the loop after the frame in flight finishes.
func (e *SoftwareEngine) Disable() {
	if !e.enabled.CompareAndSwap(true, false) {
		return
	}
	close(e.stop)
	e.wg.Wait()
}

func (e *SoftwareEngine) run(stop chan struct{}) {
	defer e.wg.Done()

	lastFPSTime := time.Now()
	lastFrameCount := uint32(0)

	for {
		select {
		case <-stop:
			return
		default:
		}

		start := time.Now()

		e.mu.Lock()
		var frame [NumChannels + 1]byte
		frame[0] = 0x00
		copy(frame[1:], e.universe[:])
		timing := e.timing
		e.mu.Unlock()

		if e.FrameSink != nil {
			e.FrameSink(frame)
		}

		n := e.frameCount.Add(1)

		if elapsed := time.Since(lastFPSTime); elapsed >= time.Second {
			frames := n - lastFrameCount
			fps := uint32(float64(frames) * 100 / elapsed.Seconds())
			e.fpsHundred.Store(fps)
			lastFPSTime = time.Now()
			lastFrameCount = n
		}

		if timing.RefreshHz < MaxRefreshHz {
			period := time.Second / time.Duration(timing.RefreshHz)
			if remaining := period - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// SetChannels implements Engine.
func (e *SoftwareEngine) SetChannels(start int, values []byte) error {
	if start < 0 || start+len(values) > NumChannels {
		return ErrRange
	}
	e.mu.Lock()
	copy(e.universe[start:], values)
	e.mu.Unlock()
	return nil
}

// Blackout implements Engine.
func (e *SoftwareEngine) Blackout() {
	e.mu.Lock()
	for i := range e.universe {
		e.universe[i] = 0
	}
	e.mu.Unlock()
}

// SetTiming implements Engine.
func (e *SoftwareEngine) SetTiming(t Timing) error {
	if t.RefreshHz != 0 && (t.RefreshHz < MinRefreshHz || t.RefreshHz > MaxRefreshHz) {
		return ErrRange
	}
	if t.BreakUs != 0 && (t.BreakUs < MinBreakUs || t.BreakUs > MaxBreakUs) {
		return ErrRange
	}
	if t.MABUs != 0 && (t.MABUs < MinMABUs || t.MABUs > MaxMABUs) {
		return ErrRange
	}

	e.mu.Lock()
	defer e.mu.Unlock()
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

// GetTiming implements Engine.
func (e *SoftwareEngine) GetTiming() Timing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timing
}

// Status implements Engine.
func (e *SoftwareEngine) Status() Status {
	return Status{
		Enabled:    e.enabled.Load(),
		FrameCount: e.frameCount.Load(),
		FPSHundred: e.fpsHundred.Load(),
	}
}
