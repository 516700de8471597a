//go:build largecore

package rtcore

import (
	"sync"
	"sync/atomic"
	"time"

	"dmx-gateway/internal/rthw"
)

// UART register bit layout, named after the DW_apb_uart-style block the
// large-core SoC exposes directly (no OS serial driver in the TX path).
const (
	lcrBreak  = 1 << 6 // LCR bit 6: break control
	lcr8N2    = 0x07   // 8 data bits, 2 stop, no parity, DLAB=0, BREAK=0
	fcrFIFOEn = 0x07   // enable FIFO, clear RX/TX FIFOs
	usrBusy   = 1 << 0 // shift register still draining
	usrTFNF   = 1 << 1 // TX FIFO not full
	usrTFE    = 1 << 2 // TX FIFO empty
)

// UARTRegs is the subset of the DW_apb_uart register block the frame
// engine drives directly, bypassing any OS serial abstraction.
type UARTRegs struct {
	LCR rthw.Register
	FCR rthw.Register
	USR rthw.Register
	THR rthw.Register
}

const idleWaitIterations = 100000

// LargeCoreEngine is the two-thread frame engine: a transmit loop (this
// type's run goroutine) and the command-dispatch side sharing one mutex
// over the universe buffer. Grounded on the RT-Thread driver's
// dmx_tx_thread_entry loop, translated to a goroutine since the large-core
// variant otherwise has an RTOS-equivalent scheduler available.
type LargeCoreEngine struct {
	uart  UARTRegs
	timer rthw.Timer
	irq   rthw.InterruptController

	mu       sync.Mutex
	universe [NumChannels]byte
	timing   Timing

	enabled    atomic.Bool
	running    atomic.Bool
	frameCount atomic.Uint32
	errorCount atomic.Uint32
	fpsHundred atomic.Uint32

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewLargeCoreEngine wires the engine to its UART register block, a
// free-running timer, and an interrupt controller, and starts the
// dedicated TX goroutine (which idles until Enable is called).
func NewLargeCoreEngine(uart UARTRegs, timer rthw.Timer, irq rthw.InterruptController) *LargeCoreEngine {
	e := &LargeCoreEngine{
		uart:   uart,
		timer:  timer,
		irq:    irq,
		timing: Timing{RefreshHz: DefaultRefreshHz, BreakUs: DefaultBreakUs, MABUs: DefaultMABUs},
	}
	e.running.Store(true)
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *LargeCoreEngine) run() {
	defer e.wg.Done()

	lastFPSTime := time.Now()
	lastFrameCount := uint32(0)

	for e.running.Load() {
		if !e.enabled.Load() {
			select {
			case <-e.stop:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		start := time.Now()

		if !e.waitIdle() {
			e.errorCount.Add(1)
		}

		e.mu.Lock()
		var frame [NumChannels + 1]byte
		frame[0] = 0x00
		copy(frame[1:], e.universe[:])
		timing := e.timing
		e.mu.Unlock()

		e.sendBreakMAB(timing.BreakUs, timing.MABUs)
		e.txPoll(frame[:])

		n := e.frameCount.Add(1)

		if elapsed := time.Since(lastFPSTime); elapsed >= time.Second {
			fps := uint32(float64(n-lastFrameCount) * 100 / elapsed.Seconds())
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

// waitIdle blocks until the TX FIFO is empty and the shift register has
// stopped draining, or the iteration budget runs out. A timeout is counted
// as an error but never aborts the frame: the next cycle tries fresh.
func (e *LargeCoreEngine) waitIdle() bool {
	for i := 0; i < idleWaitIterations; i++ {
		usr := e.uart.USR.Get()
		if usr&usrTFE != 0 && usr&usrBusy == 0 {
			return true
		}
	}
	return false
}

// sendBreakMAB is the timing-critical region: interrupts are disabled for
// its entire duration, LCR writes are absolute (never read-modify-write) so
// a BREAK bit stuck from a prior race can't leak into this frame.
func (e *LargeCoreEngine) sendBreakMAB(breakUs, mabUs uint16) {
	state := e.irq.Disable()

	e.uart.LCR.Set(lcr8N2 | lcrBreak)
	e.timer.BusyWaitMicros(uint32(breakUs))

	e.uart.LCR.Set(lcr8N2)
	e.timer.BusyWaitMicros(uint32(mabUs))

	e.irq.Restore(state)
}

// txPoll forces a clean 8N2 LCR state, resets the FIFOs, and blasts the
// frame into the transmit holding register directly, bypassing any OS
// serial driver.
func (e *LargeCoreEngine) txPoll(frame []byte) {
	e.uart.LCR.Set(lcr8N2)
	e.uart.FCR.Set(fcrFIFOEn)

	for _, b := range frame {
		for e.uart.USR.Get()&usrTFNF == 0 {
		}
		e.uart.THR.Set(uint32(b))
	}

	for {
		usr := e.uart.USR.Get()
		if usr&usrTFE != 0 && usr&usrBusy == 0 {
			break
		}
	}
}

func (e *LargeCoreEngine) Enable()  { e.enabled.Store(true); e.frameCount.Store(0) }
func (e *LargeCoreEngine) Disable() { e.enabled.Store(false) }

func (e *LargeCoreEngine) SetChannels(start int, values []byte) error {
	if start < 0 || start+len(values) > NumChannels {
		return ErrRange
	}
	e.mu.Lock()
	copy(e.universe[start:], values)
	e.mu.Unlock()
	return nil
}

func (e *LargeCoreEngine) Blackout() {
	e.mu.Lock()
	for i := range e.universe {
		e.universe[i] = 0
	}
	e.mu.Unlock()
}

func (e *LargeCoreEngine) SetTiming(t Timing) error {
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

func (e *LargeCoreEngine) GetTiming() Timing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timing
}

func (e *LargeCoreEngine) Status() Status {
	return Status{
		Enabled:    e.enabled.Load(),
		FrameCount: e.frameCount.Load(),
		FPSHundred: e.fpsHundred.Load(),
	}
}

// Stop halts the TX goroutine entirely. Not part of the Engine contract;
// used only at process teardown.
func (e *LargeCoreEngine) Stop() {
	e.running.Store(false)
	close(e.stop)
	e.wg.Wait()
}
