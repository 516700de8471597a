//go:build largecore

package rtcore

import (
	"testing"

	"dmx-gateway/internal/rthw"
)

var (
	_ rthw.Register            = (*fakeRegister)(nil)
	_ rthw.Timer               = (*fakeTimer)(nil)
	_ rthw.InterruptController = fakeIRQ{}
)

type fakeRegister struct{ v uint32 }

func (r *fakeRegister) Get() uint32              { return r.v }
func (r *fakeRegister) Set(v uint32)             { r.v = v }
func (r *fakeRegister) SetBits(mask uint32)      { r.v |= mask }
func (r *fakeRegister) ClearBits(mask uint32)    { r.v &^= mask }
func (r *fakeRegister) HasBits(mask uint32) bool { return r.v&mask == mask }

type fakeTimer struct{ now uint32 }

func (t *fakeTimer) Now() uint32              { return t.now }
func (t *fakeTimer) BusyWaitMicros(us uint32) { t.now += us }

type fakeIRQ struct{}

func (fakeIRQ) Disable() uintptr { return 0 }
func (fakeIRQ) Restore(uintptr)  {}

func newTestLargeCoreEngine() *LargeCoreEngine {
	uart := UARTRegs{LCR: &fakeRegister{}, FCR: &fakeRegister{}, USR: &fakeRegister{v: usrTFE}, THR: &fakeRegister{}}
	return NewLargeCoreEngine(uart, &fakeTimer{}, fakeIRQ{})
}

func TestLargeCoreSetTimingRejectsOutOfRangeBreakAndMAB(t *testing.T) {
	e := newTestLargeCoreEngine()
	defer e.Disable()

	if err := e.SetTiming(Timing{BreakUs: MinBreakUs - 1}); err != ErrRange {
		t.Fatalf("expected ErrRange for too-low break, got %v", err)
	}
	if err := e.SetTiming(Timing{BreakUs: MaxBreakUs + 1}); err != ErrRange {
		t.Fatalf("expected ErrRange for too-high break, got %v", err)
	}
	if err := e.SetTiming(Timing{MABUs: MinMABUs - 1}); err != ErrRange {
		t.Fatalf("expected ErrRange for too-low mab, got %v", err)
	}
	if err := e.SetTiming(Timing{MABUs: MaxMABUs + 1}); err != ErrRange {
		t.Fatalf("expected ErrRange for too-high mab, got %v", err)
	}
	if err := e.SetTiming(Timing{BreakUs: MaxBreakUs, MABUs: MaxMABUs}); err != nil {
		t.Fatalf("expected bounds to be accepted, got %v", err)
	}
}
