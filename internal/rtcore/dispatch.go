package rtcore

import "dmx-gateway/internal/protocol"

// Dispatcher reads validated packets from the IPC transport and routes them
// to an Engine, producing exactly one response frame per request.
type Dispatcher struct {
	Engine Engine
	// ResetMagic, when non-nil, enables CmdSystemReset handling (tiny-core
	// only): a request is honored only if its 4-byte payload equals this
	// value. Left nil on the large-core variant, which always answers
	// CmdSystemReset with StatusInvalidCmd.
	ResetMagic []byte
	// Reset is invoked for a valid CmdSystemReset request as Handle returns
	// StatusOK, before the caller has framed or sent that response.
	Reset func()
}

// Handle processes one decoded command frame and returns the payload and
// status byte for the matching response frame. The caller is responsible
// for framing the response via protocol.EncodeResp.
func (d *Dispatcher) Handle(f *protocol.Frame) (status byte, payload []byte) {
	switch f.Op {
	case protocol.CmdSetChannels:
		sc, err := protocol.DecodeSetChannels(f.Payload)
		if err != nil {
			return protocol.StatusInvalidLength, nil
		}
		if err := d.Engine.SetChannels(int(sc.ChannelStart), sc.Values); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil

	case protocol.CmdGetStatus:
		s := d.Engine.Status()
		return protocol.StatusOK, protocol.StatusPayload{
			Enabled:     s.Enabled,
			FrameCount:  s.FrameCount,
			FPSHundreds: s.FPSHundred,
		}.Encode()

	case protocol.CmdEnable:
		d.Engine.Enable()
		return protocol.StatusOK, nil

	case protocol.CmdDisable:
		d.Engine.Disable()
		return protocol.StatusOK, nil

	case protocol.CmdBlackout:
		d.Engine.Blackout()
		return protocol.StatusOK, nil

	case protocol.CmdSetTiming:
		t, err := protocol.DecodeTiming(f.Payload)
		if err != nil {
			return protocol.StatusInvalidLength, nil
		}
		if err := d.Engine.SetTiming(Timing{RefreshHz: t.RefreshHz, BreakUs: t.BreakUs, MABUs: t.MABUs}); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil

	case protocol.CmdGetTiming:
		t := d.Engine.GetTiming()
		return protocol.StatusOK, protocol.TimingPayload{
			RefreshHz: t.RefreshHz, BreakUs: t.BreakUs, MABUs: t.MABUs,
		}.Encode()

	case protocol.CmdSystemReset:
		if d.ResetMagic == nil {
			return protocol.StatusInvalidCmd, nil
		}
		if len(f.Payload) != len(d.ResetMagic) || !bytesEqual(f.Payload, d.ResetMagic) {
			return protocol.StatusInvalidLength, nil
		}
		if d.Reset != nil {
			defer d.Reset()
		}
		return protocol.StatusOK, nil

	default:
		return protocol.StatusInvalidCmd, nil
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
