package coordinator

import "dmx-gateway/internal/dmxclient"

// DirectClient adapts a dmxclient.Client (linked directly, no subprocess)
// to the RTClient contract.
type DirectClient struct {
	C *dmxclient.Client
}

func (d DirectClient) Enable() error   { return d.C.Enable() }
func (d DirectClient) Disable() error  { return d.C.Disable() }
func (d DirectClient) Blackout() error { return d.C.Blackout() }

func (d DirectClient) SetChannel(channel int, value uint8) error {
	return d.C.SetChannels(uint16(channel-1), []byte{value})
}

// SetChannels takes a 1-based start channel, matching SetChannel and the
// dmxctl CLI's "set <slot> ..." convention; dmxclient's wire payload is
// 0-based.
func (d DirectClient) SetChannels(start int, values []byte) error {
	return d.C.SetChannels(uint16(start-1), values)
}

func (d DirectClient) Status() (RTStatus, error) {
	st, err := d.C.Status()
	if err != nil {
		return RTStatus{}, err
	}
	return RTStatus{
		Enabled:    st.Enabled,
		FPS:        float64(st.FPSHundreds) / 100,
		FrameCount: uint64(st.FrameCount),
	}, nil
}
