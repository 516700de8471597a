package protocol

import (
	"encoding/binary"
	"fmt"
)

// SetChannelsPayload is the CMD_DMX_SET_CHANNELS payload: a starting
// channel (0-based) followed by consecutive channel values.
type SetChannelsPayload struct {
	ChannelStart uint16
	Values       []byte
}

// Encode serializes a SetChannelsPayload.
func (p SetChannelsPayload) Encode() []byte {
	buf := make([]byte, 2+len(p.Values))
	binary.LittleEndian.PutUint16(buf[0:2], p.ChannelStart)
	copy(buf[2:], p.Values)
	return buf
}

// DecodeSetChannels parses a CMD_DMX_SET_CHANNELS payload.
func DecodeSetChannels(payload []byte) (SetChannelsPayload, error) {
	if len(payload) < 2 {
		return SetChannelsPayload{}, fmt.Errorf("protocol: set-channels payload too short (%d bytes)", len(payload))
	}
	start := binary.LittleEndian.Uint16(payload[0:2])
	values := make([]byte, len(payload)-2)
	copy(values, payload[2:])
	if int(start)+len(values) > MaxChannels {
		return SetChannelsPayload{}, fmt.Errorf("protocol: channel range [%d,%d) exceeds %d channels", start, int(start)+len(values), MaxChannels)
	}
	return SetChannelsPayload{ChannelStart: start, Values: values}, nil
}

// StatusPayload is the CMD_DMX_GET_STATUS response payload.
type StatusPayload struct {
	Enabled     bool
	FrameCount  uint32
	FPSHundreds uint32 // frames per second * 100, e.g. 4400 = 44.00Hz
}

// Encode serializes a StatusPayload.
func (p StatusPayload) Encode() []byte {
	buf := make([]byte, 9)
	if p.Enabled {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], p.FrameCount)
	binary.LittleEndian.PutUint32(buf[5:9], p.FPSHundreds)
	return buf
}

// DecodeStatus parses a CMD_DMX_GET_STATUS response payload.
func DecodeStatus(payload []byte) (StatusPayload, error) {
	if len(payload) != 9 {
		return StatusPayload{}, fmt.Errorf("protocol: status payload must be 9 bytes, got %d", len(payload))
	}
	return StatusPayload{
		Enabled:     payload[0] != 0,
		FrameCount:  binary.LittleEndian.Uint32(payload[1:5]),
		FPSHundreds: binary.LittleEndian.Uint32(payload[5:9]),
	}, nil
}

// TimingPayload is the CMD_DMX_SET_TIMING / CMD_DMX_GET_TIMING payload. A
// zero field in a set request means "leave unchanged".
type TimingPayload struct {
	RefreshHz uint16
	BreakUs   uint16
	MABUs     uint16
}

// Encode serializes a TimingPayload.
func (p TimingPayload) Encode() []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], p.RefreshHz)
	binary.LittleEndian.PutUint16(buf[2:4], p.BreakUs)
	binary.LittleEndian.PutUint16(buf[4:6], p.MABUs)
	return buf
}

// DecodeTiming parses a CMD_DMX_SET_TIMING / CMD_DMX_GET_TIMING payload.
func DecodeTiming(payload []byte) (TimingPayload, error) {
	if len(payload) != 6 {
		return TimingPayload{}, fmt.Errorf("protocol: timing payload must be 6 bytes, got %d", len(payload))
	}
	return TimingPayload{
		RefreshHz: binary.LittleEndian.Uint16(payload[0:2]),
		BreakUs:   binary.LittleEndian.Uint16(payload[2:4]),
		MABUs:     binary.LittleEndian.Uint16(payload[4:6]),
	}, nil
}

// DefaultRefreshHz, DefaultBreakUs and DefaultMABUs are the power-on timing
// values. A SetTiming field left at 0 keeps the engine's current value; it
// does not restore these defaults.
const (
	DefaultRefreshHz = 44
	DefaultBreakUs   = 150
	DefaultMABUs     = 12
)
