// Package dmxclient is the Linux-side client library for the real-time
// core (C5): it owns the tty endpoint and turns each DMX command into a
// single encode → write → read-exact round trip.
package dmxclient

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"dmx-gateway/internal/protocol"
	"dmx-gateway/internal/rttty"
)

// DefaultTimeout is the per-read timeout used for every round trip, as in
// the reference client's TIMEOUT_MS.
const DefaultTimeout = 1 * time.Second

// DefaultDevice is the default RPMSG tty path.
const DefaultDevice = "/dev/ttyRPMSG0"

// StatusError wraps a non-OK response status byte from the remote.
type StatusError struct {
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dmxclient: command failed with status %#02x", e.Status)
}

// ErrTimeout is returned when no response arrives within Client.Timeout.
var ErrTimeout = rttty.ErrTimeout

// port is the transport surface Client needs; satisfied by *rttty.Port in
// production and by a fake in tests, since a real tty isn't available in
// either the test sandbox or on a developer's laptop.
type port interface {
	WriteAll(buf []byte) error
	ReadExact(n int, timeout time.Duration) ([]byte, error)
	Close() error
}

// Client serializes every call on one tty endpoint: concurrent callers are
// queued behind a mutex, matching "concurrent calls on the same library
// instance are serialized" in the contract.
type Client struct {
	port    port
	mu      sync.Mutex
	Timeout time.Duration
}

// Open opens device and configures it for raw binary framing.
func Open(device string) (*Client, error) {
	p, err := rttty.Open(device)
	if err != nil {
		return nil, err
	}
	return &Client{port: p, Timeout: DefaultTimeout}, nil
}

// Close releases the tty endpoint.
func (c *Client) Close() error {
	return c.port.Close()
}

// roundTrip does encode → write-all → read-exact(header) →
// read-exact(payload) → read-exact(checksum), verifying the checksum
// itself by XOR-ing the received header and payload bytes.
func (c *Client) roundTrip(cmd byte, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := protocol.EncodeCmd(cmd, payload)
	if frame == nil {
		return nil, errors.New("dmxclient: payload too large")
	}
	if err := c.port.WriteAll(frame); err != nil {
		return nil, err
	}

	hdr, err := c.port.ReadExact(4, c.Timeout)
	if err != nil {
		return nil, err
	}
	if hdr[0] != protocol.MagicResp {
		return nil, fmt.Errorf("dmxclient: invalid response magic %#02x", hdr[0])
	}

	status := hdr[1]
	dataLen := int(hdr[2]) | int(hdr[3])<<8
	if dataLen > protocol.MaxPayload {
		return nil, protocol.ErrOverLength
	}

	var body []byte
	if dataLen > 0 {
		body, err = c.port.ReadExact(dataLen, c.Timeout)
		if err != nil {
			return nil, err
		}
	}

	checksumByte, err := c.port.ReadExact(1, c.Timeout)
	if err != nil {
		return nil, err
	}

	var sum byte
	for _, b := range hdr {
		sum ^= b
	}
	for _, b := range body {
		sum ^= b
	}
	if sum != checksumByte[0] {
		return nil, protocol.ErrBadChecksum
	}

	if status != protocol.StatusOK {
		return nil, &StatusError{Status: status}
	}
	return body, nil
}

// Enable starts continuous frame emission.
func (c *Client) Enable() error {
	_, err := c.roundTrip(protocol.CmdEnable, nil)
	return err
}

// Disable stops emission after the current frame.
func (c *Client) Disable() error {
	_, err := c.roundTrip(protocol.CmdDisable, nil)
	return err
}

// Blackout sets every channel to 0.
func (c *Client) Blackout() error {
	_, err := c.roundTrip(protocol.CmdBlackout, nil)
	return err
}

// SetChannels writes values starting at the given 0-based channel.
func (c *Client) SetChannels(start uint16, values []byte) error {
	_, err := c.roundTrip(protocol.CmdSetChannels, protocol.SetChannelsPayload{
		ChannelStart: start, Values: values,
	}.Encode())
	return err
}

// Status returns the engine's current status.
func (c *Client) Status() (protocol.StatusPayload, error) {
	payload, err := c.roundTrip(protocol.CmdGetStatus, nil)
	if err != nil {
		return protocol.StatusPayload{}, err
	}
	return protocol.DecodeStatus(payload)
}

// SetTiming updates refresh rate / BREAK / MAB; a zero field leaves that
// value unchanged.
func (c *Client) SetTiming(t protocol.TimingPayload) error {
	_, err := c.roundTrip(protocol.CmdSetTiming, t.Encode())
	return err
}

// GetTiming returns the current timing configuration.
func (c *Client) GetTiming() (protocol.TimingPayload, error) {
	payload, err := c.roundTrip(protocol.CmdGetTiming, nil)
	if err != nil {
		return protocol.TimingPayload{}, err
	}
	return protocol.DecodeTiming(payload)
}
