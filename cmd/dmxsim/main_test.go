package main

import (
	"bytes"
	"io"
	"testing"

	"dmx-gateway/internal/logger"
	"dmx-gateway/internal/protocol"
	"dmx-gateway/internal/rtcore"
)

// fakeLink feeds serve() the bytes in in, one Read at a time, and
// collects everything written to out. Once in is exhausted, Read returns
// io.EOF so serve() stops instead of spinning.
type fakeLink struct {
	in  []byte
	out bytes.Buffer
}

func (f *fakeLink) Read(p []byte) (int, error) {
	if len(f.in) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.in[:1])
	f.in = f.in[1:]
	return n, nil
}

func (f *fakeLink) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func TestStatusForDecodeError(t *testing.T) {
	cases := []struct {
		err  error
		want byte
	}{
		{protocol.ErrBadMagic, protocol.StatusInvalidMagic},
		{protocol.ErrBadChecksum, protocol.StatusInvalidChecksum},
		{protocol.ErrOverLength, protocol.StatusInvalidLength},
	}
	for _, c := range cases {
		if got := statusForDecodeError(c.err); got != c.want {
			t.Fatalf("statusForDecodeError(%v) = %#x, want %#x", c.err, got, c.want)
		}
	}
}

func TestServeRespondsToValidFrame(t *testing.T) {
	engine := rtcore.NewSoftwareEngine()
	d := &rtcore.Dispatcher{Engine: engine}

	frame := protocol.EncodeCmd(protocol.CmdGetStatus, nil)
	link := &fakeLink{in: frame}

	serve(link, d, logger.Nop())

	decoded, err := decodeOneResponse(t, link.out.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Op != protocol.StatusOK {
		t.Fatalf("expected StatusOK, got %#x", decoded.Op)
	}
}

func TestServeRespondsStatusInvalidChecksumOnCorruptFrame(t *testing.T) {
	engine := rtcore.NewSoftwareEngine()
	d := &rtcore.Dispatcher{Engine: engine}

	frame := protocol.EncodeCmd(protocol.CmdEnable, nil)
	frame[len(frame)-1] ^= 0x01 // flip the checksum byte
	link := &fakeLink{in: frame}

	serve(link, d, logger.Nop())

	decoded, err := decodeOneResponse(t, link.out.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Op != protocol.StatusInvalidChecksum {
		t.Fatalf("expected StatusInvalidChecksum, got %#x", decoded.Op)
	}
}

func TestServeRespondsStatusInvalidMagicOnBadLeadByte(t *testing.T) {
	engine := rtcore.NewSoftwareEngine()
	d := &rtcore.Dispatcher{Engine: engine}

	// A lone response-magic byte where a command-magic byte was expected.
	link := &fakeLink{in: []byte{protocol.MagicResp}}

	serve(link, d, logger.Nop())

	decoded, err := decodeOneResponse(t, link.out.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Op != protocol.StatusInvalidMagic {
		t.Fatalf("expected StatusInvalidMagic, got %#x", decoded.Op)
	}
}

// decodeOneResponse runs a response-magic decoder over out and returns the
// first complete frame.
func decodeOneResponse(t *testing.T, out []byte) (*protocol.Frame, error) {
	t.Helper()
	dec := protocol.NewDecoder(protocol.MagicResp)
	for _, b := range out {
		f, err := dec.Feed(b)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, io.ErrUnexpectedEOF
}
