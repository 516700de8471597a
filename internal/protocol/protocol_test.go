package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func feedAll(t *testing.T, d *Decoder, frame []byte) (*Frame, error) {
	t.Helper()
	for i, b := range frame {
		f, err := d.Feed(b)
		if i < len(frame)-1 {
			if f != nil || err != nil {
				t.Fatalf("byte %d: unexpected early result f=%v err=%v", i, f, err)
			}
			continue
		}
		return f, err
	}
	return nil, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := SetChannelsPayload{ChannelStart: 0, Values: []byte{255, 128, 64, 0}}.Encode()
	frame := EncodeCmd(CmdSetChannels, payload)

	d := NewDecoder(MagicCmd)
	got, err := feedAll(t, d, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a decoded frame")
	}
	if got.Op != CmdSetChannels {
		t.Errorf("op = %#x, want %#x", got.Op, CmdSetChannels)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload = %v, want %v", got.Payload, payload)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	frame := EncodeCmd(CmdEnable, nil)
	d := NewDecoder(MagicCmd)
	got, err := feedAll(t, d, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got.Payload) != 0 {
		t.Fatalf("got = %+v, want empty payload", got)
	}
}

func TestEncodeOverLength(t *testing.T) {
	huge := make([]byte, MaxPayload+1)
	if Encode(MagicCmd, CmdSetChannels, huge) != nil {
		t.Fatal("expected nil for over-length payload")
	}
}

func TestDecodeBadChecksum(t *testing.T) {
	frame := EncodeCmd(CmdBlackout, nil)
	frame[len(frame)-1] ^= 0xFF // corrupt checksum

	d := NewDecoder(MagicCmd)
	_, err := feedAll(t, d, frame)
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("err = %v, want ErrBadChecksum", err)
	}
}

func TestDecodeOverLength(t *testing.T) {
	d := NewDecoder(MagicCmd)
	d.Feed(MagicCmd)
	d.Feed(CmdSetChannels)
	d.Feed(0xFF) // length lo
	_, err := d.Feed(0xFF) // length hi -> 0xFFFF, way over MaxPayload
	if !errors.Is(err, ErrOverLength) {
		t.Fatalf("err = %v, want ErrOverLength", err)
	}
}

func TestDecoderReturnsErrBadMagicAndResyncs(t *testing.T) {
	d := NewDecoder(MagicCmd)
	// Feed a response frame's magic byte first: the decoder should report
	// ErrBadMagic for that byte, then accept a well-formed frame right
	// after, proving it reset to Idle rather than getting stuck.
	if f, err := d.Feed(MagicResp); f != nil || err != ErrBadMagic {
		t.Fatalf("expected (nil, ErrBadMagic), got f=%v err=%v", f, err)
	}

	frame := EncodeCmd(CmdGetStatus, nil)
	got, err := feedAll(t, d, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Op != CmdGetStatus {
		t.Fatalf("got = %+v, want CmdGetStatus frame", got)
	}
}

func TestDecoderRestartsAfterError(t *testing.T) {
	d := NewDecoder(MagicCmd)
	bad := EncodeCmd(CmdEnable, nil)
	bad[len(bad)-1] ^= 0x01
	if _, err := feedAll(t, d, bad); err == nil {
		t.Fatal("expected an error from the corrupted frame")
	}

	good := EncodeCmd(CmdDisable, nil)
	got, err := feedAll(t, d, good)
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if got == nil || got.Op != CmdDisable {
		t.Fatalf("got = %+v, want CmdDisable frame", got)
	}
}

func TestSetChannelsPayloadRoundTrip(t *testing.T) {
	want := SetChannelsPayload{ChannelStart: 100, Values: []byte{1, 2, 3, 4, 5}}
	got, err := DecodeSetChannels(want.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ChannelStart != want.ChannelStart || !bytes.Equal(got.Values, want.Values) {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestSetChannelsOutOfRange(t *testing.T) {
	p := SetChannelsPayload{ChannelStart: 510, Values: make([]byte, 10)}
	if _, err := DecodeSetChannels(p.Encode()); err == nil {
		t.Fatal("expected an error for a range exceeding MaxChannels")
	}
}

func TestStatusPayloadRoundTrip(t *testing.T) {
	want := StatusPayload{Enabled: true, FrameCount: 123456, FPSHundreds: 4400}
	got, err := DecodeStatus(want.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestTimingPayloadRoundTrip(t *testing.T) {
	want := TimingPayload{RefreshHz: 44, BreakUs: 150, MABUs: 12}
	got, err := DecodeTiming(want.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}
