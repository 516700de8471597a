//go:build largecore

package rtipc

// RPMsgLite is the subset of a vendor rpmsg-lite-style helper the
// large-core variant relies on instead of hand-rolling vring management.
// The large-core SoC side already ships a working rpmsg-lite integration
// (used by RT-Thread for its own IPC), so this transport wraps it rather
// than duplicating vring bookkeeping.
type RPMsgLite interface {
	CreateChannel(name string) (RPMsgChannel, error)
}

// RPMsgChannel is one rpmsg-lite channel: a ring pair plus its doorbell,
// already wired to the vendor's interrupt routing.
type RPMsgChannel interface {
	Send(dst uint32, data []byte) error
	Recv() (data []byte, src uint32, ok bool)
}

// VendorTransport adapts an RPMsgChannel to a Send/Recv pair shaped like
// Transport's, so rtcore's large-core Dispatcher never has to know
// it's talking to a vendor helper instead of a hand-rolled ring.
type VendorTransport struct {
	ch  RPMsgChannel
	dst uint32
}

// NewVendorTransport wraps an already-created rpmsg-lite channel.
func NewVendorTransport(ch RPMsgChannel, dst uint32) *VendorTransport {
	return &VendorTransport{ch: ch, dst: dst}
}

// Send implements the same contract as Transport.Send, without a separate
// doorbell call: rpmsg-lite's Send already rings the peer's mailbox.
func (v *VendorTransport) Send(msg []byte) error {
	return v.ch.Send(v.dst, msg)
}

// Recv drains the next message addressed to us, if any.
func (v *VendorTransport) Recv() (msg []byte, ok bool) {
	data, _, ok := v.ch.Recv()
	return data, ok
}
