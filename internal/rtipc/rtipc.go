// Package rtipc is the shared-memory ring-buffer transport (C3) carrying
// wire frames between the real-time core and the Linux host. Two vrings
// (one per direction) live in a memory region agreed with the host; a
// mailbox doorbell on each side signals "new data available" so the peer
// doesn't have to poll the ring.
package rtipc

import "errors"

// ErrBackpressure is returned by Ring.Push, and so by Send, when the
// outbound ring is full. Send returns it at once, without waiting.
var ErrBackpressure = errors.New("rtipc: ring full")

// MailboxMagic is the 32-bit identifier every mailbox message must carry so
// a peer can tell a real doorbell from stray noise on the line.
const MailboxMagic uint32 = 0x444D5831 // "DMX1"

// Ring is one direction's shared-memory ring buffer: a byte-oriented,
// single-producer single-consumer queue. Implementations guarantee
// in-order delivery; zero-copy is permitted but not required.
type Ring interface {
	// Push enqueues one message. It returns ErrBackpressure if the ring is
	// full.
	Push(msg []byte) error
	// Pop dequeues the next message, or returns false if the ring is
	// empty.
	Pop() (msg []byte, ok bool)
}

// Doorbell is the mailbox side of the transport: ringing it tells the peer
// "check your ring", and Wait blocks (cooperatively or via interrupt,
// depending on variant) until the peer rings back.
type Doorbell interface {
	Ring(linkID uint16) error
	Wait() (linkID uint16, ok bool)
}

// Transport pairs a Ring (for payload) with a Doorbell (for the "new data"
// signal) for one direction, and its mirror for the other.
type Transport struct {
	TX      Ring
	RX      Ring
	Notify  Doorbell
	Pending Doorbell // set only where incoming doorbells are modeled separately
}

// Send pushes msg onto TX and rings the doorbell naming link. Callers
// needing a timeout should race this against their own timer; Push itself
// never blocks.
func (t *Transport) Send(link uint16, msg []byte) error {
	if err := t.TX.Push(msg); err != nil {
		return err
	}
	return t.Notify.Ring(link)
}

// Recv drains one message from RX, if any is queued.
func (t *Transport) Recv() (msg []byte, ok bool) {
	return t.RX.Pop()
}
