//go:build tinycore

package rtipc

import "dmx-gateway/internal/rthw"

// Mailbox command/status register offsets, named to match the SoC's own
// MBOXn naming: MBOX3 carries Linux→MCU traffic (A2B, "A to B"), MBOX1
// carries the MCU→Linux acknowledgement path (B2A). The port does NOT use
// the vendor's mailbox helper here (known defective on this SoC); the ISR
// touches these registers directly.
type MailboxRegs struct {
	A2BStatus rthw.Register
	A2BCmd    rthw.Register
	A2BData   rthw.Register
	B2AStatus rthw.Register
	B2ACmd    rthw.Register
	B2AData   rthw.Register
}

const mailboxAckBit = 0x1 // write-1-to-clear

// TinyMailbox hand-rolls the ISR-driven mailbox transport for the
// cooperative single-loop variant: no OS, no blocking Wait — the main loop
// calls Drain() every iteration instead of sleeping on an interrupt.
type TinyMailbox struct {
	regs    MailboxRegs
	intmux  rthw.InterruptController
	pending []MailboxMsg
}

// MailboxMsg is one A2B command/data pair as read off the hardware.
type MailboxMsg struct {
	Cmd  uint32
	Data uint32
}

// NewTinyMailbox drains any message that arrived before the ISR was
// installed — mirroring the platform init's explicit pending-message check.
// It does not configure the A→B interrupt's trigger mode, and intmux is
// stored but not used.
func NewTinyMailbox(regs MailboxRegs, intmux rthw.InterruptController) *TinyMailbox {
	m := &TinyMailbox{regs: regs, intmux: intmux}
	m.enableA2BLevelTriggered()
	m.drainPendingAtInit()
	return m
}

func (m *TinyMailbox) enableA2BLevelTriggered() {
	// Performs no register access: MailboxRegs has no interrupt-enable or
	// trigger-mode register, and rthw.InterruptController has no call for
	// routing an IRQ, so the A→B level-trigger enable is not done here.
}

// drainPendingAtInit catches any message that arrived on the A2B channel
// before the ISR was installed, so it isn't silently lost.
func (m *TinyMailbox) drainPendingAtInit() {
	if m.regs.A2BStatus.Get()&mailboxAckBit != 0 {
		m.pending = append(m.pending, MailboxMsg{
			Cmd:  m.regs.A2BCmd.Get(),
			Data: m.regs.A2BData.Get(),
		})
		m.regs.A2BStatus.Set(mailboxAckBit)
	}
}

// HandleISR is the interrupt service routine: read status, read cmd/data,
// acknowledge with write-1-to-clear. Called from the vector table, not the
// main loop.
func (m *TinyMailbox) HandleISR() {
	if m.regs.A2BStatus.Get()&mailboxAckBit == 0 {
		return
	}
	msg := MailboxMsg{Cmd: m.regs.A2BCmd.Get(), Data: m.regs.A2BData.Get()}
	m.regs.A2BStatus.Set(mailboxAckBit)
	m.pending = append(m.pending, msg)
}

// Drain returns and clears every message queued by the ISR since the last
// call. Called once per main-loop iteration.
func (m *TinyMailbox) Drain() []MailboxMsg {
	if len(m.pending) == 0 {
		return nil
	}
	msgs := m.pending
	m.pending = nil
	return msgs
}

// Ack rings the B2A mailbox to acknowledge a processed request back to
// Linux, carrying cmd/data as the short command/data word.
func (m *TinyMailbox) Ack(cmd, data uint32) {
	m.regs.B2ACmd.Set(cmd)
	m.regs.B2AData.Set(data)
	m.regs.B2AStatus.Set(mailboxAckBit)
}
