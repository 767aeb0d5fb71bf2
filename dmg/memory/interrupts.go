package memory

import "github.com/valerio/go-dmg/dmg/addr"

// interruptMask covers the five interrupt lines, IF/IE bits 0-4.
const interruptMask = 0x1F

// Interrupts holds the IF and IE registers.
// Only the low five bits carry meaning. IF always reads its upper 3 bits as 1,
// which matters when checking for the halt bug (IF != 0).
type Interrupts struct {
	flags  uint8
	enable uint8
}

// Request sets the IF bit for the given interrupt.
func (i *Interrupts) Request(interrupt addr.Interrupt) {
	i.flags |= uint8(interrupt) & interruptMask
}

// Pending returns the interrupts that are both requested and enabled.
func (i *Interrupts) Pending() uint8 {
	return i.flags & i.enable & interruptMask
}

// Acknowledge clears the IF bit of a serviced interrupt.
func (i *Interrupts) Acknowledge(interrupt addr.Interrupt) {
	i.flags &^= uint8(interrupt)
}

func (i *Interrupts) Read(address uint16) byte {
	switch address {
	case addr.IF:
		return i.flags | 0xE0
	case addr.IE:
		return i.enable
	}
	return 0xFF
}

func (i *Interrupts) Write(address uint16, value byte) {
	switch address {
	case addr.IF:
		i.flags = value & interruptMask
	case addr.IE:
		i.enable = value
	}
}
