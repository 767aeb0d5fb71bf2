package memory

import "github.com/valerio/go-dmg/dmg/bit"

// Buttons is a bitmask of pressed buttons, 1 = pressed.
// The low nibble holds the d-pad, the high nibble the action buttons, each in
// the same bit order the hardware exposes through P1.
type Buttons uint8

const (
	ButtonRight Buttons = 1 << iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

// AllButtons lists every button, in bit order.
var AllButtons = [8]Buttons{
	ButtonRight, ButtonLeft, ButtonUp, ButtonDown,
	ButtonA, ButtonB, ButtonSelect, ButtonStart,
}

func (b Buttons) String() string {
	names := [8]string{"right", "left", "up", "down", "a", "b", "select", "start"}
	out := ""
	for i, name := range names {
		if b&(1<<i) == 0 {
			continue
		}
		if out != "" {
			out += "+"
		}
		out += name
	}
	if out == "" {
		return "none"
	}
	return out
}

// Joypad implements the P1/JOYP register.
//
// P1 is a selector: bits 4-5 choose which group of buttons is mapped to the
// low bits (0-3):
//   - if bit 4 is clear, bits 0-3 are mapped to the 4 d-pad directions
//   - if bit 5 is clear, bits 0-3 are mapped to A, B, Select, Start
//   - if both are clear, hw does an AND of both button sets
//   - if neither is clear, the low bits read 0x0F
//
// Note that 1 -> button released, 0 -> button pressed.
// Bits 6-7 are unused, they always read as 1 on real hardware.
type Joypad struct {
	pressed   Buttons
	selection uint8
}

func (j *Joypad) Read() uint8 {
	return 0xC0 | j.selection | j.lines()
}

// Write updates the selection bits, the only writable part of P1.
// It reports whether a line went from high to low as a result.
func (j *Joypad) Write(value uint8) bool {
	before := j.lines()
	j.selection = value & 0x30
	return before&^j.lines() != 0
}

// SetButtons replaces the pressed button state and reports whether any
// selected line went from high to low, which requests the joypad interrupt.
func (j *Joypad) SetButtons(pressed Buttons) bool {
	before := j.lines()
	j.pressed = pressed
	return before&^j.lines() != 0
}

// Buttons returns the button state last set.
func (j *Joypad) Buttons() Buttons {
	return j.pressed
}

// lines returns the active-low value of P1 bits 0-3.
func (j *Joypad) lines() uint8 {
	result := uint8(0x0F)
	if !bit.IsSet(4, j.selection) {
		result &^= uint8(j.pressed) & 0x0F
	}
	if !bit.IsSet(5, j.selection) {
		result &^= uint8(j.pressed>>4) & 0x0F
	}
	return result
}
