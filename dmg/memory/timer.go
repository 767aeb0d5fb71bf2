package memory

import (
	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

// tacLookup maps TAC input clock select (bits 1–0) to the bit position
// of the 16‑bit internal divider (counter) used as the timer's
// clock source. The timer increments on falling edges of this selected
// bit when the timer is enabled (TAC bit 2 = 1).
//
// Mapping per Pan Docs (DMG):
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacLookup = [4]uint8{9, 3, 5, 7}

// apuDividerBit is DIV bit 4. Its falling edge clocks the APU frame sequencer.
const apuDividerBit = 12

// PostBootDivider is the internal counter value left behind by the DMG boot ROM.
const PostBootDivider uint16 = 0xABCC

// Timer encapsulates the Game Boy timer/DIV/TIMA/TMA/TAC behavior.
// It advances one machine cycle (4 clocks) per Tick.
type Timer struct {
	counter uint16 // DIV is the upper 8 bits
	signal  bool   // last value of (enabled && selected counter bit)

	// overflowed is set on the cycle TIMA wraps. TIMA reads 0 until the next
	// cycle, when it is reloaded from TMA and the interrupt is requested.
	overflowed bool
	// reloading is set during the cycle the reload happens. While set, writes
	// to TIMA are dropped and writes to TMA also land in TIMA.
	reloading bool
	// apuEdge is set when apuDividerBit falls, until TakeAPUEdge.
	apuEdge bool

	tima byte
	tma  byte
	tac  byte
}

// SetSeed initializes the internal divider counter.
func (t *Timer) SetSeed(seed uint16) {
	t.counter = seed
	t.signal = t.selectedBit()
	t.overflowed = false
	t.reloading = false
}

// Tick advances the timer by one machine cycle and reports whether the
// timer interrupt should be requested.
func (t *Timer) Tick() bool {
	requested := false
	t.reloading = false
	if t.overflowed {
		t.overflowed = false
		t.tima = t.tma
		t.reloading = true
		requested = true
	}

	high := bit.IsSet16(apuDividerBit, t.counter)
	t.counter += 4
	if high && !bit.IsSet16(apuDividerBit, t.counter) {
		t.apuEdge = true
	}
	t.detectEdge()

	return requested
}

// ResetDivider clears the internal counter, as a DIV write or STOP does.
// If the selected bit was high this produces a falling edge.
func (t *Timer) ResetDivider() {
	if bit.IsSet16(apuDividerBit, t.counter) {
		t.apuEdge = true
	}
	t.counter = 0
	t.detectEdge()
}

// TakeAPUEdge reports whether DIV bit 4 fell since the last call.
func (t *Timer) TakeAPUEdge() bool {
	edge := t.apuEdge
	t.apuEdge = false
	return edge
}

func (t *Timer) selectedBit() bool {
	if !bit.IsSet(2, t.tac) {
		return false
	}
	return bit.IsSet16(tacLookup[t.tac&0x03], t.counter)
}

func (t *Timer) detectEdge() {
	current := t.selectedBit()
	if t.signal && !current {
		t.incrementTIMA()
	}
	t.signal = current
}

func (t *Timer) incrementTIMA() {
	t.tima++
	if t.tima == 0 {
		t.overflowed = true
	}
}

func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.counter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	default:
		return 0xFF
	}
}

func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		t.ResetDivider()
	case addr.TIMA:
		if t.reloading {
			return
		}
		// a write during the overflow cycle cancels the pending reload
		t.overflowed = false
		t.tima = value
	case addr.TMA:
		t.tma = value
		if t.reloading {
			t.tima = value
		}
	case addr.TAC:
		t.tac = value & 0x07
		t.detectEdge()
	}
}

// TimerState is the serializable form of Timer.
type TimerState struct {
	Counter    uint16
	Signal     bool
	Overflowed bool
	Reloading  bool
	TIMA       uint8
	TMA        uint8
	TAC        uint8
}

func (t *Timer) snapshot() TimerState {
	return TimerState{
		Counter:    t.counter,
		Signal:     t.signal,
		Overflowed: t.overflowed,
		Reloading:  t.reloading,
		TIMA:       t.tima,
		TMA:        t.tma,
		TAC:        t.tac,
	}
}

func (t *Timer) restore(s TimerState) {
	t.counter = s.Counter
	t.signal = s.Signal
	t.overflowed = s.Overflowed
	t.reloading = s.Reloading
	t.apuEdge = false
	t.tima = s.TIMA
	t.tma = s.TMA
	t.tac = s.TAC
}
