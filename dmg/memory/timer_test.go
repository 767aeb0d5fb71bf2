package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg/addr"
)

func tickN(timer *Timer, n int) (requested int) {
	for i := 0; i < n; i++ {
		if timer.Tick() {
			requested++
		}
	}
	return requested
}

func TestTimer_Divider(t *testing.T) {
	timer := &Timer{}
	tickN(timer, 63)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV))
	timer.Tick()
	assert.Equal(t, uint8(1), timer.Read(addr.DIV), "DIV increments every 64 machine cycles")

	timer.Write(addr.DIV, 0x55)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV), "any write resets")
}

func TestTimer_Frequencies(t *testing.T) {
	testCases := []struct {
		tac    uint8
		cycles int // machine cycles per increment
	}{
		{0x04, 256},
		{0x05, 4},
		{0x06, 16},
		{0x07, 64},
	}
	for _, tC := range testCases {
		timer := &Timer{}
		timer.Write(addr.TAC, tC.tac)
		tickN(timer, tC.cycles*10)
		assert.Equal(t, uint8(10), timer.Read(addr.TIMA), "TAC 0x%02X", tC.tac)
	}

	timer := &Timer{}
	timer.Write(addr.TAC, 0x01)
	tickN(timer, 1000)
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA), "disabled")
	assert.Equal(t, uint8(0xF9), timer.Read(addr.TAC), "unused bits read 1")
}

func TestTimer_OverflowIsDelayed(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TMA, 0x42)
	timer.Write(addr.TIMA, 0xFF)
	timer.Write(addr.TAC, 0x05)

	assert.Zero(t, tickN(timer, 4))
	assert.Equal(t, uint8(0x00), timer.Read(addr.TIMA), "reads 0 for one cycle")

	assert.True(t, timer.Tick(), "interrupt on the reload cycle")
	assert.Equal(t, uint8(0x42), timer.Read(addr.TIMA))
}

func TestTimer_WriteDuringOverflowCancelsReload(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TMA, 0x42)
	timer.Write(addr.TIMA, 0xFF)
	timer.Write(addr.TAC, 0x05)
	tickN(timer, 4)

	timer.Write(addr.TIMA, 0x10)
	assert.False(t, timer.Tick())
	assert.Equal(t, uint8(0x10), timer.Read(addr.TIMA))
}

func TestTimer_WritesDuringReloadCycle(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TMA, 0x42)
	timer.Write(addr.TIMA, 0xFF)
	timer.Write(addr.TAC, 0x05)
	tickN(timer, 4)
	require.True(t, timer.Tick())

	timer.Write(addr.TIMA, 0x10)
	assert.Equal(t, uint8(0x42), timer.Read(addr.TIMA), "TIMA write ignored while reloading")

	timer.Write(addr.TMA, 0x99)
	assert.Equal(t, uint8(0x99), timer.Read(addr.TIMA), "TMA write goes through to TIMA")
}

func TestTimer_DividerResetFallingEdge(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TAC, 0x05)
	tickN(timer, 2) // counter bit 3 is now high
	require.Equal(t, uint8(0), timer.Read(addr.TIMA))

	timer.Write(addr.DIV, 0)
	assert.Equal(t, uint8(1), timer.Read(addr.TIMA), "resetting DIV with the selected bit high increments TIMA")
}

func TestTimer_DisableFallingEdge(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TAC, 0x05)
	tickN(timer, 2)

	timer.Write(addr.TAC, 0x01)
	assert.Equal(t, uint8(1), timer.Read(addr.TIMA), "disabling with the selected bit high increments TIMA")
}

func TestTimer_APUEdge(t *testing.T) {
	timer := &Timer{}
	tickN(timer, 2047)
	assert.False(t, timer.TakeAPUEdge(), "DIV bit 4 rises at 1024 cycles and has not fallen yet")
	timer.Tick()
	assert.True(t, timer.TakeAPUEdge(), "DIV bit 4 falls every 2048 machine cycles")
	assert.False(t, timer.TakeAPUEdge(), "the edge is consumed")

	tickN(timer, 1024)
	timer.Write(addr.DIV, 0)
	assert.True(t, timer.TakeAPUEdge(), "resetting DIV with bit 4 high is a falling edge")

	timer.Write(addr.DIV, 0)
	assert.False(t, timer.TakeAPUEdge())
}

func TestTimer_StateRoundTrip(t *testing.T) {
	timer := &Timer{}
	timer.SetSeed(PostBootDivider)
	timer.Write(addr.TAC, 0x06)
	tickN(timer, 123)

	other := &Timer{}
	other.restore(timer.snapshot())
	for i := 0; i < 5000; i++ {
		require.Equal(t, timer.Tick(), other.Tick())
	}
	assert.Equal(t, timer.snapshot(), other.snapshot())
}
