package memory

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattery_SaveAndLoad(t *testing.T) {
	cart := newTestCartridge(t, 0x03, 0x05, 0x03)
	cart.Write(0x0000, 0x0A)
	cart.Write(0xA000, 0x12)
	cart.Write(0xBFFF, 0x34)

	var buf bytes.Buffer
	require.NoError(t, cart.SaveRAM(&buf))
	assert.Equal(t, 0x8000, buf.Len())

	other := newTestCartridge(t, 0x03, 0x05, 0x03)
	require.NoError(t, other.LoadRAM(&buf))
	other.Write(0x0000, 0x0A)
	assert.Equal(t, uint8(0x12), other.Read(0xA000))
	assert.Equal(t, uint8(0x34), other.Read(0xBFFF))
}

func TestBattery_NoBattery(t *testing.T) {
	cart := newTestCartridge(t, 0x02, 0x05, 0x03)
	var buf bytes.Buffer
	assert.ErrorIs(t, cart.SaveRAM(&buf), ErrNoBattery)
	assert.ErrorIs(t, cart.LoadRAM(&buf), ErrNoBattery)
}

func TestBattery_ShortImage(t *testing.T) {
	cart := newTestCartridge(t, 0x03, 0x05, 0x03)
	cart.Write(0x0000, 0x0A)
	cart.Write(0xA000, 0x12)

	err := cart.LoadRAM(bytes.NewReader(make([]byte, 100)))
	assert.Error(t, err)
	assert.Equal(t, uint8(0x12), cart.Read(0xA000), "RAM untouched on error")
}

func TestBattery_RTCFooter(t *testing.T) {
	clock := &fakeClock{now: time.Unix(5_000_000, 0)}
	cart := newTestCartridge(t, 0x10, 0x06, 0x03, WithClock(clock))
	cart.Write(0x0000, 0x0A)
	cart.Write(0x4000, 0x08+rtcMinutes)
	cart.Write(0xA000, 30)

	var buf bytes.Buffer
	require.NoError(t, cart.SaveRAM(&buf))
	assert.Equal(t, 0x8000+rtcFooterSize, buf.Len())

	// two hours pass while the emulator is not running
	clock.Advance(2 * time.Hour)
	other := newTestCartridge(t, 0x10, 0x06, 0x03, WithClock(clock))
	require.NoError(t, other.LoadRAM(&buf))

	other.Write(0x0000, 0x0A)
	other.Write(0x6000, 0x00)
	other.Write(0x6000, 0x01)
	other.Write(0x4000, 0x08+rtcMinutes)
	assert.Equal(t, uint8(30), other.Read(0xA000))
	other.Write(0x4000, 0x08+rtcHours)
	assert.Equal(t, uint8(2), other.Read(0xA000))
}

func TestBattery_MissingRTCFooterAccepted(t *testing.T) {
	cart := newTestCartridge(t, 0x10, 0x06, 0x03, WithClock(&fakeClock{}))
	assert.NoError(t, cart.LoadRAM(bytes.NewReader(make([]byte, 0x8000))))
}
