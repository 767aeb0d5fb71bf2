package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg/addr"
)

func poweredAPU() *APU {
	apu := New(DefaultSampleRate)
	apu.WriteRegister(addr.NR52, 0x80)
	return apu
}

func TestAPU_RegisterMapping(t *testing.T) {
	tests := []struct {
		name     string
		register uint16
		value    uint8
		testFunc func(t *testing.T, apu *APU)
	}{
		{
			name:     "NR10 sweep",
			register: addr.NR10, value: 0x7A, // period 7, negate, shift 2
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(7), apu.ch1.SweepPeriod)
				assert.True(t, apu.ch1.SweepNegate)
				assert.Equal(t, uint8(2), apu.ch1.SweepShift)
			},
		},
		{
			name:     "NR11 duty and length timer",
			register: addr.NR11, value: 0xBF, // duty=2, length data 63
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(2), apu.ch1.Duty)
				assert.Equal(t, 1, apu.ch1.Length.Counter)
			},
		},
		{
			name:     "NR12 volume and envelope",
			register: addr.NR12, value: 0xF7, // vol=15, down, pace=7
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(15), apu.ch1.Envelope.Initial)
				assert.False(t, apu.ch1.Envelope.Increase)
				assert.Equal(t, uint8(7), apu.ch1.Envelope.Period)
				assert.True(t, apu.ch1.DAC, "DAC is on when the upper 5 bits are not zero")
			},
		},
		{
			name:     "NR22 DAC off",
			register: addr.NR22, value: 0x07,
			testFunc: func(t *testing.T, apu *APU) {
				assert.False(t, apu.ch2.DAC)
			},
		},
		{
			name:     "NR32 output level",
			register: addr.NR32, value: 0x40,
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(2), apu.ch3.Level)
			},
		},
		{
			name:     "NR43 noise",
			register: addr.NR43, value: 0x5B, // shift 5, narrow, divisor 3
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(5), apu.ch4.Shift)
				assert.True(t, apu.ch4.Narrow)
				assert.Equal(t, uint8(3), apu.ch4.Divisor)
				assert.Equal(t, 48<<5, apu.ch4.period())
			},
		},
		{
			name:     "Wave RAM write/read",
			register: addr.WaveRAMStart, value: 0xAB,
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(0xAB), apu.ReadRegister(addr.WaveRAMStart))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apu := poweredAPU()
			apu.WriteRegister(tt.register, tt.value)
			tt.testFunc(t, apu)
		})
	}
}

func TestAPU_ReadMasks(t *testing.T) {
	apu := poweredAPU()
	testCases := []struct {
		desc     string
		register uint16
		expected uint8
	}{
		{"NR10", addr.NR10, 0x80},
		{"NR11", addr.NR11, 0x3F},
		{"NR13 write only", addr.NR13, 0xFF},
		{"NR14", addr.NR14, 0xBF},
		{"unused FF15", 0xFF15, 0xFF},
		{"NR30", addr.NR30, 0x7F},
		{"NR52 powered, no channels", addr.NR52, 0xF0},
		{"unused FF27", 0xFF27, 0xFF},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.expected, apu.ReadRegister(tC.register))
		})
	}
}

func TestAPU_TriggerAndLength(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR11, 0x3E) // 2 steps of length
	apu.WriteRegister(addr.NR14, 0xC0) // trigger with length enabled

	require.Equal(t, [4]bool{true, false, false, false}, apu.ChannelsEnabled())
	assert.Equal(t, uint8(0xF1), apu.ReadRegister(addr.NR52))

	// length is clocked at 256 Hz, two clocks take at most 4 sequencer steps
	for i := 0; i < 4; i++ {
		apu.ClockFrameSequencer()
	}
	assert.False(t, apu.ch1.Enabled, "length expired")
	assert.Equal(t, uint8(0xF0), apu.ReadRegister(addr.NR52))
}

func TestAPU_TriggerWithoutDAC(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR42, 0x00)
	apu.WriteRegister(addr.NR44, 0x80)
	assert.False(t, apu.ch4.Enabled)

	apu.WriteRegister(addr.NR30, 0x80)
	apu.WriteRegister(addr.NR34, 0x80)
	assert.True(t, apu.ch3.Enabled)
	apu.WriteRegister(addr.NR30, 0x00)
	assert.False(t, apu.ch3.Enabled, "turning the DAC off stops the channel")
}

func TestAPU_Envelope(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR22, 0x19) // volume 1, increase, period 1
	apu.WriteRegister(addr.NR24, 0x80)
	require.Equal(t, uint8(1), apu.ch2.Envelope.Volume)

	for i := 0; i < 8; i++ {
		apu.ClockFrameSequencer()
	}
	assert.Equal(t, uint8(2), apu.ch2.Envelope.Volume, "one envelope clock per sequencer cycle")
}

func TestAPU_SweepOverflowDisables(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR10, 0x11) // period 1, add, shift 1
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR13, 0xFF)
	apu.WriteRegister(addr.NR14, 0x87) // freq 0x7FF, trigger
	assert.False(t, apu.ch1.Enabled, "initial sweep calculation overflows")
}

func TestAPU_PowerOff(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR50, 0x77)
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR14, 0x80)
	apu.WriteRegister(addr.WaveRAMStart, 0x12)

	apu.WriteRegister(addr.NR52, 0x00)
	assert.Equal(t, uint8(0x70), apu.ReadRegister(addr.NR52))
	assert.Equal(t, uint8(0x00), apu.ReadRegister(addr.NR50))
	assert.Equal(t, [4]bool{}, apu.ChannelsEnabled())
	assert.Equal(t, uint8(0x12), apu.ReadRegister(addr.WaveRAMStart), "wave RAM survives power off")

	apu.WriteRegister(addr.NR50, 0x77)
	assert.Equal(t, uint8(0x00), apu.ReadRegister(addr.NR50), "writes ignored while off")
}

func TestAPU_PostBootState(t *testing.T) {
	apu := New(0)
	apu.SetPostBootState()
	assert.Equal(t, uint8(0xF1), apu.ReadRegister(addr.NR52))
	assert.Equal(t, uint8(0x77), apu.ReadRegister(addr.NR50))
	assert.Equal(t, uint8(0xF3), apu.ReadRegister(addr.NR51))
	assert.Equal(t, uint8(0xBF), apu.ReadRegister(addr.NR11))
}

func TestAPU_SampleGeneration(t *testing.T) {
	apu := New(DefaultSampleRate)
	for i := 0; i < mCyclesPerSecond; i++ {
		apu.Tick()
	}
	samples := apu.Samples()
	assert.Len(t, samples, 2*DefaultSampleRate, "one second of stereo samples")
	assert.Empty(t, apu.Samples(), "drained")

	for _, s := range samples {
		assert.Zero(t, s, "silence while powered off")
	}
}

func TestAPU_PanningAndVolume(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR50, 0x70) // left 7, right 0
	apu.WriteRegister(addr.NR51, 0x10) // ch1 left only
	apu.WriteRegister(addr.NR11, 0xC0) // 75% duty
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR14, 0x80)

	var nonZeroLeft bool
	for i := 0; i < mCyclesPerSecond/100; i++ {
		apu.Tick()
	}
	samples := apu.Samples()
	require.NotEmpty(t, samples)
	for i := 0; i < len(samples); i += 2 {
		if samples[i] != 0 {
			nonZeroLeft = true
		}
		// ch1 is not routed right, the other DACs are off
		assert.Zero(t, samples[i+1])
	}
	assert.True(t, nonZeroLeft)
}

func TestAPU_BufferBounded(t *testing.T) {
	apu := New(DefaultSampleRate)
	for i := 0; i < 3*mCyclesPerSecond; i++ {
		apu.Tick()
	}
	assert.LessOrEqual(t, len(apu.Samples()), 2*DefaultSampleRate)
}

func TestAPU_StateRoundTrip(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR12, 0xF3)
	apu.WriteRegister(addr.NR14, 0x80)
	apu.WriteRegister(addr.NR42, 0xA1)
	apu.WriteRegister(addr.NR44, 0x80)
	for i := 0; i < 5000; i++ {
		apu.Tick()
	}

	state := apu.Snapshot()
	require.NoError(t, apu.Validate(state))

	restored := New(DefaultSampleRate)
	restored.Restore(state)
	apu.Samples()
	for i := 0; i < 20000; i++ {
		apu.Tick()
		restored.Tick()
	}
	assert.Equal(t, apu.Snapshot(), restored.Snapshot())
	assert.Equal(t, apu.Samples(), restored.Samples())

	state.FrameStep = 9
	assert.Error(t, apu.Validate(state))
}
