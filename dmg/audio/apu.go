package audio

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

const (
	// CPUFrequency is the DMG master clock in Hz.
	CPUFrequency = 4194304
	// DefaultSampleRate is the output rate used when none is configured.
	DefaultSampleRate = 44100

	mCyclesPerSecond = CPUFrequency / 4
	// per channel DAC range is -15..15, four channels, volume up to 8
	sampleAmplitude = 64

	waveRAMOffset = addr.WaveRAMStart - addr.AudioStart
	triggerBit    = 7
	lengthBit     = 6
)

// readMasks are ORed into register reads for FF10-FF26: write-only and
// unused bits read back as 1.
var readMasks = [0x17]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
}

// APU implements the Game Boy's Audio Processing Unit.
// It is advanced one machine cycle at a time and buffers interleaved
// stereo samples until they are drained with Samples.
// Reference: https://gbdev.io/pandocs/Audio.html
type APU struct {
	regs    [0x30]byte // FF10-FF3F, wave RAM included
	powered bool

	frameStep int

	ch1, ch2 PulseChannel
	ch3      WaveChannel
	ch4      NoiseChannel

	sampleRate int
	sampleAcc  int
	samples    []int16
	maxSamples int
}

// New creates a powered off APU producing samples at sampleRate Hz. A rate
// of 0 selects DefaultSampleRate.
func New(sampleRate int) *APU {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	a := &APU{
		sampleRate: sampleRate,
		maxSamples: sampleRate * 2, // one second of stereo
	}
	a.samples = make([]int16, 0, a.maxSamples)
	return a
}

// SampleRate returns the output rate in Hz.
func (a *APU) SampleRate() int {
	return a.sampleRate
}

// SetPostBootState applies the register values left by the DMG boot ROM.
// Channel 1 is left running from the boot sound.
func (a *APU) SetPostBootState() {
	a.WriteRegister(addr.NR52, 0xF1)
	values := []struct {
		address uint16
		value   uint8
	}{
		{addr.NR10, 0x80}, {addr.NR11, 0xBF}, {addr.NR12, 0xF3}, {addr.NR14, 0xBF},
		{addr.NR21, 0x3F}, {addr.NR22, 0x00}, {addr.NR24, 0xBF},
		{addr.NR30, 0x7F}, {addr.NR31, 0xFF}, {addr.NR32, 0x9F}, {addr.NR34, 0xBF},
		{addr.NR41, 0xFF}, {addr.NR42, 0x00}, {addr.NR43, 0x00}, {addr.NR44, 0xBF},
		{addr.NR50, 0x77}, {addr.NR51, 0xF3},
	}
	for _, v := range values {
		a.WriteRegister(v.address, v.value)
	}
}

// Tick advances the APU by one machine cycle.
func (a *APU) Tick() {
	if a.powered {
		a.ch1.step(4)
		a.ch2.step(4)
		a.ch3.step(4, a.regs[waveRAMOffset:])
		a.ch4.step(4)
	}

	a.sampleAcc += a.sampleRate
	if a.sampleAcc >= mCyclesPerSecond {
		a.sampleAcc -= mCyclesPerSecond
		a.emitSample()
	}
}

// ClockFrameSequencer is driven by the falling edge of DIV bit 4, 512 times
// a second unless DIV is reset.
func (a *APU) ClockFrameSequencer() {
	if a.powered {
		a.clockFrameSequencer()
	}
}

// clockFrameSequencer advances the 8 step sequencer:
//
//	Step   Length  Sweep  Envelope
//	0      Clock   -      -
//	2      Clock   Clock  -
//	4      Clock   -      -
//	6      Clock   Clock  -
//	7      -       -      Clock
//
// Reference: https://gbdev.io/pandocs/Audio_details.html#div-apu
func (a *APU) clockFrameSequencer() {
	switch a.frameStep {
	case 0, 4:
		a.clockLengths()
	case 2, 6:
		a.clockLengths()
		a.ch1.clockSweep()
	case 7:
		a.ch1.Envelope.clock()
		a.ch2.Envelope.clock()
		a.ch4.Envelope.clock()
	}
	a.frameStep = (a.frameStep + 1) & 7
}

func (a *APU) clockLengths() {
	a.ch1.Length.clock(&a.ch1.Enabled)
	a.ch2.Length.clock(&a.ch2.Enabled)
	a.ch3.Length.clock(&a.ch3.Enabled)
	a.ch4.Length.clock(&a.ch4.Enabled)
}

func dac(enabled bool, value uint8) int {
	if !enabled {
		return 0
	}
	return int(value)*2 - 15
}

func (a *APU) emitSample() {
	var left, right int
	if a.powered {
		outputs := [4]int{
			dac(a.ch1.DAC, a.ch1.output()),
			dac(a.ch2.DAC, a.ch2.output()),
			dac(a.ch3.DAC, a.ch3.output()),
			dac(a.ch4.DAC, a.ch4.output()),
		}
		panning := a.regs[addr.NR51-addr.AudioStart]
		for i, out := range outputs {
			if bit.IsSet(uint8(i+4), panning) {
				left += out
			}
			if bit.IsSet(uint8(i), panning) {
				right += out
			}
		}
		volume := a.regs[addr.NR50-addr.AudioStart]
		left *= int(volume>>4&0x07) + 1
		right *= int(volume&0x07) + 1
	}

	if len(a.samples)+2 > a.maxSamples {
		// nobody is draining, keep the most recent half
		n := copy(a.samples, a.samples[len(a.samples)/2:])
		a.samples = a.samples[:n]
	}
	a.samples = append(a.samples, int16(left*sampleAmplitude), int16(right*sampleAmplitude))
}

// Samples returns the interleaved stereo samples generated since the last
// call and empties the buffer.
func (a *APU) Samples() []int16 {
	out := make([]int16, len(a.samples))
	copy(out, a.samples)
	a.samples = a.samples[:0]
	return out
}

// ChannelsEnabled reports the status bits of the four channels.
func (a *APU) ChannelsEnabled() [4]bool {
	return [4]bool{a.ch1.Enabled, a.ch2.Enabled, a.ch3.Enabled, a.ch4.Enabled}
}

// ReadRegister reads an audio register or wave RAM in FF10-FF3F.
func (a *APU) ReadRegister(address uint16) uint8 {
	if address < addr.AudioStart || address > addr.AudioEnd {
		return 0xFF
	}
	index := address - addr.AudioStart

	switch {
	case address == addr.NR52:
		status := uint8(0x70)
		if a.powered {
			status |= 0x80
		}
		for i, on := range a.ChannelsEnabled() {
			if on {
				status |= 1 << i
			}
		}
		return status
	case address >= addr.WaveRAMStart:
		return a.regs[index]
	case int(index) < len(readMasks):
		return a.regs[index] | readMasks[index]
	}
	return 0xFF
}

// WriteRegister writes an audio register or wave RAM. While powered off
// only NR52 and wave RAM accept writes.
func (a *APU) WriteRegister(address uint16, value uint8) {
	if address < addr.AudioStart || address > addr.AudioEnd {
		return
	}
	index := address - addr.AudioStart

	switch {
	case address >= addr.WaveRAMStart:
		a.regs[index] = value
		return
	case address == addr.NR52:
		a.setPower(bit.IsSet(7, value))
		return
	case !a.powered:
		return
	case int(index) >= len(readMasks):
		return
	}

	a.regs[index] = value

	switch address {
	case addr.NR10:
		a.ch1.SweepPeriod = value >> 4 & 0x07
		a.ch1.SweepNegate = bit.IsSet(3, value)
		a.ch1.SweepShift = value & 0x07
	case addr.NR11:
		a.ch1.Duty = value >> 6
		a.ch1.Length.Counter = 64 - int(value&0x3F)
	case addr.NR12:
		a.ch1.Envelope.load(value)
		a.ch1.DAC = value&0xF8 != 0
		a.ch1.Enabled = a.ch1.Enabled && a.ch1.DAC
	case addr.NR13:
		a.ch1.Freq = a.ch1.Freq&0x700 | uint16(value)
	case addr.NR14:
		a.ch1.Freq = a.ch1.Freq&0xFF | uint16(value&0x07)<<8
		a.ch1.Length.Enabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.ch1.trigger(true)
		}

	case addr.NR21:
		a.ch2.Duty = value >> 6
		a.ch2.Length.Counter = 64 - int(value&0x3F)
	case addr.NR22:
		a.ch2.Envelope.load(value)
		a.ch2.DAC = value&0xF8 != 0
		a.ch2.Enabled = a.ch2.Enabled && a.ch2.DAC
	case addr.NR23:
		a.ch2.Freq = a.ch2.Freq&0x700 | uint16(value)
	case addr.NR24:
		a.ch2.Freq = a.ch2.Freq&0xFF | uint16(value&0x07)<<8
		a.ch2.Length.Enabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.ch2.trigger(false)
		}

	case addr.NR30:
		a.ch3.DAC = bit.IsSet(7, value)
		a.ch3.Enabled = a.ch3.Enabled && a.ch3.DAC
	case addr.NR31:
		a.ch3.Length.Counter = 256 - int(value)
	case addr.NR32:
		a.ch3.Level = value >> 5 & 0x03
	case addr.NR33:
		a.ch3.Freq = a.ch3.Freq&0x700 | uint16(value)
	case addr.NR34:
		a.ch3.Freq = a.ch3.Freq&0xFF | uint16(value&0x07)<<8
		a.ch3.Length.Enabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.ch3.trigger()
		}

	case addr.NR41:
		a.ch4.Length.Counter = 64 - int(value&0x3F)
	case addr.NR42:
		a.ch4.Envelope.load(value)
		a.ch4.DAC = value&0xF8 != 0
		a.ch4.Enabled = a.ch4.Enabled && a.ch4.DAC
	case addr.NR43:
		a.ch4.Shift = value >> 4
		a.ch4.Narrow = bit.IsSet(3, value)
		a.ch4.Divisor = value & 0x07
	case addr.NR44:
		a.ch4.Length.Enabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.ch4.trigger()
		}
	}
}

// setPower handles NR52 bit 7. Powering off clears every register except
// wave RAM and stops all channels.
func (a *APU) setPower(on bool) {
	if on == a.powered {
		return
	}
	a.powered = on
	if on {
		a.frameStep = 0
		return
	}

	slog.Debug("APU powered off")
	for i := 0; i < int(waveRAMOffset); i++ {
		a.regs[i] = 0
	}
	a.ch1 = PulseChannel{}
	a.ch2 = PulseChannel{}
	a.ch3 = WaveChannel{}
	a.ch4 = NoiseChannel{}
}

// APUState is the serializable state of the APU. Buffered output samples
// are not part of it.
type APUState struct {
	Registers []byte
	Powered   bool
	FrameStep int
	SampleAcc int
	Ch1, Ch2  PulseChannel
	Ch3       WaveChannel
	Ch4       NoiseChannel
}

// Snapshot captures the APU state.
func (a *APU) Snapshot() APUState {
	return APUState{
		Registers: append([]byte(nil), a.regs[:]...),
		Powered:   a.powered,
		FrameStep: a.frameStep,
		SampleAcc: a.sampleAcc,
		Ch1:       a.ch1,
		Ch2:       a.ch2,
		Ch3:       a.ch3,
		Ch4:       a.ch4,
	}
}

// Validate checks s without modifying the APU.
func (a *APU) Validate(s APUState) error {
	switch {
	case len(s.Registers) != len(a.regs):
		return fmt.Errorf("audio registers are %d bytes, expected %d", len(s.Registers), len(a.regs))
	case s.FrameStep < 0 || s.FrameStep > 7:
		return fmt.Errorf("frame sequencer step %d out of range", s.FrameStep)
	case s.Ch1.Duty > 3 || s.Ch2.Duty > 3:
		return fmt.Errorf("invalid pulse duty")
	case s.Ch3.Level > 3 || s.Ch3.Position > 31:
		return fmt.Errorf("invalid wave channel state")
	case s.Ch4.Divisor > 7:
		return fmt.Errorf("invalid noise divisor %d", s.Ch4.Divisor)
	}
	return nil
}

// Restore applies a state previously checked with Validate.
func (a *APU) Restore(s APUState) {
	copy(a.regs[:], s.Registers)
	a.powered = s.Powered
	a.frameStep = s.FrameStep
	a.sampleAcc = s.SampleAcc
	a.ch1, a.ch2, a.ch3, a.ch4 = s.Ch1, s.Ch2, s.Ch3, s.Ch4
	a.samples = a.samples[:0]
}
