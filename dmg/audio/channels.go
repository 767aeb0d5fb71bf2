package audio

// dutyPatterns are the 8-step waveforms for 12.5%, 25%, 50% and 75% duty.
var dutyPatterns = [4]uint8{
	0b00000001,
	0b10000001,
	0b10000111,
	0b01111110,
}

// noiseDivisors maps the NR43 divisor code to a period in t-cycles.
var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// Envelope is the volume envelope shared by the pulse and noise channels.
type Envelope struct {
	Initial  uint8
	Increase bool
	Period   uint8
	Volume   uint8
	Timer    uint8
}

func (e *Envelope) load(value uint8) {
	e.Initial = value >> 4
	e.Increase = value&0x08 != 0
	e.Period = value & 0x07
}

func (e *Envelope) trigger() {
	e.Volume = e.Initial
	e.Timer = e.Period
}

func (e *Envelope) clock() {
	if e.Period == 0 {
		return
	}
	if e.Timer > 0 {
		e.Timer--
	}
	if e.Timer != 0 {
		return
	}
	e.Timer = e.Period
	if e.Increase && e.Volume < 15 {
		e.Volume++
	} else if !e.Increase && e.Volume > 0 {
		e.Volume--
	}
}

// Length is a channel length counter. It disables the channel when it
// reaches zero while enabled.
type Length struct {
	Counter int
	Enabled bool
}

func (l *Length) clock(enabled *bool) {
	if !l.Enabled || l.Counter == 0 {
		return
	}
	l.Counter--
	if l.Counter == 0 {
		*enabled = false
	}
}

// PulseChannel is channels 1 and 2. Only channel 1 uses the sweep unit.
type PulseChannel struct {
	Enabled  bool
	DAC      bool
	Duty     uint8
	DutyStep uint8
	Freq     uint16
	Timer    int
	Length   Length
	Envelope Envelope

	SweepPeriod  uint8
	SweepNegate  bool
	SweepShift   uint8
	SweepTimer   uint8
	SweepEnabled bool
	ShadowFreq   uint16
}

func (c *PulseChannel) period() int {
	return (2048 - int(c.Freq)) * 4
}

func (c *PulseChannel) step(cycles int) {
	c.Timer -= cycles
	for c.Timer <= 0 {
		c.Timer += c.period()
		c.DutyStep = (c.DutyStep + 1) & 7
	}
}

func (c *PulseChannel) output() uint8 {
	if !c.Enabled {
		return 0
	}
	if dutyPatterns[c.Duty]>>(7-c.DutyStep)&1 == 0 {
		return 0
	}
	return c.Envelope.Volume
}

func (c *PulseChannel) trigger(sweep bool) {
	c.Enabled = c.DAC
	if c.Length.Counter == 0 {
		c.Length.Counter = 64
	}
	c.Timer = c.period()
	c.Envelope.trigger()

	if !sweep {
		return
	}
	c.ShadowFreq = c.Freq
	c.SweepTimer = c.sweepReload()
	c.SweepEnabled = c.SweepPeriod != 0 || c.SweepShift != 0
	if c.SweepShift != 0 {
		c.sweepCalculate()
	}
}

func (c *PulseChannel) sweepReload() uint8 {
	if c.SweepPeriod == 0 {
		return 8
	}
	return c.SweepPeriod
}

// sweepCalculate computes the next frequency and disables the channel on
// overflow past 2047.
func (c *PulseChannel) sweepCalculate() uint16 {
	delta := c.ShadowFreq >> c.SweepShift
	next := c.ShadowFreq + delta
	if c.SweepNegate {
		next = c.ShadowFreq - delta
	}
	if next > 2047 {
		c.Enabled = false
	}
	return next
}

func (c *PulseChannel) clockSweep() {
	if c.SweepTimer > 0 {
		c.SweepTimer--
	}
	if c.SweepTimer != 0 {
		return
	}
	c.SweepTimer = c.sweepReload()
	if !c.SweepEnabled || c.SweepPeriod == 0 {
		return
	}

	next := c.sweepCalculate()
	if next <= 2047 && c.SweepShift != 0 {
		c.ShadowFreq = next
		c.Freq = next
		c.sweepCalculate()
	}
}

// WaveChannel is channel 3, playing 32 4-bit samples from wave RAM.
type WaveChannel struct {
	Enabled  bool
	DAC      bool
	Level    uint8 // NR32 output level code
	Freq     uint16
	Timer    int
	Position uint8
	Sample   uint8
	Length   Length
}

func (c *WaveChannel) period() int {
	return (2048 - int(c.Freq)) * 2
}

func (c *WaveChannel) step(cycles int, wave []byte) {
	c.Timer -= cycles
	for c.Timer <= 0 {
		c.Timer += c.period()
		c.Position = (c.Position + 1) & 31
		b := wave[c.Position/2]
		if c.Position&1 == 0 {
			c.Sample = b >> 4
		} else {
			c.Sample = b & 0x0F
		}
	}
}

func (c *WaveChannel) output() uint8 {
	if !c.Enabled || c.Level == 0 {
		return 0
	}
	return c.Sample >> (c.Level - 1)
}

func (c *WaveChannel) trigger() {
	c.Enabled = c.DAC
	if c.Length.Counter == 0 {
		c.Length.Counter = 256
	}
	c.Timer = c.period()
	c.Position = 0
}

// NoiseChannel is channel 4, driven by a 15-bit LFSR.
type NoiseChannel struct {
	Enabled  bool
	DAC      bool
	Shift    uint8
	Narrow   bool
	Divisor  uint8
	LFSR     uint16
	Timer    int
	Length   Length
	Envelope Envelope
}

func (c *NoiseChannel) period() int {
	return noiseDivisors[c.Divisor] << c.Shift
}

func (c *NoiseChannel) step(cycles int) {
	c.Timer -= cycles
	for c.Timer <= 0 {
		c.Timer += c.period()
		feedback := (c.LFSR ^ c.LFSR>>1) & 1
		c.LFSR = c.LFSR>>1 | feedback<<14
		if c.Narrow {
			c.LFSR = c.LFSR&^(1<<6) | feedback<<6
		}
	}
}

func (c *NoiseChannel) output() uint8 {
	if !c.Enabled || c.LFSR&1 != 0 {
		return 0
	}
	return c.Envelope.Volume
}

func (c *NoiseChannel) trigger() {
	c.Enabled = c.DAC
	if c.Length.Counter == 0 {
		c.Length.Counter = 64
	}
	c.Timer = c.period()
	c.LFSR = 0x7FFF
	c.Envelope.trigger()
}
