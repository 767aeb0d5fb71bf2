package testrom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/cpu"
	"github.com/valerio/go-dmg/dmg/memory"
)

// newMachine builds an MBC1+RAM+BATTERY cartridge running program from
// 0x0150, with data placed at 0x0200.
func newMachine(t *testing.T, program, data []byte) *dmg.DMG {
	t.Helper()
	rom := make([]byte, 0x8000)
	copy(rom[0x134:], "TESTROM")
	rom[0x147] = 0x03
	rom[0x149] = 0x02
	copy(rom[0x100:], []byte{0x00, 0xC3, 0x50, 0x01})
	copy(rom[0x150:], program)
	copy(rom[0x200:], data)
	rom[0x14D] = memory.HeaderChecksum(rom)

	d, err := dmg.New(rom)
	require.NoError(t, err)
	return d
}

// printString sends the NUL terminated string at 0x0200 over serial.
var printString = []byte{
	0x21, 0x00, 0x02, // LD HL,$0200
	0x2A,       // loop: LD A,(HL+)
	0xB7,       // OR A
	0x28, 0x0E, // JR Z,done
	0xE0, 0x01, // LDH ($01),A
	0x3E, 0x81, // LD A,$81
	0xE0, 0x02, // LDH ($02),A
	0xF0, 0x02, // wait: LDH A,($02)
	0xCB, 0x7F, // BIT 7,A
	0x20, 0xFA, // JR NZ,wait
	0x18, 0xEE, // JR loop
	0x18, 0xFE, // done: JR done
}

func memoryReport(status byte) []byte {
	return []byte{
		0x3E, 0x0A, 0xEA, 0x00, 0x00, // enable cartridge RAM
		0x3E, 0xDE, 0xEA, 0x01, 0xA0,
		0x3E, 0xB0, 0xEA, 0x02, 0xA0,
		0x3E, 0x61, 0xEA, 0x03, 0xA0,
		0x3E, 'o', 0xEA, 0x04, 0xA0,
		0x3E, 'k', 0xEA, 0x05, 0xA0,
		0x3E, status, 0xEA, 0x00, 0xA0,
		0x18, 0xFE,
	}
}

func breakpointReport(b, c, d, e, h, l byte) []byte {
	return []byte{
		0x06, b, 0x0E, c, 0x16, d, 0x1E, e, 0x26, h, 0x2E, l,
		0x40, // LD B,B
		0x18, 0xFE,
	}
}

func TestRun(t *testing.T) {
	testCases := []struct {
		desc    string
		program []byte
		data    []byte
		signals Signal
		status  Status
		output  string
		code    byte
	}{
		{
			desc:    "serial passed",
			program: printString,
			data:    []byte("cpu_instrs\n\nPassed all tests\n\x00"),
			status:  Passed,
			output:  "cpu_instrs\n\nPassed all tests\n",
		},
		{
			desc:    "serial failed",
			program: printString,
			data:    []byte("01-special\n\nFailed #3\n\x00"),
			status:  Failed,
			output:  "01-special\n\nFailed #3\n",
		},
		{
			desc:    "memory passed",
			program: memoryReport(0x00),
			status:  Passed,
			output:  "ok",
		},
		{
			desc:    "memory failed",
			program: memoryReport(0x02),
			status:  Failed,
			output:  "ok",
			code:    0x02,
		},
		{
			desc:    "memory still running",
			program: memoryReport(0x80),
			status:  Timeout,
		},
		{
			desc:    "breakpoint passed",
			program: breakpointReport(3, 5, 8, 13, 21, 34),
			status:  Passed,
		},
		{
			desc:    "breakpoint failed",
			program: breakpointReport(0x42, 0x42, 0x42, 0x42, 0x42, 0x42),
			status:  Failed,
			output:  "registers B=66 C=66 D=66 E=66 H=66 L=66",
		},
		{
			desc:    "breakpoint ignored",
			program: breakpointReport(3, 5, 8, 13, 21, 34),
			signals: SerialText | MemorySignature,
			status:  Timeout,
		},
		{
			desc:    "silent",
			program: []byte{0x18, 0xFE},
			status:  Timeout,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			d := newMachine(t, tC.program, tC.data)
			r, err := Run(d, Config{MaxFrames: 10, Signals: tC.signals})
			require.NoError(t, err)
			assert.Equal(t, tC.status, r.Status)
			assert.Equal(t, tC.output, r.Output)
			assert.Equal(t, tC.code, r.Code)
			if tC.status == Timeout {
				assert.Equal(t, uint64(10), r.Frames)
			} else {
				assert.LessOrEqual(t, r.Frames, uint64(1))
			}
		})
	}
}

func TestRunBreakpointStopsBeforeInstruction(t *testing.T) {
	d := newMachine(t, breakpointReport(3, 5, 8, 13, 21, 34), nil)
	r, err := Run(d, Config{MaxFrames: 10})
	require.NoError(t, err)
	assert.Equal(t, Passed, r.Status)
	assert.Equal(t, uint16(0x015C), d.Registers().PC)
}

func TestRunReturnsFault(t *testing.T) {
	d := newMachine(t, []byte{0x00, 0xE4}, nil)
	_, err := Run(d, Config{MaxFrames: 10})
	assert.ErrorIs(t, err, cpu.ErrUnsupportedInstruction)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "timeout", Timeout.String())
}
