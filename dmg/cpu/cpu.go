package cpu

import (
	"errors"
	"fmt"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

// ErrUnsupportedInstruction is returned by Step when the CPU fetches one of
// the opcodes the SM83 leaves undefined. The CPU stays faulted afterwards.
var ErrUnsupportedInstruction = errors.New("unsupported instruction")

// Bus is everything the CPU sees of the rest of the machine.
// Read and Write take no time; Tick advances every other component by one
// machine cycle.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	Tick()
	// Pending returns IE & IF.
	Pending() uint8
	Acknowledge(interrupt addr.Interrupt)
	// ResetDivider resets the timer's internal counter.
	ResetDivider()
}

// Flag is one of the 4 possible flags used in the flag register (high part of AF)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// Registers is a copy of the register file.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
}

// CPU is the SM83 core. It drives time: every memory access and internal
// delay ticks the bus by one machine cycle.
type CPU struct {
	// registers
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	ime       bool
	eiPending bool // EI delay: interrupts enable after the next instruction
	halted    bool
	stopped   bool

	// haltBug makes the next opcode fetch skip the PC increment, so the byte
	// after HALT is read twice.
	haltBug bool

	fault      error
	cycles     uint64
	stepCycles int

	bus Bus
}

type Option func(*CPU)

// FromPowerOn starts the CPU at 0x0000 with cleared registers, for running
// a boot ROM.
func FromPowerOn() Option {
	return func(c *CPU) {
		c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l = 0, 0, 0, 0, 0, 0, 0, 0
		c.sp = 0
		c.pc = 0
	}
}

// New returns a CPU in the state the DMG boot ROM leaves it in.
func New(bus Bus, opts ...Option) *CPU {
	c := &CPU{bus: bus}
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Step runs one instruction, one interrupt dispatch, or one halted machine
// cycle, and returns the machine cycles it took.
func (c *CPU) Step() (int, error) {
	if c.fault != nil {
		return 0, c.fault
	}
	c.stepCycles = 0

	if c.halted {
		if !c.shouldWake() {
			c.tick()
			return c.stepCycles, nil
		}
		c.halted = false
		if c.stopped {
			c.stopped = false
			c.bus.ResetDivider()
		}
	}

	if c.ime && c.bus.Pending() != 0 {
		c.dispatchInterrupt()
		return c.stepCycles, nil
	}

	enableAfter := c.eiPending
	pc := c.pc
	opcode := c.fetchOpcode()
	in := &instructions[opcode]
	if in.kind == kindIllegal {
		c.pc = pc
		c.fault = fmt.Errorf("%w: opcode 0x%02X at 0x%04X", ErrUnsupportedInstruction, opcode, pc)
		return c.stepCycles, c.fault
	}
	in.exec(c, opcode)

	// DI in between cancels the pending enable
	if enableAfter && c.eiPending {
		c.eiPending = false
		c.ime = true
	}
	return c.stepCycles, nil
}

// shouldWake reports whether a halted CPU resumes. A stopped CPU also wakes
// on a joypad request even if the interrupt is not enabled.
func (c *CPU) shouldWake() bool {
	if c.bus.Pending() != 0 {
		return true
	}
	return c.stopped && c.bus.Read(addr.IF)&uint8(addr.JoypadInterrupt) != 0
}

// dispatchInterrupt services the highest priority pending interrupt in 5
// machine cycles. The pending set is sampled after the high byte of PC is
// pushed: if that push overwrote IE and nothing is left, PC becomes 0.
// A halt bug left by EI followed by HALT makes the handler return to the
// HALT itself.
func (c *CPU) dispatchInterrupt() {
	c.ime = false
	if c.haltBug {
		c.haltBug = false
		c.pc--
	}
	c.tick()
	c.tick()

	c.sp--
	c.write(c.sp, bit.High(c.pc))
	pending := c.bus.Pending()
	c.sp--
	c.write(c.sp, bit.Low(c.pc))

	c.pc = 0x0000
	if interrupt, ok := addr.Highest(pending); ok {
		c.bus.Acknowledge(interrupt)
		c.pc = interrupt.Vector()
	}
	c.tick()
}

func (c *CPU) tick() {
	c.bus.Tick()
	c.stepCycles++
	c.cycles++
}

// fetchOpcode reads the byte at PC. Under the halt bug PC is not advanced.
func (c *CPU) fetchOpcode() uint8 {
	opcode := c.read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}
	return opcode
}

// read performs a timed bus read.
func (c *CPU) read(address uint16) uint8 {
	v := c.bus.Read(address)
	c.tick()
	return v
}

// write performs a timed bus write.
func (c *CPU) write(address uint16, value uint8) {
	c.bus.Write(address, value)
	c.tick()
}

// readImmediate returns the byte at PC ('n' in mnemonics) and advances PC.
func (c *CPU) readImmediate() uint8 {
	n := c.read(c.pc)
	c.pc++
	return n
}

// readImmediateWord returns the little endian word at PC ('nn' in mnemonics).
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// Cycles returns the machine cycles executed since creation.
func (c *CPU) Cycles() uint64 { return c.cycles }

// PC returns the program counter.
func (c *CPU) PC() uint16 { return c.pc }

// IME reports whether interrupts are enabled.
func (c *CPU) IME() bool { return c.ime }

// Halted reports whether the CPU is waiting in HALT or STOP.
func (c *CPU) Halted() bool { return c.halted }

// Fault returns the error that stopped the CPU, if any.
func (c *CPU) Fault() error { return c.fault }

// Registers returns a copy of the register file.
func (c *CPU) Registers() Registers {
	return Registers{
		A: c.a, F: c.f, B: c.b, C: c.c, D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
	}
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit will return 1 if the passed flag is set, 0 otherwise
func (c *CPU) flagToBit(flag Flag) uint8 {
	return bit.Bool(c.isSetFlag(flag))
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if !condition {
		c.resetFlag(flag)
		return
	}
	c.setFlag(flag)
}

// setFlags replaces all four flags.
func (c *CPU) setFlags(z, n, h, cy bool) {
	c.f = bit.Bool(z)<<7 | bit.Bool(n)<<6 | bit.Bool(h)<<5 | bit.Bool(cy)<<4
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// F register lower 4 bits must be 0
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

// FlagString returns the flags as "ZNHC", with '-' for clear flags.
func (c *CPU) FlagString() string {
	flags := []byte("----")
	for i, name := range []byte("ZNHC") {
		if c.f&(0x80>>i) != 0 {
			flags[i] = name
		}
	}
	return string(flags)
}
