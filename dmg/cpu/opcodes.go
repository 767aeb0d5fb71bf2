package cpu

import (
	"fmt"

	"github.com/valerio/go-dmg/dmg/bit"
)

type kind uint8

const (
	kindMisc kind = iota
	kindLoad
	kindALU
	kindJump
	kindCall
	kindReturn
	kindStack
	kindRotate
	kindBit
	kindPrefix
	kindIllegal
)

// instruction describes one opcode. Handlers receive the opcode so that a
// single handler can serve a whole block, decoding its operands from the
// opcode bits.
//
// cycles is the cost in machine cycles (for conditional branches, when not
// taken). CB entries include the prefix fetch.
type instruction struct {
	name        string
	kind        kind
	cycles      int
	takenCycles int
	exec        func(c *CPU, opcode uint8)
}

var (
	instructions   [256]instruction
	cbInstructions [256]instruction
)

var illegalOpcodes = [...]uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func init() {
	regs := [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	pairs := [4]string{"BC", "DE", "HL", "SP"}
	stackPairs := [4]string{"BC", "DE", "HL", "AF"}
	indirect := [4]string{"(BC)", "(DE)", "(HL+)", "(HL-)"}
	conds := [4]string{"NZ", "Z", "NC", "C"}
	aluNames := [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	shiftNames := [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}

	set := func(op uint8, name string, k kind, cycles int, exec func(*CPU, uint8)) {
		instructions[op] = instruction{name: name, kind: k, cycles: cycles, exec: exec}
	}
	branch := func(op uint8, name string, k kind, cycles, taken int, exec func(*CPU, uint8)) {
		instructions[op] = instruction{name: name, kind: k, cycles: cycles, takenCycles: taken, exec: exec}
	}

	for i := uint8(0); i < 4; i++ {
		row := i << 4
		set(row|0x01, "LD "+pairs[i]+",d16", kindLoad, 3, ldReg16Imm)
		set(row|0x02, "LD "+indirect[i]+",A", kindLoad, 2, ldIndirectA)
		set(row|0x03, "INC "+pairs[i], kindALU, 2, incReg16)
		set(row|0x09, "ADD HL,"+pairs[i], kindALU, 2, addHLReg16)
		set(row|0x0A, "LD A,"+indirect[i], kindLoad, 2, ldAIndirect)
		set(row|0x0B, "DEC "+pairs[i], kindALU, 2, decReg16)
		set(0xC1|row, "POP "+stackPairs[i], kindStack, 3, pop)
		set(0xC5|row, "PUSH "+stackPairs[i], kindStack, 4, push)

		cc := i << 3
		branch(0x20|cc, "JR "+conds[i]+",r8", kindJump, 2, 3, jrCond)
		branch(0xC0|cc, "RET "+conds[i], kindReturn, 2, 5, retCond)
		branch(0xC2|cc, "JP "+conds[i]+",a16", kindJump, 3, 4, jpCond)
		branch(0xC4|cc, "CALL "+conds[i]+",a16", kindCall, 3, 6, callCond)
	}

	for r := uint8(0); r < 8; r++ {
		rmw, load := 1, 2
		if r == operandHL {
			rmw, load = 3, 3
		}
		set(r<<3|0x04, "INC "+regs[r], kindALU, rmw, incReg8)
		set(r<<3|0x05, "DEC "+regs[r], kindALU, rmw, decReg8)
		set(r<<3|0x06, "LD "+regs[r]+",d8", kindLoad, load, ldReg8Imm)
		set(0xC6|r<<3, aluNames[r]+"d8", kindALU, 2, aluImm)
		set(0xC7|r<<3, fmt.Sprintf("RST %02XH", r<<3), kindCall, 4, rst)

		for src := uint8(0); src < 8; src++ {
			cycles := 1
			if r == operandHL || src == operandHL {
				cycles = 2
			}
			set(0x40|r<<3|src, "LD "+regs[r]+","+regs[src], kindLoad, cycles, ldRegReg)

			cycles = 1
			if src == operandHL {
				cycles = 2
			}
			set(0x80|r<<3|src, aluNames[r]+regs[src], kindALU, cycles, aluReg)
		}
	}

	set(0x00, "NOP", kindMisc, 1, nop)
	set(0x10, "STOP d8", kindMisc, 1, stop)
	set(0x76, "HALT", kindMisc, 1, halt)
	set(0xF3, "DI", kindMisc, 1, di)
	set(0xFB, "EI", kindMisc, 1, ei)
	set(0xCB, "PREFIX CB", kindPrefix, 1, prefixCB)

	set(0x07, "RLCA", kindRotate, 1, rotateA)
	set(0x0F, "RRCA", kindRotate, 1, rotateA)
	set(0x17, "RLA", kindRotate, 1, rotateA)
	set(0x1F, "RRA", kindRotate, 1, rotateA)
	set(0x27, "DAA", kindALU, 1, daa)
	set(0x2F, "CPL", kindALU, 1, cpl)
	set(0x37, "SCF", kindALU, 1, scf)
	set(0x3F, "CCF", kindALU, 1, ccf)
	set(0xE8, "ADD SP,r8", kindALU, 4, addSP)

	set(0x08, "LD (a16),SP", kindLoad, 5, ldAddrSP)
	set(0xE0, "LDH (a8),A", kindLoad, 3, ldhWriteA)
	set(0xF0, "LDH A,(a8)", kindLoad, 3, ldhReadA)
	set(0xE2, "LD (C),A", kindLoad, 2, ldCWriteA)
	set(0xF2, "LD A,(C)", kindLoad, 2, ldCReadA)
	set(0xEA, "LD (a16),A", kindLoad, 4, ldAddrA)
	set(0xFA, "LD A,(a16)", kindLoad, 4, ldAAddr)
	set(0xF8, "LD HL,SP+r8", kindLoad, 3, ldHLSP)
	set(0xF9, "LD SP,HL", kindLoad, 2, ldSPHL)

	set(0x18, "JR r8", kindJump, 3, jr)
	set(0xC3, "JP a16", kindJump, 4, jp)
	set(0xE9, "JP HL", kindJump, 1, jpHL)
	set(0xCD, "CALL a16", kindCall, 6, call)
	set(0xC9, "RET", kindReturn, 4, ret)
	set(0xD9, "RETI", kindReturn, 4, reti)

	for _, op := range illegalOpcodes {
		instructions[op] = instruction{name: "ILLEGAL", kind: kindIllegal, cycles: 1}
	}

	for i := 0; i < 256; i++ {
		op := uint8(i)
		r, index := op&7, op>>3&7
		rmw, test := 2, 2
		if r == operandHL {
			rmw, test = 4, 3
		}
		switch op >> 6 {
		case 0:
			cbInstructions[op] = instruction{name: shiftNames[index] + " " + regs[r], kind: kindRotate, cycles: rmw, exec: cbShift}
		case 1:
			cbInstructions[op] = instruction{name: fmt.Sprintf("BIT %d,%s", index, regs[r]), kind: kindBit, cycles: test, exec: cbBit}
		case 2:
			cbInstructions[op] = instruction{name: fmt.Sprintf("RES %d,%s", index, regs[r]), kind: kindBit, cycles: rmw, exec: cbRes}
		case 3:
			cbInstructions[op] = instruction{name: fmt.Sprintf("SET %d,%s", index, regs[r]), kind: kindBit, cycles: rmw, exec: cbSet}
		}
	}
}

func nop(*CPU, uint8) {}

// STOP skips its padding byte and waits like HALT. DIV is reset on wake.
func stop(c *CPU, _ uint8) {
	c.pc++
	c.halted = true
	c.stopped = true
}

// HALT with IME clear and an interrupt already pending does not halt, and
// the next fetch repeats the following byte.
func halt(c *CPU, _ uint8) {
	if !c.ime && c.bus.Pending() != 0 {
		c.haltBug = true
		return
	}
	c.halted = true
}

func di(c *CPU, _ uint8) {
	c.ime = false
	c.eiPending = false
}

func ei(c *CPU, _ uint8) {
	c.eiPending = true
}

func prefixCB(c *CPU, _ uint8) {
	op := c.readImmediate()
	cbInstructions[op].exec(c, op)
}

// LD rr,d16
func ldReg16Imm(c *CPU, op uint8) {
	c.setReg16(op>>4&3, c.readImmediateWord())
}

// indirectAddress decodes (BC), (DE), (HL+) and (HL-) from bits 4-5.
func (c *CPU) indirectAddress(op uint8) uint16 {
	switch op >> 4 & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		hl := c.getHL()
		c.setHL(hl + 1)
		return hl
	}
	hl := c.getHL()
	c.setHL(hl - 1)
	return hl
}

func ldIndirectA(c *CPU, op uint8) {
	c.write(c.indirectAddress(op), c.a)
}

func ldAIndirect(c *CPU, op uint8) {
	c.a = c.read(c.indirectAddress(op))
}

func incReg16(c *CPU, op uint8) {
	index := op >> 4 & 3
	c.setReg16(index, c.reg16(index)+1)
	c.tick()
}

func decReg16(c *CPU, op uint8) {
	index := op >> 4 & 3
	c.setReg16(index, c.reg16(index)-1)
	c.tick()
}

func addHLReg16(c *CPU, op uint8) {
	c.addToHL(c.reg16(op >> 4 & 3))
	c.tick()
}

func incReg8(c *CPU, op uint8) {
	index := op >> 3 & 7
	c.setReg8(index, c.inc(c.reg8(index)))
}

func decReg8(c *CPU, op uint8) {
	index := op >> 3 & 7
	c.setReg8(index, c.dec(c.reg8(index)))
}

// LD r,d8
func ldReg8Imm(c *CPU, op uint8) {
	value := c.readImmediate()
	c.setReg8(op>>3&7, value)
}

// LD r,r'
func ldRegReg(c *CPU, op uint8) {
	c.setReg8(op>>3&7, c.reg8(op&7))
}

func aluReg(c *CPU, op uint8) {
	c.alu(op>>3&7, c.reg8(op&7))
}

func aluImm(c *CPU, op uint8) {
	c.alu(op>>3&7, c.readImmediate())
}

// RLCA, RRCA, RLA and RRA always clear Z.
func rotateA(c *CPU, op uint8) {
	c.a = c.shift(op>>3&3, c.a)
	c.resetFlag(zeroFlag)
}

func daa(c *CPU, _ uint8) {
	c.daa()
}

func cpl(c *CPU, _ uint8) {
	c.a = ^c.a
	c.setFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

func scf(c *CPU, _ uint8) {
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlag(carryFlag)
}

func ccf(c *CPU, _ uint8) {
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, !c.isSetFlag(carryFlag))
}

func addSP(c *CPU, _ uint8) {
	c.sp = c.addSPSigned(c.readSignedImmediate())
	c.tick()
	c.tick()
}

func ldHLSP(c *CPU, _ uint8) {
	c.setHL(c.addSPSigned(c.readSignedImmediate()))
	c.tick()
}

func ldSPHL(c *CPU, _ uint8) {
	c.sp = c.getHL()
	c.tick()
}

func ldAddrSP(c *CPU, _ uint8) {
	address := c.readImmediateWord()
	c.write(address, bit.Low(c.sp))
	c.write(address+1, bit.High(c.sp))
}

func ldhWriteA(c *CPU, _ uint8) {
	c.write(0xFF00|uint16(c.readImmediate()), c.a)
}

func ldhReadA(c *CPU, _ uint8) {
	c.a = c.read(0xFF00 | uint16(c.readImmediate()))
}

func ldCWriteA(c *CPU, _ uint8) {
	c.write(0xFF00|uint16(c.c), c.a)
}

func ldCReadA(c *CPU, _ uint8) {
	c.a = c.read(0xFF00 | uint16(c.c))
}

func ldAddrA(c *CPU, _ uint8) {
	c.write(c.readImmediateWord(), c.a)
}

func ldAAddr(c *CPU, _ uint8) {
	c.a = c.read(c.readImmediateWord())
}

func pop(c *CPU, op uint8) {
	value := c.popStack()
	index := op >> 4 & 3
	if index == 3 {
		c.setAF(value)
		return
	}
	c.setReg16(index, value)
}

func push(c *CPU, op uint8) {
	index := op >> 4 & 3
	if index == 3 {
		c.pushStack(c.getAF())
		return
	}
	c.pushStack(c.reg16(index))
}

func jr(c *CPU, _ uint8) {
	offset := c.readSignedImmediate()
	c.pc += uint16(int16(offset))
	c.tick()
}

func jrCond(c *CPU, op uint8) {
	offset := c.readSignedImmediate()
	if c.condition(op >> 3 & 3) {
		c.pc += uint16(int16(offset))
		c.tick()
	}
}

func jp(c *CPU, _ uint8) {
	c.pc = c.readImmediateWord()
	c.tick()
}

func jpCond(c *CPU, op uint8) {
	address := c.readImmediateWord()
	if c.condition(op >> 3 & 3) {
		c.pc = address
		c.tick()
	}
}

func jpHL(c *CPU, _ uint8) {
	c.pc = c.getHL()
}

func call(c *CPU, _ uint8) {
	address := c.readImmediateWord()
	c.pushStack(c.pc)
	c.pc = address
}

func callCond(c *CPU, op uint8) {
	address := c.readImmediateWord()
	if c.condition(op >> 3 & 3) {
		c.pushStack(c.pc)
		c.pc = address
	}
}

func ret(c *CPU, _ uint8) {
	c.pc = c.popStack()
	c.tick()
}

// RETI enables interrupts immediately, without the EI delay.
func reti(c *CPU, op uint8) {
	ret(c, op)
	c.ime = true
}

func retCond(c *CPU, op uint8) {
	c.tick()
	if c.condition(op >> 3 & 3) {
		ret(c, op)
	}
}

func rst(c *CPU, op uint8) {
	c.pushStack(c.pc)
	c.pc = uint16(op & 0x38)
}

func cbShift(c *CPU, op uint8) {
	index := op & 7
	c.setReg8(index, c.shift(op>>3&7, c.reg8(index)))
}

func cbBit(c *CPU, op uint8) {
	c.bitTest(op>>3&7, c.reg8(op&7))
}

func cbRes(c *CPU, op uint8) {
	index := op & 7
	c.setReg8(index, bit.Reset(op>>3&7, c.reg8(index)))
}

func cbSet(c *CPU, op uint8) {
	index := op & 7
	c.setReg8(index, bit.Set(op>>3&7, c.reg8(index)))
}
