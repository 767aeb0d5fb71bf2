package cpu

import "github.com/valerio/go-dmg/dmg/bit"

// Operand indices follow the opcode encoding: B C D E H L (HL) A.
const operandHL = 6

// reg8 reads an 8 bit operand. (HL) costs a machine cycle.
func (c *CPU) reg8(index uint8) uint8 {
	switch index {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case operandHL:
		return c.read(c.getHL())
	}
	return c.a
}

func (c *CPU) setReg8(index uint8, value uint8) {
	switch index {
	case 0:
		c.b = value
	case 1:
		c.c = value
	case 2:
		c.d = value
	case 3:
		c.e = value
	case 4:
		c.h = value
	case 5:
		c.l = value
	case operandHL:
		c.write(c.getHL(), value)
	default:
		c.a = value
	}
}

// reg16 reads BC, DE, HL or SP.
func (c *CPU) reg16(index uint8) uint16 {
	switch index {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	}
	return c.sp
}

func (c *CPU) setReg16(index uint8, value uint16) {
	switch index {
	case 0:
		c.setBC(value)
	case 1:
		c.setDE(value)
	case 2:
		c.setHL(value)
	default:
		c.sp = value
	}
}

// condition evaluates NZ, Z, NC or C.
func (c *CPU) condition(index uint8) bool {
	switch index {
	case 0:
		return !c.isSetFlag(zeroFlag)
	case 1:
		return c.isSetFlag(zeroFlag)
	case 2:
		return !c.isSetFlag(carryFlag)
	}
	return c.isSetFlag(carryFlag)
}

// pushStack takes 3 machine cycles: one internal, then the high byte and
// the low byte.
func (c *CPU) pushStack(value uint16) {
	c.tick()
	c.sp--
	c.write(c.sp, bit.High(value))
	c.sp--
	c.write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.read(c.sp)
	c.sp++
	high := c.read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, result&0x0F == 0)
	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1
	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, result&0x0F == 0x0F)
	return result
}

// addToA sets the result of adding value (and the carry, for ADC) to A.
func (c *CPU) addToA(value uint8, withCarry bool) {
	carry := uint8(0)
	if withCarry {
		carry = c.flagToBit(carryFlag)
	}
	a := c.a
	result := uint16(a) + uint16(value) + uint16(carry)

	c.a = uint8(result)
	c.setFlags(
		c.a == 0,
		false,
		(a&0x0F)+(value&0x0F)+carry > 0x0F,
		result > 0xFF,
	)
}

// sub subtracts value (and the carry, for SBC) from A. CP uses it with
// store set to false.
func (c *CPU) sub(value uint8, withCarry, store bool) {
	carry := uint8(0)
	if withCarry {
		carry = c.flagToBit(carryFlag)
	}
	a := c.a
	result := int(a) - int(value) - int(carry)

	c.setFlags(
		uint8(result) == 0,
		true,
		int(a&0x0F)-int(value&0x0F)-int(carry) < 0,
		result < 0,
	)
	if store {
		c.a = uint8(result)
	}
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.setFlags(c.a == 0, false, true, false)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.setFlags(c.a == 0, false, false, false)
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.setFlags(c.a == 0, false, false, false)
}

// alu runs the operation encoded in bits 3-5 of an arithmetic opcode:
// ADD ADC SUB SBC AND XOR OR CP.
func (c *CPU) alu(op uint8, value uint8) {
	switch op {
	case 0:
		c.addToA(value, false)
	case 1:
		c.addToA(value, true)
	case 2:
		c.sub(value, false, true)
	case 3:
		c.sub(value, true, true)
	case 4:
		c.and(value)
	case 5:
		c.xor(value)
	case 6:
		c.or(value)
	default:
		c.sub(value, false, false)
	}
}

// addToHL adds a 16 bit value to HL. Z is left untouched.
func (c *CPU) addToHL(value uint16) {
	hl := c.getHL()
	result := uint32(hl) + uint32(value)

	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, (hl&0x0FFF)+(value&0x0FFF) > 0x0FFF)
	c.setFlagToCondition(carryFlag, result > 0xFFFF)
	c.setHL(uint16(result))
}

// addSPSigned returns SP plus a signed offset. H and C come from the
// unsigned addition of the low byte, Z and N are cleared.
func (c *CPU) addSPSigned(offset int8) uint16 {
	sp := c.sp
	value := uint16(uint8(offset))
	c.setFlags(
		false,
		false,
		(sp&0x0F)+(value&0x0F) > 0x0F,
		(sp&0xFF)+(value&0xFF) > 0xFF,
	)
	return sp + uint16(int16(offset))
}

// daa adjusts A to a valid BCD value after an addition or subtraction.
func (c *CPU) daa() {
	a := c.a
	carry := c.isSetFlag(carryFlag)
	var adjust uint8

	if c.isSetFlag(subFlag) {
		if c.isSetFlag(halfCarryFlag) {
			adjust |= 0x06
		}
		if carry {
			adjust |= 0x60
		}
		a -= adjust
	} else {
		if c.isSetFlag(halfCarryFlag) || a&0x0F > 0x09 {
			adjust |= 0x06
		}
		if carry || a > 0x99 {
			adjust |= 0x60
			carry = true
		}
		a += adjust
	}

	c.a = a
	c.setFlagToCondition(zeroFlag, a == 0)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry)
}

func (c *CPU) rlc(value uint8) uint8 {
	result := value<<1 | value>>7
	c.setFlags(result == 0, false, false, value&0x80 != 0)
	return result
}

func (c *CPU) rrc(value uint8) uint8 {
	result := value>>1 | value<<7
	c.setFlags(result == 0, false, false, value&0x01 != 0)
	return result
}

func (c *CPU) rl(value uint8) uint8 {
	result := value<<1 | c.flagToBit(carryFlag)
	c.setFlags(result == 0, false, false, value&0x80 != 0)
	return result
}

func (c *CPU) rr(value uint8) uint8 {
	result := value>>1 | c.flagToBit(carryFlag)<<7
	c.setFlags(result == 0, false, false, value&0x01 != 0)
	return result
}

func (c *CPU) sla(value uint8) uint8 {
	result := value << 1
	c.setFlags(result == 0, false, false, value&0x80 != 0)
	return result
}

// sra shifts right keeping bit 7.
func (c *CPU) sra(value uint8) uint8 {
	result := value>>1 | value&0x80
	c.setFlags(result == 0, false, false, value&0x01 != 0)
	return result
}

func (c *CPU) swap(value uint8) uint8 {
	result := value<<4 | value>>4
	c.setFlags(result == 0, false, false, false)
	return result
}

func (c *CPU) srl(value uint8) uint8 {
	result := value >> 1
	c.setFlags(result == 0, false, false, value&0x01 != 0)
	return result
}

// shift runs the CB rotate/shift encoded in bits 3-5:
// RLC RRC RL RR SLA SRA SWAP SRL.
func (c *CPU) shift(op uint8, value uint8) uint8 {
	switch op {
	case 0:
		return c.rlc(value)
	case 1:
		return c.rrc(value)
	case 2:
		return c.rl(value)
	case 3:
		return c.rr(value)
	case 4:
		return c.sla(value)
	case 5:
		return c.sra(value)
	case 6:
		return c.swap(value)
	}
	return c.srl(value)
}

// bitTest sets Z if bit index of value is clear. C is preserved.
func (c *CPU) bitTest(index, value uint8) {
	c.setFlagToCondition(zeroFlag, !bit.IsSet(index, value))
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}
