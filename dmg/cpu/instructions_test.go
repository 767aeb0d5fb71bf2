package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	z  = uint8(zeroFlag)
	n  = uint8(subFlag)
	h  = uint8(halfCarryFlag)
	cy = uint8(carryFlag)
)

func TestALU(t *testing.T) {
	tests := []struct {
		desc  string
		op    uint8 // ADD ADC SUB SBC AND XOR OR CP
		a     uint8
		value uint8
		flags uint8
		wantA uint8
		wantF uint8
	}{
		{"ADD overflow to zero", 0, 0x3A, 0xC6, 0, 0x00, z | h | cy},
		{"ADD half carry", 0, 0x0F, 0x01, 0, 0x10, h},
		{"ADD into sign bit", 0, 0x7F, 0x01, 0, 0x80, h},
		{"ADD zero", 0, 0x00, 0x00, cy, 0x00, z},
		{"ADC half carry from carry in", 1, 0xE1, 0x0F, cy, 0xF1, h},
		{"ADC to zero", 1, 0xE1, 0x1E, cy, 0x00, z | h | cy},
		{"ADC carry in only", 1, 0xFF, 0x00, cy, 0x00, z | h | cy},
		{"ADC ignores clear carry", 1, 0x01, 0x01, 0, 0x02, 0},
		{"SUB to zero", 2, 0x3E, 0x3E, 0, 0x00, z | n},
		{"SUB half borrow", 2, 0x3E, 0x0F, 0, 0x2F, n | h},
		{"SUB borrow", 2, 0x3E, 0x40, 0, 0xFE, n | cy},
		{"SUB nibble boundary", 2, 0x10, 0x01, 0, 0x0F, n | h},
		{"SUB underflow", 2, 0x00, 0x01, 0, 0xFF, n | h | cy},
		{"SBC no borrows", 3, 0x3B, 0x2A, cy, 0x10, n},
		{"SBC both borrows", 3, 0x3B, 0x4F, cy, 0xEB, n | h | cy},
		{"SBC wraps to zero", 3, 0x00, 0xFF, cy, 0x00, z | n | h | cy},
		{"AND sets H", 4, 0x5A, 0x3F, cy, 0x1A, h},
		{"AND zero", 4, 0x5A, 0x00, 0, 0x00, z | h},
		{"XOR self", 5, 0xFF, 0xFF, cy, 0x00, z},
		{"OR", 6, 0x5A, 0x0F, z | n | h | cy, 0x5F, 0},
		{"CP half borrow", 7, 0x3C, 0x2F, 0, 0x3C, n | h},
		{"CP borrow", 7, 0x3C, 0x40, 0, 0x3C, n | cy},
		{"CP equal", 7, 0x3C, 0x3C, 0, 0x3C, z | n},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			// ALU A,d8 encoding
			c, _ := newTestCPU(0xC6|tt.op<<3, tt.value)
			c.a = tt.a
			c.f = tt.flags
			step(t, c)

			assert.Equal(t, tt.wantA, c.a, "A")
			assert.Equal(t, tt.wantF, c.f, "flags %s", c.FlagString())
		})
	}
}

func TestIncDec(t *testing.T) {
	tests := []struct {
		desc   string
		opcode uint8
		value  uint8
		flags  uint8
		want   uint8
		wantF  uint8
	}{
		{"INC wraps and keeps carry", 0x3C, 0xFF, cy, 0x00, z | h | cy},
		{"INC half carry", 0x3C, 0x0F, 0, 0x10, h},
		{"INC clears N", 0x3C, 0x41, n, 0x42, 0},
		{"DEC to zero", 0x3D, 0x01, 0, 0x00, z | n},
		{"DEC wraps", 0x3D, 0x00, 0, 0xFF, n | h},
		{"DEC half borrow", 0x3D, 0x10, 0, 0x0F, n | h},
		{"DEC keeps carry", 0x3D, 0x80, cy, 0x7F, n | h | cy},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, _ := newTestCPU(tt.opcode)
			c.a = tt.value
			c.f = tt.flags
			step(t, c)
			assert.Equal(t, tt.want, c.a)
			assert.Equal(t, tt.wantF, c.f, "flags %s", c.FlagString())
		})
	}
}

func TestIncDecMemory(t *testing.T) {
	c, bus := newTestCPU(0x34, 0x35, 0x35) // INC (HL), DEC (HL), DEC (HL)
	bus.mem[0xD000] = 0xFF
	c.f = 0
	step(t, c)
	assert.Equal(t, uint8(0x00), bus.mem[0xD000])
	assert.Equal(t, z|h, c.f)
	step(t, c)
	step(t, c)
	assert.Equal(t, uint8(0xFE), bus.mem[0xD000])
}

func TestDAA(t *testing.T) {
	tests := []struct {
		desc  string
		a     uint8
		flags uint8
		want  uint8
		wantF uint8
	}{
		{"after 0x45+0x38", 0x7D, 0, 0x83, 0},
		{"after 0x99+0x01", 0x9A, 0, 0x00, z | cy},
		{"after 0x90+0x70", 0x00, cy, 0x60, cy},
		{"after 0x09+0x08", 0x11, h, 0x17, 0},
		{"after 0x83-0x38", 0x4B, n | h, 0x45, n},
		{"after 0x20-0x30", 0xF0, n | cy, 0x90, n | cy},
		{"valid BCD untouched", 0x42, 0, 0x42, 0},
		{"zero", 0x00, z, 0x00, z},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, _ := newTestCPU(0x27)
			c.a = tt.a
			c.f = tt.flags
			step(t, c)
			assert.Equal(t, tt.want, c.a)
			assert.Equal(t, tt.wantF, c.f, "flags %s", c.FlagString())
		})
	}
}

func TestDAAExhaustiveAddition(t *testing.T) {
	toBCD := func(v int) uint8 { return uint8(v/10<<4 | v%10) }

	for x := 0; x < 100; x++ {
		for y := 0; y < 100; y++ {
			c, _ := newTestCPU(0x80, 0x27) // ADD A,B; DAA
			c.a = toBCD(x)
			c.b = toBCD(y)
			step(t, c)
			step(t, c)

			sum := x + y
			if !assert.Equal(t, toBCD(sum%100), c.a, "%d+%d", x, y) {
				return
			}
			assert.Equal(t, sum >= 100, c.isSetFlag(carryFlag), "%d+%d carry", x, y)
		}
	}
}

func TestShifts(t *testing.T) {
	tests := []struct {
		desc  string
		cb    uint8 // CB opcode operating on A
		value uint8
		flags uint8
		want  uint8
		wantF uint8
	}{
		{"RLC", 0x07, 0x85, 0, 0x0B, cy},
		{"RRC", 0x0F, 0x01, 0, 0x80, cy},
		{"RL through carry", 0x17, 0x80, 0, 0x00, z | cy},
		{"RL carry in", 0x17, 0x11, cy, 0x23, 0},
		{"RR through carry", 0x1F, 0x01, 0, 0x00, z | cy},
		{"RR carry in", 0x1F, 0x8A, cy, 0xC5, 0},
		{"SLA", 0x27, 0xFF, 0, 0xFE, cy},
		{"SRA keeps sign", 0x2F, 0x8A, 0, 0xC5, 0},
		{"SWAP", 0x37, 0xF0, cy, 0x0F, 0},
		{"SWAP zero", 0x37, 0x00, 0, 0x00, z},
		{"SRL", 0x3F, 0x01, 0, 0x00, z | cy},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, _ := newTestCPU(0xCB, tt.cb)
			c.a = tt.value
			c.f = tt.flags
			step(t, c)
			assert.Equal(t, tt.want, c.a)
			assert.Equal(t, tt.wantF, c.f, "flags %s", c.FlagString())
		})
	}
}

func TestRotateAClearsZero(t *testing.T) {
	for _, op := range []uint8{0x07, 0x0F, 0x17, 0x1F} {
		c, _ := newTestCPU(op)
		c.a = 0
		c.f = z
		step(t, c)
		assert.Equal(t, uint8(0), c.a)
		assert.Equal(t, uint8(0), c.f, "%s", instructions[op].name)
	}
}

func TestBitResSet(t *testing.T) {
	c, bus := newTestCPU(
		0xCB, 0x7E, // BIT 7,(HL)
		0xCB, 0xBE, // RES 7,(HL)
		0xCB, 0x7E, // BIT 7,(HL)
		0xCB, 0xC7, // SET 0,A
	)
	bus.mem[0xD000] = 0x80
	c.f = cy
	c.a = 0

	step(t, c)
	assert.Equal(t, h|cy, c.f, "bit set, carry preserved")
	step(t, c)
	assert.Equal(t, uint8(0x00), bus.mem[0xD000])
	step(t, c)
	assert.Equal(t, z|h|cy, c.f)
	step(t, c)
	assert.Equal(t, uint8(0x01), c.a)
}

func TestAddHL(t *testing.T) {
	tests := []struct {
		desc  string
		hl    uint16
		bc    uint16
		flags uint8
		want  uint16
		wantF uint8
	}{
		{"half carry from bit 11", 0x8A23, 0x0605, 0, 0x9028, h},
		{"both carries", 0x8A23, 0x8A23, 0, 0x1446, h | cy},
		{"zero flag preserved", 0x0001, 0x0001, z | n, 0x0002, z},
		{"wrap to zero", 0xFFFF, 0x0001, 0, 0x0000, h | cy},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, _ := newTestCPU(0x09) // ADD HL,BC
			c.setHL(tt.hl)
			c.setBC(tt.bc)
			c.f = tt.flags
			step(t, c)
			assert.Equal(t, tt.want, c.getHL())
			assert.Equal(t, tt.wantF, c.f, "flags %s", c.FlagString())
		})
	}
}

func TestAddSPSigned(t *testing.T) {
	tests := []struct {
		desc   string
		sp     uint16
		offset uint8
		want   uint16
		wantF  uint8
	}{
		{"no carries", 0xFFF8, 0x02, 0xFFFA, 0},
		{"half carry", 0x000F, 0x01, 0x0010, h},
		{"carry from low byte", 0x00FF, 0x01, 0x0100, h | cy},
		{"negative offset", 0x0005, 0xFF, 0x0004, h | cy},
		{"negative without carries", 0x0000, 0xFF, 0xFFFF, 0},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, _ := newTestCPU(0xE8, tt.offset, 0xF8, tt.offset) // ADD SP,r8; LD HL,SP+r8
			c.sp = tt.sp
			c.f = z | n
			step(t, c)
			assert.Equal(t, tt.want, c.sp)
			assert.Equal(t, tt.wantF, c.f, "ADD SP flags %s", c.FlagString())

			c.sp = tt.sp
			c.f = z | n
			step(t, c)
			assert.Equal(t, tt.want, c.getHL())
			assert.Equal(t, tt.wantF, c.f, "LD HL,SP flags %s", c.FlagString())
		})
	}
}

func TestMiscFlagOps(t *testing.T) {
	c, _ := newTestCPU(0x2F, 0x37, 0x3F, 0x3F) // CPL, SCF, CCF, CCF
	c.a = 0x35
	c.f = z

	step(t, c)
	assert.Equal(t, uint8(0xCA), c.a)
	assert.Equal(t, z|n|h, c.f)
	step(t, c)
	assert.Equal(t, z|cy, c.f)
	step(t, c)
	assert.Equal(t, z, c.f)
	step(t, c)
	assert.Equal(t, z|cy, c.f)
}
