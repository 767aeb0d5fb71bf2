package memory

import (
	"time"
)

type Clock interface {
	Now() time.Time
}

type systemClockFunc func() time.Time

func (s systemClockFunc) Now() time.Time {
	return s()
}

// mbc1 is the first and most common MBC chip. Features include:
// - Supports up to 2MB ROM (125 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Switchable ROM bank at 0x4000-0x7FFF
// - Two banking modes:
//   - Mode 0: the 2-bit register only extends the 0x4000 ROM bank
//   - Mode 1: it also banks 0x0000-0x3FFF and selects the RAM bank
type mbc1 struct {
	ramEnabled bool
	bank1      uint8 // 5 bits, never 0
	bank2      uint8 // 2 bits
	mode       uint8
}

func newMBC1() mbc1 {
	return mbc1{bank1: 1}
}

func (c *Cartridge) readMBC1(address uint16) byte {
	m := &c.mbc1
	switch {
	case address <= 0x3FFF:
		bank := 0
		if m.mode == 1 {
			bank = int(m.bank2) << 5
		}
		return c.romByte(bank, address)
	case address <= 0x7FFF:
		return c.romByte(int(m.bank2)<<5|int(m.bank1), address)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(c.ram) == 0 {
			return 0xFF
		}
		return c.ram[c.ramIndex(c.mbc1RAMBank(), address)]
	}
	return 0xFF
}

func (c *Cartridge) writeMBC1(address uint16, value byte) {
	m := &c.mbc1
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		m.bank1 = value & 0x1F
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case address <= 0x5FFF:
		m.bank2 = value & 0x03
	case address <= 0x7FFF:
		m.mode = value & 0x01
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(c.ram) == 0 {
			return
		}
		c.ram[c.ramIndex(c.mbc1RAMBank(), address)] = value
	}
}

func (c *Cartridge) mbc1RAMBank() int {
	if c.mbc1.mode == 1 {
		return int(c.mbc1.bank2)
	}
	return 0
}

// RTC register indices, selected by writing 0x08-0x0C to 0x4000-0x5FFF.
const (
	rtcSeconds = iota
	rtcMinutes
	rtcHours
	rtcDaysLow
	rtcDaysHigh
)

// rtcMasks are the implemented bits of each RTC register.
var rtcMasks = [5]uint8{0x3F, 0x3F, 0x1F, 0xFF, 0xC1}

// mbc3 is an MBC chip with an optional real time clock. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - RTC has 5 registers: Seconds, Minutes, Hours, Days (lower), Days (upper)/Flags
// - Writing 0 then 1 to 0x6000-0x7FFF latches the clock into the readable registers
// - Used in games that needed to track real time (e.g. Pokémon Gold/Silver)
type mbc3 struct {
	ramEnabled bool
	romBank    uint8 // 7 bits, never 0
	bankSelect uint8 // RAM bank 0-3 or RTC register 8-C

	hasRTC     bool
	clock      Clock
	rtc        [5]uint8 // live registers
	latched    [5]uint8 // what the CPU reads
	latchReady bool     // last latch write was 0
	lastUpdate int64    // unix seconds the live registers were last advanced to
}

func newMBC3(hasRTC bool, clock Clock) mbc3 {
	if clock == nil {
		clock = systemClockFunc(time.Now)
	}
	return mbc3{
		romBank:    1,
		hasRTC:     hasRTC,
		clock:      clock,
		lastUpdate: clock.Now().Unix(),
	}
}

func (c *Cartridge) readMBC3(address uint16) byte {
	m := &c.mbc3
	switch {
	case address <= 0x3FFF:
		return c.romByte(0, address)
	case address <= 0x7FFF:
		return c.romByte(int(m.romBank), address)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		switch {
		case m.bankSelect <= 0x03:
			if len(c.ram) == 0 {
				return 0xFF
			}
			return c.ram[c.ramIndex(int(m.bankSelect), address)]
		case m.hasRTC && m.bankSelect >= 0x08 && m.bankSelect <= 0x0C:
			return m.latched[m.bankSelect-0x08]
		}
	}
	return 0xFF
}

func (c *Cartridge) writeMBC3(address uint16, value byte) {
	m := &c.mbc3
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case address <= 0x5FFF:
		m.bankSelect = value
	case address <= 0x7FFF:
		if m.latchReady && value == 0x01 && m.hasRTC {
			m.advance()
			m.latched = m.rtc
		}
		m.latchReady = value == 0x00
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		switch {
		case m.bankSelect <= 0x03:
			if len(c.ram) == 0 {
				return
			}
			c.ram[c.ramIndex(int(m.bankSelect), address)] = value
		case m.hasRTC && m.bankSelect >= 0x08 && m.bankSelect <= 0x0C:
			m.advance()
			reg := m.bankSelect - 0x08
			m.rtc[reg] = value & rtcMasks[reg]
			m.latched[reg] = m.rtc[reg]
		}
	}
}

// advance brings the live RTC registers up to the current clock time.
// A halted clock (DH bit 6) only moves the reference point.
func (m *mbc3) advance() {
	now := m.clock.Now().Unix()
	elapsed := now - m.lastUpdate
	m.lastUpdate = now
	if elapsed <= 0 || m.rtc[rtcDaysHigh]&0x40 != 0 {
		return
	}

	total := uint64(m.rtc[rtcSeconds]) + uint64(elapsed)
	m.rtc[rtcSeconds] = uint8(total % 60)
	total = total/60 + uint64(m.rtc[rtcMinutes])
	m.rtc[rtcMinutes] = uint8(total % 60)
	total = total/60 + uint64(m.rtc[rtcHours])
	m.rtc[rtcHours] = uint8(total % 24)
	days := total/24 + uint64(m.rtc[rtcDaysLow]) + uint64(m.rtc[rtcDaysHigh]&0x01)<<8

	flags := m.rtc[rtcDaysHigh] & 0xC0
	if days > 511 {
		flags |= 0x80
		days %= 512
	}
	m.rtc[rtcDaysLow] = uint8(days)
	m.rtc[rtcDaysHigh] = flags | uint8(days>>8)&0x01
}
