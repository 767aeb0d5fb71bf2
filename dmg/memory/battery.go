package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// rtcFooterSize is the size of the clock data appended after RAM in .sav
// files: 5 live + 5 latched registers as little endian uint32, then a 64-bit
// unix timestamp. This is the layout used by most DMG emulators.
const rtcFooterSize = 48

// SaveRAM writes the battery-backed RAM image, followed by the RTC footer
// for cartridges with a clock. Returns ErrNoBattery if there is nothing to
// persist.
func (c *Cartridge) SaveRAM(w io.Writer) error {
	if !c.header.HasBattery {
		return ErrNoBattery
	}
	if _, err := w.Write(c.ram); err != nil {
		return fmt.Errorf("writing cartridge RAM: %w", err)
	}
	if c.kind != KindMBC3 || !c.mbc3.hasRTC {
		return nil
	}

	c.mbc3.advance()
	var footer [rtcFooterSize]byte
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(footer[i*4:], uint32(c.mbc3.rtc[i]))
		binary.LittleEndian.PutUint32(footer[20+i*4:], uint32(c.mbc3.latched[i]))
	}
	binary.LittleEndian.PutUint64(footer[40:], uint64(c.mbc3.lastUpdate))
	if _, err := w.Write(footer[:]); err != nil {
		return fmt.Errorf("writing RTC data: %w", err)
	}
	return nil
}

// LoadRAM restores a RAM image written by SaveRAM. A missing RTC footer is
// accepted, the clock then keeps running from its current state.
func (c *Cartridge) LoadRAM(r io.Reader) error {
	if !c.header.HasBattery {
		return ErrNoBattery
	}

	ram := make([]byte, len(c.ram))
	if _, err := io.ReadFull(r, ram); err != nil {
		return fmt.Errorf("reading cartridge RAM: %w", err)
	}

	var footer [rtcFooterSize]byte
	hasFooter := false
	if c.kind == KindMBC3 && c.mbc3.hasRTC {
		_, err := io.ReadFull(r, footer[:])
		switch {
		case err == nil:
			hasFooter = true
		case errors.Is(err, io.EOF):
		default:
			return fmt.Errorf("reading RTC data: %w", err)
		}
	}

	copy(c.ram, ram)
	if hasFooter {
		for i := 0; i < 5; i++ {
			c.mbc3.rtc[i] = uint8(binary.LittleEndian.Uint32(footer[i*4:])) & rtcMasks[i]
			c.mbc3.latched[i] = uint8(binary.LittleEndian.Uint32(footer[20+i*4:])) & rtcMasks[i]
		}
		c.mbc3.lastUpdate = int64(binary.LittleEndian.Uint64(footer[40:]))
		c.mbc3.advance()
	}
	return nil
}

// CartridgeState is the serializable banking and RAM state of a cartridge.
// ROM contents are not included, a state is only valid for the cartridge
// identified by Title and HeaderChecksum.
type CartridgeState struct {
	Title          string
	HeaderChecksum uint8
	GlobalChecksum uint16
	Kind           Kind
	RAM            []byte

	RAMEnabled bool
	// MBC1
	Bank1 uint8
	Bank2 uint8
	Mode  uint8
	// MBC3
	ROMBank    uint8
	BankSelect uint8
	RTC        [5]uint8
	Latched    [5]uint8
	LatchReady bool
	LastUpdate int64
}

// Snapshot captures the cartridge state.
func (c *Cartridge) Snapshot() CartridgeState {
	s := CartridgeState{
		Title:          c.header.Title,
		HeaderChecksum: c.header.HeaderChecksum,
		GlobalChecksum: c.header.GlobalChecksum,
		Kind:           c.kind,
		RAM:            append([]byte(nil), c.ram...),
	}
	switch c.kind {
	case KindMBC1:
		s.RAMEnabled = c.mbc1.ramEnabled
		s.Bank1 = c.mbc1.bank1
		s.Bank2 = c.mbc1.bank2
		s.Mode = c.mbc1.mode
	case KindMBC3:
		s.RAMEnabled = c.mbc3.ramEnabled
		s.ROMBank = c.mbc3.romBank
		s.BankSelect = c.mbc3.bankSelect
		s.RTC = c.mbc3.rtc
		s.Latched = c.mbc3.latched
		s.LatchReady = c.mbc3.latchReady
		s.LastUpdate = c.mbc3.lastUpdate
	}
	return s
}

// Validate reports whether s can be restored into this cartridge.
func (c *Cartridge) Validate(s CartridgeState) error {
	if s.Title != c.header.Title || s.HeaderChecksum != c.header.HeaderChecksum || s.GlobalChecksum != c.header.GlobalChecksum {
		return fmt.Errorf("state belongs to cartridge %q (checksum 0x%02X), loaded cartridge is %q (checksum 0x%02X)",
			s.Title, s.HeaderChecksum, c.header.Title, c.header.HeaderChecksum)
	}
	if s.Kind != c.kind {
		return fmt.Errorf("state has controller %s, cartridge uses %s", s.Kind, c.kind)
	}
	if len(s.RAM) != len(c.ram) {
		return fmt.Errorf("state has %d bytes of cartridge RAM, cartridge has %d", len(s.RAM), len(c.ram))
	}
	return nil
}

// Restore applies a state previously checked with Validate.
func (c *Cartridge) Restore(s CartridgeState) {
	copy(c.ram, s.RAM)
	switch c.kind {
	case KindMBC1:
		c.mbc1 = mbc1{
			ramEnabled: s.RAMEnabled,
			bank1:      s.Bank1,
			bank2:      s.Bank2,
			mode:       s.Mode,
		}
	case KindMBC3:
		m := &c.mbc3
		m.ramEnabled = s.RAMEnabled
		m.romBank = s.ROMBank
		m.bankSelect = s.BankSelect
		m.rtc = s.RTC
		m.latched = s.Latched
		m.latchReady = s.LatchReady
		m.lastUpdate = s.LastUpdate
	}
}
