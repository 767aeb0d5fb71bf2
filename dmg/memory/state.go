package memory

import (
	"fmt"

	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/serial"
	"github.com/valerio/go-dmg/dmg/video"
)

// DMAState is the serializable state of an OAM DMA transfer.
type DMAState struct {
	Register byte
	Source   uint16
	Index    int
	Active   bool
	Starting bool
}

// JoypadState is the serializable state of P1.
type JoypadState struct {
	Pressed   Buttons
	Selection uint8
}

// State is everything behind the bus: memories, registers and the state of
// every component the MMU owns.
type State struct {
	WRAM       []byte
	HRAM       []byte
	BootMapped bool
	IF, IE     uint8

	Timer     TimerState
	Joypad    JoypadState
	DMA       DMAState
	Serial    serial.PortState
	APU       audio.APUState
	PPU       video.PPUState
	Cartridge CartridgeState
}

// Snapshot captures the state of the bus and all its components.
func (m *MMU) Snapshot() State {
	return State{
		WRAM:       append([]byte(nil), m.wram[:]...),
		HRAM:       append([]byte(nil), m.hram[:]...),
		BootMapped: m.bootMapped,
		IF:         m.interrupts.flags,
		IE:         m.interrupts.enable,
		Timer:      m.timer.snapshot(),
		Joypad:     JoypadState{Pressed: m.joypad.pressed, Selection: m.joypad.selection},
		DMA: DMAState{
			Register: m.dma.register,
			Source:   m.dma.source,
			Index:    m.dma.index,
			Active:   m.dma.active,
			Starting: m.dma.starting,
		},
		Serial:    m.serial.Snapshot(),
		APU:       m.apu.Snapshot(),
		PPU:       m.ppu.Snapshot(),
		Cartridge: m.cart.Snapshot(),
	}
}

// Validate checks that s can be restored, without changing anything.
func (m *MMU) Validate(s State) error {
	switch {
	case len(s.WRAM) != len(m.wram):
		return fmt.Errorf("WRAM is %d bytes, expected %d", len(s.WRAM), len(m.wram))
	case len(s.HRAM) != len(m.hram):
		return fmt.Errorf("HRAM is %d bytes, expected %d", len(s.HRAM), len(m.hram))
	case s.BootMapped && m.bootROM == nil:
		return fmt.Errorf("state has the boot ROM mapped but none is loaded")
	case s.DMA.Index < 0 || s.DMA.Index > oamDMALength:
		return fmt.Errorf("DMA index %d out of range", s.DMA.Index)
	case s.Timer.TAC > 0x07:
		return fmt.Errorf("invalid TAC 0x%02X", s.Timer.TAC)
	}
	if err := m.cart.Validate(s.Cartridge); err != nil {
		return err
	}
	if err := m.ppu.Validate(s.PPU); err != nil {
		return err
	}
	return m.apu.Validate(s.APU)
}

// Restore applies a state previously checked with Validate.
func (m *MMU) Restore(s State) {
	copy(m.wram[:], s.WRAM)
	copy(m.hram[:], s.HRAM)
	m.bootMapped = s.BootMapped
	m.interrupts.flags = s.IF & interruptMask
	m.interrupts.enable = s.IE
	m.timer.restore(s.Timer)
	m.joypad.pressed = s.Joypad.Pressed
	m.joypad.selection = s.Joypad.Selection & 0x30
	m.dma = oamDMA{
		register: s.DMA.Register,
		source:   s.DMA.Source,
		index:    s.DMA.Index,
		active:   s.DMA.Active,
		starting: s.DMA.Starting,
	}
	m.serial.Restore(s.Serial)
	m.apu.Restore(s.APU)
	m.ppu.Restore(s.PPU)
	m.cart.Restore(s.Cartridge)
}
