package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/serial"
	"github.com/valerio/go-dmg/dmg/video"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

const (
	// BootROMSize is the size of the DMG boot ROM.
	BootROMSize  = 0x100
	oamDMALength = 0xA0
)

// MMU allows access to all memory mapped I/O and data/registers.
// It owns every component behind the bus and advances them in lockstep, one
// machine cycle per Tick. Read and Write themselves take no time.
type MMU struct {
	cart      *Cartridge
	wram      [0x2000]byte
	hram      [0x7F]byte
	regionMap [256]memRegion

	bootROM    []byte
	bootMapped bool

	interrupts Interrupts
	timer      Timer
	joypad     Joypad
	serial     *serial.Port
	apu        *audio.APU
	ppu        *video.PPU

	dma oamDMA
}

// oamDMA copies 160 bytes from page XX00 into OAM, one per machine cycle,
// after a one cycle startup delay.
type oamDMA struct {
	register byte
	source   uint16
	index    int
	active   bool
	starting bool
}

type Option func(*MMU)

// WithBootROM maps a 256 byte boot ROM over 0x0000-0x00FF until FF50 is written.
func WithBootROM(rom []byte) Option {
	return func(m *MMU) {
		m.bootROM = rom
		m.bootMapped = true
	}
}

// WithSerial replaces the default serial port.
func WithSerial(p *serial.Port) Option { return func(m *MMU) { m.serial = p } }

// WithAPU replaces the default APU, e.g. to change its sample rate.
func WithAPU(a *audio.APU) Option { return func(m *MMU) { m.apu = a } }

// New creates a memory unit with the given cartridge inserted. Without a
// boot ROM the I/O registers are set to their post boot values.
func New(cart *Cartridge, opts ...Option) (*MMU, error) {
	m := &MMU{
		cart: cart,
		ppu:  video.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bootMapped && len(m.bootROM) != BootROMSize {
		return nil, fmt.Errorf("boot ROM must be %d bytes, got %d", BootROMSize, len(m.bootROM))
	}
	if m.serial == nil {
		m.serial = serial.New()
	}
	if m.apu == nil {
		m.apu = audio.New(audio.DefaultSampleRate)
	}
	initRegionMap(m)

	if !m.bootMapped {
		m.setPostBootState()
	}
	return m, nil
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// setPostBootState sets the I/O registers the way the DMG boot ROM leaves them.
func (m *MMU) setPostBootState() {
	m.timer.SetSeed(PostBootDivider)
	m.interrupts.Write(addr.IF, 0xE1)
	m.ppu.SetPostBootState()
	m.apu.SetPostBootState()
}

// Cartridge returns the inserted cartridge.
func (m *MMU) Cartridge() *Cartridge { return m.cart }

// PPU returns the LCD controller.
func (m *MMU) PPU() *video.PPU { return m.ppu }

// APU returns the audio unit.
func (m *MMU) APU() *audio.APU { return m.apu }

// BootROMMapped reports whether the boot ROM still covers 0x0000-0x00FF.
func (m *MMU) BootROMMapped() bool { return m.bootMapped }

// Tick advances every component by one machine cycle and collects the
// interrupts they request into IF.
func (m *MMU) Tick() {
	if m.timer.Tick() {
		m.interrupts.Request(addr.TimerInterrupt)
	}
	m.clockFrameSequencer()
	if irq := m.ppu.Tick(); irq != 0 {
		m.interrupts.flags |= irq & interruptMask
	}
	m.stepDMA()
	m.apu.Tick()
	m.serial.Tick()
}

// Pending returns the interrupts both requested and enabled.
func (m *MMU) Pending() uint8 {
	return m.interrupts.Pending()
}

// Acknowledge clears a serviced interrupt from IF.
func (m *MMU) Acknowledge(interrupt addr.Interrupt) {
	m.interrupts.Acknowledge(interrupt)
}

// RequestInterrupt sets the IF bit of the chosen interrupt.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.interrupts.Request(interrupt)
}

// ResetDivider resets the timer's internal counter, as STOP does.
func (m *MMU) ResetDivider() {
	m.timer.ResetDivider()
	m.clockFrameSequencer()
}

func (m *MMU) clockFrameSequencer() {
	if m.timer.TakeAPUEdge() {
		m.apu.ClockFrameSequencer()
	}
}

// SetButtons updates the pressed buttons and requests the joypad interrupt
// when a selected line goes low.
func (m *MMU) SetButtons(pressed Buttons) {
	if m.joypad.SetButtons(pressed) {
		m.interrupts.Request(addr.JoypadInterrupt)
	}
}

// Buttons returns the currently pressed buttons.
func (m *MMU) Buttons() Buttons {
	return m.joypad.Buttons()
}

func (m *MMU) startDMA(value byte) {
	m.dma.register = value
	m.dma.source = uint16(value) << 8
	m.dma.index = 0
	m.dma.starting = true
}

func (m *MMU) stepDMA() {
	if m.dma.starting {
		m.dma.starting = false
		m.dma.active = true
		m.ppu.SetOAMDMA(true)
		return
	}
	if !m.dma.active {
		return
	}

	value := m.dmaRead(m.dma.source + uint16(m.dma.index))
	m.ppu.WriteOAMDirect(m.dma.index, value)
	m.dma.index++
	if m.dma.index == oamDMALength {
		m.dma.active = false
		m.ppu.SetOAMDMA(false)
	}
}

// dmaRead reads a DMA source byte. Sources above 0xDFFF map to WRAM.
func (m *MMU) dmaRead(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		return m.cart.Read(address)
	case regionVRAM:
		return m.ppu.PeekVRAM(address)
	case regionWRAM:
		return m.wram[address-addr.WRAMStart]
	}
	return m.wram[(address-addr.EchoStart)&0x1FFF]
}

func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.bootMapped && address < BootROMSize {
			return m.bootROM[address]
		}
		return m.cart.Read(address)
	case regionExtRAM:
		return m.cart.Read(address)
	case regionVRAM:
		return m.ppu.ReadVRAM(address)
	case regionWRAM:
		return m.wram[address-addr.WRAMStart]
	case regionEcho:
		return m.wram[address-addr.EchoStart]
	case regionOAM:
		if address <= addr.OAMEnd {
			return m.ppu.ReadOAM(address)
		}
		// Unused area 0xFEA0-0xFEFF
		return 0xFF
	}
	return m.readIO(address)
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address >= addr.HRAMStart && address <= addr.HRAMEnd:
		return m.hram[address-addr.HRAMStart]
	case address == addr.IE || address == addr.IF:
		return m.interrupts.Read(address)
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.apu.ReadRegister(address)
	case address == addr.DMA:
		return m.dma.register
	case address >= addr.LCDC && address <= addr.WX:
		return m.ppu.ReadRegister(address)
	}
	return 0xFF
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		m.cart.Write(address, value)
	case regionVRAM:
		m.ppu.WriteVRAM(address, value)
	case regionWRAM:
		m.wram[address-addr.WRAMStart] = value
	case regionEcho:
		m.wram[address-addr.EchoStart] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			m.ppu.WriteOAM(address, value)
		}
	case regionIO:
		m.writeIO(address, value)
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address >= addr.HRAMStart && address <= addr.HRAMEnd:
		m.hram[address-addr.HRAMStart] = value
	case address == addr.IE || address == addr.IF:
		m.interrupts.Write(address, value)
	case address == addr.P1:
		if m.joypad.Write(value) {
			m.interrupts.Request(addr.JoypadInterrupt)
		}
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
		m.clockFrameSequencer()
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.apu.WriteRegister(address, value)
	case address == addr.DMA:
		m.startDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		if irq := m.ppu.WriteRegister(address, value); irq != 0 {
			m.interrupts.flags |= irq & interruptMask
		}
	case address == addr.BootROMDisable:
		if m.bootMapped && value != 0 {
			m.bootMapped = false
			slog.Debug("Boot ROM unmapped")
		}
	default:
		slog.Debug("Write to unsupported register", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
	}
}
