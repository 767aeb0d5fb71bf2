package video

import (
	"log/slog"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

// Mode is the PPU mode as reported in STAT bits 0-1.
type Mode uint8

const (
	ModeHBlank  Mode = 0
	ModeVBlank  Mode = 1
	ModeOAMScan Mode = 2
	ModeDraw    Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "hblank"
	case ModeVBlank:
		return "vblank"
	case ModeOAMScan:
		return "oam_scan"
	case ModeDraw:
		return "draw"
	}
	return "unknown"
}

// Timings are in dots, one dot per clock, 4 dots per machine cycle.
const (
	DotsPerLine   = 456
	OAMScanDots   = 80
	MinDrawDots   = 172
	MaxDrawDots   = 289
	VisibleLines  = 144
	LinesPerFrame = 154
	DotsPerFrame  = DotsPerLine * LinesPerFrame
	DotsPerCycle  = 4
)

// LCDC (LCD Control) Register bit values
// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG/Window Display (0=Off, 1=On)
const (
	lcdcEnable       = 7
	lcdcWindowMap    = 6
	lcdcWindowEnable = 5
	lcdcTileData     = 4
	lcdcBGMap        = 3
	lcdcSpriteSize   = 2
	lcdcSpriteEnable = 1
	lcdcBGEnable     = 0
)

// STAT interrupt source enable bits.
const (
	statHBlankIRQ  = 3
	statVBlankIRQ  = 4
	statOAMIRQ     = 5
	statLYCIRQ     = 6
	statEnableMask = 0x78
)

// PPU is the LCD controller. It owns VRAM, OAM and the LCD registers and is
// advanced one machine cycle at a time by the MMU. Interrupt requests are
// returned to the caller rather than written anywhere.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc, stat      uint8 // stat only holds the enable bits
	scy, scx        uint8
	ly, lyc         uint8
	wy, wx          uint8
	bgp, obp0, obp1 uint8

	mode     Mode
	dot      int // dots into the current line
	drawDots int // length of mode 3 on the current line

	lastLine     bool // in line 153 after LY wrapped to 0
	windowLine   int  // internal window line counter
	windowY      bool // WY matched LY at some point this frame
	windowOnLine bool
	statLine     bool // last value of the STAT interrupt line
	frameReady   bool
	offDots      int // dots elapsed with the LCD off
	oamDMAActive bool

	lineSprites []Sprite
	priority    SpritePriorityBuffer
	bgIndex     [FramebufferWidth]uint8

	back  *FrameBuffer // being drawn
	front *FrameBuffer // last completed frame
}

// New creates a PPU in the state the LCD is in right after power on, with
// the display disabled.
func New() *PPU {
	return &PPU{
		mode:        ModeOAMScan,
		lineSprites: make([]Sprite, 0, spritesPerLine),
		back:        NewFrameBuffer(),
		front:       NewFrameBuffer(),
	}
}

// postBootDot is where in line 153 the boot ROM hands over.
const postBootDot = 400

// SetPostBootState sets registers to the values the boot ROM leaves behind:
// the LCD on and the PPU late in the last vblank line, so STAT reads 0x85.
func (p *PPU) SetPostBootState() {
	p.lcdc = 0x91
	p.stat = 0x00
	p.bgp = 0xFC
	p.obp0 = 0xFF
	p.obp1 = 0xFF
	p.ly = 0
	p.lastLine = true
	p.dot = postBootDot
	p.mode = ModeVBlank
	p.statLine = p.computeStatLine()
}

// Enabled reports whether the LCD is on.
func (p *PPU) Enabled() bool {
	return bit.IsSet(lcdcEnable, p.lcdc)
}

// Mode returns the current mode.
func (p *PPU) Mode() Mode {
	return p.mode
}

// LY returns the current scanline.
func (p *PPU) LY() uint8 {
	return p.ly
}

// Dot returns the dot position within the current line.
func (p *PPU) Dot() int {
	return p.dot
}

// Frame returns the last completed frame.
func (p *PPU) Frame() *FrameBuffer {
	return p.front
}

// ConsumeFrame reports whether a new frame completed since the last call.
func (p *PPU) ConsumeFrame() bool {
	ready := p.frameReady
	p.frameReady = false
	return ready
}

// SetOAMDMA marks an OAM DMA transfer in progress, which locks OAM.
func (p *PPU) SetOAMDMA(active bool) {
	p.oamDMAActive = active
}

// Tick advances the PPU by one machine cycle and returns the interrupts it
// requests (a mask of addr.Interrupt bits).
func (p *PPU) Tick() uint8 {
	if !p.Enabled() {
		p.offDots += DotsPerCycle
		if p.offDots >= DotsPerFrame {
			p.offDots -= DotsPerFrame
			p.frameReady = true
		}
		return 0
	}

	var irq uint8
	for i := 0; i < DotsPerCycle; i++ {
		irq |= p.step()
	}
	return irq
}

func (p *PPU) step() uint8 {
	var irq uint8
	p.dot++

	switch p.mode {
	case ModeOAMScan:
		if p.dot == OAMScanDots {
			p.startDraw()
		}
	case ModeDraw:
		if p.dot == OAMScanDots+p.drawDots {
			p.mode = ModeHBlank
		}
	case ModeHBlank:
		if p.dot == DotsPerLine {
			p.dot = 0
			p.ly++
			if p.ly == VisibleLines {
				p.mode = ModeVBlank
				p.presentFrame()
				irq |= uint8(addr.VBlankInterrupt)
			} else {
				p.startLine()
			}
		}
	case ModeVBlank:
		// LY reads 153 only for the first machine cycle of the last line
		if p.ly == LinesPerFrame-1 && p.dot == DotsPerCycle {
			p.ly = 0
			p.lastLine = true
		}
		if p.dot == DotsPerLine {
			p.dot = 0
			if p.lastLine {
				p.lastLine = false
				p.ly = 0
				p.windowLine = 0
				p.windowY = false
				p.startLine()
			} else {
				p.ly++
			}
		}
	}

	if p.updateStatLine() {
		irq |= uint8(addr.LCDSTATInterrupt)
	}
	return irq
}

func (p *PPU) startLine() {
	p.mode = ModeOAMScan
	if p.ly == p.wy {
		p.windowY = true
	}
}

// startDraw runs the end of OAM scan: sprite selection, the mode 3 length
// for this line, and the scanline itself.
func (p *PPU) startDraw() {
	p.mode = ModeDraw
	p.scanOAM()

	p.windowOnLine = p.windowVisible()
	p.drawDots = p.drawLength()
	p.renderScanline()
}

// drawLength estimates the length of mode 3: the base 172 dots, the SCX
// fine scroll discard, the window start penalty and the sprite fetches.
func (p *PPU) drawLength() int {
	dots := MinDrawDots + int(p.scx&0x07)
	if p.windowOnLine {
		dots += 6
	}
	if bit.IsSet(lcdcSpriteEnable, p.lcdc) {
		for _, s := range p.lineSprites {
			if s.X >= 168 {
				continue
			}
			dots += 6 + (5 - min(5, int((s.X+p.scx)&0x07)))
		}
	}
	return min(dots, MaxDrawDots)
}

func (p *PPU) windowVisible() bool {
	return bit.IsSet(lcdcWindowEnable, p.lcdc) && bit.IsSet(lcdcBGEnable, p.lcdc) &&
		p.windowY && p.wx <= 166
}

func (p *PPU) presentFrame() {
	p.back, p.front = p.front, p.back
	p.frameReady = true
}

func (p *PPU) computeStatLine() bool {
	if !p.Enabled() {
		return false
	}
	switch {
	case p.ly == p.lyc && bit.IsSet(statLYCIRQ, p.stat):
		return true
	case p.mode == ModeHBlank && bit.IsSet(statHBlankIRQ, p.stat):
		return true
	case p.mode == ModeVBlank && bit.IsSet(statVBlankIRQ, p.stat):
		return true
	case p.mode == ModeOAMScan && bit.IsSet(statOAMIRQ, p.stat):
		return true
	}
	return false
}

// updateStatLine recomputes the STAT interrupt line and reports a rising edge.
func (p *PPU) updateStatLine() bool {
	line := p.computeStatLine()
	rising := line && !p.statLine
	p.statLine = line
	return rising
}

func (p *PPU) setLCDC(value uint8) {
	wasOn := p.Enabled()
	p.lcdc = value
	isOn := p.Enabled()

	switch {
	case wasOn && !isOn:
		if p.mode != ModeVBlank {
			slog.Debug("LCD disabled outside of vblank", "ly", p.ly, "mode", p.mode)
		}
		p.ly = 0
		p.dot = 0
		p.lastLine = false
		p.mode = ModeOAMScan
		p.offDots = 0
		p.statLine = false
		p.front.Clear(WhiteColor)
		p.back.Clear(WhiteColor)
		p.frameReady = true
	case !wasOn && isOn:
		p.ly = 0
		p.dot = 0
		p.lastLine = false
		p.windowLine = 0
		p.windowY = false
		p.startLine()
	}
}

// ReadVRAM reads 0x8000-0x9FFF. VRAM is inaccessible to the CPU during mode 3.
func (p *PPU) ReadVRAM(address uint16) byte {
	if p.Enabled() && p.mode == ModeDraw {
		return 0xFF
	}
	return p.vram[address-addr.VRAMStart]
}

func (p *PPU) WriteVRAM(address uint16, value byte) {
	if p.Enabled() && p.mode == ModeDraw {
		return
	}
	p.vram[address-addr.VRAMStart] = value
}

func (p *PPU) oamLocked() bool {
	if p.oamDMAActive {
		return true
	}
	return p.Enabled() && (p.mode == ModeOAMScan || p.mode == ModeDraw)
}

// ReadOAM reads 0xFE00-0xFE9F. OAM is inaccessible during modes 2 and 3 and
// while OAM DMA runs.
func (p *PPU) ReadOAM(address uint16) byte {
	if p.oamLocked() {
		return 0xFF
	}
	return p.oam[address-addr.OAMStart]
}

func (p *PPU) WriteOAM(address uint16, value byte) {
	if p.oamLocked() {
		return
	}
	p.oam[address-addr.OAMStart] = value
}

// WriteOAMDirect is the OAM DMA write path, which bypasses the mode locks.
func (p *PPU) WriteOAMDirect(index int, value byte) {
	p.oam[index] = value
}

// PeekVRAM reads VRAM ignoring the mode locks, for DMA sources and debugging.
func (p *PPU) PeekVRAM(address uint16) byte {
	return p.vram[address-addr.VRAMStart]
}

// ReadRegister reads one of the LCD registers in 0xFF40-0xFF4B (except DMA).
func (p *PPU) ReadRegister(address uint16) byte {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		mode := uint8(p.mode)
		if !p.Enabled() {
			mode = 0
		}
		coincidence := bit.Bool(p.ly == p.lyc)
		return 0x80 | p.stat | coincidence<<2 | mode
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}
	return 0xFF
}

// WriteRegister writes one of the LCD registers and returns any interrupt
// the write itself causes.
func (p *PPU) WriteRegister(address uint16, value byte) uint8 {
	switch address {
	case addr.LCDC:
		p.setLCDC(value)
	case addr.STAT:
		// DMG quirk: for one cycle the write behaves as if every source were
		// enabled, so a STAT interrupt fires in hblank, vblank, or on LY=LYC.
		glitch := p.Enabled() && !p.statLine &&
			(p.mode == ModeHBlank || p.mode == ModeVBlank || p.ly == p.lyc)
		p.stat = value & statEnableMask
		if p.updateStatLine() || glitch {
			return uint8(addr.LCDSTATInterrupt)
		}
		return 0
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read only
	case addr.LYC:
		p.lyc = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}

	if p.updateStatLine() {
		return uint8(addr.LCDSTATInterrupt)
	}
	return 0
}
