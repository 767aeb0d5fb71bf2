package video

import "fmt"

// PPUState is the serializable state of the PPU, including VRAM, OAM and the
// frame in progress.
type PPUState struct {
	VRAM []byte
	OAM  []byte

	LCDC, STAT, SCY, SCX, LY, LYC, WY, WX uint8
	BGP, OBP0, OBP1                       uint8

	Mode         Mode
	Dot          int
	DrawDots     int
	LastLine     bool
	WindowLine   int
	WindowY      bool
	WindowOnLine bool
	StatLine     bool
	FrameReady   bool
	OffDots      int
	OAMDMAActive bool

	Back  []uint32
	Front []uint32
}

// Snapshot captures the PPU state.
func (p *PPU) Snapshot() PPUState {
	return PPUState{
		VRAM:         append([]byte(nil), p.vram[:]...),
		OAM:          append([]byte(nil), p.oam[:]...),
		LCDC:         p.lcdc,
		STAT:         p.stat,
		SCY:          p.scy,
		SCX:          p.scx,
		LY:           p.ly,
		LYC:          p.lyc,
		WY:           p.wy,
		WX:           p.wx,
		BGP:          p.bgp,
		OBP0:         p.obp0,
		OBP1:         p.obp1,
		Mode:         p.mode,
		Dot:          p.dot,
		DrawDots:     p.drawDots,
		LastLine:     p.lastLine,
		WindowLine:   p.windowLine,
		WindowY:      p.windowY,
		WindowOnLine: p.windowOnLine,
		StatLine:     p.statLine,
		FrameReady:   p.frameReady,
		OffDots:      p.offDots,
		OAMDMAActive: p.oamDMAActive,
		Back:         append([]uint32(nil), p.back.buffer...),
		Front:        append([]uint32(nil), p.front.buffer...),
	}
}

// Validate checks sizes and ranges of s without modifying the PPU.
func (p *PPU) Validate(s PPUState) error {
	switch {
	case len(s.VRAM) != len(p.vram):
		return fmt.Errorf("VRAM is %d bytes, expected %d", len(s.VRAM), len(p.vram))
	case len(s.OAM) != len(p.oam):
		return fmt.Errorf("OAM is %d bytes, expected %d", len(s.OAM), len(p.oam))
	case len(s.Back) != FramebufferSize || len(s.Front) != FramebufferSize:
		return fmt.Errorf("frame buffers must hold %d pixels", FramebufferSize)
	case s.Mode > ModeDraw:
		return fmt.Errorf("invalid PPU mode %d", s.Mode)
	case s.LY >= LinesPerFrame:
		return fmt.Errorf("LY %d out of range", s.LY)
	case s.Dot < 0 || s.Dot >= DotsPerLine:
		return fmt.Errorf("dot %d out of range", s.Dot)
	case s.DrawDots < 0 || s.DrawDots > MaxDrawDots:
		return fmt.Errorf("mode 3 length %d out of range", s.DrawDots)
	case s.OffDots < 0 || s.OffDots >= DotsPerFrame:
		return fmt.Errorf("LCD off dot counter %d out of range", s.OffDots)
	}
	return validateTiming(s)
}

// validateTiming checks that mode, dot and LY describe a position the mode
// state machine can reach, so it keeps advancing after a restore.
func validateTiming(s PPUState) error {
	if s.LastLine && (s.Mode != ModeVBlank || s.LY != 0) {
		return fmt.Errorf("last line flag set in %s at LY %d", s.Mode, s.LY)
	}
	switch s.Mode {
	case ModeOAMScan:
		if s.LY >= VisibleLines || s.Dot >= OAMScanDots {
			return fmt.Errorf("OAM scan at LY %d dot %d", s.LY, s.Dot)
		}
	case ModeDraw:
		if s.DrawDots < MinDrawDots {
			return fmt.Errorf("mode 3 length %d shorter than %d", s.DrawDots, MinDrawDots)
		}
		if s.LY >= VisibleLines || s.Dot < OAMScanDots || s.Dot >= OAMScanDots+s.DrawDots {
			return fmt.Errorf("draw at LY %d dot %d with length %d", s.LY, s.Dot, s.DrawDots)
		}
	case ModeHBlank:
		if s.LY >= VisibleLines {
			return fmt.Errorf("hblank at LY %d", s.LY)
		}
	case ModeVBlank:
		if s.LastLine {
			break
		}
		// LY reads 153 only during the first machine cycle of the line
		if s.LY < VisibleLines || (s.LY == LinesPerFrame-1 && s.Dot >= DotsPerCycle) {
			return fmt.Errorf("vblank at LY %d dot %d", s.LY, s.Dot)
		}
	}
	return nil
}

// Restore applies a state previously checked with Validate.
func (p *PPU) Restore(s PPUState) {
	copy(p.vram[:], s.VRAM)
	copy(p.oam[:], s.OAM)
	p.lcdc, p.stat = s.LCDC, s.STAT
	p.scy, p.scx = s.SCY, s.SCX
	p.ly, p.lyc = s.LY, s.LYC
	p.wy, p.wx = s.WY, s.WX
	p.bgp, p.obp0, p.obp1 = s.BGP, s.OBP0, s.OBP1
	p.mode = s.Mode
	p.dot = s.Dot
	p.drawDots = s.DrawDots
	p.lastLine = s.LastLine
	p.windowLine = s.WindowLine
	p.windowY = s.WindowY
	p.windowOnLine = s.WindowOnLine
	p.statLine = s.StatLine
	p.frameReady = s.FrameReady
	p.offDots = s.OffDots
	p.oamDMAActive = s.OAMDMAActive
	copy(p.back.buffer, s.Back)
	copy(p.front.buffer, s.Front)

	// rebuilt at the end of the next OAM scan
	p.lineSprites = p.lineSprites[:0]
}
