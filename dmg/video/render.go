package video

import (
	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
)

// tile map locations as VRAM offsets
const (
	tileMap0 = addr.TileMap0 - addr.VRAMStart
	tileMap1 = addr.TileMap1 - addr.VRAMStart
)

// applyPalette maps a 2-bit color index through a DMG palette register.
func applyPalette(palette, colorIndex uint8) uint8 {
	return (palette >> (colorIndex * 2)) & 0x03
}

// renderScanline draws line LY into the back buffer using the register
// values in effect at the start of mode 3.
func (p *PPU) renderScanline() {
	if p.ly >= VisibleLines {
		return
	}
	y := uint(p.ly)

	p.renderBackground()
	if p.windowOnLine {
		p.renderWindow()
	}

	for x := 0; x < FramebufferWidth; x++ {
		p.back.SetPixel(uint(x), y, ShadeColor(applyPalette(p.bgp, p.bgIndex[x])))
	}

	if bit.IsSet(lcdcSpriteEnable, p.lcdc) {
		p.renderSprites()
	}
}

func (p *PPU) renderBackground() {
	if !bit.IsSet(lcdcBGEnable, p.lcdc) {
		// BG and window both blank to color 0, sprites are still drawn
		for x := range p.bgIndex {
			p.bgIndex[x] = 0
		}
		return
	}

	tileMap := tileMap0
	if bit.IsSet(lcdcBGMap, p.lcdc) {
		tileMap = tileMap1
	}

	mapY := uint8(p.ly + p.scy)
	tileRowIndex := uint16(mapY/8) * 32
	fineY := int(mapY % 8)

	for x := 0; x < FramebufferWidth; x++ {
		mapX := uint8(int(p.scx) + x)
		tileNumber := p.vram[tileMap+tileRowIndex+uint16(mapX/8)]
		row := p.tileRow(p.bgTileBase(tileNumber), fineY)
		p.bgIndex[x] = row.GetPixel(int(mapX % 8))
	}
}

// renderWindow overlays the window from WX-7 to the right edge. The window
// keeps its own line counter which only advances on lines it was drawn on.
func (p *PPU) renderWindow() {
	tileMap := tileMap0
	if bit.IsSet(lcdcWindowMap, p.lcdc) {
		tileMap = tileMap1
	}

	tileRowIndex := uint16(p.windowLine/8) * 32
	fineY := p.windowLine % 8
	startX := int(p.wx) - 7

	for x := max(startX, 0); x < FramebufferWidth; x++ {
		winX := x - startX
		tileNumber := p.vram[tileMap+tileRowIndex+uint16(winX/8)]
		row := p.tileRow(p.bgTileBase(tileNumber), fineY)
		p.bgIndex[x] = row.GetPixel(winX % 8)
	}
	p.windowLine++
}

func (p *PPU) renderSprites() {
	p.priority.Clear()
	height := p.spriteHeight()

	for pos, s := range p.lineSprites {
		row := int(p.ly) + 16 - int(s.Y)
		if s.FlipY {
			row = height - 1 - row
		}
		tile := s.TileIndex
		if height == 16 {
			tile &= 0xFE
		}
		// sprites always use the unsigned 0x8000 tile data area
		data := p.tileRow(uint16(tile)*16, row)

		screenX := int(s.X) - 8
		for px := 0; px < 8; px++ {
			var color uint8
			if s.FlipX {
				color = data.GetPixelFlipped(px)
			} else {
				color = data.GetPixel(px)
			}
			if color == 0 {
				continue
			}
			p.priority.TryClaimPixel(screenX+px, s.OAMIndex, int(s.X), color, pos)
		}
	}

	y := uint(p.ly)
	for x := 0; x < FramebufferWidth; x++ {
		if p.priority.GetOwner(x) == -1 {
			continue
		}
		s := p.lineSprites[p.priority.sprite[x]]
		if s.BehindBG && p.bgIndex[x] != 0 {
			continue
		}
		palette := p.obp0
		if s.PaletteOBP1 {
			palette = p.obp1
		}
		p.back.SetPixel(uint(x), y, ShadeColor(applyPalette(palette, p.priority.color[x])))
	}
}
