package video

import "github.com/valerio/go-dmg/dmg/bit"

const (
	oamEntries        = 40
	spritesPerLine    = 10
	spriteAttrPalette = 4
	spriteAttrFlipX   = 5
	spriteAttrFlipY   = 6
	spriteAttrBehind  = 7
)

// Sprite represents a single sprite/object in OAM memory.
// The Game Boy has 40 sprites stored in OAM (Object Attribute Memory) from 0xFE00-0xFE9F.
type Sprite struct {
	Y         uint8 // raw Y position, screen Y + 16
	X         uint8 // raw X position, screen X + 8
	TileIndex uint8
	Flags     uint8
	OAMIndex  int

	// parsed attribute flags for convenience
	PaletteOBP1 bool // false = OBP0, true = OBP1
	FlipX       bool
	FlipY       bool
	BehindBG    bool // BG/window colors 1-3 are drawn over the sprite
}

func (s *Sprite) parseFlags() {
	s.PaletteOBP1 = bit.IsSet(spriteAttrPalette, s.Flags)
	s.FlipX = bit.IsSet(spriteAttrFlipX, s.Flags)
	s.FlipY = bit.IsSet(spriteAttrFlipY, s.Flags)
	s.BehindBG = bit.IsSet(spriteAttrBehind, s.Flags)
}

func (p *PPU) spriteHeight() int {
	if bit.IsSet(lcdcSpriteSize, p.lcdc) {
		return 16
	}
	return 8
}

func (p *PPU) readSprite(index int) Sprite {
	base := index * 4
	s := Sprite{
		Y:         p.oam[base],
		X:         p.oam[base+1],
		TileIndex: p.oam[base+2],
		Flags:     p.oam[base+3],
		OAMIndex:  index,
	}
	s.parseFlags()
	return s
}

// scanOAM selects the sprites overlapping the current line, in OAM order,
// stopping at the hardware limit of 10. X position plays no part here: a
// sprite placed off-screen horizontally still takes a slot.
func (p *PPU) scanOAM() {
	p.lineSprites = p.lineSprites[:0]
	height := p.spriteHeight()
	line := int(p.ly) + 16

	for i := 0; i < oamEntries && len(p.lineSprites) < spritesPerLine; i++ {
		y := int(p.oam[i*4])
		if line >= y && line < y+height {
			p.lineSprites = append(p.lineSprites, p.readSprite(i))
		}
	}
}

// Sprites returns all 40 OAM entries, for debugging.
func (p *PPU) Sprites() []Sprite {
	result := make([]Sprite, oamEntries)
	for i := range result {
		result[i] = p.readSprite(i)
	}
	return result
}

// SpritePriorityBuffer manages sprite-to-pixel ownership for priority in
// DMG (non-color) rendering, see https://gbdev.io/pandocs/OAM.html#drawing-priority.
//
// In this mode, the PPU enforces strict priority rules:
//   - sprites with lower X coordinates have priority
//   - when X coordinates match, lower OAM indices win.
//
// Example: overlap with same X coordinates
//
//	Pixels:    10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25
//	Sprite 1:           [-----D-----]                          (X=12, OAM=1)
//	Sprite 3:           [-----C-----]                          (X=12, OAM=3)
//	Sprite 5:  [-----E-----]                                   (X=10, OAM=5)
//	Result:    [-----E-----]--D-----]
//
// Only opaque pixels are claimed, so a transparent pixel of a higher priority
// sprite lets the next one show through. Instead of sorting sprites by
// priority, ownership is resolved per pixel while sprites are drawn in OAM order.
type SpritePriorityBuffer struct {
	// ownerIndex tracks which sprite (by OAM index) owns each pixel
	// -1 means no sprite owns this pixel
	ownerIndex [FramebufferWidth]int
	// ownerX is the X coordinate of the owning sprite
	ownerX [FramebufferWidth]int
	// color is the owning sprite's color index at that pixel
	color [FramebufferWidth]uint8
	// sprite is the position of the owner in the line's sprite list
	sprite [FramebufferWidth]int
}

// Clear resets the buffer for a new scanline
func (s *SpritePriorityBuffer) Clear() {
	for i := range s.ownerIndex {
		s.ownerIndex[i] = -1
		s.ownerX[i] = 0xFFFF
	}
}

// TryClaimPixel attempts to claim ownership of a pixel for a sprite.
// Returns true if the sprite wins priority and claims the pixel.
// Priority rules:
//  1. If no sprite owns the pixel, this sprite wins
//  2. If this sprite has a lower X coordinate, it wins
//  3. If X coordinates match, lower OAM index wins
func (s *SpritePriorityBuffer) TryClaimPixel(pixelX, spriteIndex, spriteX int, color uint8, listPos int) bool {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return false
	}

	current := s.ownerIndex[pixelX]
	if current != -1 {
		currentX := s.ownerX[pixelX]
		if spriteX > currentX || (spriteX == currentX && spriteIndex > current) {
			return false
		}
	}

	s.ownerIndex[pixelX] = spriteIndex
	s.ownerX[pixelX] = spriteX
	s.color[pixelX] = color
	s.sprite[pixelX] = listPos
	return true
}

// GetOwner returns the sprite index that owns a pixel, or -1 if none
func (s *SpritePriorityBuffer) GetOwner(pixelX int) int {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return -1
	}
	return s.ownerIndex[pixelX]
}
