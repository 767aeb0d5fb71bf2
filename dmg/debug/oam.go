package debug

import (
	"fmt"

	"github.com/valerio/go-dmg/dmg/video"
)

const (
	OAMSpriteCount    = 40
	OAMBytesPerSprite = 4
	SpriteYOffset     = 16
	SpriteXOffset     = 8
	MaxSpritesPerLine = 10

	lcdcSpriteSize = 2
)

// SpriteInfo is one OAM entry with screen coordinates.
type SpriteInfo struct {
	Index      int
	Y          int
	X          int
	TileIndex  uint8
	Attributes uint8
	// IsVisible is set when the sprite covers CurrentLine.
	IsVisible bool
}

type OAMData struct {
	Sprites       []SpriteInfo
	CurrentLine   int
	ActiveSprites int
	SpriteHeight  int
}

// ExtractOAMData decodes OAM and marks the sprites the PPU would select on
// the current line, at most 10 in OAM order.
func ExtractOAMData(s video.PPUState) (*OAMData, error) {
	if len(s.OAM) < OAMSpriteCount*OAMBytesPerSprite {
		return nil, fmt.Errorf("OAM is %d bytes, need %d", len(s.OAM), OAMSpriteCount*OAMBytesPerSprite)
	}
	data := &OAMData{
		Sprites:      make([]SpriteInfo, OAMSpriteCount),
		CurrentLine:  int(s.LY),
		SpriteHeight: 8,
	}
	if s.LCDC&(1<<lcdcSpriteSize) != 0 {
		data.SpriteHeight = 16
	}

	for i := range data.Sprites {
		base := i * OAMBytesPerSprite
		sprite := SpriteInfo{
			Index:      i,
			Y:          int(s.OAM[base]) - SpriteYOffset,
			X:          int(s.OAM[base+1]) - SpriteXOffset,
			TileIndex:  s.OAM[base+2],
			Attributes: s.OAM[base+3],
		}
		onLine := data.CurrentLine >= sprite.Y && data.CurrentLine < sprite.Y+data.SpriteHeight
		if onLine && data.ActiveSprites < MaxSpritesPerLine {
			sprite.IsVisible = true
			data.ActiveSprites++
		}
		data.Sprites[i] = sprite
	}
	return data, nil
}

func (s *SpriteInfo) String() string {
	status := "OFF"
	if s.IsVisible {
		status = "ACTIVE"
	}
	return fmt.Sprintf("Sprite %2d: Y=%3d X=%3d  Tile=0x%02X Flags=0x%02X [%s]",
		s.Index, s.Y, s.X, s.TileIndex, s.Attributes, status)
}

func (data *OAMData) GetVisibleSprites() []SpriteInfo {
	visible := make([]SpriteInfo, 0, data.ActiveSprites)
	for _, sprite := range data.Sprites {
		if sprite.IsVisible {
			visible = append(visible, sprite)
		}
	}
	return visible
}

func (data *OAMData) FormatSummary() string {
	return fmt.Sprintf("Current Line: %d | Active Sprites: %d/%d | Height: %dpx",
		data.CurrentLine, data.ActiveSprites, MaxSpritesPerLine, data.SpriteHeight)
}
