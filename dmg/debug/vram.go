// Package debug inspects video memory outside of normal rendering: tile
// sheets and sprite tables for debugging games and the PPU itself.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/valerio/go-dmg/dmg/video"
)

const (
	TileDataSize     = 16
	TilePixelWidth   = 8
	TilePixelHeight  = 8
	TilePatternCount = 384
	TilesPerRow      = 16
	TileRows         = TilePatternCount / TilesPerRow

	// SheetWidth and SheetHeight are the size of a TileSheet image.
	SheetWidth  = TilesPerRow * TilePixelWidth
	SheetHeight = TileRows * TilePixelHeight

	backgroundMapSelect = 3
	windowMapSelect     = 6
	windowEnable        = 5
	bgEnable            = 0
)

// TilePattern is one decoded 8x8 tile as 2-bit color indexes.
type TilePattern struct {
	Index  int
	Pixels [TilePixelHeight][TilePixelWidth]uint8
}

// Tiles decodes all 384 tile patterns in VRAM.
func Tiles(s video.PPUState) ([]TilePattern, error) {
	if len(s.VRAM) < TilePatternCount*TileDataSize {
		return nil, fmt.Errorf("VRAM is %d bytes, need %d", len(s.VRAM), TilePatternCount*TileDataSize)
	}
	tiles := make([]TilePattern, TilePatternCount)
	for i := range tiles {
		tiles[i].Index = i
		base := i * TileDataSize
		for y := 0; y < TilePixelHeight; y++ {
			row := video.TileRow{Low: s.VRAM[base+2*y], High: s.VRAM[base+2*y+1]}
			for x := 0; x < TilePixelWidth; x++ {
				tiles[i].Pixels[y][x] = row.GetPixel(x)
			}
		}
	}
	return tiles, nil
}

// TileSheet draws every tile in a 16x24 grid, shaded through BGP.
func TileSheet(s video.PPUState) (*image.RGBA, error) {
	tiles, err := Tiles(s)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, SheetWidth, SheetHeight))
	for _, tile := range tiles {
		ox := (tile.Index % TilesPerRow) * TilePixelWidth
		oy := (tile.Index / TilesPerRow) * TilePixelHeight
		for y := 0; y < TilePixelHeight; y++ {
			for x := 0; x < TilePixelWidth; x++ {
				shade := (s.BGP >> (tile.Pixels[y][x] * 2)) & 0x03
				color := uint32(video.ShadeColor(shade))
				o := img.PixOffset(ox+x, oy+y)
				img.Pix[o] = uint8(color >> 24)
				img.Pix[o+1] = uint8(color >> 16)
				img.Pix[o+2] = uint8(color >> 8)
				img.Pix[o+3] = uint8(color)
			}
		}
	}
	return img, nil
}

// WriteTileSheet encodes TileSheet as PNG.
func WriteTileSheet(w io.Writer, s video.PPUState) error {
	img, err := TileSheet(s)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// TilemapInfo summarizes which tile maps LCDC selects.
type TilemapInfo struct {
	BackgroundMap    uint16
	WindowMap        uint16
	BackgroundActive bool
	WindowActive     bool
	LCDCValue        uint8
}

func Tilemaps(s video.PPUState) TilemapInfo {
	info := TilemapInfo{
		BackgroundMap:    0x9800,
		WindowMap:        0x9800,
		BackgroundActive: s.LCDC&(1<<bgEnable) != 0,
		WindowActive:     s.LCDC&(1<<bgEnable) != 0 && s.LCDC&(1<<windowEnable) != 0,
		LCDCValue:        s.LCDC,
	}
	if s.LCDC&(1<<backgroundMapSelect) != 0 {
		info.BackgroundMap = 0x9C00
	}
	if s.LCDC&(1<<windowMapSelect) != 0 {
		info.WindowMap = 0x9C00
	}
	return info
}

func (info TilemapInfo) FormatSummary() string {
	status := func(active bool) string {
		if active {
			return "ACTIVE"
		}
		return "INACTIVE"
	}
	return fmt.Sprintf("Background Map: 0x%04X [%s] | Window Map: 0x%04X [%s] | LCDC: 0x%02X",
		info.BackgroundMap, status(info.BackgroundActive), info.WindowMap, status(info.WindowActive), info.LCDCValue)
}
