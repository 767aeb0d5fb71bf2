package video

import "github.com/valerio/go-dmg/dmg/bit"

// TileRow represents one row of a tile pattern (8 pixels).
//
// Game Boy tiles are 8x8 pixels, with 2 bits per pixel allowing 4 colors.
// Each tile row uses 2 bytes in a bit-plane format:
//
//	Byte 1 (Low):  Bit plane 0 - provides bit 0 of each pixel's color
//	Byte 2 (High): Bit plane 1 - provides bit 1 of each pixel's color
//
// Bit 7 represents the leftmost pixel, bit 0 the rightmost:
//
//	Bit:     7 6 5 4 3 2 1 0
//	Pixel:   0 1 2 3 4 5 6 7
//
// Example: Bytes $3C and $7E represent a row:
//
//	Low  (0x3C): 0 0 1 1 1 1 0 0
//	High (0x7E): 0 1 1 1 1 1 1 0
//	            -----------------
//	Colors:      0 2 3 3 3 3 2 0
//
// Reference: https://gbdev.io/pandocs/Tile_Data.html
type TileRow struct {
	Low  byte
	High byte
}

// GetPixel extracts a color index (0-3) from the tile row.
// pixelX should be 0-7, where 0 is the leftmost pixel.
func (t TileRow) GetPixel(pixelX int) uint8 {
	return t.pixelAt(uint8(7 - pixelX))
}

// GetPixelFlipped extracts a color index with horizontal flip.
// Used for sprite rendering with the flip X attribute.
func (t TileRow) GetPixelFlipped(pixelX int) uint8 {
	return t.pixelAt(uint8(pixelX))
}

func (t TileRow) pixelAt(bitIndex uint8) uint8 {
	return bit.Value(bitIndex, t.Low) | bit.Value(bitIndex, t.High)<<1
}

// tileRow reads row `row` of the tile starting at VRAM offset base.
func (p *PPU) tileRow(base uint16, row int) TileRow {
	offset := base + uint16(row*2)
	return TileRow{Low: p.vram[offset], High: p.vram[offset+1]}
}

// bgTileBase returns the VRAM offset of a background/window tile, honoring
// the LCDC tile data select: 0x8000 unsigned or 0x8800 signed around 0x9000.
func (p *PPU) bgTileBase(tileNumber uint8) uint16 {
	if bit.IsSet(lcdcTileData, p.lcdc) {
		return uint16(tileNumber) * 16
	}
	return uint16(0x1000 + int(int8(tileNumber))*16)
}
