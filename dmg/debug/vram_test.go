package debug

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg/video"
)

func newState() video.PPUState {
	return video.PPUState{
		VRAM: make([]byte, 0x2000),
		OAM:  make([]byte, 0xA0),
		BGP:  0xE4,
	}
}

func TestTiles(t *testing.T) {
	s := newState()
	// Row 0 decodes to 1,1,1,1,2,2,2,2 and row 1 to the reverse.
	s.VRAM[0], s.VRAM[1] = 0xF0, 0x0F
	s.VRAM[2], s.VRAM[3] = 0x0F, 0xF0
	// Last tile, last row, all 3s.
	s.VRAM[383*TileDataSize+14], s.VRAM[383*TileDataSize+15] = 0xFF, 0xFF

	tiles, err := Tiles(s)
	require.NoError(t, err)
	require.Len(t, tiles, TilePatternCount)

	assert.Equal(t, [8]uint8{1, 1, 1, 1, 2, 2, 2, 2}, tiles[0].Pixels[0])
	assert.Equal(t, [8]uint8{2, 2, 2, 2, 1, 1, 1, 1}, tiles[0].Pixels[1])
	assert.Equal(t, [8]uint8{}, tiles[0].Pixels[2])
	assert.Equal(t, 383, tiles[383].Index)
	assert.Equal(t, [8]uint8{3, 3, 3, 3, 3, 3, 3, 3}, tiles[383].Pixels[7])
}

func TestTilesShortVRAM(t *testing.T) {
	s := newState()
	s.VRAM = s.VRAM[:100]
	_, err := Tiles(s)
	assert.Error(t, err)
}

func TestTileSheet(t *testing.T) {
	s := newState()
	s.VRAM[0], s.VRAM[1] = 0xF0, 0x0F
	// Tile 17 sits at column 1 of the second sheet row.
	s.VRAM[17*TileDataSize], s.VRAM[17*TileDataSize+1] = 0x80, 0x80

	img, err := TileSheet(s)
	require.NoError(t, err)
	assert.Equal(t, SheetWidth, img.Bounds().Dx())
	assert.Equal(t, SheetHeight, img.Bounds().Dy())

	shadeAt := func(x, y int) uint8 {
		c := img.RGBAAt(x, y)
		return video.ColorShade(video.GBColor(uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)))
	}
	assert.Equal(t, uint8(1), shadeAt(0, 0))
	assert.Equal(t, uint8(2), shadeAt(7, 0))
	assert.Equal(t, uint8(0), shadeAt(0, 1))
	assert.Equal(t, uint8(3), shadeAt(8, 8))
	assert.Equal(t, uint8(0), shadeAt(9, 8))

	// An inverted palette flips the shades.
	s.BGP = 0x1B
	img, err = TileSheet(s)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), shadeAt(0, 0))
	assert.Equal(t, uint8(3), shadeAt(0, 1))
}

func TestWriteTileSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTileSheet(&buf, newState()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, SheetWidth, img.Bounds().Dx())
	assert.Equal(t, SheetHeight, img.Bounds().Dy())
}

func TestTilemaps(t *testing.T) {
	tests := []struct {
		lcdc uint8
		want TilemapInfo
	}{
		{0x00, TilemapInfo{BackgroundMap: 0x9800, WindowMap: 0x9800}},
		{0x91, TilemapInfo{BackgroundMap: 0x9800, WindowMap: 0x9800, BackgroundActive: true, LCDCValue: 0x91}},
		{0xE9, TilemapInfo{BackgroundMap: 0x9C00, WindowMap: 0x9C00, BackgroundActive: true, WindowActive: true, LCDCValue: 0xE9}},
		// The window needs the background enable bit on the DMG.
		{0x60, TilemapInfo{BackgroundMap: 0x9800, WindowMap: 0x9C00, LCDCValue: 0x60}},
	}
	for _, tt := range tests {
		s := newState()
		s.LCDC = tt.lcdc
		assert.Equal(t, tt.want, Tilemaps(s), "LCDC=0x%02X", tt.lcdc)
	}

	s := newState()
	s.LCDC = 0xE9
	assert.Equal(t, "Background Map: 0x9C00 [ACTIVE] | Window Map: 0x9C00 [ACTIVE] | LCDC: 0xE9", Tilemaps(s).FormatSummary())
}
