package video

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGRoundTrip(t *testing.T) {
	fb := NewFrameBuffer()
	for y := uint(0); y < FramebufferHeight; y++ {
		for x := uint(0); x < FramebufferWidth; x++ {
			fb.SetPixel(x, y, ShadeColor(uint8(x+y)))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, fb.WritePNG(&buf))
	decoded, err := DecodePNG(&buf)
	require.NoError(t, err)
	assert.Equal(t, fb.ToSlice(), decoded.ToSlice())
}

func TestImageChannels(t *testing.T) {
	fb := NewFrameBuffer()
	fb.SetPixel(1, 0, LightGreyColor)
	img := fb.Image()
	assert.Equal(t, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0x98, 0x98, 0x98, 0xFF}, img.RGBAAt(1, 0))
}

func TestFromImageQuantizes(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, FramebufferWidth, FramebufferHeight))
	levels := []uint8{0xFF, 0xAA, 0x55, 0x00}
	for x, level := range levels {
		img.SetGray(x, 0, color.Gray{Y: level})
	}

	fb, err := FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 2, 3}, fb.Shades()[:4])
}

func TestFromImageRejectsSize(t *testing.T) {
	_, err := FromImage(image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.Error(t, err)
}
