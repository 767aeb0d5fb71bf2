package video

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// GBColor is a resolved pixel color in RGBA order.
type GBColor uint32

const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor GBColor = 0x989898FF
	DarkGreyColor  GBColor = 0x4C4C4CFF
	BlackColor     GBColor = 0x000000FF
)

// shades maps a palette output (0-3) to a color.
var shades = [4]GBColor{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// ShadeColor returns the color for a 2-bit shade, 0 being the lightest.
func ShadeColor(shade uint8) GBColor {
	return shades[shade&0x03]
}

// ColorShade is the inverse of ShadeColor. Unknown colors map to 0.
func ColorShade(color GBColor) uint8 {
	for i, c := range shades {
		if c == color {
			return uint8(i)
		}
	}
	return 0
}

// FrameBuffer holds one 160x144 frame.
type FrameBuffer struct {
	buffer []uint32
}

// NewFrameBuffer creates a white frame buffer.
func NewFrameBuffer() *FrameBuffer {
	fb := &FrameBuffer{buffer: make([]uint32, FramebufferSize)}
	fb.Clear(WhiteColor)
	return fb
}

func (fb *FrameBuffer) GetPixel(x, y uint) uint32 {
	return fb.buffer[y*FramebufferWidth+x]
}

func (fb *FrameBuffer) SetPixel(x, y uint, color GBColor) {
	fb.buffer[y*FramebufferWidth+x] = uint32(color)
}

// Clear fills the whole buffer with color.
func (fb *FrameBuffer) Clear(color GBColor) {
	for i := range fb.buffer {
		fb.buffer[i] = uint32(color)
	}
}

// CopyFrom copies all pixels from other.
func (fb *FrameBuffer) CopyFrom(other *FrameBuffer) {
	copy(fb.buffer, other.buffer)
}

// ToSlice returns the underlying pixels, row major.
func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}
