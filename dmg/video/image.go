package video

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Image converts the frame to an RGBA image.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, FramebufferWidth, FramebufferHeight))
	for i, pixel := range fb.buffer {
		o := i * 4
		img.Pix[o] = uint8(pixel >> 24)
		img.Pix[o+1] = uint8(pixel >> 16)
		img.Pix[o+2] = uint8(pixel >> 8)
		img.Pix[o+3] = uint8(pixel)
	}
	return img
}

// WritePNG encodes the frame as a PNG image.
func (fb *FrameBuffer) WritePNG(w io.Writer) error {
	return png.Encode(w, fb.Image())
}

// Shades returns the 2-bit shade of every pixel, 0 being the lightest.
func (fb *FrameBuffer) Shades() []uint8 {
	out := make([]uint8, len(fb.buffer))
	for i, pixel := range fb.buffer {
		out[i] = ColorShade(GBColor(pixel))
	}
	return out
}

// FromImage quantizes a 160x144 image to the four DMG shades by luminance.
// Reference screenshots use arbitrary grey palettes, any of them works.
func FromImage(img image.Image) (*FrameBuffer, error) {
	b := img.Bounds()
	if b.Dx() != FramebufferWidth || b.Dy() != FramebufferHeight {
		return nil, fmt.Errorf("image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), FramebufferWidth, FramebufferHeight)
	}
	fb := NewFrameBuffer()
	for y := 0; y < FramebufferHeight; y++ {
		for x := 0; x < FramebufferWidth; x++ {
			gray := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			fb.SetPixel(uint(x), uint(y), ShadeColor(3-gray/64))
		}
	}
	return fb, nil
}

// DecodePNG reads a reference screenshot with FromImage.
func DecodePNG(r io.Reader) (*FrameBuffer, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}
