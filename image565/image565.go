package image565

import (
	"image"
	"image/color"
)

// Color is a 16-bit RGB565 color.
type Color uint16

// RGBA implements color.Color. Channels are widened by replicating their
// high bits, so full intensity maps to 0xFFFF.
func (c Color) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r = (r5<<3 | r5>>2) * 0x101
	g = (g6<<2 | g6>>4) * 0x101
	b = (b5<<3 | b5>>2) * 0x101
	return r, g, b, 0xFFFF
}

// Bytes returns the big-endian wire encoding of c.
func (c Color) Bytes() (hi, lo byte) {
	return byte(c >> 8), byte(c)
}

func toColor(c color.Color) color.Color {
	if c, ok := c.(Color); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Color(r>>11<<11 | g>>10<<5 | b>>11)
}

// Model converts colors to Color.
var Model = color.ModelFunc(toColor)

// Image is an RGB565 image stored one Color per pixel, row by row.
type Image struct {
	Pix    []Color
	Stride int // Pixels per row
	Rect   image.Rectangle
}

// New returns a zeroed (black) image with bounds r.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]Color, w*h),
		Stride: w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Image) At(x, y int) color.Color {
	return p.ColorAt(x, y)
}

// ColorAt returns the color of the pixel at (x, y).
func (p *Image) ColorAt(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	return p.Pix[p.PixOffset(x, y)]
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetColor(x, y, Model.Convert(c).(Color))
}

// SetColor sets the pixel at (x, y) without color conversion.
func (p *Image) SetColor(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = c
}

// PixOffset returns the index of the pixel at (x, y) in Pix.
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x - p.Rect.Min.X)
}

// Row returns the pixels of row y, or nil if y is out of bounds.
func (p *Image) Row(y int) []Color {
	if y < p.Rect.Min.Y || y >= p.Rect.Max.Y {
		return nil
	}
	start := (y - p.Rect.Min.Y) * p.Stride
	return p.Pix[start : start+p.Rect.Dx()]
}
