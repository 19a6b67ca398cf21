package image565

import (
	"image"
	"image/color"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		rect   image.Rectangle
		stride int
		pixlen int
	}{
		{"240x320", image.Rect(0, 0, 240, 320), 240, 76800},
		{"1x1", image.Rect(0, 0, 1, 1), 1, 1},
		{"offset", image.Rect(10, 20, 14, 22), 4, 8},
		{"empty", image.Rect(0, 0, 0, 0), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := New(tt.rect)
			if img.Stride != tt.stride {
				t.Errorf("Stride = %d, want %d", img.Stride, tt.stride)
			}
			if len(img.Pix) != tt.pixlen {
				t.Errorf("len(Pix) = %d, want %d", len(img.Pix), tt.pixlen)
			}
			if img.Rect != tt.rect {
				t.Errorf("Rect = %v, want %v", img.Rect, tt.rect)
			}
			for i, c := range img.Pix {
				if c != 0 {
					t.Fatalf("Pix[%d] = %#04x, want 0", i, c)
				}
			}
		})
	}
}

func TestColorRGBA(t *testing.T) {
	tests := []struct {
		name       string
		c          Color
		r, g, b, a uint32
	}{
		{"black", 0x0000, 0, 0, 0, 0xFFFF},
		{"white", 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF},
		{"red", 0xF800, 0xFFFF, 0, 0, 0xFFFF},
		{"green", 0x07E0, 0, 0xFFFF, 0, 0xFFFF},
		{"blue", 0x001F, 0, 0, 0xFFFF, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, a := tt.c.RGBA()
			if r != tt.r || g != tt.g || b != tt.b || a != tt.a {
				t.Errorf("RGBA() = (%#x, %#x, %#x, %#x), want (%#x, %#x, %#x, %#x)",
					r, g, b, a, tt.r, tt.g, tt.b, tt.a)
			}
		})
	}
}

func TestColorBytes(t *testing.T) {
	tests := []struct {
		c      Color
		hi, lo byte
	}{
		{0x0000, 0x00, 0x00},
		{0xFFFF, 0xFF, 0xFF},
		{0xF800, 0xF8, 0x00},
		{0x1234, 0x12, 0x34},
	}

	for _, tt := range tests {
		hi, lo := tt.c.Bytes()
		if hi != tt.hi || lo != tt.lo {
			t.Errorf("Color(%#04x).Bytes() = (%#02x, %#02x), want (%#02x, %#02x)", uint16(tt.c), hi, lo, tt.hi, tt.lo)
		}
	}
}

func TestModel(t *testing.T) {
	tests := []struct {
		name string
		in   color.Color
		want Color
	}{
		{"black", color.Black, 0x0000},
		{"white", color.White, 0xFFFF},
		{"red", color.RGBA{R: 0xFF, A: 0xFF}, 0xF800},
		{"green", color.RGBA{G: 0xFF, A: 0xFF}, 0x07E0},
		{"blue", color.RGBA{B: 0xFF, A: 0xFF}, 0x001F},
		{"gray", color.Gray{Y: 0x80}, 0x8410},
		{"passthrough", Color(0x1234), 0x1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Model.Convert(tt.in).(Color)
			if !ok {
				t.Fatalf("Convert(%v) returned %T", tt.in, Model.Convert(tt.in))
			}
			if got != tt.want {
				t.Errorf("Convert(%v) = %#04x, want %#04x", tt.in, uint16(got), uint16(tt.want))
			}
		})
	}
}

func TestSetGet(t *testing.T) {
	img := New(image.Rect(0, 0, 4, 3))
	tests := []struct {
		x, y int
		c    Color
	}{
		{0, 0, 0xF800},
		{3, 0, 0x07E0},
		{0, 2, 0x001F},
		{3, 2, 0xFFFF},
		{1, 1, 0x1234},
	}

	for _, tt := range tests {
		img.SetColor(tt.x, tt.y, tt.c)
	}
	for _, tt := range tests {
		if got := img.ColorAt(tt.x, tt.y); got != tt.c {
			t.Errorf("ColorAt(%d, %d) = %#04x, want %#04x", tt.x, tt.y, uint16(got), uint16(tt.c))
		}
		if got, ok := img.At(tt.x, tt.y).(Color); !ok || got != tt.c {
			t.Errorf("At(%d, %d) = %v, want %#04x", tt.x, tt.y, img.At(tt.x, tt.y), uint16(tt.c))
		}
	}
	if got := img.ColorAt(2, 0); got != 0 {
		t.Errorf("untouched pixel = %#04x, want 0", uint16(got))
	}
}

func TestSetConverts(t *testing.T) {
	img := New(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 0xFF, A: 0xFF})
	if got := img.ColorAt(1, 1); got != 0xF800 {
		t.Errorf("ColorAt(1, 1) = %#04x, want 0xf800", uint16(got))
	}
}

func TestColorModel(t *testing.T) {
	img := New(image.Rect(0, 0, 1, 1))
	if img.ColorModel() != Model {
		t.Error("ColorModel() is not Model")
	}
}

func TestBounds(t *testing.T) {
	r := image.Rect(5, 6, 25, 36)
	if got := New(r).Bounds(); got != r {
		t.Errorf("Bounds() = %v, want %v", got, r)
	}
}

func TestOutOfBounds(t *testing.T) {
	img := New(image.Rect(0, 0, 2, 2))
	for _, p := range []image.Point{{-1, 0}, {0, -1}, {2, 0}, {0, 2}, {100, 100}} {
		img.SetColor(p.X, p.Y, 0xFFFF)
		if got := img.ColorAt(p.X, p.Y); got != 0 {
			t.Errorf("ColorAt(%d, %d) = %#04x, want 0", p.X, p.Y, uint16(got))
		}
	}
	for i, c := range img.Pix {
		if c != 0 {
			t.Errorf("Pix[%d] = %#04x after out of bounds writes", i, uint16(c))
		}
	}
}

func TestOffsetRect(t *testing.T) {
	img := New(image.Rect(10, 20, 13, 22))
	img.SetColor(10, 20, 1)
	img.SetColor(12, 21, 2)
	if img.Pix[0] != 1 {
		t.Errorf("Pix[0] = %d, want 1", img.Pix[0])
	}
	if img.Pix[5] != 2 {
		t.Errorf("Pix[5] = %d, want 2", img.Pix[5])
	}
}

func TestPixOffset(t *testing.T) {
	img := New(image.Rect(0, 0, 240, 320))
	tests := []struct {
		x, y, want int
	}{
		{0, 0, 0},
		{239, 0, 239},
		{0, 1, 240},
		{239, 319, 76799},
	}

	for _, tt := range tests {
		if got := img.PixOffset(tt.x, tt.y); got != tt.want {
			t.Errorf("PixOffset(%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRow(t *testing.T) {
	img := New(image.Rect(0, 0, 3, 2))
	img.SetColor(0, 1, 7)
	row := img.Row(1)
	if len(row) != 3 || row[0] != 7 {
		t.Errorf("Row(1) = %v, want [7 0 0]", row)
	}
	if img.Row(2) != nil || img.Row(-1) != nil {
		t.Error("Row out of bounds is not nil")
	}
}
