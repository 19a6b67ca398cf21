// Package image565 provides the 16-bit RGB565 pixel format used by the
// ST7789 display controller in its 16 bits per pixel color mode.
//
// A pixel packs red, green and blue into one 16-bit word:
//
//	bit  15    11 10     5 4      0
//	     r r r r r g g g g g g b b b b b
//
// On the wire the controller expects each pixel as two bytes, high byte
// first. Color.Bytes returns them in that order.
//
// Example usage:
//
//	img := image565.New(image.Rect(0, 0, 240, 320))
//	img.SetColor(10, 20, image565.Color(0xF800)) // red
//	hi, lo := img.ColorAt(10, 20).Bytes()
package image565
