// Package glyph provides 5x8 monochrome bitmaps for the controller's
// character generator RAM.
//
// The controller keeps eight user defined characters. Each one is eight row
// bytes where the low 5 bits are the pixels, bit 4 being the leftmost:
//
//	Pixels: 0 1 2 3 4
//	Row:    # . # . #
//	Byte:   0x15
//
// This package provides:
//
// - Mono: a color type for an on/off pixel
// - MonoModel: a color model thresholding standard Go colors to Mono
// - Glyph: an image.Image and draw.Image implementation with CGRAM layout
//
// Example usage:
//
//	g := glyph.New()
//	draw.Draw(g, g.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
//	g.SetMono(2, 3, glyph.Mono{})
//	dev.DefineGlyph(0, g)
//	dev.WriteAt("\x00", 1, 0)
package glyph
