package glyph

import (
	"fmt"
	"image"
	"image/color"
)

const (
	// Width and Height are the glyph size in pixels.
	Width  = 5
	Height = 8
)

// Mono is a single lit or unlit pixel.
type Mono struct {
	On bool
}

// RGBA converts the pixel to opaque white or black.
func (c Mono) RGBA() (r, g, b, a uint32) {
	if c.On {
		return 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF
	}
	return 0, 0, 0, 0xFFFF
}

// toMono converts any color.Color to Mono.
func toMono(c color.Color) color.Color {
	if m, ok := c.(Mono); ok {
		return m
	}
	r, g, b, a := c.RGBA()
	// Transparent pixels stay dark, everything else is lit above mid luminance.
	if a < 0x8000 {
		return Mono{}
	}
	y := (299*r + 587*g + 114*b + 500) / 1000
	return Mono{On: y >= 0x8000}
}

// MonoModel converts colors to Mono.
var MonoModel = color.ModelFunc(toMono)

// Glyph is a 5x8 bitmap stored the way the controller expects it.
type Glyph struct {
	Pix [Height]byte
}

// New returns a blank glyph.
func New() *Glyph {
	return &Glyph{}
}

// Parse builds a glyph from up to eight rows of text where '#' is a lit pixel
// and any other character is unlit.
func Parse(rows ...string) (*Glyph, error) {
	if len(rows) > Height {
		return nil, fmt.Errorf("glyph: %d rows, at most %d allowed", len(rows), Height)
	}
	g := New()
	for y, row := range rows {
		if len(row) > Width {
			return nil, fmt.Errorf("glyph: row %d is %d pixels wide, at most %d allowed", y, len(row), Width)
		}
		for x := 0; x < len(row); x++ {
			g.SetMono(x, y, Mono{On: row[x] == '#'})
		}
	}
	return g, nil
}

// Rows returns the CGRAM bytes of the glyph, top row first.
func (g *Glyph) Rows() [Height]byte {
	return g.Pix
}

// ColorModel returns the color model of the image.
func (g *Glyph) ColorModel() color.Model {
	return MonoModel
}

// Bounds returns the image bounds.
func (g *Glyph) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At returns the color of the pixel at (x, y).
func (g *Glyph) At(x, y int) color.Color {
	return g.MonoAt(x, y)
}

// MonoAt returns the pixel at (x, y).
func (g *Glyph) MonoAt(x, y int) Mono {
	if !(image.Point{X: x, Y: y}.In(g.Bounds())) {
		return Mono{}
	}
	return Mono{On: g.Pix[y]&mask(x) != 0}
}

// Set sets the color of the pixel at (x, y).
func (g *Glyph) Set(x, y int, c color.Color) {
	g.SetMono(x, y, MonoModel.Convert(c).(Mono))
}

// SetMono sets the pixel at (x, y).
func (g *Glyph) SetMono(x, y int, c Mono) {
	if !(image.Point{X: x, Y: y}.In(g.Bounds())) {
		return
	}
	if c.On {
		g.Pix[y] |= mask(x)
	} else {
		g.Pix[y] &^= mask(x)
	}
}

// mask returns the row bit of column x; column 0 is bit 4.
func mask(x int) byte {
	return 1 << uint(Width-1-x)
}
