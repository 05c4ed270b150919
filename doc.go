// Package charlcd controls an HD44780 character LCD behind a PCF8574 I2C
// backpack.
//
// The backpack wires the expander's 8 output bits to the LCD as follows:
//
//	Bit  Signal
//	0    RS (register select, high for character data)
//	1    RW (held low, the display is never read)
//	2    EN (enable strobe)
//	3    Backlight
//	4-7  D4-D7
//
// The controller is driven in 4-bit mode. Every command or character byte is
// sent as two nibbles, high nibble first, and each nibble is latched by
// raising and lowering EN. A byte therefore costs six expander writes.
//
// This driver implements the display.TextDisplay and display.DisplayBacklight
// interfaces from periph.io.
//
// # Hardware Connection
//
// Connect the backpack to your system via I2C:
//
//	Backpack Pin → System Pin
//	GND          → GND
//	VCC          → 5V
//	SDA          → I2C Data (SDA)
//	SCL          → I2C Clock (SCL)
//
// Most backpacks answer at 0x27; boards built around the PCF8574A answer at
// 0x3F.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"github.com/flavioheleno/charlcd"
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		b, _ := i2creg.Open("")
//		defer b.Close()
//
//		dev, _ := charlcd.NewI2C(b, &charlcd.Opts{
//			Rows: 4,
//			Cols: 20,
//			Addr: 0x27,
//		})
//		defer dev.Halt()
//
//		dev.WriteAt("Hello", 1, 0)
//		dev.WriteAt("world", 2, 5)
//	}
//
// # Addressing
//
// Lines are numbered from 1 and columns from 0. Each line starts at a fixed
// DDRAM offset; the default table is {0x00, 0x40, Cols, 0x40+Cols}, which
// gives {0x00, 0x40, 0x14, 0x54} on a 20x4 module. Modules with an unusual
// layout can pass their own table in Opts.RowOffsets.
//
// Positions are checked before anything reaches the bus. An invalid line or
// column returns a *RangeError and emits no traffic.
//
// # Long Text
//
// WriteAt does not scroll. Text running past the last column follows
// Opts.Overflow: OverflowWrap lets the controller's address counter carry the
// remaining characters on, OverflowTruncate drops them. Scrolling lives in
// the marquee package and the render package decides between a static write
// and a scroll for each line.
//
// # Custom Characters
//
// The controller holds eight user defined 5x8 characters, addressed as bytes
// 0 to 7. Build them with the glyph package:
//
//	g, _ := glyph.Parse(
//		"..#..",
//		".###.",
//		"#####",
//		"..#..",
//		"..#..",
//		"..#..",
//		"..#..",
//		".....",
//	)
//	dev.DefineGlyph(1, g)
//	dev.WriteAt("\x01 up", 1, 0)
//
// # Text Encoding
//
// Runes up to U+00FF are sent as their byte value, which matches the ROM
// for ASCII. Anything else is replaced by '?'.
//
// # Errors
//
// A failed expander write is returned as a *BusError wrapping the transport
// error. The cursor position is unknown afterwards, so callers retrying must
// reissue the whole operation. After Halt every call returns ErrHalted.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
//
// https://www.ti.com/lit/ds/symlink/pcf8574.pdf
package charlcd
