// Package charlcd controls an HD44780 character LCD behind a PCF8574 I2C
// backpack.
//
// See the examples for how to use this package.
package charlcd

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/flavioheleno/charlcd/glyph"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Expander port bits.
const (
	flagRS        = 0x01 // Register select: high for character data
	flagRW        = 0x02 // Read/write, held low
	flagEN        = 0x04 // Enable strobe
	flagBacklight = 0x08
)

// Controller instructions.
const (
	cmdClear       = 0x01
	cmdHome        = 0x02
	cmdEntryMode   = 0x04
	cmdDisplayCtrl = 0x08
	cmdShift       = 0x10
	cmdFunctionSet = 0x20
	cmdSetCGRAM    = 0x40
	cmdSetDDRAM    = 0x80

	entryShift  = 0x01
	entryLeft   = 0x02
	blinkOn     = 0x01
	cursorOn    = 0x02
	displayOn   = 0x04
	moveRight   = 0x04
	twoLine     = 0x08
	font5x8     = 0x00
	fourBitMode = 0x00
)

// Interface is the controller data bus width.
type Interface int

const (
	Interface4Bit Interface = 4
	Interface8Bit Interface = 8
)

// Overflow selects what WriteAt does with text running past the end of a row.
type Overflow int

const (
	// OverflowWrap sends every character; the controller decides where the
	// extra characters land.
	OverflowWrap Overflow = iota
	// OverflowTruncate drops the characters that do not fit on the row.
	OverflowTruncate
)

// Timing holds the delays of the 4-bit write protocol.
type Timing struct {
	Settle  time.Duration // After every expander write
	Pulse   time.Duration // Enable held high
	Release time.Duration // After enable falls
	Startup time.Duration // After the init sequence
}

// DefaultTiming is conservative enough for 100kHz buses and slow modules.
var DefaultTiming = Timing{
	Settle:  100 * time.Microsecond,
	Pulse:   500 * time.Microsecond,
	Release: 100 * time.Microsecond,
	Startup: 200 * time.Millisecond,
}

// Opts is the configuration for the display.
type Opts struct {
	// Display geometry in characters
	Rows int // default: 4, must be between 1 and 4
	Cols int // default: 20, must be between 1 and 40

	// I²C address of the backpack (default: 0x27)
	Addr uint16

	// Controller data bus width (default: Interface4Bit)
	Interface Interface

	// DDRAM base address per line; nil uses the HD44780 layout.
	RowOffsets []int

	Overflow Overflow

	// BusSpeed is applied to the bus before init when non zero.
	BusSpeed physic.Frequency

	// Timing overrides DefaultTiming when non nil.
	Timing *Timing

	Logger logrus.FieldLogger
}

// DefaultOpts is a 20x4 module at the usual PCF8574 address.
var DefaultOpts = Opts{
	Rows:      4,
	Cols:      20,
	Addr:      0x27,
	Interface: Interface4Bit,
}

func (o *Opts) geometry() (Geometry, error) {
	if o.Rows < 1 || o.Rows > 4 {
		return Geometry{}, fmt.Errorf("charlcd: rows must be between 1 and 4, got %d", o.Rows)
	}
	if o.Cols < 1 || o.Cols > 40 {
		return Geometry{}, fmt.Errorf("charlcd: cols must be between 1 and 40, got %d", o.Cols)
	}
	if o.Rows*o.Cols > 80 {
		return Geometry{}, fmt.Errorf("charlcd: %dx%d exceeds the 80 character display RAM", o.Cols, o.Rows)
	}
	offsets := o.RowOffsets
	if offsets == nil {
		offsets = defaultOffsets(o.Rows, o.Cols)
	} else if len(offsets) != o.Rows {
		return Geometry{}, fmt.Errorf("charlcd: %d row offsets given for %d rows", len(offsets), o.Rows)
	}
	for _, off := range offsets {
		if !fitsBank(off, o.Cols) {
			return Geometry{}, fmt.Errorf("charlcd: row at 0x%02X with %d columns does not fit a display RAM bank", off, o.Cols)
		}
	}
	return Geometry{Rows: o.Rows, Cols: o.Cols, Offsets: append([]int(nil), offsets...)}, nil
}

// In two-line mode display RAM is two 40 byte banks, 0x00-0x27 and 0x40-0x67.
// A row must start and end inside one of them.
func fitsBank(off, cols int) bool {
	for _, base := range []int{0x00, 0x40} {
		if off >= base && off+cols <= base+40 {
			return true
		}
	}
	return false
}

// Dev is the device handle for the display.
//
// Dev is safe for concurrent use. Each exported operation holds the device
// lock for its whole duration so that nibble sequences from different
// goroutines never interleave on the bus.
type Dev struct {
	mu sync.Mutex

	// Communication
	c    conn.Conn
	addr uint16

	geo      Geometry
	timing   Timing
	overflow Overflow
	log      logrus.FieldLogger

	// State
	backlight  byte
	on         bool
	cursor     bool
	blink      bool
	autoScroll bool
	halted     bool
}

// NewI2C opens a display on an I²C bus and runs the init sequence.
//
// opts can be nil to use DefaultOpts.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Addr == 0 {
		o.Addr = DefaultOpts.Addr
	}
	if o.Interface == 0 {
		o.Interface = Interface4Bit
	}
	if o.Addr < 0x03 || o.Addr > 0x77 {
		return nil, fmt.Errorf("charlcd: invalid I²C address 0x%02X", o.Addr)
	}
	if o.Interface != Interface4Bit {
		return nil, ErrUnsupportedInterface
	}
	geo, err := o.geometry()
	if err != nil {
		return nil, err
	}
	if o.BusSpeed != 0 {
		if err := b.SetSpeed(o.BusSpeed); err != nil {
			return nil, fmt.Errorf("charlcd: failed to set bus speed: %w", err)
		}
	}

	d := &Dev{
		c:         &i2c.Dev{Bus: b, Addr: o.Addr},
		addr:      o.Addr,
		geo:       geo,
		timing:    DefaultTiming,
		overflow:  o.Overflow,
		log:       o.Logger,
		backlight: flagBacklight,
		on:        true,
	}
	if o.Timing != nil {
		d.timing = *o.Timing
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	d.log = d.log.WithField("pkg", "charlcd")

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// init sends the power-on sequence.
func (d *Dev) init() error {
	// Three 0x03 resets bring the controller into 8-bit mode whatever state it
	// was left in, then 0x02 switches it to 4-bit mode.
	cmds := []byte{
		0x03, 0x03, 0x03, 0x02,
		cmdFunctionSet | twoLine | font5x8 | fourBitMode,
		cmdDisplayCtrl | displayOn,
		cmdClear,
		cmdEntryMode | entryLeft,
	}
	for _, c := range cmds {
		if err := d.send(c, 0); err != nil {
			d.log.WithError(err).Error("init failed")
			return err
		}
	}
	pause(d.timing.Startup)
	d.log.WithField("geometry", fmt.Sprintf("%dx%d", d.geo.Cols, d.geo.Rows)).Debug("display initialized")
	return nil
}

// pause sleeps for t unless t is zero.
func pause(t time.Duration) {
	if t > 0 {
		time.Sleep(t)
	}
}

// expanderWrite puts one byte on the expander port, keeping the backlight bit.
func (d *Dev) expanderWrite(b byte) error {
	b |= d.backlight
	if err := d.c.Tx([]byte{b}, nil); err != nil {
		return &BusError{Byte: b, Err: err}
	}
	pause(d.timing.Settle)
	return nil
}

// strobe pulses the enable line so the controller latches the nibble in b.
func (d *Dev) strobe(b byte) error {
	if err := d.expanderWrite(b | flagEN); err != nil {
		return err
	}
	pause(d.timing.Pulse)
	if err := d.expanderWrite(b &^ flagEN); err != nil {
		return err
	}
	pause(d.timing.Release)
	return nil
}

// writeNibble presents the upper 4 bits of b (plus mode flags) and latches them.
func (d *Dev) writeNibble(b byte) error {
	if err := d.expanderWrite(b); err != nil {
		return err
	}
	return d.strobe(b)
}

// send writes a full byte as two nibbles. mode is flagRS for character data,
// 0 for instructions.
func (d *Dev) send(b, mode byte) error {
	if err := d.writeNibble(mode | (b & 0xF0)); err != nil {
		return err
	}
	return d.writeNibble(mode | ((b << 4) & 0xF0))
}

// check returns ErrHalted once the device is halted. Must be called with mu held.
func (d *Dev) check() error {
	if d.halted {
		return ErrHalted
	}
	return nil
}

// Rows returns the number of lines.
func (d *Dev) Rows() int {
	return d.geo.Rows
}

// Cols returns the number of characters per line.
func (d *Dev) Cols() int {
	return d.geo.Cols
}

// Geometry returns the display geometry.
func (d *Dev) Geometry() Geometry {
	g := d.geo
	g.Offsets = append([]int(nil), d.geo.Offsets...)
	return g
}

// Validate checks line and column against the display geometry.
func (d *Dev) Validate(line, column int) error {
	err := d.geo.Validate(line, column)
	if err != nil {
		d.log.WithFields(logrus.Fields{"line": line, "column": column}).Warn(err)
	}
	return err
}

// Command sends one instruction byte.
func (d *Dev) Command(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.busFailure("command", d.send(b, 0))
}

// Data sends one character byte at the current address.
func (d *Dev) Data(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.busFailure("data", d.send(b, flagRS))
}

// Clear blanks the display and returns the cursor home.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if err := d.send(cmdClear, 0); err != nil {
		return d.busFailure("clear", err)
	}
	if err := d.send(cmdHome, 0); err != nil {
		return d.busFailure("clear", err)
	}
	return nil
}

// Home returns the cursor to line 1, column 0 without touching the contents.
func (d *Dev) Home() error {
	return d.Command(cmdHome)
}

// WriteAt writes text starting at (line, column).
//
// With OverflowWrap the text is sent as is and callers are expected to cut it
// to the row width; with OverflowTruncate characters past the row end are
// dropped. Runes above 0xFF are shown as '?'.
func (d *Dev) WriteAt(text string, line, column int) error {
	if err := d.Validate(line, column); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.writeAt(encode(text), line, column)
}

// ClearLine overwrites every position of line with a space.
func (d *Dev) ClearLine(line int) error {
	if err := d.Validate(line, 0); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.writeAt(bytes.Repeat([]byte{' '}, d.geo.Cols), line, 0)
}

// writeAt positions the cursor and writes p. Must be called with mu held and
// (line, column) validated.
func (d *Dev) writeAt(p []byte, line, column int) error {
	addr, _ := d.geo.Address(line, column)
	if d.overflow == OverflowTruncate {
		if room := d.geo.Cols - column; len(p) > room {
			p = p[:room]
		}
	}
	if err := d.send(cmdSetDDRAM|byte(addr), 0); err != nil {
		return d.busFailure("set address", err)
	}
	for _, c := range p {
		if err := d.send(c, flagRS); err != nil {
			return d.busFailure("write", err)
		}
	}
	return nil
}

// DefineGlyph stores g in CGRAM slot 0-7. Writing the byte equal to slot then
// shows the glyph.
func (d *Dev) DefineGlyph(slot int, g *glyph.Glyph) error {
	if slot < 0 || slot > 7 {
		return &RangeError{Field: "slot", Value: slot, Min: 0, Max: 7}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if err := d.send(cmdSetCGRAM|byte(slot<<3), 0); err != nil {
		return d.busFailure("define glyph", err)
	}
	for _, row := range g.Rows() {
		if err := d.send(row, flagRS); err != nil {
			return d.busFailure("define glyph", err)
		}
	}
	// Point the address counter back at DDRAM.
	if err := d.send(cmdSetDDRAM, 0); err != nil {
		return d.busFailure("define glyph", err)
	}
	return nil
}

// Backlight turns the backlight on for any intensity above zero, off otherwise.
// The backpack switches the backlight through a transistor, so there are no
// intermediate levels.
func (d *Dev) Backlight(intensity display.Intensity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.busFailure("backlight", d.setBacklight(intensity > 0))
}

func (d *Dev) setBacklight(on bool) error {
	if on {
		d.backlight = flagBacklight
	} else {
		d.backlight = 0
	}
	return d.expanderWrite(0)
}

// Display turns the display on or off. Contents are kept while off.
func (d *Dev) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	d.on = on
	return d.busFailure("display", d.send(d.displayControl(), 0))
}

// Cursor sets the cursor mode. Modes combine, Cursor(CursorUnderline,
// CursorBlink) shows a blinking underline.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	cursor, blink := d.cursor, d.blink
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			cursor, blink = false, false
		case display.CursorUnderline:
			cursor = true
		case display.CursorBlock, display.CursorBlink:
			blink = true
		default:
			return fmt.Errorf("charlcd: unexpected cursor mode %d", mode)
		}
	}
	d.cursor, d.blink = cursor, blink
	return d.busFailure("cursor", d.send(d.displayControl(), 0))
}

func (d *Dev) displayControl() byte {
	b := byte(cmdDisplayCtrl)
	if d.on {
		b |= displayOn
	}
	if d.cursor {
		b |= cursorOn
	}
	if d.blink {
		b |= blinkOn
	}
	return b
}

// AutoScroll makes the controller shift the whole display on every character
// write instead of moving the cursor.
func (d *Dev) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	d.autoScroll = enabled
	b := byte(cmdEntryMode | entryLeft)
	if enabled {
		b |= entryShift
	}
	return d.busFailure("auto scroll", d.send(b, 0))
}

// Move moves the cursor one position forward or backward.
func (d *Dev) Move(dir display.CursorDirection) error {
	b := byte(cmdShift)
	switch dir {
	case display.Backward:
	case display.Forward:
		b |= moveRight
	case display.Up, display.Down:
		return fmt.Errorf("charlcd: %w", display.ErrNotImplemented)
	default:
		return fmt.Errorf("charlcd: unexpected cursor direction %d", dir)
	}
	return d.Command(b)
}

// MoveTo puts the cursor at (line, column) without writing anything.
func (d *Dev) MoveTo(line, column int) error {
	addr, err := d.geo.Address(line, column)
	if err != nil {
		d.log.WithFields(logrus.Fields{"line": line, "column": column}).Warn(err)
		return err
	}
	return d.Command(cmdSetDDRAM | byte(addr))
}

// MinRow returns the number of the first line.
func (d *Dev) MinRow() int {
	return 1
}

// MinCol returns the number of the first column.
func (d *Dev) MinCol() int {
	return 0
}

// Write writes p at the current cursor position.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	for i, c := range p {
		if err := d.send(c, flagRS); err != nil {
			return i, d.busFailure("write", err)
		}
	}
	return len(p), nil
}

// WriteString writes text at the current cursor position.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write(encode(text))
}

// busFailure logs a transport error for op and returns it unchanged. A nil
// err passes through.
func (d *Dev) busFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	d.log.WithError(err).WithField("op", op).Error("bus write failed")
	return err
}

// Halt clears the display and turns the backlight off.
// After calling Halt, every operation returns ErrHalted.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil
	}
	d.halted = true
	if err := d.send(cmdClear, 0); err != nil {
		return d.busFailure("halt", err)
	}
	d.on = false
	if err := d.send(d.displayControl(), 0); err != nil {
		return d.busFailure("halt", err)
	}
	return d.busFailure("halt", d.setBacklight(false))
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("charlcd.Dev{%dx%d@0x%02X}", d.geo.Cols, d.geo.Rows, d.addr)
}

// encode maps text to controller character codes.
func encode(text string) []byte {
	p := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0xFF {
			r = '?'
		}
		p = append(p, byte(r))
	}
	return p
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ conn.Resource = &Dev{}
