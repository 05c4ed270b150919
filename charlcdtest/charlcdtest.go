// Package charlcdtest contains helpers to test code driving a charlcd.Dev
// without hardware.
//
// The display is opened on an i2ctest.Record bus; Decode turns the recorded
// expander writes back into the bytes the controller latched.
package charlcdtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flavioheleno/charlcd"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// Expander port bits, as wired on the PCF8574 backpack.
const (
	bitRS = 0x01
	bitEN = 0x04
)

// Op is one byte received by the controller.
type Op struct {
	Data bool // true for character data, false for instructions
	B    byte
}

func (o Op) String() string {
	if o.Data {
		return fmt.Sprintf("data(%q)", o.B)
	}
	return fmt.Sprintf("cmd(0x%02X)", o.B)
}

// Cmd returns an instruction Op.
func Cmd(b byte) Op {
	return Op{B: b}
}

// Chars returns one data Op per byte of s.
func Chars(s string) []Op {
	ops := make([]Op, len(s))
	for i := 0; i < len(s); i++ {
		ops[i] = Op{Data: true, B: s[i]}
	}
	return ops
}

// InitSequence is what NewI2C sends before returning.
var InitSequence = []Op{
	Cmd(0x03), Cmd(0x03), Cmd(0x03), Cmd(0x02),
	Cmd(0x28), Cmd(0x0C), Cmd(0x01), Cmd(0x06),
}

// Decode rebuilds controller bytes from expander writes. A nibble is taken
// from every write with the enable bit set; two nibbles make a byte.
func Decode(ios []i2ctest.IO) ([]Op, error) {
	var ops []Op
	var hi byte
	half := false
	for _, io := range ios {
		if len(io.W) != 1 {
			return ops, fmt.Errorf("charlcdtest: expected single byte writes, got %d bytes", len(io.W))
		}
		w := io.W[0]
		if w&bitEN == 0 {
			continue
		}
		if !half {
			hi = w
			half = true
			continue
		}
		if hi&bitRS != w&bitRS {
			return ops, fmt.Errorf("charlcdtest: register select changed within a byte (0x%02X, 0x%02X)", hi, w)
		}
		ops = append(ops, Op{Data: hi&bitRS != 0, B: hi&0xF0 | w>>4})
		half = false
	}
	if half {
		return ops, errors.New("charlcdtest: dangling nibble")
	}
	return ops, nil
}

// Snapshot copies the recorded writes under the recorder lock.
func Snapshot(r *i2ctest.Record) []i2ctest.IO {
	r.Lock()
	defer r.Unlock()
	return append([]i2ctest.IO(nil), r.Ops...)
}

// Reset drops the recorded writes.
func Reset(r *i2ctest.Record) {
	r.Lock()
	defer r.Unlock()
	r.Ops = nil
}

// New opens a display on a recording bus with every protocol delay set to
// zero. The init sequence is dropped from the recording.
func New(opts *charlcd.Opts) (*charlcd.Dev, *i2ctest.Record, error) {
	o := charlcd.DefaultOpts
	if opts != nil {
		o = *opts
	}
	o.Timing = &charlcd.Timing{}
	r := &i2ctest.Record{}
	d, err := charlcd.NewI2C(r, &o)
	if err != nil {
		return nil, nil, err
	}
	Reset(r)
	return d, r, nil
}

// FailingBus is an i2c.Bus accepting After writes, then failing every
// following one with Err.
type FailingBus struct {
	mu    sync.Mutex
	After int
	Err   error
	n     int
}

func (f *FailingBus) String() string {
	return "failing"
}

// Tx implements i2c.Bus.
func (f *FailingBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.n > f.After {
		return f.Err
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (f *FailingBus) SetSpeed(physic.Frequency) error {
	return nil
}

// Writes returns the number of attempted writes.
func (f *FailingBus) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}
