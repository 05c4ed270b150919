package render

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/flavioheleno/charlcd"
	"github.com/flavioheleno/charlcd/charlcdtest"
	"github.com/flavioheleno/charlcd/marquee"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func newCoordinator(t *testing.T, loops int) (*Coordinator, *i2ctest.Record) {
	t.Helper()
	dev, r, err := charlcdtest.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(dev, &Opts{Scroll: &marquee.Opts{Interval: time.Millisecond, Loops: loops}})
	if err != nil {
		t.Fatal(err)
	}
	return c, r
}

func decode(t *testing.T, r *i2ctest.Record) []charlcdtest.Op {
	t.Helper()
	ops, err := charlcdtest.Decode(charlcdtest.Snapshot(r))
	if err != nil {
		t.Fatal(err)
	}
	return ops
}

// lineWrite is what WriteAt(text, line, 0) sends on a 20x4 display.
func lineWrite(line int, text string) []charlcdtest.Op {
	base := []byte{0x80, 0xC0, 0x94, 0xD4}[line-1]
	return append([]charlcdtest.Op{charlcdtest.Cmd(base)}, charlcdtest.Chars(text)...)
}

func concat(parts ...[]charlcdtest.Op) []charlcdtest.Op {
	var out []charlcdtest.Op
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var blankLine = strings.Repeat(" ", 20)

func TestShowShortText(t *testing.T) {
	c, r := newCoordinator(t, 0)

	if err := c.Show(1, "HI"); err != nil {
		t.Fatal(err)
	}
	if c.Scrolling(1) {
		t.Error("short text should not scroll")
	}
	want := concat(lineWrite(1, blankLine), lineWrite(1, "HI"))
	if got := decode(t, r); !reflect.DeepEqual(got, want) {
		t.Errorf("Show(1, HI) sent %v, want %v", got, want)
	}
}

func TestShowLongTextScrolls(t *testing.T) {
	c, r := newCoordinator(t, 0)
	text := strings.Repeat("A", 30)

	if err := c.Show(1, text); err != nil {
		t.Fatal(err)
	}
	if !c.Scrolling(1) {
		t.Fatal("long text should scroll")
	}
	for _, line := range []int{2, 3, 4} {
		if c.Scrolling(line) {
			t.Errorf("line %d scrolling", line)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(charlcdtest.Snapshot(r)) < 10*21*6 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := c.ClearAll(); err != nil {
		t.Fatal(err)
	}

	ops := decode(t, r)
	cleared := lineWrite(1, blankLine)
	if !reflect.DeepEqual(ops[:len(cleared)], cleared) {
		t.Fatalf("Show did not start by clearing the line: %v", ops[:len(cleared)])
	}
	tail := []charlcdtest.Op{charlcdtest.Cmd(0x01), charlcdtest.Cmd(0x02)}
	if !reflect.DeepEqual(ops[len(ops)-2:], tail) {
		t.Fatalf("ClearAll did not end with clear and home: %v", ops[len(ops)-2:])
	}

	// Everything in between is 20 character frames; the full text is never
	// written in one go.
	frames := ops[len(cleared) : len(ops)-2]
	if len(frames) == 0 || len(frames)%21 != 0 {
		t.Fatalf("%d bytes of frames, want a non-zero multiple of 21", len(frames))
	}
	want := marquee.Frames(text, 20)
	for i := 0; i < len(frames); i += 21 {
		frame := want[(i/21)%len(want)]
		if !reflect.DeepEqual(frames[i:i+21], lineWrite(1, frame)) {
			t.Fatalf("frame %d = %v, want %q", i/21, frames[i:i+21], frame)
		}
	}
}

func TestShowReplacesScroll(t *testing.T) {
	c, r := newCoordinator(t, 0)

	if err := c.Show(2, strings.Repeat("scrolling ", 4)); err != nil {
		t.Fatal(err)
	}
	if err := c.Show(2, "static"); err != nil {
		t.Fatal(err)
	}
	if c.Scrolling(2) {
		t.Error("line 2 still scrolling")
	}
	ops := decode(t, r)
	want := concat(lineWrite(2, blankLine), lineWrite(2, "static"))
	if got := ops[len(ops)-len(want):]; !reflect.DeepEqual(got, want) {
		t.Errorf("Show ended with %v, want %v", got, want)
	}
}

func TestShowInvalidLine(t *testing.T) {
	c, r := newCoordinator(t, 0)

	for _, line := range []int{0, 5, -1} {
		var re *charlcd.RangeError
		if err := c.Show(line, "x"); !errors.As(err, &re) {
			t.Errorf("Show(%d) = %v, want *RangeError", line, err)
		}
	}
	if n := len(charlcdtest.Snapshot(r)); n != 0 {
		t.Errorf("%d bus writes for invalid lines", n)
	}
}

func TestShowAll(t *testing.T) {
	c, r := newCoordinator(t, 0)

	if err := c.ShowAll([]string{"first", "second"}); err != nil {
		t.Fatal(err)
	}
	want := concat(
		lineWrite(1, blankLine), lineWrite(1, "first"),
		lineWrite(2, blankLine), lineWrite(2, "second"),
		lineWrite(3, blankLine),
		lineWrite(4, blankLine),
	)
	if got := decode(t, r); !reflect.DeepEqual(got, want) {
		t.Errorf("ShowAll sent %v, want %v", got, want)
	}
}

func TestShowAllTooManyLines(t *testing.T) {
	c, r := newCoordinator(t, 0)

	var re *charlcd.RangeError
	if err := c.ShowAll([]string{"1", "2", "3", "4", "5"}); !errors.As(err, &re) {
		t.Fatalf("ShowAll with 5 lines = %v, want *RangeError", err)
	}
	if re.Field != "lines" {
		t.Errorf("RangeError.Field = %q, want lines", re.Field)
	}
	if n := len(charlcdtest.Snapshot(r)); n != 0 {
		t.Errorf("%d bus writes for a rejected ShowAll", n)
	}
}

func TestClearAllStopsScrolls(t *testing.T) {
	c, r := newCoordinator(t, 0)

	long := strings.Repeat("x", 25)
	if err := c.ShowAll([]string{long, "ok", long}); err != nil {
		t.Fatal(err)
	}
	if !c.Scrolling(1) || !c.Scrolling(3) {
		t.Fatal("lines 1 and 3 should scroll")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	for line := 1; line <= 4; line++ {
		if c.Scrolling(line) {
			t.Errorf("line %d still scrolling after Close", line)
		}
	}
	n := len(charlcdtest.Snapshot(r))
	time.Sleep(10 * time.Millisecond)
	if got := len(charlcdtest.Snapshot(r)); got != n {
		t.Errorf("%d bus writes after Close returned", got-n)
	}
}

func TestBusErrorSurfaces(t *testing.T) {
	busErr := errors.New("nack")
	// Init (8 bytes) plus the address byte of the line clear.
	bus := &charlcdtest.FailingBus{After: (8 + 1) * 6, Err: busErr}
	dev, err := charlcd.NewI2C(bus, &charlcd.Opts{Rows: 4, Cols: 20, Timing: &charlcd.Timing{}})
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(dev, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Show(1, "HI"); !errors.Is(err, busErr) {
		t.Errorf("Show() = %v, want %v", err, busErr)
	}
}

func TestNewRequiresDisplay(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error but didn't get one")
	}
}
