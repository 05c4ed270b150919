package charlcd

import (
	"errors"
	"fmt"
)

var (
	// ErrHalted is returned by every operation issued after Halt.
	ErrHalted = errors.New("charlcd: halted")

	// ErrUnsupportedInterface is returned when Opts asks for a data bus width
	// the backpack cannot drive.
	ErrUnsupportedInterface = errors.New("charlcd: only the 4-bit interface is supported")
)

// RangeError reports a line or column outside the display geometry.
// No bus traffic is emitted for an operation that fails with a RangeError.
type RangeError struct {
	Field string // "line", "column", "lines" or "slot"
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("charlcd: %s %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// BusError reports a failed expander write. The cursor position and display
// contents are unknown after a BusError; callers that retry must reissue the
// whole logical operation.
type BusError struct {
	Byte byte  // value being written to the expander
	Err  error // transport error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("charlcd: bus write 0x%02X failed: %v", e.Byte, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
