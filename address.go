package charlcd

// Geometry is the fixed shape of the character matrix.
//
// Lines are numbered from 1 and columns from 0, matching how the display is
// usually labelled on the hardware side.
type Geometry struct {
	Rows int
	Cols int

	// Offsets holds the DDRAM base address of each line. The controller
	// drives four lines as two interleaved lines, so the table is not a
	// multiple of Cols.
	Offsets []int
}

// defaultOffsets returns the row table used by HD44780 modules.
//
// For a 20 column module this is {0x00, 0x40, 0x14, 0x54}; 16 column modules
// land on {0x00, 0x40, 0x10, 0x50}. Lines 3 and 4 continue the banks of
// lines 1 and 2, so modules with more than two rows stop at 20 columns.
func defaultOffsets(rows, cols int) []int {
	table := []int{0x00, 0x40, cols, 0x40 + cols}
	return table[:rows]
}

// Validate checks line and column against the geometry.
func (g Geometry) Validate(line, column int) error {
	if line < 1 || line > g.Rows {
		return &RangeError{Field: "line", Value: line, Min: 1, Max: g.Rows}
	}
	if column < 0 || column > g.Cols-1 {
		return &RangeError{Field: "column", Value: column, Min: 0, Max: g.Cols - 1}
	}
	return nil
}

// Address returns the DDRAM address of (line, column).
func (g Geometry) Address(line, column int) (int, error) {
	if err := g.Validate(line, column); err != nil {
		return 0, err
	}
	return g.Offsets[line-1] + column, nil
}
