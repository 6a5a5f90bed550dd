// Package frame holds the raw tabular input consumed by the processing
// pipeline. A RawFrame carries whatever columns the upstream file parser
// produced, with no assumptions about their names or meaning.
package frame

import (
	"fmt"
	"math/rand"
	"strings"
)

// RawFrame is an ordered set of named columns with untyped (string) cells.
// It is produced by a file-parsing collaborator and consumed read-only by
// the pipeline.
type RawFrame struct {
	cols []string
	rows [][]string
}

// New creates an empty frame with the given column order.
func New(columns []string) *RawFrame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &RawFrame{cols: cols}
}

// AppendRow adds one row. The cell count must match the column count.
func (f *RawFrame) AppendRow(cells []string) error {
	if len(cells) != len(f.cols) {
		return fmt.Errorf("frame: row has %d cells, frame has %d columns", len(cells), len(f.cols))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	f.rows = append(f.rows, row)
	return nil
}

// Columns returns the column names in their original order.
func (f *RawFrame) Columns() []string {
	cols := make([]string, len(f.cols))
	copy(cols, f.cols)
	return cols
}

// Len returns the number of rows.
func (f *RawFrame) Len() int {
	return len(f.rows)
}

// Cell returns the value at the given row for the named column.
// Unknown columns yield an empty string.
func (f *RawFrame) Cell(row int, column string) string {
	idx := f.columnIndex(column)
	if idx < 0 || row < 0 || row >= len(f.rows) {
		return ""
	}
	return f.rows[row][idx]
}

// HasColumn reports whether the frame contains the named column.
func (f *RawFrame) HasColumn(column string) bool {
	return f.columnIndex(column) >= 0
}

func (f *RawFrame) columnIndex(column string) int {
	for i, c := range f.cols {
		if c == column {
			return i
		}
	}
	return -1
}

// Select returns a new frame restricted to the named columns, preserving
// row order. Columns absent from the frame are skipped.
func (f *RawFrame) Select(columns []string) *RawFrame {
	var keep []int
	var kept []string
	for _, c := range columns {
		if idx := f.columnIndex(c); idx >= 0 {
			keep = append(keep, idx)
			kept = append(kept, c)
		}
	}
	out := New(kept)
	for _, row := range f.rows {
		cells := make([]string, len(keep))
		for i, idx := range keep {
			cells[i] = row[idx]
		}
		out.rows = append(out.rows, cells)
	}
	return out
}

// CSV serializes the frame as a header row plus data rows. Cells containing
// commas, quotes or newlines are quoted. Used to present data samples to the
// inference service.
func (f *RawFrame) CSV() string {
	var b strings.Builder
	writeCSVRow(&b, f.cols)
	for _, row := range f.rows {
		writeCSVRow(&b, row)
	}
	return b.String()
}

func writeCSVRow(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(c, ",\"\n") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(c, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(c)
		}
	}
	b.WriteByte('\n')
}

// Sample builds a composite sample of the frame: the first head rows, a
// random slice from the middle, and the last tail rows. This captures
// headers, footers and representative body rows for structural analysis.
// Frames small enough to fit entirely are returned as-is.
func (f *RawFrame) Sample(head, middle, tail int, seed int64) *RawFrame {
	if len(f.rows) <= head+middle+tail {
		return f
	}

	out := New(f.cols)
	out.rows = append(out.rows, f.rows[:head]...)

	middleStart := head
	middleEnd := len(f.rows) - tail
	if n := min(middle, middleEnd-middleStart); n > 0 {
		rng := rand.New(rand.NewSource(seed))
		picks := rng.Perm(middleEnd - middleStart)[:n]
		for _, p := range picks {
			out.rows = append(out.rows, f.rows[middleStart+p])
		}
	}

	out.rows = append(out.rows, f.rows[middleEnd:]...)
	return out
}
