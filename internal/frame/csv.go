package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV loads a RawFrame from CSV data. The first record is taken as the
// header row. Short records are padded with empty cells so ragged exports
// from spreadsheet tools still load.
func ReadCSV(r io.Reader) (*RawFrame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("frame: csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("frame: read csv header: %w", err)
	}

	f := New(header)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame: read csv row: %w", err)
		}
		cells := make([]string, len(header))
		for i := range cells {
			if i < len(record) {
				cells[i] = record[i]
			}
		}
		if err := f.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromCSVBytes is a convenience wrapper around ReadCSV.
func FromCSVBytes(data []byte) (*RawFrame, error) {
	return ReadCSV(bytes.NewReader(data))
}
