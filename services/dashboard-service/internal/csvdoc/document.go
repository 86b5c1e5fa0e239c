// Package csvdoc models a CSV file as headers plus position-aligned rows and
// implements the editor operations on it.
package csvdoc

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// Document is an editable CSV file. Every row has exactly len(Headers) cells.
type Document struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// RangeError reports a row or column index outside the document
type RangeError struct {
	Kind  string
	Index int
	Len   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s index %d out of range (have %d)", e.Kind, e.Index, e.Len)
}

// Parse reads CSV text. The first record is the header line, rows with only
// empty cells are dropped, and rows are padded or the headers widened so
// every row lines up with the headers.
func Parse(r io.Reader) (*Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	doc := &Document{Headers: []string{}, Rows: [][]string{}}
	if len(records) == 0 {
		return doc, nil
	}

	doc.Headers = append(doc.Headers, records[0]...)
	if len(doc.Headers) > 0 {
		doc.Headers[0] = strings.TrimPrefix(doc.Headers[0], utf8BOM)
	}

	for _, record := range records[1:] {
		doc.Rows = append(doc.Rows, append([]string(nil), record...))
	}
	doc.Compact()
	doc.Normalize()
	return doc, nil
}

// Compact drops rows whose cells are all empty, leaving the document exactly
// as Parse would read it back
func (d *Document) Compact() {
	rows := d.Rows[:0]
	for _, row := range d.Rows {
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	d.Rows = rows
}

// Normalize restores the alignment invariant: headers grow to the widest row
// and short rows are padded with empty cells.
func (d *Document) Normalize() {
	for _, row := range d.Rows {
		for len(d.Headers) < len(row) {
			d.Headers = append(d.Headers, columnName(len(d.Headers)))
		}
	}
	for i, row := range d.Rows {
		for len(row) < len(d.Headers) {
			row = append(row, "")
		}
		d.Rows[i] = row
	}
}

// Encode writes the document as CSV text, header line first
func (d *Document) Encode(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writeRecord(writer, w, d.Headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range d.Rows {
		if err := writeRecord(writer, w, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeRecord quotes a lone empty field. csv.Writer emits it as a bare
// newline, which readers skip.
func writeRecord(writer *csv.Writer, w io.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return writer.Write(record)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// Bytes serializes the document
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RowCount returns the number of data rows
func (d *Document) RowCount() int {
	return len(d.Rows)
}

// SetCell replaces one cell value
func (d *Document) SetCell(row, col int, value string) error {
	if err := d.checkRow(row); err != nil {
		return err
	}
	if err := d.checkColumn(col); err != nil {
		return err
	}
	d.Rows[row][col] = value
	return nil
}

// SetHeader renames one column
func (d *Document) SetHeader(col int, value string) error {
	if err := d.checkColumn(col); err != nil {
		return err
	}
	d.Headers[col] = value
	return nil
}

// AddRow appends an empty row and returns its index
func (d *Document) AddRow() int {
	d.Rows = append(d.Rows, make([]string, len(d.Headers)))
	return len(d.Rows) - 1
}

// DeleteRow removes one row
func (d *Document) DeleteRow(row int) error {
	if err := d.checkRow(row); err != nil {
		return err
	}
	d.Rows = append(d.Rows[:row], d.Rows[row+1:]...)
	return nil
}

// AddColumn appends a column named "Column N" and returns its index
func (d *Document) AddColumn() int {
	d.Headers = append(d.Headers, columnName(len(d.Headers)))
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], "")
	}
	return len(d.Headers) - 1
}

// DeleteColumn removes one column from the headers and every row
func (d *Document) DeleteColumn(col int) error {
	if err := d.checkColumn(col); err != nil {
		return err
	}
	d.Headers = append(d.Headers[:col], d.Headers[col+1:]...)
	for i, row := range d.Rows {
		d.Rows[i] = append(row[:col], row[col+1:]...)
	}
	return nil
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	c := &Document{
		Headers: append([]string{}, d.Headers...),
		Rows:    make([][]string, len(d.Rows)),
	}
	for i, row := range d.Rows {
		c.Rows[i] = append([]string{}, row...)
	}
	return c
}

func (d *Document) checkRow(row int) error {
	if row < 0 || row >= len(d.Rows) {
		return &RangeError{Kind: "row", Index: row, Len: len(d.Rows)}
	}
	return nil
}

func (d *Document) checkColumn(col int) error {
	if col < 0 || col >= len(d.Headers) {
		return &RangeError{Kind: "column", Index: col, Len: len(d.Headers)}
	}
	return nil
}

func columnName(index int) string {
	return fmt.Sprintf("Column %d", index+1)
}

func blank(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}

// IsInvalidEdit reports whether err was caused by the edit itself, an index
// out of range or an unknown operation, rather than by I/O
func IsInvalidEdit(err error) bool {
	var rangeErr *RangeError
	var opErr *UnknownOpError
	return errors.As(err, &rangeErr) || errors.As(err, &opErr)
}
