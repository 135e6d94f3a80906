package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrRecordWidth is returned when a record does not have one field per column.
var ErrRecordWidth = errors.New("record width does not match columns")

// Table is an ordered CSV document: one header line followed by records in
// insertion order.
type Table struct {
	columns []string
	records [][]string
}

// NewTable starts a table with the given header columns.
func NewTable(columns ...string) *Table {
	return &Table{columns: append([]string(nil), columns...)}
}

// Append adds one record. Fields are positional and must match the columns.
func (t *Table) Append(fields ...string) error {
	if len(fields) != len(t.columns) {
		return fmt.Errorf("%w: got %d fields for %d columns", ErrRecordWidth, len(fields), len(t.columns))
	}
	t.records = append(t.records, append([]string(nil), fields...))
	return nil
}

// Len reports the number of records, excluding the header.
func (t *Table) Len() int {
	return len(t.records)
}

// WriteTo encodes the table as RFC 4180 CSV. Fields holding quotes, commas or
// line breaks are quoted with embedded quotes doubled.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	if len(t.columns) == 0 {
		return 0, errors.New("csv requires at least one column")
	}
	counter := &countingWriter{w: w}
	writer := csv.NewWriter(counter)
	if err := writer.Write(t.columns); err != nil {
		return counter.n, fmt.Errorf("write csv header: %w", err)
	}
	if err := writer.WriteAll(t.records); err != nil {
		return counter.n, fmt.Errorf("write csv records: %w", err)
	}
	return counter.n, nil
}

// Bytes renders the whole table into memory.
func (t *Table) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if _, err := t.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
