package sheet

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Row maps a header name to the raw cell text. Cells missing from a short
// row have no key.
type Row map[string]string

// Table is a parsed spreadsheet: headers in file column order plus data rows
// in file row order.
type Table struct {
	Headers []string
	Rows    []Row
}

// Empty reports whether the table has no header row.
func (t *Table) Empty() bool { return t == nil || len(t.Headers) == 0 }

// Reader defines a spreadsheet reader implementation.
type Reader interface {
	CanRead(filename string) bool
	Read(filename string, data []byte) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ErrUnsupported indicates the file format is not supported.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

// Read selects a reader based on filename and parses the content.
func Read(filename string, data []byte) (*Table, error) {
	for _, r := range registry {
		if r.CanRead(filename) {
			return r.Read(filename, data)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
}

// ReadFile parses a spreadsheet from disk.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Read(path, data)
}

// tableFrom builds a Table from raw rows where the first row is the header.
// Header cells are trimmed; blank headers are dropped along with their column.
func tableFrom(raw [][]string) *Table {
	t := &Table{}
	if len(raw) == 0 {
		return t
	}
	cols := make([]int, 0, len(raw[0]))
	for i, h := range raw[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		t.Headers = append(t.Headers, h)
		cols = append(cols, i)
	}
	if len(t.Headers) == 0 {
		return t
	}
	for _, rec := range raw[1:] {
		row := make(Row, len(t.Headers))
		for j, i := range cols {
			if i < len(rec) {
				row[t.Headers[j]] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
