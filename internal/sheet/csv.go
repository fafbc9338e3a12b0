package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvReader) Read(filename string, data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		r.Comma = '\t'
	}
	// Rows may be ragged; length checks happen against the header downstream.
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return tableFrom(records), nil
}
