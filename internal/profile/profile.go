// Package profile infers a per-column summary of a parsed spreadsheet. It is
// display-only: grouping heuristics read the raw headers and cells, never the
// profile.
package profile

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/plotdesk-cli/internal/sheet"
)

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindText        = "text"
	KindEmpty       = "empty"
)

// Column summarizes one spreadsheet column.
type Column struct {
	Name     string    `json:"name"`
	Unit     string    `json:"unit,omitempty"`
	Kind     string    `json:"kind"`
	Missing  int       `json:"missing"`
	Distinct int       `json:"distinct"`
	Stats    *NumStats `json:"stats,omitempty"`
}

// NumStats carries basic statistics for numeric columns.
type NumStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*\S)\s*\(([^)]+)\)\s*$`), // Wavelength (nm)
	regexp.MustCompile(`^(.*\S)\s*\[([^\]]+)\]\s*$`), // Mass [mg/L]
}

// splitUnit separates a trailing parenthesized or bracketed qualifier from a
// header. "R/G Value (Mean)" becomes ("R/G Value", "Mean").
func splitUnit(name string) (clean, unit string) {
	s := strings.TrimSpace(name)
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(s); len(m) == 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// parseNumber reads a cell as a measurement value. Percent signs are
// stripped and a single comma with no dot is read as a decimal comma.
func parseNumber(s string) (float64, bool) {
	raw := strings.TrimSuffix(strings.TrimSpace(s), "%")
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Columns profiles every column of the table in header order.
func Columns(t *sheet.Table) []Column {
	if t.Empty() {
		return nil
	}
	out := make([]Column, 0, len(t.Headers))
	for _, h := range t.Headers {
		out = append(out, profileColumn(h, t.Rows))
	}
	return out
}

func profileColumn(header string, rows []sheet.Row) Column {
	clean, unit := splitUnit(header)
	col := Column{Name: clean, Unit: unit}

	var (
		numCnt, txtCnt int
		sawPercent     bool
		distinct       = map[string]struct{}{}
		cats           int
		// Welford accumulators
		n          int
		mean, m2   float64
		minV, maxV = math.Inf(1), math.Inf(-1)
	)
	for _, row := range rows {
		v, ok := row[header]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			col.Missing++
			continue
		}
		distinct[v] = struct{}{}
		if strings.HasSuffix(v, "%") {
			sawPercent = true
		}
		if x, okNum := parseNumber(v); okNum {
			numCnt++
			n++
			if x < minV {
				minV = x
			}
			if x > maxV {
				maxV = x
			}
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
			continue
		}
		txtCnt++
		if len(v) <= 64 {
			cats++
		}
	}
	col.Distinct = len(distinct)

	switch {
	case numCnt == 0 && txtCnt == 0:
		col.Kind = KindEmpty
	case numCnt >= txtCnt:
		col.Kind = KindNumeric
		if sawPercent && col.Unit == "" {
			col.Unit = "%"
		}
		st := &NumStats{Min: minV, Max: maxV, Mean: mean}
		if n > 1 {
			st.Std = math.Sqrt(m2 / float64(n-1))
		}
		col.Stats = st
	case cats > 0:
		col.Kind = KindCategorical
	default:
		col.Kind = KindText
	}
	return col
}
