package groups

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
	"github.com/KaramelBytes/plotdesk-cli/internal/sheet"
)

// DefaultColor seeds every newly inferred group.
const DefaultColor = "#000000"

// columnCandidates are grouping column names checked in priority order.
// Matching is case-insensitive; the first candidate found anywhere in the
// header row wins, regardless of column position.
var columnCandidates = []string{
	"group",
	"taxon name",
	"wavelength (nm)",
	"wavelength",
	"compound",
	"sample",
}

// DetectColumn picks the grouping column from headers. When no candidate
// matches, the first column in file order is used. Empty headers yield "".
func DetectColumn(headers []string) string {
	for _, cand := range columnCandidates {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), cand) {
				return h
			}
		}
	}
	if len(headers) > 0 {
		return headers[0]
	}
	return ""
}

// FixedGroups returns the override group list for categories whose grouping
// does not come from the file. ok is false for categories that read the
// table.
func FixedGroups(c schema.Category) ([]string, bool) {
	switch c {
	case schema.ControlVsFn, schema.AlphaDiversity, schema.BetaDiversity, schema.SMDI:
		return []string{"Control", "Fn"}, true
	case schema.Correlations:
		// These double as the category's chart variant names.
		return []string{"scatter", "line"}, true
	}
	return nil, false
}

// Infer derives the group list for a category from the parsed table. Override
// categories ignore the table entirely. For the rest, the grouping column is
// detected, blank and numeric-zero cells are skipped, and duplicates are
// dropped keeping first-seen order.
func Infer(t *sheet.Table, c schema.Category) []string {
	if fixed, ok := FixedGroups(c); ok {
		return fixed
	}
	if t.Empty() {
		return nil
	}
	col := DetectColumn(t.Headers)
	seen := make(map[string]struct{}, len(t.Rows))
	var out []string
	for _, row := range t.Rows {
		v, ok := row[col]
		if !ok || !usable(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// usable reports whether a cell holds a group value worth keeping. Cells that
// are blank after trimming, or that parse as numeric zero, are skipped.
func usable(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
		return false
	}
	return true
}

// SeedColors assigns DefaultColor to every group, exactly one entry each.
func SeedColors(gs []string) map[string]string {
	colors := make(map[string]string, len(gs))
	for _, g := range gs {
		colors[g] = DefaultColor
	}
	return colors
}
