package schema

import "errors"

// Category identifies one of the supported analysis types. The string value
// is the identifier sent to the rendering service as analysis_type.
type Category string

const (
	QLF                  Category = "QLF"
	Hyperspectral        Category = "Hyperspectral"
	SixteenS             Category = "16S"
	LFC                  Category = "LFC"
	PH                   Category = "pH"
	CFU                  Category = "CFU"
	AlphaDiversity       Category = "AlphaDiversity"
	BetaDiversity        Category = "BetaDiversity"
	LSMS                 Category = "LSMS"
	Correlations         Category = "Correlations"
	FluorescenceOverTime Category = "FluorescenceOverTime"
	ControlVsFn          Category = "ControlVsFn"
	SMDI                 Category = "SMDI"
)

// Info describes one analysis category: the spreadsheet layout users are
// expected to upload for it and the chart variants the rendering service
// accepts.
type Info struct {
	Name   Category `json:"name"`
	Layout string   `json:"layout"`
	Charts []string `json:"charts"`
}

// order fixes the display order for listings.
var order = []Category{
	QLF,
	Hyperspectral,
	SixteenS,
	LFC,
	PH,
	CFU,
	AlphaDiversity,
	BetaDiversity,
	LSMS,
	Correlations,
	FluorescenceOverTime,
	ControlVsFn,
	SMDI,
}

var catalog = map[Category]Info{
	QLF: {
		Name:   QLF,
		Layout: "Group | Point | R/G Value (Mean) | R/G Value (SD)",
		Charts: []string{"bar", "line", "boxplot"},
	},
	Hyperspectral: {
		Name:   Hyperspectral,
		Layout: "Wavelength (nm) | one column per sample (mean reflectance)",
		Charts: []string{"line", "heatmap"},
	},
	SixteenS: {
		Name:   SixteenS,
		Layout: "Taxon Name | one column per sample (relative abundance)",
		Charts: []string{"bar", "heatmap", "boxplot"},
	},
	LFC: {
		Name:   LFC,
		Layout: "Taxon Name | Log2 Fold Change | Adjusted p-value",
		Charts: []string{"bar", "heatmap"},
	},
	PH: {
		Name:   PH,
		Layout: "Sample | Time (h) | pH",
		Charts: []string{"line", "boxplot"},
	},
	CFU: {
		Name:   CFU,
		Layout: "Group | CFU/mL (Mean) | CFU/mL (SD)",
		Charts: []string{"bar", "boxplot"},
	},
	AlphaDiversity: {
		Name:   AlphaDiversity,
		Layout: "Sample | Shannon | Simpson | Chao1",
		Charts: []string{"boxplot", "violin"},
	},
	BetaDiversity: {
		Name:   BetaDiversity,
		Layout: "Sample | PC1 | PC2 | Group",
		Charts: []string{"scatter", "heatmap"},
	},
	LSMS: {
		Name:   LSMS,
		Layout: "Compound | one column per sample (normalized abundance)",
		Charts: []string{"heatmap", "bar"},
	},
	Correlations: {
		Name:   Correlations,
		Layout: "Variable A | Variable B | r | p-value",
		Charts: []string{"scatter", "line"},
	},
	FluorescenceOverTime: {
		Name:   FluorescenceOverTime,
		Layout: "Sample | Time (h) | RFU",
		Charts: []string{"line"},
	},
	ControlVsFn: {
		Name:   ControlVsFn,
		Layout: "Sample | Group (Control/Fn) | Value",
		Charts: []string{"bar", "boxplot"},
	},
	SMDI: {
		Name:   SMDI,
		Layout: "Sample | SMDI Score",
		Charts: []string{"bar", "line"},
	},
}

// ErrUnknownCategory indicates a category identifier outside the catalog.
var ErrUnknownCategory = errors.New("unknown analysis category")

// Categories returns all categories in display order.
func Categories() []Category {
	out := make([]Category, len(order))
	copy(out, order)
	return out
}

// Lookup resolves a category identifier. Matching is exact.
func Lookup(name string) (Category, bool) {
	c := Category(name)
	_, ok := catalog[c]
	if !ok {
		return "", false
	}
	return c, ok
}

// Describe returns the Info for a category. The charts slice is copied.
func Describe(c Category) (Info, error) {
	info, ok := catalog[c]
	if !ok {
		return Info{}, ErrUnknownCategory
	}
	charts := make([]string, len(info.Charts))
	copy(charts, info.Charts)
	info.Charts = charts
	return info, nil
}

// SupportedCharts returns the chart variants for a category in display order.
func SupportedCharts(c Category) ([]string, error) {
	info, err := Describe(c)
	if err != nil {
		return nil, err
	}
	return info.Charts, nil
}

// DefaultChart returns the first supported variant for a category.
func DefaultChart(c Category) (string, error) {
	info, err := Describe(c)
	if err != nil {
		return "", err
	}
	return info.Charts[0], nil
}

// IsSupportedChart reports whether chart is a valid variant for the category.
func IsSupportedChart(c Category, chart string) bool {
	info, ok := catalog[c]
	if !ok {
		return false
	}
	for _, v := range info.Charts {
		if v == chart {
			return true
		}
	}
	return false
}
