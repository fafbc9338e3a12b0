package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
)

// Multipart field names expected by the rendering service.
const (
	fieldFile         = "file"
	fieldAnalysisType = "analysis_type"
	fieldChartType    = "chart_type"
	fieldColors       = "colors"
	fieldCustomTitle  = "custom_title"
	fieldXLabel       = "x_label"
	fieldYLabel       = "y_label"
)

// ErrNoFile is returned when a request is built without an uploaded file.
// Callers treat it as "nothing to do" rather than a failure.
var ErrNoFile = errors.New("no file loaded")

// ErrUnsupportedChart is returned when the chart variant is not valid for the
// selected category. The variant is never silently substituted.
var ErrUnsupportedChart = errors.New("unsupported chart variant")

// Request carries everything needed for one render call. Building one does
// not mutate any of its inputs; the colors map is copied.
type Request struct {
	FileName string
	FileData []byte
	Category schema.Category
	Chart    string
	Colors   map[string]string
	Title    string
	XLabel   string
	YLabel   string
}

// NewRequest validates inputs and builds a Request.
func NewRequest(fileName string, fileData []byte, category schema.Category, chart string, colors map[string]string, title, xLabel, yLabel string) (*Request, error) {
	if len(fileData) == 0 {
		return nil, ErrNoFile
	}
	if !schema.IsSupportedChart(category, chart) {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedChart, chart, category)
	}
	cc := make(map[string]string, len(colors))
	for k, v := range colors {
		cc[k] = v
	}
	if fileName == "" {
		fileName = "upload"
	}
	return &Request{
		FileName: fileName,
		FileData: fileData,
		Category: category,
		Chart:    chart,
		Colors:   cc,
		Title:    title,
		XLabel:   xLabel,
		YLabel:   yLabel,
	}, nil
}

// multipartBody renders the request as a multipart form and returns the body
// with its content type. Colors are sent as a JSON object; map marshalling
// sorts keys, so the field is deterministic for identical assignments.
func (r *Request) multipartBody() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(fieldFile, r.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(r.FileData); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	colorsJSON, err := json.Marshal(r.Colors)
	if err != nil {
		return nil, "", fmt.Errorf("marshal colors: %w", err)
	}
	if err := w.WriteField(fieldAnalysisType, string(r.Category)); err != nil {
		return nil, "", fmt.Errorf("write field %s: %w", fieldAnalysisType, err)
	}
	if err := w.WriteField(fieldChartType, r.Chart); err != nil {
		return nil, "", fmt.Errorf("write field %s: %w", fieldChartType, err)
	}
	if err := w.WriteField(fieldColors, string(colorsJSON)); err != nil {
		return nil, "", fmt.Errorf("write field %s: %w", fieldColors, err)
	}

	// Label overrides are sent only when non-empty after trimming.
	labels := []struct{ name, value string }{
		{fieldCustomTitle, r.Title},
		{fieldXLabel, r.XLabel},
		{fieldYLabel, r.YLabel},
	}
	for _, l := range labels {
		v := strings.TrimSpace(l.value)
		if v == "" {
			continue
		}
		if err := w.WriteField(l.name, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", l.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
