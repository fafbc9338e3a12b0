package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/plotdesk-cli/internal/logging"
)

const chartEndpoint = "/api/chart"

// APIError represents a structured error response from the rendering service.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		if e.Code != "" {
			if e.RequestID != "" {
				return fmt.Sprintf("api error: status=%d code=%s request_id=%s message=%s", e.StatusCode, e.Code, e.RequestID, e.Message)
			}
			return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
		}
		if e.RequestID != "" {
			return fmt.Sprintf("api error: status=%d request_id=%s message=%s", e.StatusCode, e.RequestID, e.Message)
		}
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: status=%d request_id=%s", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// Result holds the resolved artifact URLs for one successful render.
type Result struct {
	// ImageURL points at the rendered vector image. Always present.
	ImageURL string
	// EditableURL points at the editable EMF variant when the service
	// produced one.
	EditableURL string
	RequestID   string
}

type renderResponse struct {
	ImagePath string `json:"image_path"`
	EMFPath   string `json:"emf_path"`
}

// Client talks to the chart rendering service. Requests are sent exactly
// once: a failed render is reported as-is and only the caller may issue a
// new one.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a client with the default timeout.
func New(baseURL, apiKey string) *Client {
	return NewClient(baseURL, apiKey, 60*time.Second)
}

// NewClient allows customizing the HTTP timeout.
func NewClient(baseURL, apiKey string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logging.New("render"),
		now:        time.Now,
	}
}

// Render submits one chart request and resolves the artifact locations from
// the response.
func (c *Client) Render(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || len(req.FileData) == 0 {
		return nil, ErrNoFile
	}
	body, contentType, err := req.multipartBody()
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + chartEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("submitting render request",
		slog.String("request_id", requestID),
		slog.String("analysis_type", string(req.Category)),
		slog.String("chart_type", req.Chart))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isUnreachable(err) {
			return nil, &UnreachableError{Host: c.baseURL, Err: err}
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.errorFromResponse(resp, requestID)
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.ImagePath == "" {
		return nil, fmt.Errorf("service response missing image_path")
	}

	ts := c.now()
	res := &Result{
		ImageURL:  c.resolveArtifact(out.ImagePath, ts),
		RequestID: requestID,
	}
	if rid := extractRequestID(resp); rid != "" {
		res.RequestID = rid
	}
	if out.EMFPath != "" {
		res.EditableURL = c.resolveArtifact(out.EMFPath, ts)
	}
	c.logger.Debug("render succeeded",
		slog.String("request_id", res.RequestID),
		slog.String("image_url", res.ImageURL))
	return res, nil
}

// Download fetches a rendered artifact and returns its bytes together with
// the file extension derived from the URL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isUnreachable(err) {
			return nil, "", &UnreachableError{Host: rawURL, Err: err}
		}
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", c.errorFromResponse(resp, "")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	return data, ArtifactExt(rawURL), nil
}

// errorFromResponse decodes the error body, tolerating both nested
// {"error":{...}} and flat {"error":"..."} shapes, and classifies the result.
func (c *Client) errorFromResponse(resp *http.Response, fallbackID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
	apiErr.RequestID = extractRequestID(resp)
	if apiErr.RequestID == "" {
		apiErr.RequestID = fallbackID
	}
	if v, ok := raw["error"].(map[string]any); ok {
		if msg, ok := v["message"].(string); ok {
			apiErr.Message = msg
		}
		if code, ok := v["code"].(string); ok {
			apiErr.Code = code
		}
	} else {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
		if msg, ok := raw["error"].(string); ok && apiErr.Message == "" {
			apiErr.Message = msg
		}
	}
	err := classifyAPIError(apiErr, resp)
	c.logger.Debug("service returned error",
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", apiErr.RequestID),
		slog.String("message", apiErr.Message))
	return err
}

// classifyAPIError maps a generic APIError to typed errors for better UX.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	if sc == http.StatusUnauthorized || sc == http.StatusForbidden {
		return &AuthError{APIError: apiErr}
	}
	if sc == http.StatusTooManyRequests {
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	}
	if sc >= 400 && sc < 500 {
		return &BadRequestError{APIError: apiErr}
	}
	if sc >= 500 && sc <= 599 {
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// isUnreachable distinguishes dial failures from timeouts and mid-exchange
// errors.
func isUnreachable(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// resolveArtifact turns a service artifact path into an absolute URL with a
// cache-busting timestamp query parameter.
func (c *Client) resolveArtifact(p string, ts time.Time) string {
	u := p
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(u, "/")
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "t=" + strconv.FormatInt(ts.UnixMilli(), 10)
}

// ArtifactExt derives the artifact file extension from its URL, ignoring any
// query string. Missing extensions default to svg.
func ArtifactExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return "svg"
	}
	return strings.ToLower(ext)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	keys := []string{"X-Request-Id", "X-Correlation-Id"}
	for _, k := range keys {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
