package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testRequest(t *testing.T) *Request {
	t.Helper()
	req, err := NewRequest("qlf.csv", []byte("Group,Point\nControl,1\n"), schema.QLF, "bar",
		map[string]string{"Control": "#000000", "Fn": "#000000"}, "", "", "")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func errorServer(t *testing.T, status int, header http.Header, body any, hits *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chart" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		for k, vals := range header {
			for _, v := range vals {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestRenderSubmitsMultipart(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chart" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected an X-Request-Id header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if got := r.FormValue("analysis_type"); got != "QLF" {
			t.Errorf("analysis_type = %q, want QLF", got)
		}
		if got := r.FormValue("chart_type"); got != "bar" {
			t.Errorf("chart_type = %q, want bar", got)
		}
		var colors map[string]string
		if err := json.Unmarshal([]byte(r.FormValue("colors")), &colors); err != nil {
			t.Errorf("colors is not JSON: %v", err)
		} else if colors["Fn"] != "#000000" {
			t.Errorf("colors = %v", colors)
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part: %v", err)
		} else {
			defer file.Close()
			if hdr.Filename != "qlf.csv" {
				t.Errorf("file name = %q, want qlf.csv", hdr.Filename)
			}
			data, _ := io.ReadAll(file)
			if !strings.HasPrefix(string(data), "Group,Point") {
				t.Errorf("file content = %q", data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"image_path": "/static/chart.svg",
			"emf_path":   "/static/chart.emf",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 2*time.Second)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Render(ctx, testRequest(t))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := srv.URL + "/static/chart.svg?t=1700000000123"; res.ImageURL != want {
		t.Fatalf("ImageURL = %q, want %q", res.ImageURL, want)
	}
	if want := srv.URL + "/static/chart.emf?t=1700000000123"; res.EditableURL != want {
		t.Fatalf("EditableURL = %q, want %q", res.EditableURL, want)
	}
	if res.RequestID == "" {
		t.Fatal("expected a request ID")
	}
}

func TestRenderArtifactResolution(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "srv_abc")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"image_path": "http://cdn.example.test/charts/run1.svg",
			"emf_path":   "/static/chart.emf?rev=2",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	c.now = func() time.Time { return time.UnixMilli(42) }
	res, err := c.Render(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := "http://cdn.example.test/charts/run1.svg?t=42"; res.ImageURL != want {
		t.Fatalf("absolute paths should pass through: %q, want %q", res.ImageURL, want)
	}
	if want := srv.URL + "/static/chart.emf?rev=2&t=42"; res.EditableURL != want {
		t.Fatalf("existing query should be extended: %q, want %q", res.EditableURL, want)
	}
	if res.RequestID != "srv_abc" {
		t.Fatalf("RequestID = %q, want the server-assigned ID", res.RequestID)
	}
}

func TestRenderCacheBusterFollowsClock(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"image_path": "/static/chart.svg"})
	}))
	defer srv.Close()

	var calls int32
	c := NewClient(srv.URL, "", 2*time.Second)
	c.now = func() time.Time {
		return time.UnixMilli(int64(atomic.AddInt32(&calls, 1)) * 1000)
	}
	first, err := c.Render(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := c.Render(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !strings.HasSuffix(first.ImageURL, "?t=1000") {
		t.Fatalf("first ImageURL = %q", first.ImageURL)
	}
	if !strings.HasSuffix(second.ImageURL, "?t=2000") {
		t.Fatalf("second ImageURL = %q", second.ImageURL)
	}
}

func TestRenderNoRetryOn500(t *testing.T) {
	var hits int32
	srv := errorServer(t, http.StatusInternalServerError, nil,
		map[string]any{"error": map[string]any{"message": "render crashed", "code": "internal"}}, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	_, err := c.Render(context.Background(), testRequest(t))
	if err == nil {
		t.Fatal("expected error")
	}
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "render crashed") {
		t.Fatalf("expected service message in error, got: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected exactly 1 request, got %d", got)
	}
}

func TestRenderAuthError(t *testing.T) {
	srv := errorServer(t, http.StatusUnauthorized, nil,
		map[string]any{"error": map[string]any{"message": "invalid key"}}, nil)
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", 2*time.Second)
	_, err := c.Render(context.Background(), testRequest(t))
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
}

func TestRenderRateLimit(t *testing.T) {
	t.Run("numeric retry-after", func(t *testing.T) {
		srv := errorServer(t, http.StatusTooManyRequests, http.Header{"Retry-After": {"7"}},
			map[string]any{"error": map[string]any{"message": "slow down"}}, nil)
		defer srv.Close()

		c := NewClient(srv.URL, "", 2*time.Second)
		_, err := c.Render(context.Background(), testRequest(t))
		var rle *RateLimitError
		if !errors.As(err, &rle) {
			t.Fatalf("expected RateLimitError, got %T: %v", err, err)
		}
		if rle.RetryAfter != 7*time.Second {
			t.Fatalf("RetryAfter = %v, want 7s", rle.RetryAfter)
		}
	})
	t.Run("unparseable retry-after", func(t *testing.T) {
		srv := errorServer(t, http.StatusTooManyRequests, http.Header{"Retry-After": {"soon"}},
			map[string]any{"error": "slow down"}, nil)
		defer srv.Close()

		c := NewClient(srv.URL, "", 2*time.Second)
		_, err := c.Render(context.Background(), testRequest(t))
		var rle *RateLimitError
		if !errors.As(err, &rle) {
			t.Fatalf("expected RateLimitError, got %T: %v", err, err)
		}
		if rle.RetryAfter != 0 {
			t.Fatalf("RetryAfter = %v, want 0", rle.RetryAfter)
		}
	})
}

func TestRenderFlatErrorBody(t *testing.T) {
	srv := errorServer(t, http.StatusBadRequest, nil,
		map[string]any{"error": "unknown analysis type"}, nil)
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	_, err := c.Render(context.Background(), testRequest(t))
	var bre *BadRequestError
	if !errors.As(err, &bre) {
		t.Fatalf("expected BadRequestError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "unknown analysis type") {
		t.Fatalf("expected flat error message surfaced, got: %v", err)
	}
}

func TestRenderErrorIncludesRequestID(t *testing.T) {
	srv := errorServer(t, http.StatusBadRequest, http.Header{"X-Request-Id": {"req_test_123"}},
		map[string]any{"error": map[string]any{"message": "bad req"}}, nil)
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	_, err := c.Render(context.Background(), testRequest(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestRenderMissingImagePath(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"emf_path": "/static/chart.emf"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	_, err := c.Render(context.Background(), testRequest(t))
	if err == nil || !strings.Contains(err.Error(), "image_path") {
		t.Fatalf("expected missing image_path error, got: %v", err)
	}
}

func TestRenderNilRequest(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	if _, err := c.Render(context.Background(), nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestRenderUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewClient("http://"+addr, "", 2*time.Second)
	_, err = c.Render(context.Background(), testRequest(t))
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestDownload(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/chart.svg" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte("<svg/>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 2*time.Second)
	data, ext, err := c.Download(context.Background(), srv.URL+"/static/chart.svg?t=123")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(data) != "<svg/>" {
		t.Fatalf("data = %q", data)
	}
	if ext != "svg" {
		t.Fatalf("ext = %q, want svg", ext)
	}
}

func TestDownloadErrorStatus(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 2*time.Second)
	_, _, err := c.Download(context.Background(), srv.URL+"/gone.svg")
	var bre *BadRequestError
	if !errors.As(err, &bre) {
		t.Fatalf("expected BadRequestError for 404, got %T: %v", err, err)
	}
}

func TestArtifactExt(t *testing.T) {
	cases := []struct{ url, want string }{
		{"http://h/static/chart.svg?t=1", "svg"},
		{"http://h/static/chart.EMF?t=1", "emf"},
		{"/tmp/chart.png", "png"},
		{"http://h/render/chart", "svg"},
		{"", "svg"},
	}
	for _, tc := range cases {
		if got := ArtifactExt(tc.url); got != tc.want {
			t.Errorf("ArtifactExt(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
