package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/finextract/internal/doctags"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 12, 16))
}

func TestMockClientReturnsParseableReport(t *testing.T) {
	markup, err := NewMockClient().ConvertPage(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("ConvertPage: %v", err)
	}
	doc, err := doctags.Parse(markup)
	if err != nil {
		t.Fatalf("Parse mock output: %v", err)
	}
	if doc.Title != "FinTech Corp Financial Report 2023" {
		t.Errorf("title = %q", doc.Title)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(doc.Tables))
	}
}

func TestMockClientHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().ConvertPage(ctx, nil, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildPagePrompt(t *testing.T) {
	p := BuildPagePrompt(2)
	if !strings.HasPrefix(p, ConversionPrompt) {
		t.Fatal("prompt should start with the conversion instructions")
	}
	if !strings.HasSuffix(p, "Page: 3") {
		t.Fatalf("prompt should end with the 1-based page, got %q", p[len(p)-10:])
	}
}

func TestRemoteClientConvertPage(t *testing.T) {
	var got convertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"doctags": "```xml\n<root><content/></root>\n```",
		})
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, "secret", "docling", time.Second)
	defer c.Close()

	markup, err := c.ConvertPage(context.Background(), pageImage(), 0)
	if err != nil {
		t.Fatalf("ConvertPage: %v", err)
	}
	if markup != "<root><content/></root>" {
		t.Errorf("markup = %q", markup)
	}
	if got.Model != "docling" || got.Page != 0 {
		t.Errorf("request = model %q page %d", got.Model, got.Page)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Image)
	if err != nil {
		t.Fatalf("image is not base64: %v", err)
	}
	sent, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("image is not a PNG: %v", err)
	}
	if sent.Bounds() != pageImage().Bounds() {
		t.Errorf("sent bounds = %v, want the caller's image", sent.Bounds())
	}
}

func TestRemoteClientRequiresImage(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, "", "", time.Second)
	if _, err := c.ConvertPage(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error for missing image")
	}
	if called {
		t.Error("no request should be sent without an image")
	}
}

func TestRemoteClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", true},
		{"server error", http.StatusBadGateway, "upstream", true},
		{"bad request", http.StatusBadRequest, "nope", false},
		{"api error", http.StatusOK, `{"error":{"type":"invalid","message":"bad image"}}`, false},
		{"empty", http.StatusOK, `{"doctags":"  "}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewRemoteClient(srv.URL, "", "", time.Second)
			_, err := c.ConvertPage(context.Background(), pageImage(), 0)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v (%v)", !tt.retryable, tt.retryable, err)
			}
		})
	}
}

type scriptedConverter struct {
	errs   []error
	calls  int
	images []image.Image
}

func (s *scriptedConverter) ConvertPage(ctx context.Context, img image.Image, page int) (string, error) {
	i := s.calls
	s.calls++
	s.images = append(s.images, img)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "<root/>", nil
}

func noWait(int) time.Duration { return 0 }

func TestConvertWithRetry(t *testing.T) {
	transient := &RetryableError{StatusCode: 503, Message: "busy"}
	permanent := errors.New("bad request")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"first try", nil, 1, nil},
		{"recovers", []error{transient, transient}, 3, nil},
		{"permanent", []error{permanent}, 1, permanent},
		{"exhausted", []error{transient, transient, transient, transient}, MaxRetries, transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &scriptedConverter{errs: tt.errs}
			markup, err := convertWithRetry(context.Background(), c, nil, 0, discardLogger(), noWait)
			if c.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", c.calls, tt.wantCalls)
			}
			if tt.wantErr == nil {
				if err != nil || markup != "<root/>" {
					t.Fatalf("got (%q, %v)", markup, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConvertWithRetryReusesImage(t *testing.T) {
	transient := &RetryableError{StatusCode: 503, Message: "busy"}
	c := &scriptedConverter{errs: []error{transient, transient}}
	img := pageImage()
	if _, err := convertWithRetry(context.Background(), c, img, 0, discardLogger(), noWait); err != nil {
		t.Fatalf("convertWithRetry: %v", err)
	}
	if len(c.images) != 3 {
		t.Fatalf("attempts = %d, want 3", len(c.images))
	}
	for i, got := range c.images {
		if got != img {
			t.Errorf("attempt %d got a different image", i)
		}
	}
}

func TestConvertWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &scriptedConverter{errs: []error{&RetryableError{StatusCode: 429}}}
	wait := func(int) time.Duration {
		cancel()
		return time.Hour
	}
	if _, err := convertWithRetry(ctx, c, nil, 0, discardLogger(), wait); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := range 8 {
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("Backoff(%d) = %v, want in [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}
