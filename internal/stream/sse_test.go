package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/star/orrery/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// tickingSource publishes a new frame on every Latest call.
type tickingSource struct {
	seq atomic.Uint64
}

func (s *tickingSource) Latest() *session.Frame {
	n := s.seq.Add(1)
	return &session.Frame{Seq: n, TimeMs: float64(n) * 16, Speed: 0.5}
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}
}

// TestFrameMessageJSON verifies the frame payload flattens the frame fields
// next to the message type.
func TestFrameMessageJSON(t *testing.T) {
	data, err := json.Marshal(frameMessage{Type: "frame", Frame: &session.Frame{Seq: 7, Speed: 0.25, Selected: "earth"}})
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["type"] != "frame" {
		t.Errorf("type = %v, want frame", parsed["type"])
	}
	if parsed["seq"].(float64) != 7 {
		t.Errorf("seq = %v, want 7", parsed["seq"])
	}
	if parsed["selected"] != "earth" {
		t.Errorf("selected = %v, want earth", parsed["selected"])
	}
	if _, ok := parsed["camera"]; !ok {
		t.Error("frame missing camera")
	}
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	handler := NewHandler(&tickingSource{}, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?interval=20", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandleFrames(w, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var types []string
	var lastSeq float64
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		typ, _ := msg["type"].(string)
		types = append(types, typ)
		if typ == "metadata" {
			if msg["bodies"].(float64) != 9 {
				t.Errorf("metadata bodies = %v, want 9", msg["bodies"])
			}
			if msg["interval_ms"].(float64) != 20 {
				t.Errorf("metadata interval_ms = %v, want 20", msg["interval_ms"])
			}
		}
		if typ == "frame" {
			seq := msg["seq"].(float64)
			if seq <= lastSeq {
				t.Errorf("frame seq %v not increasing after %v", seq, lastSeq)
			}
			lastSeq = seq
		}
	}

	if len(types) < 2 || types[0] != "metadata" {
		t.Fatalf("message types = %v, want metadata then frames", types)
	}
	if types[1] != "frame" {
		t.Errorf("second message = %q, want frame", types[1])
	}

	// Lines must be "data: ...", "retry: ...", ":" (keepalive) or empty.
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

// staticSource never publishes a new frame.
type staticSource struct{ f *session.Frame }

func (s staticSource) Latest() *session.Frame { return s.f }

// TestUnchangedFrameNotResent verifies a stalled session produces no duplicate frames.
func TestUnchangedFrameNotResent(t *testing.T) {
	handler := NewHandler(staticSource{&session.Frame{Seq: 1}}, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?interval=16", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 200*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req.WithContext(ctx))

	if n := strings.Count(w.Body.String(), `"type":"frame"`); n != 1 {
		t.Errorf("frames sent = %d, want 1", n)
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 1000)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, reason := limiter.acquire("10.0.0.1")
		if release == nil {
			t.Fatalf("acquire %d refused: %s", i+1, reason)
		}
		releases = append(releases, release)
	}
	if release, reason := limiter.acquire("10.0.0.1"); release != nil || reason != limitPerIP {
		t.Errorf("acquire beyond limit: reason %q, want %q", reason, limitPerIP)
	}
	if release, _ := limiter.acquire("10.0.0.2"); release == nil {
		t.Error("different IP should not be rate limited")
	}

	releases[0]()
	releases[0]() // second call is a no-op
	if release, _ := limiter.acquire("10.0.0.1"); release == nil {
		t.Error("acquire after release should succeed")
	}

	if perIP, total := limiter.count("10.0.0.1"); perIP != 3 || total != 4 {
		t.Errorf("count = %d/%d, want 3/4", perIP, total)
	}
}

func TestGlobalLimit(t *testing.T) {
	limiter := newStreamLimiter(5, 2)
	limiter.acquire("10.0.0.1")
	limiter.acquire("10.0.0.2")
	if release, reason := limiter.acquire("10.0.0.3"); release != nil || reason != limitTotal {
		t.Errorf("acquire beyond global limit: reason %q, want %q", reason, limitTotal)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, _ := limiter.acquire("10.0.0.1"); release != nil {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if perIP, total := limiter.count("10.0.0.1"); perIP != 0 || total != 0 {
		t.Errorf("count after all released = %d/%d, want 0/0", perIP, total)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	handler := NewHandler(&tickingSource{}, cfg, testLogger())

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/frames?interval=100", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleFrames(w, req)
	}()

	<-ready

	req := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
}

// TestInvalidQueryParams verifies error responses for bad interval values.
func TestInvalidQueryParams(t *testing.T) {
	handler := NewHandler(&tickingSource{}, testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"interval too small", "?interval=5"},
		{"interval too large", "?interval=5000"},
		{"interval non-numeric", "?interval=fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/frames"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandleFrames(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

// TestBandwidthThrottle verifies a tight byte budget slows the stream down.
func TestBandwidthThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.BandwidthLimit = 64
	handler := NewHandler(&tickingSource{}, cfg, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?interval=16", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req.WithContext(ctx))

	// Unthrottled, ~18 frames fit in 300ms; at 64 B/s only the burst does.
	if n := strings.Count(w.Body.String(), `"type":"frame"`); n > 3 {
		t.Errorf("frames sent = %d, expected throttling", n)
	}
}
