package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBytes bounds a single remote asset.
const DefaultMaxBytes = 32 << 20

// HTTPLoader fetches assets from a remote base URL (a CDN or static host).
type HTTPLoader struct {
	baseURL    string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPLoader creates a loader that resolves paths against baseURL.
func NewHTTPLoader(baseURL string, logger *slog.Logger) *HTTPLoader {
	return &HTTPLoader{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: DefaultMaxBytes,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// URL returns the absolute URL for an asset path.
func (l *HTTPLoader) URL(p string) string {
	return l.baseURL + "/" + strings.TrimLeft(p, "/")
}

// Load performs an HTTP GET for p and validates the body.
func (l *HTTPLoader) Load(ctx context.Context, p string) Result {
	if p == "" {
		return failed(p, fmt.Errorf("empty asset path"))
	}
	u := l.URL(p)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return failed(p, fmt.Errorf("creating request: %w", err))
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return failed(p, fmt.Errorf("fetching asset: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failed(p, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, u))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return failed(p, fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(body)) > l.maxBytes {
		return failed(p, fmt.Errorf("asset %s exceeds %d byte limit", p, l.maxBytes))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(body)
	}
	if err := checkMedia(p, ct); err != nil {
		return failed(p, err)
	}

	l.logger.Debug("asset fetched", "url", u, "bytes", len(body), "content_type", ct)
	return Result{Path: p, Status: Loaded, ContentType: ct, Size: int64(len(body))}
}
