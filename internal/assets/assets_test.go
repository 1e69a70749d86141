package assets

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	pngHeader  = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	jpegHeader = "\xff\xd8\xff\xe0\x00\x10JFIF\x00"
	id3Header  = "ID3\x03\x00\x00\x00\x00\x00\x00"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"assets/textures/earth.jpg":       {Data: []byte(jpegHeader)},
		"assets/textures/saturn_ring.png": {Data: []byte(pngHeader)},
		"assets/textures/mars.jpg":        {Data: []byte("<html>not found</html>")},
		"assets/sounds/background.mp3":    {Data: []byte(id3Header)},
	}
}

func TestFSLoader(t *testing.T) {
	l := NewFSLoader(testFS())
	tests := []struct {
		path   string
		status Status
		ct     string
	}{
		{"assets/textures/earth.jpg", Loaded, "image/jpeg"},
		{"/assets/textures/saturn_ring.png", Loaded, "image/png"},
		{"assets/sounds/background.mp3", Loaded, "audio/mpeg"},
		{"assets/textures/mars.jpg", Failed, ""},
		{"assets/textures/venus.jpg", Failed, ""},
		{"", Failed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := l.Load(context.Background(), tt.path)
			if res.Status != tt.status {
				t.Fatalf("status = %v (err %v), want %v", res.Status, res.Err, tt.status)
			}
			if tt.status == Failed && res.Err == nil {
				t.Error("failed result without error")
			}
			if tt.ct != "" && res.ContentType != tt.ct {
				t.Errorf("content type = %q, want %q", res.ContentType, tt.ct)
			}
			if res.Path != tt.path {
				t.Errorf("path = %q, want %q", res.Path, tt.path)
			}
		})
	}
}

func TestFSLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := NewFSLoader(testFS()).Load(ctx, "assets/textures/earth.jpg"); res.Status != Failed {
		t.Errorf("status = %v, want failed on cancelled context", res.Status)
	}
}

func TestHTTPLoader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cdn/assets/textures/earth.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte(jpegHeader))
		case "/cdn/assets/textures/sniffed.png":
			w.Write([]byte(pngHeader))
		case "/cdn/assets/textures/page.jpg":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	l := NewHTTPLoader(server.URL+"/cdn/", testLogger)
	tests := []struct {
		path   string
		status Status
	}{
		{"assets/textures/earth.jpg", Loaded},
		{"assets/textures/sniffed.png", Loaded},
		{"assets/textures/page.jpg", Failed},
		{"assets/textures/missing.jpg", Failed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := l.Load(context.Background(), tt.path)
			if res.Status != tt.status {
				t.Errorf("status = %v (err %v), want %v", res.Status, res.Err, tt.status)
			}
		})
	}
}

// TestHTTPLoaderBodyLimit verifies oversized assets fail instead of
// consuming unbounded memory.
func TestHTTPLoaderBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(pngHeader + strings.Repeat("A", 4096)))
	}))
	defer server.Close()

	l := NewHTTPLoader(server.URL, testLogger)
	l.maxBytes = 1024
	res := l.Load(context.Background(), "big.png")
	if res.Status != Failed {
		t.Fatal("expected oversized asset to fail")
	}
	if !strings.Contains(res.Err.Error(), "byte limit") {
		t.Errorf("expected byte limit error, got: %v", res.Err)
	}
}

func TestPoolLoadAll(t *testing.T) {
	pool := NewPool(NewFSLoader(testFS()), 3, testLogger)
	paths := []string{
		"assets/textures/earth.jpg",
		"assets/textures/venus.jpg",
		"assets/textures/saturn_ring.png",
		"assets/sounds/background.mp3",
		"assets/textures/mars.jpg",
	}

	got := make(map[string]Status)
	for res := range pool.LoadAll(context.Background(), paths) {
		got[res.Path] = res.Status
	}

	if len(got) != len(paths) {
		t.Fatalf("results = %d, want %d", len(got), len(paths))
	}
	want := map[string]Status{
		"assets/textures/earth.jpg":       Loaded,
		"assets/textures/venus.jpg":       Failed,
		"assets/textures/saturn_ring.png": Loaded,
		"assets/sounds/background.mp3":    Loaded,
		"assets/textures/mars.jpg":        Failed,
	}
	for p, s := range want {
		if got[p] != s {
			t.Errorf("%s = %v, want %v", p, got[p], s)
		}
	}
}

func TestKindOf(t *testing.T) {
	if kindOf("assets/sounds/a.mp3") != "audio" || kindOf("assets/textures/a.jpg") != "texture" {
		t.Error("kindOf misclassified asset")
	}
}
