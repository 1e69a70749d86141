// Package assets resolves texture and audio paths for the renderer.
//
// Loading never decides whether a body exists. A load yields a tagged Result
// (Loaded or Failed); the caller finalises the body's appearance from it
// either way.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// Status tags a load result.
type Status int

const (
	Loaded Status = iota
	Failed
)

func (s Status) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "failed"
}

// Result is the outcome of loading one asset.
type Result struct {
	Path        string
	Status      Status
	ContentType string
	Size        int64
	Err         error
}

// Loader loads a single asset by path.
type Loader interface {
	Load(ctx context.Context, path string) Result
}

func failed(p string, err error) Result {
	return Result{Path: p, Status: Failed, Err: err}
}

// FSLoader loads assets from a file system (an embedded tree or a directory).
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader creates a loader over fsys.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

// Load opens p, sniffs its content type and checks it is media the renderer
// can use.
func (l *FSLoader) Load(ctx context.Context, p string) Result {
	if err := ctx.Err(); err != nil {
		return failed(p, err)
	}
	if p == "" {
		return failed(p, errors.New("empty asset path"))
	}

	f, err := l.fsys.Open(strings.TrimPrefix(path.Clean(p), "/"))
	if err != nil {
		return failed(p, fmt.Errorf("opening asset: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return failed(p, fmt.Errorf("stat asset: %w", err))
	}
	if info.IsDir() {
		return failed(p, fmt.Errorf("asset %s is a directory", p))
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return failed(p, fmt.Errorf("reading asset: %w", err))
	}

	ct := http.DetectContentType(head[:n])
	if err := checkMedia(p, ct); err != nil {
		return failed(p, err)
	}
	return Result{Path: p, Status: Loaded, ContentType: ct, Size: info.Size()}
}

// checkMedia rejects content that is neither an image nor audio.
func checkMedia(p, contentType string) error {
	if strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "audio/") {
		return nil
	}
	// MP3 without an ID3 header sniffs as octet-stream.
	if contentType == "application/octet-stream" && strings.HasSuffix(p, ".mp3") {
		return nil
	}
	return fmt.Errorf("asset %s has unsupported content type %q", p, contentType)
}
