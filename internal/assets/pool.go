package assets

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/star/orrery/internal/metrics"
)

// Pool loads assets concurrently with a fixed number of workers.
type Pool struct {
	loader  Loader
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool over loader.
func NewPool(loader Loader, workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		loader:  loader,
		workers: workers,
		logger:  logger,
	}
}

// LoadAll starts loading every path and returns a channel that yields one
// Result per path, in completion order. The channel is closed when all loads
// have finished or ctx is cancelled.
func (p *Pool) LoadAll(ctx context.Context, paths []string) <-chan Result {
	jobs := make(chan string, p.workers*2)
	results := make(chan Result, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				start := time.Now()
				res := p.loader.Load(ctx, asset)
				metrics.ObserveAssetLoad(kindOf(asset), res.Status.String(), time.Since(start))

				if res.Status == Failed {
					p.logger.Warn("asset load failed, using fallback", "path", asset, "error", res.Err)
				} else {
					p.logger.Debug("asset loaded", "path", asset, "content_type", res.ContentType, "bytes", res.Size)
				}

				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, asset := range paths {
			select {
			case jobs <- asset:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func kindOf(p string) string {
	switch path.Ext(p) {
	case ".mp3", ".ogg", ".wav":
		return "audio"
	default:
		return "texture"
	}
}
