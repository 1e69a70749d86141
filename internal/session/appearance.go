package session

import (
	"github.com/star/orrery/internal/assets"
	"github.com/star/orrery/internal/audio"
	"github.com/star/orrery/internal/body"
)

// AssetPaths lists every texture and sound the scene can use.
func AssetPaths() []string {
	paths := make([]string, 0, body.Count+3)
	for _, id := range body.All() {
		paths = append(paths, body.Textures[id])
	}
	paths = append(paths, body.RingTexture)
	return append(paths, audio.Paths()...)
}

// AssetLoaded queues the finalisation of an asset load. The body it belongs
// to already exists; a failed load leaves the fallback appearance in place.
func (s *Session) AssetLoaded(res assets.Result) {
	s.post(func() { s.finalise(res) })
}

func (s *Session) finalise(res assets.Result) {
	matched := false
	for _, id := range body.All() {
		if body.Textures[id] != res.Path {
			continue
		}
		matched = true
		if b := s.reg.Get(id); b != nil && res.Status == assets.Loaded {
			b.Appearance = body.TexturedAppearance(id, res.Path)
		}
	}
	if res.Path == body.RingTexture {
		matched = true
		if b := s.reg.Get(body.Saturn); b != nil && b.Ring != nil && res.Status == assets.Loaded {
			b.Ring.Appearance = body.TexturedRingAppearance(res.Path)
		}
	}

	if res.Status == assets.Failed {
		s.logger.Warn("asset unavailable, keeping fallback", "path", res.Path, "error", res.Err)
	} else if !matched {
		s.logger.Debug("asset loaded", "path", res.Path, "content_type", res.ContentType)
	}
	if res.Status == assets.Loaded && matched {
		s.refresh()
	}
	s.emit(Event{Type: EventAsset, Path: res.Path, Status: res.Status.String()})
}
