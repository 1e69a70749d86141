package session

import (
	"github.com/star/orrery/internal/audio"
	"github.com/star/orrery/internal/camera"
)

// Event types sent to subscribers.
const (
	EventInfo      = "info"
	EventSelection = "selection"
	EventCamera    = "camera"
	EventCue       = "cue"
	EventAudio     = "audio"
	EventPrompt    = "prompt"
	EventAsset     = "asset"
)

// audioPrompt is shown when the browser blocked playback the user asked for.
const audioPrompt = "Clique em qualquer lugar da página para ativar o áudio primeiro."

// Event is a one-off notification for the browser. Continuous state travels
// in frames instead.
type Event struct {
	Type       string         `json:"type"`
	Body       string         `json:"body,omitempty"`
	Label      string         `json:"label,omitempty"`
	Text       string         `json:"text,omitempty"`
	Transition string         `json:"transition,omitempty"`
	Camera     *camera.Rig    `json:"camera,omitempty"`
	Cue        *audio.CueInfo `json:"cue,omitempty"`
	Action     string         `json:"action,omitempty"`
	Enabled    *bool          `json:"enabled,omitempty"`
	Path       string         `json:"path,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// Subscribe registers for events. Slow subscribers lose events rather than
// stall the frame loop. The returned func unsubscribes and closes the
// channel.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once bool
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Debug("subscriber lagging, event dropped", "subscriber", id, "type", e.Type)
		}
	}
}

func (s *Session) cue(c audio.Cue) {
	info, ok := s.audio.Emit(c)
	if !ok {
		return
	}
	s.emit(Event{Type: EventCue, Cue: &info})
}

func (s *Session) emitCamera() {
	rig := s.rig
	s.emit(Event{Type: EventCamera, Camera: &rig})
}

func (s *Session) emitAudio(a audio.Action) {
	enabled := s.audio.Enabled()
	e := Event{Type: EventAudio, Enabled: &enabled}
	if a != audio.ActionNone {
		e.Action = a.String()
		if a == audio.ActionPlay {
			info := audio.Info(audio.CueBackground)
			e.Cue = &info
		}
	}
	s.emit(e)
}
