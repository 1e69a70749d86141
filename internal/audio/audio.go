// Package audio holds the on/off state of the soundtrack and decides which
// sound cues the browser should play.
//
// Playback itself happens in the browser, which may refuse to start audio
// before the user has interacted with the page. The controller therefore
// requests playback and waits for the browser to report whether it started.
package audio

// Cue identifies a sound.
type Cue int

const (
	CueBackground Cue = iota
	CueSelect
	CueCuriosity
)

func (c Cue) String() string {
	switch c {
	case CueBackground:
		return "background"
	case CueSelect:
		return "select"
	case CueCuriosity:
		return "curiosity"
	default:
		return "unknown"
	}
}

// CueInfo tells the browser what to play and how loud.
type CueInfo struct {
	Cue    string  `json:"cue"`
	Path   string  `json:"path"`
	Volume float64 `json:"volume"`
	Loop   bool    `json:"loop,omitempty"`
}

// cues is indexed by Cue. The select sound has no file configured; an empty
// path means the cue is never emitted.
var cues = [...]CueInfo{
	CueBackground: {Cue: "background", Path: "assets/sounds/background.mp3", Volume: 0.2, Loop: true},
	CueSelect:     {Cue: "select", Path: "", Volume: 0.4},
	CueCuriosity:  {Cue: "curiosity", Path: "assets/sounds/curiosity-open.mp3", Volume: 0.5},
}

// Info returns the configuration for c.
func Info(c Cue) CueInfo {
	if c < 0 || int(c) >= len(cues) {
		return CueInfo{Cue: "unknown"}
	}
	return cues[c]
}

// Paths returns every configured sound file.
func Paths() []string {
	var out []string
	for _, c := range cues {
		if c.Path != "" {
			out = append(out, c.Path)
		}
	}
	return out
}

// Action is what the browser should do with the background track.
type Action int

const (
	ActionNone Action = iota
	ActionPlay
	ActionPause
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	default:
		return "none"
	}
}

type origin int

const (
	originNone origin = iota
	originGesture
	originToggle
)

// Controller tracks whether audio is enabled. It is not safe for concurrent
// use; the session goroutine owns it.
type Controller struct {
	enabled bool
	pending origin

	// armed means the next user gesture should try to start playback.
	armed bool
}

// NewController returns a disabled controller waiting for the first gesture.
func NewController() *Controller {
	return &Controller{armed: true}
}

// Enabled reports whether sound cues are currently audible.
func (c *Controller) Enabled() bool {
	return c.enabled
}

// Gesture is called on any user interaction with the page. The first one
// after load (or after a blocked toggle) asks the browser to start playback.
func (c *Controller) Gesture() Action {
	if c.enabled || !c.armed || c.pending != originNone {
		return ActionNone
	}
	c.armed = false
	c.pending = originGesture
	return ActionPlay
}

// Toggle flips audio. Turning off is immediate; turning on only completes
// once the browser reports successful playback.
func (c *Controller) Toggle() Action {
	if c.enabled {
		c.enabled = false
		c.pending = originNone
		return ActionPause
	}
	c.armed = false
	c.pending = originToggle
	return ActionPlay
}

// PlaybackResult records the browser's answer to the last play request. It
// returns true when the user should be told to interact with the page first.
func (c *Controller) PlaybackResult(ok bool) (prompt bool) {
	from := c.pending
	c.pending = originNone
	if from == originNone {
		return false
	}
	if ok {
		c.enabled = true
		return false
	}
	c.armed = true
	return from == originToggle
}

// Emit returns the cue to play, or false when audio is off or the cue has no
// file.
func (c *Controller) Emit(cue Cue) (CueInfo, bool) {
	if !c.enabled {
		return CueInfo{}, false
	}
	info := Info(cue)
	if info.Path == "" {
		return CueInfo{}, false
	}
	return info, true
}
