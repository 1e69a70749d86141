package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/interact"
	"github.com/star/orrery/internal/session"
)

// maxBodyBytes bounds JSON request bodies on the command routes.
const maxBodyBytes = 1 << 10

// helpText lists the controls shown by the help overlay.
var helpText = []string{
	"Drag with the left mouse button to orbit the camera.",
	"Scroll to zoom in and out.",
	"Drag with the right mouse button to pan.",
	"Click a planet or the sun to focus the camera on it. Click it again to release.",
	"Click a small marker above a body to read a curiosity about it.",
	"Use the speed slider to change how fast the system moves.",
	"Press the reset button to return the camera to its starting view.",
	"Use the sound button to turn the background music on or off.",
}

type handlers struct {
	session   *session.Session
	assetBase string
	logger    *slog.Logger
}

func (h *handlers) listBodies(w http.ResponseWriter, r *http.Request) {
	views, err := h.session.Bodies(r.Context())
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bodies": views})
}

func (h *handlers) getBody(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, found, err := h.session.Body(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "body not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type curiosityResponse struct {
	Body  body.ID `json:"body"`
	Label string  `json:"label"`
	Text  string  `json:"text"`
}

func (h *handlers) getCuriosity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, curiosityResponse{Body: id, Label: body.Label(id), Text: body.Curiosity(id)})
}

func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Latest())
}

func (h *handlers) getHelp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"help": helpText})
}

// getClient tells the browser where to fetch textures and sounds from.
func (h *handlers) getClient(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"asset_base": h.assetBase})
}

type speedRequest struct {
	Speed *float64 `json:"speed"`
}

func (h *handlers) setSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Speed == nil || math.IsNaN(*req.Speed) || *req.Speed < 0 || *req.Speed > 1 {
		writeError(w, http.StatusBadRequest, "speed must be between 0 and 1")
		return
	}
	v, err := h.session.SetSpeed(r.Context(), *req.Speed)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"speed": v})
}

type outcomeResponse struct {
	Outcome    string   `json:"outcome"`
	Body       *body.ID `json:"body,omitempty"`
	Transition string   `json:"transition,omitempty"`
}

func (h *handlers) selectBody(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.session.Select(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeOf(out))
}

type pickRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (h *handlers) pick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !decode(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil || !inNDC(*req.X) || !inNDC(*req.Y) {
		writeError(w, http.StatusBadRequest, "x and y must be between -1 and 1")
		return
	}
	out, err := h.session.Pick(r.Context(), mgl64.Vec2{*req.X, *req.Y})
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeOf(out))
}

func outcomeOf(out interact.Outcome) outcomeResponse {
	resp := outcomeResponse{Outcome: out.Kind.String()}
	switch out.Kind {
	case interact.OutcomeSelect:
		resp.Body = &out.Body
		resp.Transition = out.Transition.String()
	case interact.OutcomeInfo:
		resp.Body = &out.Body
	}
	return resp
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ResetView(r.Context()); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) toggleAudio(w http.ResponseWriter, r *http.Request) {
	a, err := h.session.ToggleAudio(r.Context())
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": a.String()})
}

func (h *handlers) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, "session stopped")
		return
	}
	h.logger.Warn("session command failed", "component", "api", "error", err)
	writeError(w, http.StatusServiceUnavailable, "session busy")
}

func pathID(w http.ResponseWriter, r *http.Request) (body.ID, bool) {
	id, err := body.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown body")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func inNDC(v float64) bool { return !math.IsNaN(v) && v >= -1 && v <= 1 }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
