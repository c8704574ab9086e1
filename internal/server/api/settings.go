package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/veloma/internal/app"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
)

// SettingsHandler serves the live status and the mapping settings.
type SettingsHandler struct {
	ctl Controller
}

// NewSettingsHandler creates a SettingsHandler for ctl.
func NewSettingsHandler(ctl Controller) *SettingsHandler {
	return &SettingsHandler{ctl: ctl}
}

// Register mounts the handler routes on r.
func (h *SettingsHandler) Register(r chi.Router) {
	r.Get("/status", h.status)
	r.Get("/settings", h.get)
	r.Put("/settings", h.put)
	r.Put("/enabled", h.enable)
	r.Get("/scales", h.scales)
	r.Get("/instruments", h.instruments)
}

// settingsRequest is a partial settings update. Omitted fields keep their
// current value.
type settingsRequest struct {
	Mode    *gesture.Mode           `json:"mode"`
	Hands   *gesture.HandAssignment `json:"hands"`
	Mapping json.RawMessage         `json:"mapping"`
	Scale   *scaleRequest           `json:"scale"`
	Volume  json.RawMessage         `json:"volume"`
}

// scaleRequest selects a scale by catalog name, or by explicit steps. The
// start note is a MIDI key or a note name such as "A3".
type scaleRequest struct {
	Start      json.RawMessage `json:"start_note"`
	Octaves    *int            `json:"octaves"`
	Scale      string          `json:"scale"`
	Steps      []int           `json:"steps"`
	Instrument *string         `json:"instrument"`
}

type scaleResponse struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Steps []int  `json:"steps"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *SettingsHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Settings())
}

// put handles PUT /api/settings. Invalid settings are rejected with 400 and
// the current settings retained.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s := h.ctl.Settings()
	if err := req.apply(&s, h.ctl.Catalog()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ctl.SetSettings(s); err != nil {
		if isInvalid(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to apply settings")
		return
	}

	writeJSON(w, http.StatusOK, h.ctl.Settings())
}

func (req *settingsRequest) apply(s *app.Settings, cat *music.Catalog) error {
	if len(req.Mapping) > 0 {
		if err := json.Unmarshal(req.Mapping, &s.Mapping); err != nil {
			return err
		}
	}
	if req.Mode != nil {
		s.Mapping.Mode = *req.Mode
	}
	if req.Hands != nil {
		s.Mapping.Hands = *req.Hands
	}
	if len(req.Volume) > 0 {
		if err := json.Unmarshal(req.Volume, &s.Volume); err != nil {
			return err
		}
	}
	if req.Scale != nil {
		return req.Scale.apply(&s.Scale, cat)
	}
	return nil
}

func (req *scaleRequest) apply(sc *music.ScaleConfig, cat *music.Catalog) error {
	if len(req.Start) > 0 {
		var start any
		if err := json.Unmarshal(req.Start, &start); err != nil {
			return err
		}
		switch v := start.(type) {
		case float64:
			if v != math.Trunc(v) {
				return fmt.Errorf("%w: start note %g is not a whole key", music.ErrInvalidConfig, v)
			}
			sc.StartNote = int(v)
		case string:
			key, err := music.ParseNote(v)
			if err != nil {
				return err
			}
			sc.StartNote = key
		default:
			return fmt.Errorf("%w: start note must be a key or a note name", music.ErrInvalidConfig)
		}
	}
	if req.Octaves != nil {
		sc.Octaves = *req.Octaves
	}
	if req.Instrument != nil {
		sc.Instrument = *req.Instrument
	}

	switch {
	case len(req.Steps) > 0:
		name := req.Scale
		if name == "" {
			name = "custom"
		}
		sc.Scale = music.Scale{Name: name, Steps: req.Steps}
	case req.Scale != "":
		scale, err := cat.Resolve(music.Scale{Name: req.Scale})
		if err != nil {
			return err
		}
		sc.Scale = scale
	}
	return nil
}

func (h *SettingsHandler) enable(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.ctl.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, enabledRequest{Enabled: h.ctl.IsEnabled()})
}

func (h *SettingsHandler) scales(w http.ResponseWriter, r *http.Request) {
	scales := h.ctl.Catalog().Scales()
	out := make([]scaleResponse, 0, len(scales))
	for _, s := range scales {
		out = append(out, scaleResponse{Name: s.Name, Title: s.Title(), Steps: s.Steps})
	}
	writeJSON(w, http.StatusOK, map[string]any{"scales": out})
}

func (h *SettingsHandler) instruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"instruments": music.Instruments()})
}
