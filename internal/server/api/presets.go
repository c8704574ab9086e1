package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
	"github.com/ayusman/veloma/internal/store"
)

// PresetHandler handles HTTP requests for preset resources.
type PresetHandler struct {
	store *store.Store
	ctl   Controller
}

// NewPresetHandler creates a PresetHandler. ctl may be nil, in which case
// presets can be edited but not applied.
func NewPresetHandler(s *store.Store, ctl Controller) *PresetHandler {
	return &PresetHandler{store: s, ctl: ctl}
}

// Register mounts the preset routes on r.
func (h *PresetHandler) Register(r chi.Router) {
	r.Route("/presets", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/apply", h.apply)
	})
}

type presetRequest struct {
	Name       string                 `json:"name"`
	StartNote  int                    `json:"start_note"`
	Octaves    int                    `json:"octaves"`
	Scale      string                 `json:"scale"`
	Instrument string                 `json:"instrument"`
	Mode       gesture.Mode           `json:"mode"`
	Hands      gesture.HandAssignment `json:"hands"`
}

type listPresetsResponse struct {
	Presets []*store.Preset `json:"presets"`
}

// validate checks the request against the catalogs so that a stored preset
// can always be applied.
func (req *presetRequest) validate(cat *music.Catalog) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errors.New("name is required")
	}
	scale, ok := cat.Lookup(req.Scale)
	if !ok {
		return fmt.Errorf("%w: unknown scale %q", music.ErrInvalidConfig, req.Scale)
	}
	if req.Instrument == "" {
		req.Instrument = music.DefaultInstrument
	}
	sc := music.ScaleConfig{
		StartNote:  req.StartNote,
		Octaves:    req.Octaves,
		Scale:      scale,
		Instrument: req.Instrument,
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	req.Scale = scale.Name
	return nil
}

func (req *presetRequest) fill(p *store.Preset) {
	p.Name = req.Name
	p.StartNote = req.StartNote
	p.Octaves = req.Octaves
	p.Scale = req.Scale
	p.Instrument = req.Instrument
	p.Mode = req.Mode
	p.Hands = req.Hands
}

func (h *PresetHandler) catalog() *music.Catalog {
	if h.ctl != nil {
		return h.ctl.Catalog()
	}
	return music.NewCatalog()
}

// list handles GET /api/presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}
	if presets == nil {
		presets = []*store.Preset{}
	}
	writeJSON(w, http.StatusOK, listPresetsResponse{Presets: presets})
}

// create handles POST /api/presets.
func (h *PresetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.validate(h.catalog()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &store.Preset{ID: uuid.NewString()}
	req.fill(p)
	if err := h.store.Presets().Create(p); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Preset name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create preset")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// get handles GET /api/presets/{id}.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// update handles PUT /api/presets/{id}.
func (h *PresetHandler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req presetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.validate(h.catalog()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.fill(p)
	if err := h.store.Presets().Update(p); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Preset not found")
		case errors.Is(err, store.ErrDuplicateName):
			writeError(w, http.StatusConflict, "Preset name already exists")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update preset")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// delete handles DELETE /api/presets/{id}.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Presets().Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apply handles POST /api/presets/{id}/apply.
func (h *PresetHandler) apply(w http.ResponseWriter, r *http.Request) {
	if h.ctl == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline not running")
		return
	}
	p, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.ctl.ApplyPreset(p); err != nil {
		if isInvalid(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to apply preset")
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Settings())
}

func (h *PresetHandler) load(w http.ResponseWriter, id string) (*store.Preset, bool) {
	p, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return nil, false
	}
	return p, true
}
