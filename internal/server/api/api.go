// Package api provides the JSON handlers of the Veloma HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/veloma/internal/app"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
	"github.com/ayusman/veloma/internal/store"
)

// Controller is the part of the application the API drives.
type Controller interface {
	Status() app.Status
	Settings() app.Settings
	SetSettings(s app.Settings) error
	ApplyPreset(p *store.Preset) error
	Catalog() *music.Catalog
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// maxBody bounds request bodies.
const maxBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// isInvalid reports whether err is a rejected configuration.
func isInvalid(err error) bool {
	return errors.Is(err, music.ErrInvalidConfig) || errors.Is(err, gesture.ErrInvalidSettings)
}
