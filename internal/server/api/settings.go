package api

import (
	"encoding/json"
	"net/http"
)

// SettingsHandler reads and updates the camera display settings.
type SettingsHandler struct {
	pipeline Pipeline
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(p Pipeline) *SettingsHandler {
	return &SettingsHandler{pipeline: p}
}

// Fields left out of a PUT body are unchanged.
type settingsRequest struct {
	Mirror     *bool    `json:"mirror"`
	Brightness *float64 `json:"brightness"`
}

type settingsResponse struct {
	Mirror     bool    `json:"mirror"`
	Brightness float64 `json:"brightness"`
}

// ServeHTTP handles /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Mirror != nil {
			h.pipeline.SetMirror(*req.Mirror)
		}
		if req.Brightness != nil {
			h.pipeline.SetBrightnessBoost(*req.Brightness)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Mirror:     h.pipeline.Mirror(),
		Brightness: h.pipeline.BrightnessBoost(),
	})
}
