package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/rs/zerolog"
)

// CollectHandler switches the pipeline between collecting and predicting,
// and persists staged samples.
type CollectHandler struct {
	pipeline Pipeline
	log      zerolog.Logger
}

// NewCollectHandler creates a new CollectHandler.
func NewCollectHandler(p Pipeline, log zerolog.Logger) *CollectHandler {
	return &CollectHandler{pipeline: p, log: log}
}

type collectRequest struct {
	Label string `json:"label"`
}

type collectResponse struct {
	Mode   app.Mode `json:"mode"`
	Staged int      `json:"staged"`
}

type persistResponse struct {
	Persisted int `json:"persisted"`
	Staged    int `json:"staged"`
}

// ServeHTTP handles /api/collect.
func (h *CollectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.state(w)
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		h.pipeline.ExitCollectMode()
		h.state(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CollectHandler) state(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, collectResponse{
		Mode:   h.pipeline.Mode(),
		Staged: h.pipeline.Staged(),
	})
}

func (h *CollectHandler) start(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.pipeline.EnterCollectMode(req.Label); err != nil {
		if errors.Is(err, app.ErrEmptyLabel) {
			writeError(w, http.StatusBadRequest, "Label is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to enter collect mode")
		return
	}
	h.state(w)
}

// Persist handles POST /api/samples/persist.
func (h *CollectHandler) Persist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := h.pipeline.PersistStaged(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("persist request failed")
		writeError(w, http.StatusInternalServerError, "Failed to persist samples")
		return
	}

	writeJSON(w, http.StatusOK, persistResponse{
		Persisted: n,
		Staged:    h.pipeline.Staged(),
	})
}
