package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ayusman/mudra/internal/store"
	"github.com/rs/zerolog"
)

// GestureHandler lists and removes stored gestures.
type GestureHandler struct {
	pipeline Pipeline
	log      zerolog.Logger
}

// NewGestureHandler creates a new GestureHandler.
func NewGestureHandler(p Pipeline, log zerolog.Logger) *GestureHandler {
	return &GestureHandler{pipeline: p, log: log}
}

// ServeHTTP routes /api/gestures and /api/gestures/{label}.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/gestures")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	label, err := url.PathUnescape(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid gesture label")
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.remove(w, r, label)
}

type listResponse struct {
	Gestures []store.LabelCount `json:"gestures"`
	Trained  bool               `json:"trained"`
}

type removeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	counts, err := h.pipeline.Gestures(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list gestures")
		writeError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Gestures: counts,
		Trained:  h.pipeline.Trained(),
	})
}

func (h *GestureHandler) remove(w http.ResponseWriter, r *http.Request, label string) {
	ok, msg, err := h.pipeline.RemoveLabel(r.Context(), label)
	status := http.StatusOK
	switch {
	case errors.Is(err, store.ErrNoDataset), errors.Is(err, store.ErrLabelNotFound):
		status = http.StatusNotFound
	case err != nil:
		h.log.Error().Err(err).Str("label", label).Msg("failed to remove gesture")
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, removeResponse{Success: ok, Message: msg})
}
