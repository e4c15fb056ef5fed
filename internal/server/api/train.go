package api

import (
	"context"
	"net/http"
	"strconv"
)

// TrainHandler retrains the classifier.
type TrainHandler struct {
	pipeline Pipeline
}

// NewTrainHandler creates a new TrainHandler.
func NewTrainHandler(p Pipeline) *TrainHandler {
	return &TrainHandler{pipeline: p}
}

// ServeHTTP handles POST /api/train. With ?async=true it returns 202 at once
// and the outcome arrives on the updates socket.
func (h *TrainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.pipeline.TrainAsync(context.WithoutCancel(r.Context()))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	outcome := h.pipeline.Train(r.Context())
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, outcome)
}
