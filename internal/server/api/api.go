// Package api provides HTTP API handlers for the mudra gesture trainer.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/store"
)

// Pipeline is the part of the live pipeline the API drives.
type Pipeline interface {
	Gestures(ctx context.Context) ([]store.LabelCount, error)
	RemoveLabel(ctx context.Context, label string) (bool, string, error)
	EnterCollectMode(label string) error
	ExitCollectMode()
	Mode() app.Mode
	Staged() int
	PersistStaged(ctx context.Context) (int, error)
	Train(ctx context.Context) app.TrainOutcome
	TrainAsync(ctx context.Context)
	Trained() bool
	SetMirror(mirror bool)
	Mirror() bool
	SetBrightnessBoost(factor float64) float64
	BrightnessBoost() float64
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
