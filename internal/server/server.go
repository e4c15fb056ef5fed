// Package server provides the HTTP server for the mudra gesture trainer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long ListenAndServe waits for requests to
// drain once its context is cancelled.
const ShutdownTimeout = 5 * time.Second

// Pipeline is the live pipeline as seen by the server.
type Pipeline interface {
	api.Pipeline
	LatestFrame() []byte
	Updates() <-chan app.Update
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Pipeline  Pipeline
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hub    *UpdatesHub
	log    zerolog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if p := s.config.Pipeline; p != nil {
		gestures := api.NewGestureHandler(p, s.log)
		s.mux.Handle("/api/gestures", gestures)
		s.mux.Handle("/api/gestures/", gestures)

		collect := api.NewCollectHandler(p, s.log)
		s.mux.Handle("/api/collect", collect)
		s.mux.HandleFunc("/api/samples/persist", collect.Persist)

		s.mux.Handle("/api/train", api.NewTrainHandler(p))
		s.mux.Handle("/api/settings", api.NewSettingsHandler(p))
		s.mux.Handle("/api/stream", NewStreamHandler(p))

		s.hub = NewUpdatesHub(p.Updates(), s.log)
		s.mux.Handle("/api/updates", s.hub)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if p := s.config.Pipeline; p != nil {
		response["mode"] = p.Mode()
		response["trained"] = p.Trained()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// RunUpdates relays pipeline updates to websocket clients until ctx is
// cancelled. ListenAndServe calls it; callers serving the handler some
// other way run it themselves.
func (s *Server) RunUpdates(ctx context.Context) {
	if s.hub != nil {
		s.hub.Run(ctx)
	}
}

// ListenAndServe serves on addr and broadcasts pipeline updates until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming handlers end with the server, not with Shutdown's deadline.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		s.RunUpdates(ctx)
		return nil
	})

	g.Go(func() error {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
