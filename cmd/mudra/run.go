package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/rs/zerolog"
)

// run wires the components and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config) error {
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	logger.Info().Str("data_dir", cfg.DataDir).Msg("mudra starting")

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	st, err := store.New(cfg.DataDir, store.WithLogger(logging.Component(logger, "store")))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	mgr := gesture.NewManager(st, cfg.ModelPath(),
		gesture.WithForestConfig(cfg.Forest),
		gesture.WithLogger(logging.Component(logger, "classifier")),
		gesture.WithMetrics(m),
	)
	if err := mgr.Load(); err != nil {
		// An unreadable model is replaced by the next training run.
		logger.Warn().Err(err).Msg("starting untrained")
	}

	a := app.New(app.Config{
		Camera:     capture.NewCamera(cfg.Camera),
		Detector:   newDetector(cfg.Detector, logger),
		Store:      st,
		Classifier: mgr,
		Metrics:    m,
		Logger:     logging.Component(logger, "pipeline"),
		FPS:        cfg.Camera.FPS,
		WindowSize: cfg.Pipeline.WindowSize,
		Threshold:  cfg.Pipeline.Threshold,
		Mirror:     cfg.Pipeline.Mirror,
		Brightness: cfg.Pipeline.Brightness,
	})

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		logger.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Pipeline:  a,
		Metrics:   m,
		Logger:    logging.Component(logger, "server"),
	})

	if !cfg.Tray {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}
	return runWithTray(ctx, cfg, a, srv, logger)
}

// runWithTray serves in the background while the tray owns the calling
// goroutine, which some platforms require for UI.
func runWithTray(ctx context.Context, cfg config.Config, a *app.App, srv *server.Server, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(a.Mirror())
	log := logging.Component(logger, "tray")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(ctx, cfg.Server.Addr)
		cancel()
	}()

	t.OnToggle(func(enabled bool) {
		if !enabled {
			a.Stop()
			return
		}
		if err := a.Start(ctx); err != nil {
			log.Error().Err(err).Msg("failed to restart pipeline")
		}
	})
	t.OnMirror(a.SetMirror)
	t.OnSave(func() {
		n, err := a.PersistStaged(ctx)
		if err != nil {
			log.Error().Err(err).Msg("save failed")
			return
		}
		log.Info().Int("samples", n).Msg("saved staged samples")
	})
	t.OnTrain(func() { a.TrainAsync(ctx) })
	t.OnDashboard(func() {
		if err := openBrowser("http://" + cfg.Server.Addr); err != nil {
			log.Warn().Err(err).Msg("failed to open dashboard")
		}
	})
	t.OnQuit(cancel)
	t.StatusFunc(func() string {
		if !a.Running() {
			return "paused"
		}
		return fmt.Sprintf("%s, %d staged", a.Mode(), a.Staged())
	})

	trayDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.Quit()
		case <-trayDone:
		}
	}()

	t.Run()
	close(trayDone)
	cancel()

	return <-errc
}

// newDetector starts the MediaPipe detector, falling back to a detector
// that never sees hands so the dashboard still works without Python.
func newDetector(cfg detector.Config, logger zerolog.Logger) detector.Detector {
	d, err := detector.NewMediaPipeDetector(cfg, detector.WithLogger(logger))
	if err != nil {
		logger.Warn().Err(err).Msg("hand detection unavailable")
		return detector.NewMockDetector()
	}
	return d
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
