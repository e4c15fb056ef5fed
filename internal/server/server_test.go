package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("reports status and uptime", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/api/health")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.Contains(t, body, "uptime")
		assert.NotContains(t, body, "mode", "no pipeline attached")
	})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method+" rejected", func(t *testing.T) {
			assert.Equal(t, http.StatusMethodNotAllowed, request(t, s, method, "/api/health").Code)
		})
	}
}

func TestServer_NotFound(t *testing.T) {
	rec := request(t, New(Config{}), http.MethodGet, "/api/nonexistent")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	const page = "<html><body>mudra</body></html>"
	const css = "body { background: black; }"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte(css), 0o644))

	s := New(Config{StaticDir: dir})

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, page},
		{"/style.css", http.StatusOK, css},
		{"/missing.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := request(t, s, http.MethodGet, tt.path)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	rec := request(t, New(Config{}), http.MethodGet, "/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew(t *testing.T) {
	s := New(Config{StaticDir: "/srv/mudra/web"})

	require.NotNil(t, s)
	assert.Equal(t, "/srv/mudra/web", s.config.StaticDir)
	assert.Implements(t, (*http.Handler)(nil), s)
}

// stubPipeline implements the calls the server makes itself. Handler
// calls beyond these panic through the nil embedded interface.
type stubPipeline struct {
	api.Pipeline
	frame   []byte
	updates chan app.Update
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{updates: make(chan app.Update, 4)}
}

func (p *stubPipeline) Mode() app.Mode { return app.ModePredict }
func (p *stubPipeline) Trained() bool { return true }
func (p *stubPipeline) LatestFrame() []byte { return p.frame }
func (p *stubPipeline) Updates() <-chan app.Update { return p.updates }

func (p *stubPipeline) Gestures(context.Context) ([]store.LabelCount, error) {
	return []store.LabelCount{{Label: "hello", Samples: 3}}, nil
}

func TestServer_HealthReportsPipeline(t *testing.T) {
	s := New(Config{Pipeline: newStubPipeline(), Logger: zerolog.Nop()})

	rec := request(t, s, http.MethodGet, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var response map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "PREDICT", response["mode"])
	assert.Equal(t, true, response["trained"])
}

func TestServer_Routes(t *testing.T) {
	m, err := metrics.NewWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	s := New(Config{Pipeline: newStubPipeline(), Metrics: m, Logger: zerolog.Nop()})

	t.Run("gestures", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/api/gestures")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"label":"hello"`)
	})

	t.Run("metrics", func(t *testing.T) {
		m.ObserveFrame(string(app.ModePredict))

		rec := request(t, s, http.MethodGet, "/metrics")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "mudra_frames_total")
	})
}

func TestServer_NoPipelineRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/gestures", "/api/updates", "/api/stream", "/metrics"} {
		assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, path).Code, path)
	}
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	s := New(Config{Pipeline: newStubPipeline(), Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
