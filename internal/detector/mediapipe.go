package detector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const scriptName = "mediapipe_service.py"

// ErrServiceNotFound is returned when the landmark service script cannot be
// located.
var ErrServiceNotFound = errors.New(scriptName + " not found")

// ErrServiceTimeout is returned when the service does not answer a frame
// within the reply timeout. The process is killed and restarted on the
// next frame.
var ErrServiceTimeout = errors.New("mediapipe service did not reply in time")

// MediaPipeDetector implements Detector on top of a Python MediaPipe
// subprocess. The process starts on the first Detect, is stopped after
// IdleTimeout without frames, and is restarted after a broken pipe.
type MediaPipeDetector struct {
	config Config
	script string
	log    zerolog.Logger

	mu   sync.Mutex
	svc  *service
	idle *time.Timer
}

// MediaPipeOption configures a MediaPipeDetector.
type MediaPipeOption func(*MediaPipeDetector)

// WithLogger sets the logger for service lifecycle events and the
// service's stderr.
func WithLogger(l zerolog.Logger) MediaPipeOption {
	return func(d *MediaPipeDetector) { d.log = l }
}

// NewMediaPipeDetector locates the service script and returns a detector.
// No process is started until the first frame arrives.
func NewMediaPipeDetector(config Config, opts ...MediaPipeOption) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = firstExisting(scriptCandidates())
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("mediapipe service script: %w", err)
	}

	d := &MediaPipeDetector{
		config: config,
		script: script,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("component", "mediapipe").Logger()
	return d, nil
}

// Detect sends frame to the service and returns the hands it reports.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (Hands, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return Hands{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		svc, err := d.spawn()
		if err != nil {
			return Hands{}, err
		}
		d.svc = svc
	}

	list, err := d.svc.roundTrip(buf.GetBytes(), d.config.MinConfidence, d.config.ReplyTimeout)
	if err != nil {
		if errors.Is(err, ErrServiceTimeout) {
			d.log.Warn().Dur("timeout", d.config.ReplyTimeout).Msg("service hung, killed")
		}
		_ = d.stopLocked()
		return Hands{}, err
	}

	d.touchLocked()
	return splitHands(list), nil
}

// Close stops the service if it is running.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) spawn() (*service, error) {
	python := d.config.Python
	if python == "" {
		python = firstExisting(pythonCandidates())
	}
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)
	cmd.Stderr = d.log

	svc, err := startService(cmd)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("python", python).Str("script", d.script).Int("pid", cmd.Process.Pid).Msg("service started")
	return svc, nil
}

// touchLocked rearms the idle timer after a successful frame.
func (d *MediaPipeDetector) touchLocked() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Reset(d.config.IdleTimeout)
		return
	}
	d.idle = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.svc != nil {
			d.log.Debug().Dur("idle", d.config.IdleTimeout).Msg("stopping idle service")
		}
		_ = d.stopLocked()
	})
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.svc == nil {
		return nil
	}
	err := d.svc.stop()
	d.svc = nil
	return err
}

// service is one running instance of the landmark script.
type service struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
}

func startService(cmd *exec.Cmd) (*service, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	return &service{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout)}, nil
}

// roundTrip sends one frame and reads its reply. When timeout is positive
// and expires first, the process is killed, which unblocks the pipes.
func (s *service) roundTrip(jpeg []byte, minScore float64, timeout time.Duration) ([]HandLandmarks, error) {
	if timeout > 0 {
		var expired atomic.Bool
		timer := time.AfterFunc(timeout, func() {
			expired.Store(true)
			_ = s.cmd.Process.Kill()
		})
		defer timer.Stop()

		hands, err := s.exchange(jpeg, minScore)
		if err != nil && expired.Load() {
			return nil, ErrServiceTimeout
		}
		return hands, err
	}
	return s.exchange(jpeg, minScore)
}

func (s *service) exchange(jpeg []byte, minScore float64) ([]HandLandmarks, error) {
	if err := writeFrame(s.stdin, jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	return readHands(s.out, minScore)
}

// stop closes stdin, which ends the script's read loop, and reaps it.
func (s *service) stop() error {
	_ = s.stdin.Close()
	return s.cmd.Wait()
}

func scriptCandidates() []string {
	paths := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "scripts", scriptName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mudra", "scripts", scriptName))
	}
	return paths
}

func pythonCandidates() []string {
	venv := filepath.Join("venv", "bin", "python")
	paths := []string{
		venv,
		filepath.Join("..", venv),
		filepath.Join("..", "..", venv),
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), venv))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mudra", venv))
	}
	return paths
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
