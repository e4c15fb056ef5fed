// Package capture provides camera capture and frame preprocessing using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 60
	DefaultWidth  = 1280
	DefaultHeight = 720
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrReadFailed is returned when the device yields no frame.
	ErrReadFailed = errors.New("failed to read frame from camera")
	// ErrEmptyFrame is returned when the device yields a frame with no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Config describes which device to open and the capture format to request.
// The device may ignore the requested format.
type Config struct {
	DeviceID int `mapstructure:"device_id"`
	Width    int `mapstructure:"width"`
	Height   int `mapstructure:"height"`
	FPS      int `mapstructure:"fps"`
}

// DefaultConfig returns the capture settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DeviceID: 0,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
	}
}

// withDefaults fills zero or negative format fields.
func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	return c
}

// Camera is a frame source owned by the frame loop. Open and Close bracket
// one loop run; a closed camera can be opened again.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame blocks for the next frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// device captures from a local video device through OpenCV.
type device struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
}

// NewCamera creates a Camera for the configured device. Nothing is opened
// until Open.
func NewCamera(config Config) Camera {
	return &device{config: config.withDefaults()}
}

// Open opens the device and requests the configured format.
func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(d.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", d.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open device %d: device unavailable", d.config.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(d.config.FPS))

	d.capture = capture
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}

	err := d.capture.Close()
	d.capture = nil
	return err
}

// ReadFrame reads a single frame from the device.
func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := d.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrReadFailed
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

// IsOpen reports whether the device is open.
func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil
}
