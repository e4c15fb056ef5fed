// Package config loads application settings from defaults, an optional
// config file, environment variables, and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MUDRA_SERVER_ADDR.
const EnvPrefix = "MUDRA"

// PipelineConfig holds live decision pipeline settings.
type PipelineConfig struct {
	// WindowSize is the number of frames voted over.
	WindowSize int `mapstructure:"window_size"`

	// Threshold is the confidence a prediction must exceed to count as a vote.
	Threshold float64 `mapstructure:"threshold"`

	// Mirror flips frames horizontally before analysis.
	Mirror bool `mapstructure:"mirror"`

	// Brightness is the initial brightness boost in [1, 4].
	Brightness float64 `mapstructure:"brightness"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the complete application configuration.
type Config struct {
	DataDir  string               `mapstructure:"data_dir"`
	Tray     bool                 `mapstructure:"tray"`
	Log      logging.Options      `mapstructure:"log"`
	Camera   capture.Config       `mapstructure:"camera"`
	Detector detector.Config      `mapstructure:"detector"`
	Forest   gesture.ForestConfig `mapstructure:"forest"`
	Pipeline PipelineConfig       `mapstructure:"pipeline"`
	Server   ServerConfig         `mapstructure:"server"`
}

// DefaultDataDir returns ~/.mudra, or .mudra when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("tray", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	cam := capture.DefaultConfig()
	v.SetDefault("camera.device_id", cam.DeviceID)
	v.SetDefault("camera.width", cam.Width)
	v.SetDefault("camera.height", cam.Height)
	v.SetDefault("camera.fps", cam.FPS)

	det := detector.DefaultConfig()
	v.SetDefault("detector.max_hands", det.MaxHands)
	v.SetDefault("detector.min_confidence", det.MinConfidence)
	v.SetDefault("detector.min_tracking_confidence", det.MinTrackingConf)
	v.SetDefault("detector.script_path", "")
	v.SetDefault("detector.python", "")
	v.SetDefault("detector.idle_timeout", det.IdleTimeout)
	v.SetDefault("detector.reply_timeout", det.ReplyTimeout)

	forest := gesture.DefaultForestConfig()
	v.SetDefault("forest.trees", forest.Trees)
	v.SetDefault("forest.max_depth", forest.MaxDepth)
	v.SetDefault("forest.leaf_size", forest.LeafSize)

	v.SetDefault("pipeline.window_size", gesture.DefaultWindowSize)
	v.SetDefault("pipeline.threshold", 0.65)
	v.SetDefault("pipeline.mirror", true)
	v.SetDefault("pipeline.brightness", 1.0)

	v.SetDefault("server.addr", "127.0.0.1:8080")
}

// Load reads configuration into a Config. When configFile is empty,
// mudra.yaml (or .json/.toml) is looked up in the working directory and
// the data directory; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mudra")
		v.AddConfigPath(".")
		v.AddConfigPath(v.GetString("data_dir"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Pipeline.WindowSize < 1 {
		return fmt.Errorf("pipeline.window_size must be positive, got %d", c.Pipeline.WindowSize)
	}
	if c.Pipeline.Threshold <= 0 || c.Pipeline.Threshold >= 1 {
		return fmt.Errorf("pipeline.threshold must be in (0, 1), got %g", c.Pipeline.Threshold)
	}
	if c.Forest.Trees < 1 {
		return fmt.Errorf("forest.trees must be positive, got %d", c.Forest.Trees)
	}
	if c.Forest.MaxDepth < 1 {
		return fmt.Errorf("forest.max_depth must be positive, got %d", c.Forest.MaxDepth)
	}
	if c.Forest.LeafSize < 1 {
		return fmt.Errorf("forest.leaf_size must be positive, got %d", c.Forest.LeafSize)
	}
	return nil
}

// ModelPath returns the classifier model file path.
func (c Config) ModelPath() string {
	return filepath.Join(c.DataDir, gesture.ModelFile)
}
