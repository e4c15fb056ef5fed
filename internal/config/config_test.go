package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v := viper.New()
	v.Set("data_dir", t.TempDir())

	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1280, cfg.Camera.Width)
	assert.Equal(t, 720, cfg.Camera.Height)
	assert.Equal(t, 60, cfg.Camera.FPS)
	assert.Equal(t, 2, cfg.Detector.MaxHands)
	assert.Equal(t, 100, cfg.Forest.Trees)
	assert.Equal(t, 20, cfg.Forest.MaxDepth)
	assert.Equal(t, 1, cfg.Forest.LeafSize)
	assert.Equal(t, 10, cfg.Pipeline.WindowSize)
	assert.Equal(t, 0.65, cfg.Pipeline.Threshold)
	assert.True(t, cfg.Pipeline.Mirror)
	assert.Equal(t, 1.0, cfg.Pipeline.Brightness)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.False(t, cfg.Tray)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mudra.yaml")
	content := `
data_dir: ` + dir + `
log:
  level: debug
pipeline:
  window_size: 5
  mirror: false
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Pipeline.WindowSize)
	assert.False(t, cfg.Pipeline.Mirror)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "words_model.gob"), cfg.ModelPath())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MUDRA_SERVER_ADDR", "0.0.0.0:7777")
	t.Setenv("MUDRA_DATA_DIR", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7777", cfg.Server.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), "/nonexistent/mudra.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero window", func(c *Config) { c.Pipeline.WindowSize = 0 }},
		{"threshold too high", func(c *Config) { c.Pipeline.Threshold = 1 }},
		{"zero threshold", func(c *Config) { c.Pipeline.Threshold = 0 }},
		{"negative threshold", func(c *Config) { c.Pipeline.Threshold = -0.1 }},
		{"no trees", func(c *Config) { c.Forest.Trees = 0 }},
		{"zero depth", func(c *Config) { c.Forest.MaxDepth = 0 }},
		{"zero leaf size", func(c *Config) { c.Forest.LeafSize = 0 }},
	}

	require.NoError(t, base().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
