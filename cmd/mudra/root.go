package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/mudra/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"addr":      "server.addr",
	"tray":      "tray",
	"log-level": "log.level",
	"log-file":  "log.file",
	"camera":    "camera.device_id",
	"fps":       "camera.fps",
	"mirror":    "pipeline.mirror",
	"threshold": "pipeline.threshold",
	"trees":     "forest.trees",
}

func rootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:          "mudra",
		Short:        "Webcam hand-gesture trainer and live recognizer",
		Long:         "Collect labeled hand gestures from a webcam, train a random forest on them, and recognize them live.",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a config file (default: mudra.yaml in . or the data dir)")
	flags.String("data-dir", config.DefaultDataDir(), "Directory holding the dataset, model and backups")
	flags.String("addr", "127.0.0.1:8080", "HTTP listen address for the dashboard")
	flags.Bool("tray", false, "Show the system tray menu")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-file", "", "Also write logs to this file")
	flags.Int("camera", 0, "Camera device ID")
	flags.Int("fps", 60, "Frame loop rate")
	flags.Bool("mirror", true, "Mirror the camera image")
	flags.Float64("threshold", 0.65, "Confidence a prediction must exceed to be voted")
	flags.Int("trees", 100, "Number of trees in the forest")

	return cmd
}

// bindFlags binds the command-line flags into v so explicitly set flags
// take precedence over the environment and the config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
