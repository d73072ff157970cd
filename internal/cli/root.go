// Package cli implements the digitprep command tree.
package cli

import (
	"fmt"

	"digitprep/internal/config"
	"digitprep/internal/logging"
	"digitprep/internal/normalize"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd builds the digitprep command with all subcommands attached.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digitprep",
		Short:         "Normalize handwritten digit photos into 28x28 model input",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "Path to the config file")
	root.PersistentFlags().String("log-mode", "", "Logger mode (release selects JSON output); defaults to server.mode")

	root.AddCommand(
		NormalizeCmd(),
		PredictCmd(),
		ServeCmd(),
		VersionCmd(),
	)
	return root
}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.New(path)
	if err != nil {
		return nil, err
	}

	mode, _ := cmd.Flags().GetString("log-mode")
	if mode == "" {
		mode = cfg.Server.Mode
	}
	logger, err := logging.New(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// normalizer applies command-line overrides on top of the config section.
func (e *env) normalizer(cmd *cobra.Command) (*normalize.Normalizer, error) {
	nc := e.cfg.Normalize
	if f := cmd.Flags().Lookup("policy"); f != nil && f.Changed {
		nc.BoxPolicy = f.Value.String()
	}
	if f := cmd.Flags().Lookup("resampler"); f != nil && f.Changed {
		nc.Resampler = f.Value.String()
	}
	if cmd.Flags().Changed("threshold") {
		nc.Threshold, _ = cmd.Flags().GetFloat64("threshold")
	}

	params, err := nc.Params()
	if err != nil {
		return nil, err
	}
	return normalize.New(params, normalize.WithLogger(e.logger))
}

func addNormalizeFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "Bounding box policy: tight or reference-margin")
	cmd.Flags().String("resampler", "", "Resampler: box, nearest, bilinear, catmullrom, opencv-area")
	cmd.Flags().Float64("threshold", 0, "Binarization threshold on the 0-1 scale")
}
