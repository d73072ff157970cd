package cli

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"digitprep/internal/cache"
	"digitprep/internal/logging"
	"digitprep/internal/recognizer"
	"digitprep/internal/server"
	"digitprep/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync(e.logger)

	info := version.Get()
	e.logger.Info("starting digitprep server",
		zap.String("version", info.Version),
		zap.String("build_time", info.BuildTime),
		zap.String("git_commit", info.GitCommit))

	n, err := e.normalizer(cmd)
	if err != nil {
		return err
	}

	// Normalization keeps working without a recognizer.
	rec, err := recognizer.New(e.cfg.Recognizer)
	if err != nil {
		e.logger.Warn("recognizer unavailable, prediction disabled", zap.Error(err))
		rec = nil
	} else if c, ok := rec.(io.Closer); ok {
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.Open(ctx, &e.cfg.Redis, e.logger)
	defer store.Close()

	return server.New(e.cfg, n, rec, store, e.logger).Run(ctx)
}
