package cli

import (
	"fmt"
	"io"

	"digitprep/internal/logging"
	"digitprep/internal/recognizer"

	"github.com/spf13/cobra"
)

func PredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Normalize a digit photo and classify it with the configured recognizer",
		Args:  cobra.ExactArgs(1),
		RunE:  runPredict,
	}
	addNormalizeFlags(cmd)
	cmd.Flags().String("backend", "", "Override recognizer.kind")
	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync(e.logger)

	n, err := e.normalizer(cmd)
	if err != nil {
		return err
	}
	p, err := loadPhoto(n, args[0], e.cfg.Upload.MaxSide)
	if err != nil {
		return err
	}

	rc := e.cfg.Recognizer
	if kind, _ := cmd.Flags().GetString("backend"); kind != "" {
		rc.Kind = kind
	}
	rec, err := recognizer.New(rc)
	if err != nil {
		return err
	}
	if c, ok := rec.(io.Closer); ok {
		defer c.Close()
	}

	in, err := recognizer.NewInput(rc, p.data, p.contentType, p.res.Canonical, p.res.Grid)
	if err != nil {
		return err
	}
	pred, err := rec.Predict(cmd.Context(), in)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "digit %d (confidence %.3f, backend %s, box %s)\n",
		pred.Digit, pred.Confidence, pred.Backend, p.res.Box)
	return nil
}
