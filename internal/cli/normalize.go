package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"digitprep/internal/cache"
	"digitprep/internal/codec"
	"digitprep/internal/logging"
	"digitprep/internal/normalize"

	"github.com/spf13/cobra"
)

func NormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <image>",
		Short: "Print the bounding box and intensity grid of a digit photo",
		Args:  cobra.ExactArgs(1),
		RunE:  runNormalize,
	}
	addNormalizeFlags(cmd)
	cmd.Flags().String("out", "", "Write the canonical image to this PNG file")
	cmd.Flags().Bool("json", false, "Print JSON instead of a text grid")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync(e.logger)

	n, err := e.normalizer(cmd)
	if err != nil {
		return err
	}
	res, err := normalizeFile(n, args[0], e.cfg.Upload.MaxSide)
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		data, err := codec.Encode(res.Canonical, codec.FormatPNG)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(map[string]any{
			"box":         res.Box,
			"grid":        res.Grid,
			"stats":       res.Grid.Stats(),
			"fingerprint": cache.GridFingerprint(n.Params(), e.cfg.Upload.MaxSide),
		})
	}
	printGrid(cmd.OutOrStdout(), res)
	return nil
}

func normalizeFile(n *normalize.Normalizer, path string, maxSide int) (*normalize.Result, error) {
	p, err := loadPhoto(n, path, maxSide)
	if err != nil {
		return nil, err
	}
	return p.res, nil
}

type photo struct {
	data        []byte
	contentType string
	res         *normalize.Result
}

// loadPhoto reads and normalizes path, keeping the raw bytes for backends
// that take the original upload. The content type is sniffed first and the
// extension is the fallback.
func loadPhoto(n *normalize.Normalizer, path string, maxSide int) (*photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	ct := codec.CanonicalContentType(codec.DetectContentType(data))
	if ct == "" {
		ct = codec.ContentTypeForPath(path)
	}

	buf, err := codec.Decode(data, ct, n.Params().Colors.Background)
	if err != nil {
		return nil, err
	}
	res, err := n.Normalize(codec.Downsample(buf, maxSide))
	if err != nil {
		return nil, err
	}
	return &photo{data: data, contentType: ct, res: res}, nil
}

func printGrid(w io.Writer, res *normalize.Result) {
	fmt.Fprintf(w, "box: %s\n", res.Box)
	for y := 0; y < res.Grid.Height; y++ {
		for x := 0; x < res.Grid.Width; x++ {
			fmt.Fprintf(w, "%4d", res.Grid.At(x, y))
		}
		fmt.Fprintln(w)
	}
}
