package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wudi/flipbook/flip"
)

type flipOptions struct {
	*rootOptions
	frames int
	out    string
}

func newFlipCommand(root *rootOptions) *cobra.Command {
	opts := &flipOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "flip",
		Short: "Render the frames of a forward page turn",
		Long: `Render the frames of a forward page turn from the first spread.

Frame progress follows the same ease-out curve the interactive settle uses,
so the written sequence matches what a consumer of the viewer would present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlip(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.frames, "frames", 12, "number of frames to render")
	cmd.Flags().StringVar(&opts.out, "out", "flip_output", "output directory")
	return cmd
}

func runFlip(cmd *cobra.Command, opts *flipOptions) error {
	if opts.frames < 2 {
		return fmt.Errorf("--frames must be >= 2, got %d", opts.frames)
	}
	v, cleanup, err := opts.openViewer(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if v.Store().SpreadCount() < 2 {
		return fmt.Errorf("document has a single spread, nothing to flip")
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}

	for i := 0; i < opts.frames; i++ {
		t := float64(i) / float64(opts.frames-1)
		progress := flip.SettleProgressAt(0, 1, t)
		img, err := v.Flip().Compose(progress)
		if err != nil {
			return fmt.Errorf("compose frame %d: %w", i, err)
		}
		path := filepath.Join(opts.out, fmt.Sprintf("frame%03d.png", i))
		if err := writePNG(path, img); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", opts.frames, opts.out)
	return nil
}
