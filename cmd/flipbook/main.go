// Command flipbook drives the page-flip viewer core from the terminal:
// opening documents, rasterizing spreads and rendering page-turn frames.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/flipbook/config"
	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/source/placeholder"
	"github.com/wudi/flipbook/viewer"
)

type rootOptions struct {
	configPath string
	location   string
	proxy      string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flipbook: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "flipbook",
		Short:         "Page-flip book viewer core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.location, "location", "", "document URL or path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.proxy, "proxy", "", "proxy endpoint prefix (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newInfoCommand(opts))
	cmd.AddCommand(newRenderCommand(opts))
	cmd.AddCommand(newFlipCommand(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	if o.location != "" {
		cfg.Location = o.location
		cfg.Bundled = false
	}
	if o.proxy != "" {
		cfg.ProxyEndpoint = o.proxy
	}
	if cfg.Location == "" {
		return config.Config{}, errors.New("location required (--location or config file)")
	}
	return cfg, nil
}

func (o *rootOptions) logger() observability.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return observability.NewSlogLogger(slog.New(handler))
}

// placeholderScheme selects a synthesized in-process document:
// "placeholder:12" opens a twelve-page book.
const placeholderScheme = "placeholder:"

// Page dimensions for synthesized placeholder documents, in points.
const (
	placeholderWidth  = 420
	placeholderHeight = 594
)

// openViewer builds a viewer from the resolved configuration and opens the
// document. The returned cleanup releases the viewer and any scratch files.
func (o *rootOptions) openViewer(ctx context.Context) (*viewer.Viewer, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger()

	vcfg := viewer.Config{
		ProxyEndpoint:  cfg.ProxyEndpoint,
		Opener:         placeholder.Opener(),
		Recovery:       cfg.Strategy(logger),
		ZoomThreshold:  cfg.ZoomThreshold,
		SettleDuration: cfg.SettleDuration.Std(),
		Logger:         logger,
	}

	cleanupDir := ""
	switch {
	case strings.HasPrefix(cfg.Location, placeholderScheme):
		pages, err := strconv.Atoi(strings.TrimPrefix(cfg.Location, placeholderScheme))
		if err != nil || pages < 1 {
			return nil, nil, fmt.Errorf("bad placeholder location %q: want placeholder:<pages>", cfg.Location)
		}
		dir, err := os.MkdirTemp("", "flipbook")
		if err != nil {
			return nil, nil, fmt.Errorf("scratch dir: %w", err)
		}
		payload := placeholder.Payload(pages, placeholderWidth, placeholderHeight)
		if err := os.WriteFile(filepath.Join(dir, "book.pdf"), payload, 0o644); err != nil {
			os.RemoveAll(dir)
			return nil, nil, fmt.Errorf("write placeholder payload: %w", err)
		}
		cleanupDir = dir
		vcfg.Bundled = true
		vcfg.BundleFS = os.DirFS(dir)
		vcfg.Location = "book.pdf"
	case cfg.Bundled:
		abs, err := filepath.Abs(cfg.Location)
		if err != nil {
			return nil, nil, err
		}
		vcfg.Bundled = true
		vcfg.BundleFS = os.DirFS(filepath.Dir(abs))
		vcfg.Location = filepath.Base(abs)
	default:
		vcfg.Location = cfg.Location
	}

	v, err := viewer.New(vcfg)
	if err != nil {
		if cleanupDir != "" {
			os.RemoveAll(cleanupDir)
		}
		return nil, nil, err
	}
	cleanup := func() {
		v.Close()
		if cleanupDir != "" {
			os.RemoveAll(cleanupDir)
		}
	}
	if err := v.Open(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return v, cleanup, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
