package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ngoiyaeric/queuelab/internal/assets"
	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/ngoiyaeric/queuelab/internal/report"
	"github.com/spf13/cobra"
)

// NewAssetsCmd creates the assets command.
func NewAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Convert source images into the icon, favicon and social preview",
		Long: `Assets resizes the source logo and social image into the files the site
ships, then deletes the sources:

- src/assets/logo-q.jpg          -> src/assets/logo-q-icon.png  (64x64 PNG)
- src/assets/logo-q.jpg          -> public/favicon.ico          (32x32 ICO)
- src/assets/og-image-source.png -> src/app/opengraph-image.jpg (1200x630 JPEG, quality 85)

The jobs can be replaced in the assets section of the configuration file.
A missing source or a failing job is reported and the remaining jobs still
run; the command only fails when the configuration cannot be loaded.

Examples:
  # Process assets in the current directory
  queuelab assets

  # Process assets of a checkout elsewhere and keep the sources
  queuelab assets --root ../site -k

  # Output the result as JSON
  queuelab assets --json`,
		Args: cobra.NoArgs,
		RunE: runAssetsCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .queuelab in current or home directory)")
	cmd.Flags().BoolP("keep-sources", "k", false,
		"Keep the source images after processing")
	cmd.Flags().BoolP("json", "j", false,
		"Output the result in JSON format")
	cmd.Flags().String("root", ".",
		"Directory that relative source and destination paths are resolved against")

	return cmd
}

// assetsOptions are the flag values of the assets command.
type assetsOptions struct {
	configPath  string
	keepSources bool
	jsonOutput  bool
	root        string
}

// buildAssetsOptions reads the assets command flags.
func buildAssetsOptions(cmd *cobra.Command) (*assetsOptions, error) {
	opts := &assetsOptions{}
	var err error

	opts.configPath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	opts.keepSources, err = cmd.Flags().GetBool("keep-sources")
	if err != nil {
		return nil, err
	}
	opts.jsonOutput, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	opts.root, err = cmd.Flags().GetString("root")
	if err != nil {
		return nil, err
	}
	return opts, nil
}

// runAssetsCmd executes the assets command.
func runAssetsCmd(cmd *cobra.Command, _ []string) error {
	opts, err := buildAssetsOptions(cmd)
	if err != nil {
		return err
	}

	file, _, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	ctx, stop := signalContext(logger)
	defer stop()

	return runAssets(ctx, file, opts, cmd.OutOrStdout(), logger)
}

// runAssets processes the configured jobs and writes the report.
// Job failures are part of the report, not the returned error.
func runAssets(ctx context.Context, file *config.File, opts *assetsOptions, out io.Writer, logger *slog.Logger) error {
	var section *config.AssetsFile
	if file != nil {
		section = file.Assets
	}

	keep := opts.keepSources || (section != nil && section.KeepSources)
	p := assets.NewProcessor(
		assets.WithRoot(opts.root),
		assets.WithKeepSources(keep),
		assets.WithLogger(logger),
	)

	result := p.Run(ctx, section.JobsOrDefault())

	var writer *report.AssetWriter
	if opts.jsonOutput {
		writer = report.NewAssetJSONWriter(out)
	} else {
		writer = report.NewAssetWriter(out)
	}

	if _, err := writer.Write(result); err != nil {
		return fmt.Errorf("failed to write asset report: %w", err)
	}
	return nil
}
