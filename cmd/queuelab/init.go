package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/queuelab.yaml
var configTemplate embed.FS

// templatePath is the embedded configuration template.
const templatePath = "templates/queuelab.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new queuelab configuration file",
		Long: `Initialize creates a new .queuelab configuration file in the current directory.

The generated file includes:
- Scenario defaults (timeout, error handling)
- Example desktop and mobile scenarios
- The asset preprocessing jobs

Examples:
  # Create .queuelab in current directory
  queuelab init

  # Create config file at a specific path
  queuelab init -o scenarios.yaml

  # Force overwrite existing file
  queuelab init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to describe your scenarios:")
	fmt.Fprintln(out, "  - Pages and device profiles to verify")
	fmt.Fprintln(out, "  - Steps and screenshot paths")
	fmt.Fprintln(out, "  - Image conversions run by 'queuelab assets'")

	return nil
}
