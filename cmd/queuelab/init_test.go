package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ngoiyaeric/queuelab/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	if cmd.Use != "init" {
		t.Errorf("expected use 'init', got %q", cmd.Use)
	}

	output := cmd.Flags().Lookup("output")
	if output == nil {
		t.Fatal("expected output flag")
	}
	if output.Shorthand != "o" || output.DefValue != config.DefaultConfigFile {
		t.Errorf("unexpected output flag %q/%q", output.Shorthand, output.DefValue)
	}

	force := cmd.Flags().Lookup("force")
	if force == nil || force.Shorthand != "f" {
		t.Error("expected force flag with shorthand 'f'")
	}
}

// TestConfigTemplate tests that the embedded template is a valid configuration.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}

	cf, err := config.ParseConfig(content)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}

	if len(cf.Scenarios) == 0 {
		t.Error("expected example scenarios")
	}
	mobile, ok := cf.Scenario("homepage-mobile")
	if !ok {
		t.Fatal("expected homepage-mobile scenario")
	}
	if !mobile.Mobile || mobile.Viewport == nil || mobile.Viewport.Width != 375 {
		t.Errorf("unexpected mobile profile %+v", mobile)
	}
	if mobile.Timeout != config.DefaultNavigationTimeout {
		t.Errorf("expected defaults to be merged, got timeout %v", mobile.Timeout)
	}

	jobs := cf.Assets.JobsOrDefault()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 asset jobs, got %d", len(jobs))
	}
	for i, want := range config.DefaultAssetJobs() {
		got := jobs[i]
		if got.Source != want.Source || got.Dest != want.Dest || got.Width != want.Width || got.Height != want.Height || got.Format != want.Format {
			t.Errorf("job %d: got %+v, expected %+v", i, got, want)
		}
	}
}

// TestRunInitCmd tests writing the configuration file.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates file in nested directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "dir", ".queuelab")
		cmd := NewInitCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		if err := cmd.Flags().Set("output", path); err != nil {
			t.Fatal(err)
		}

		if err := runInitCmd(cmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected file: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
		}
		if !strings.Contains(out.String(), path) {
			t.Errorf("expected output to mention %s, got %q", path, out.String())
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte("custom"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		if err := cmd.Flags().Set("output", path); err != nil {
			t.Fatal(err)
		}

		if err := runInitCmd(cmd, nil); err == nil {
			t.Fatal("expected error for existing file")
		}
		data, _ := os.ReadFile(path)
		if string(data) != "custom" {
			t.Error("existing file was modified")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte("custom"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		if err := cmd.Flags().Set("output", path); err != nil {
			t.Fatal(err)
		}
		if err := cmd.Flags().Set("force", "true"); err != nil {
			t.Fatal(err)
		}

		if err := runInitCmd(cmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "scenarios:") {
			t.Error("expected template content")
		}
	})
}
