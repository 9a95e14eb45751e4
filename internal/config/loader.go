package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".queuelab"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads scenarios and asset jobs from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Every scenario is validated after defaults are merged in.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates a configuration document.
func ParseConfig(data []byte) (*File, error) {
	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cf.Scenarios == nil {
		cf.Scenarios = make(map[string]Scenario)
	}
	if cf.Assets == nil {
		cf.Assets = &AssetsFile{}
	}

	for _, name := range cf.ScenarioNames() {
		s, _ := cf.Scenario(name)
		if err := s.Validate(name); err != nil {
			return nil, err
		}
	}

	for _, job := range cf.Assets.Jobs {
		if err := job.Validate(); err != nil {
			return nil, err
		}
	}

	return &cf, nil
}

// Resolve loads the configuration file for configPath.
// An explicitly given path must exist; otherwise a missing file falls back
// to Builtin. The returned path is empty when the built-ins are used.
func Resolve(configPath string) (*File, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return Builtin(), "", nil
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf, path, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .queuelab in the current directory
// 3. Look for .queuelab in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
