package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultNavigationTimeout bounds navigations and selector waits when a
	// scenario does not set its own timeout. Dev servers compiling a page on
	// first request can take tens of seconds.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultConcurrency runs scenarios one after another.
	DefaultConcurrency = 1

	// DefaultViewportWidth and DefaultViewportHeight match the viewport the
	// headless browser opens with when no device emulation is requested.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720

	// DefaultWatchDebounce coalesces bursts of file events (editor saves,
	// dev server rebuilds) into a single re-run.
	DefaultWatchDebounce = 750 * time.Millisecond

	// DefaultJPEGQuality is the quality used for social preview images.
	DefaultJPEGQuality = 85

	// AppName is the application name used for XDG directory paths.
	AppName = "queuelab"
)

// Config holds the options of a single CLI invocation.
// It is populated from flags and passed down explicitly.
type Config struct {
	// ConfigFilePath is the path to the configuration file.
	// If empty, .queuelab is searched in the current and home directories.
	ConfigFilePath string

	// File is the loaded configuration file, or the built-in one.
	File *File

	// Scenarios are the scenario names to run. Empty means every scenario.
	Scenarios []string

	// URLOverride replaces the origin (scheme, host, port) of every scenario
	// URL while keeping its path. Useful when the dev server picked another
	// port than the one the scenario was written for.
	URLOverride string

	// OutputDir is prepended to relative screenshot paths.
	OutputDir string

	// Headless runs the browser without a window.
	Headless bool

	// BrowserBin is the Chromium binary to launch. Empty lets the launcher
	// find or download one.
	BrowserBin string

	// ControlURL attaches to an already running browser's DevTools
	// endpoint instead of launching one.
	ControlURL string

	// NavigationTimeout is the default timeout for navigations and waits.
	NavigationTimeout time.Duration

	// Concurrency is the number of scenarios run at the same time.
	// Each concurrent scenario gets its own page.
	Concurrency int

	// JSONReport enables JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file for the report. Empty means stdout.
	ReportFile string

	// SaveToDB stores run reports in the history database.
	SaveToDB bool

	// DBDir is the directory holding the history database.
	DBDir string

	// WatchPaths are directories watched for changes; each change re-runs
	// the selected scenarios. Empty disables watch mode.
	WatchPaths []string

	// WatchDebounce is the quiet period after the last file event before a
	// re-run starts.
	WatchDebounce time.Duration

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Headless:          true,
		NavigationTimeout: DefaultNavigationTimeout,
		Concurrency:       DefaultConcurrency,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		WatchDebounce:     DefaultWatchDebounce,
	}
}

// XDGDataDir returns the XDG data directory for queuelab.
// On Linux: ~/.local/share/queuelab
// On macOS: ~/Library/Application Support/queuelab
// On Windows: %LOCALAPPDATA%\queuelab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for queuelab.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.File == nil || len(c.File.Scenarios) == 0 {
		return ErrNoScenario
	}

	for _, name := range c.Scenarios {
		if _, ok := c.File.Scenarios[name]; !ok {
			return &UnknownScenarioError{Name: name, Known: c.File.ScenarioNames()}
		}
	}

	if c.NavigationTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if len(c.WatchPaths) > 0 && c.WatchDebounce <= 0 {
		return ErrInvalidDebounce
	}

	return nil
}

// SelectedScenarios returns the scenario names to run, in a stable order.
func (c *Config) SelectedScenarios() []string {
	if len(c.Scenarios) > 0 {
		return c.Scenarios
	}
	if c.File == nil {
		return nil
	}
	return c.File.ScenarioNames()
}
