package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default NavigationTimeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.NavigationTimeout != 30*time.Second {
			t.Errorf("expected NavigationTimeout to be 30s, got %v", cfg.NavigationTimeout)
		}
	})

	t.Run("default Concurrency is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 1 {
			t.Errorf("expected Concurrency to be 1, got %d", cfg.Concurrency)
		}
	})

	t.Run("headless and history are on", func(t *testing.T) {
		t.Parallel()
		if !cfg.Headless {
			t.Error("expected Headless to be true")
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to be set")
		}
	})

	t.Run("default WatchDebounce is 750ms", func(t *testing.T) {
		t.Parallel()
		if cfg.WatchDebounce != 750*time.Millisecond {
			t.Errorf("expected WatchDebounce to be 750ms, got %v", cfg.WatchDebounce)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.File = Builtin()
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("known scenario names are valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Scenarios = []string{"hero-click", "careers-form"}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("nil file returns ErrNoScenario", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.File = nil

		if err := cfg.Validate(); !errors.Is(err, ErrNoScenario) {
			t.Errorf("expected ErrNoScenario, got %v", err)
		}
	})

	t.Run("empty scenarios returns ErrNoScenario", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.File = &File{Scenarios: map[string]Scenario{}}

		if err := cfg.Validate(); !errors.Is(err, ErrNoScenario) {
			t.Errorf("expected ErrNoScenario, got %v", err)
		}
	})

	t.Run("unknown scenario returns UnknownScenarioError", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Scenarios = []string{"does-not-exist"}

		err := cfg.Validate()
		var unknown *UnknownScenarioError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownScenarioError, got %v", err)
		}
		if unknown.Name != "does-not-exist" {
			t.Errorf("expected name does-not-exist, got %q", unknown.Name)
		}
		if !strings.Contains(err.Error(), "hero-click") {
			t.Errorf("expected available scenarios in message, got %q", err.Error())
		}
	})

	t.Run("zero timeout returns ErrInvalidTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.NavigationTimeout = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})

	t.Run("zero concurrency returns ErrInvalidConcurrency", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Concurrency = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConcurrency) {
			t.Errorf("expected ErrInvalidConcurrency, got %v", err)
		}
	})

	t.Run("json and markdown both enabled returns ErrConflictingReportFormats", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true
		cfg.MarkdownReport = true

		if err := cfg.Validate(); !errors.Is(err, ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("watching with zero debounce returns ErrInvalidDebounce", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.WatchPaths = []string{"src"}
		cfg.WatchDebounce = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidDebounce) {
			t.Errorf("expected ErrInvalidDebounce, got %v", err)
		}
	})

	t.Run("zero debounce without watching is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.WatchDebounce = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestSelectedScenarios tests scenario selection.
func TestSelectedScenarios(t *testing.T) {
	t.Parallel()

	t.Run("defaults to every scenario sorted", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.File = &File{Scenarios: map[string]Scenario{"b": {}, "a": {}}}

		got := cfg.SelectedScenarios()
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("expected [a b], got %v", got)
		}
	})

	t.Run("keeps explicit order", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.File = &File{Scenarios: map[string]Scenario{"b": {}, "a": {}}}
		cfg.Scenarios = []string{"b", "a"}

		got := cfg.SelectedScenarios()
		if got[0] != "b" {
			t.Errorf("expected explicit order, got %v", got)
		}
	})
}

// TestFileScenario tests default merging.
func TestFileScenario(t *testing.T) {
	t.Parallel()

	t.Run("returns false for unknown scenario", func(t *testing.T) {
		t.Parallel()
		file := &File{}
		if _, ok := file.Scenario("missing"); ok {
			t.Error("expected unknown scenario to be absent")
		}
	})

	t.Run("inherits defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: Scenario{
				URL:       "http://localhost:3000",
				Viewport:  &Viewport{Width: 800, Height: 600},
				Timeout:   10 * time.Second,
				UserAgent: "default-agent",
				Steps:     []StepSpec{{Action: ActionReload}},
			},
			Scenarios: map[string]Scenario{
				"s": {Steps: []StepSpec{{Action: ActionScreenshot, Path: "a.png"}}},
			},
		}

		s, ok := file.Scenario("s")
		if !ok {
			t.Fatal("expected scenario s")
		}
		if s.URL != "http://localhost:3000" {
			t.Errorf("expected default URL, got %q", s.URL)
		}
		if s.Viewport == nil || s.Viewport.Width != 800 {
			t.Errorf("expected default viewport, got %+v", s.Viewport)
		}
		if s.Timeout != 10*time.Second {
			t.Errorf("expected default timeout, got %v", s.Timeout)
		}
		if len(s.Steps) != 1 || s.Steps[0].Action != ActionScreenshot {
			t.Errorf("expected steps not to be inherited, got %+v", s.Steps)
		}
	})

	t.Run("scenario fields override defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: Scenario{URL: "http://localhost:3000", OnError: OnErrorFail},
			Scenarios: map[string]Scenario{
				"s": {URL: "http://localhost:3001", OnError: OnErrorScreenshot, Mobile: true},
			},
		}

		s, _ := file.Scenario("s")
		if s.URL != "http://localhost:3001" {
			t.Errorf("expected scenario URL, got %q", s.URL)
		}
		if s.OnError != OnErrorScreenshot {
			t.Errorf("expected scenario onError, got %q", s.OnError)
		}
		if !s.Mobile {
			t.Error("expected Mobile to be set")
		}
	})

	t.Run("merged viewport is a copy", func(t *testing.T) {
		t.Parallel()

		vp := &Viewport{Width: 375, Height: 667}
		file := &File{Scenarios: map[string]Scenario{"s": {URL: "u", Viewport: vp}}}

		s, _ := file.Scenario("s")
		s.Viewport.Width = 1
		if vp.Width != 375 {
			t.Error("expected merge not to alias the configured viewport")
		}
	})
}

// TestScenarioValidate tests scenario and step validation.
func TestScenarioValidate(t *testing.T) {
	t.Parallel()

	two := 2

	testCases := []struct {
		name     string
		scenario Scenario
		wantErr  error
		wantStep bool
	}{
		{
			name:     "url and screenshot is valid",
			scenario: Scenario{URL: "http://localhost:3000", Steps: []StepSpec{{Action: ActionScreenshot, Path: "a.png"}}},
		},
		{
			name:     "leading navigate step supplies the url",
			scenario: Scenario{Steps: []StepSpec{{Action: ActionNavigate, URL: "http://localhost:3002"}}},
		},
		{
			name:     "missing url",
			scenario: Scenario{Steps: []StepSpec{{Action: ActionReload}}},
			wantErr:  ErrMissingURL,
		},
		{
			name:     "unknown action",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: "hover", Selector: "h1"}}},
			wantErr:  ErrUnknownAction,
			wantStep: true,
		},
		{
			name:     "click without locator",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionClick}}},
			wantErr:  ErrMissingLocator,
			wantStep: true,
		},
		{
			name:     "fill by label is valid",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionFill, Label: "Email", Value: "x"}}},
		},
		{
			name:     "expect_count with count is valid",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionExpectCount, Selector: "li", Count: &two}}},
		},
		{
			name:     "expect_count without count",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionExpectCount, Selector: "li"}}},
			wantStep: true,
		},
		{
			name:     "screenshot without path",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionScreenshot}}},
			wantStep: true,
		},
		{
			name:     "wait without duration",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionWait}}},
			wantStep: true,
		},
		{
			name:     "bad wait state",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionWaitSelector, Selector: "h1", State: "gone"}}},
			wantStep: true,
		},
		{
			name:     "caught navigation that stops is valid",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionNavigate, Catch: true, Stop: true}}},
		},
		{
			name:     "stop without catch",
			scenario: Scenario{URL: "u", Steps: []StepSpec{{Action: ActionNavigate, Stop: true}}},
			wantStep: true,
		},
		{
			name:     "bad onError",
			scenario: Scenario{URL: "u", OnError: "explode"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.scenario.Validate("test")

			if tc.name == "bad onError" {
				if err == nil {
					t.Error("expected error for bad onError")
				}
				return
			}

			if tc.wantErr == nil && !tc.wantStep {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}

			var stepErr *StepError
			if tc.wantStep != errors.As(err, &stepErr) {
				t.Errorf("expected StepError=%v, got %v", tc.wantStep, err)
			}
			if stepErr != nil && stepErr.Index != 0 {
				t.Errorf("expected step index 0, got %d", stepErr.Index)
			}
		})
	}
}

// TestEffectiveTimeout tests timeout precedence.
func TestEffectiveTimeout(t *testing.T) {
	t.Parallel()

	scenario := Scenario{Timeout: 5 * time.Second}

	if got := EffectiveTimeout(StepSpec{Timeout: time.Second}, scenario, time.Minute); got != time.Second {
		t.Errorf("expected step timeout, got %v", got)
	}
	if got := EffectiveTimeout(StepSpec{}, scenario, time.Minute); got != 5*time.Second {
		t.Errorf("expected scenario timeout, got %v", got)
	}
	if got := EffectiveTimeout(StepSpec{}, Scenario{}, time.Minute); got != time.Minute {
		t.Errorf("expected fallback timeout, got %v", got)
	}
}

// TestBuiltin checks that every built-in scenario is valid.
func TestBuiltin(t *testing.T) {
	t.Parallel()

	file := Builtin()

	expected := []string{
		"blog-animations", "blog-final", "careers-form", "hero-click", "homepage-idle",
		"logo-ticker-mobile", "mobile-ticker", "purple-planet", "qcx-build", "sphere-animation",
	}
	names := file.ScenarioNames()
	if len(names) != len(expected) {
		t.Fatalf("expected %d scenarios, got %v", len(expected), names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("expected scenario %q at %d, got %q", name, i, names[i])
		}
	}

	for _, name := range names {
		s, _ := file.Scenario(name)
		if err := s.Validate(name); err != nil {
			t.Errorf("built-in scenario %s is invalid: %v", name, err)
		}
	}

	t.Run("sphere-animation takes an error screenshot", func(t *testing.T) {
		t.Parallel()
		s, _ := file.Scenario("sphere-animation")
		if s.OnError != OnErrorScreenshot || s.ErrorScreenshot != "jules-scratch/verification/error.png" {
			t.Errorf("unexpected error handling: %q %q", s.OnError, s.ErrorScreenshot)
		}
	})

	t.Run("hero-click waits for a visible heading", func(t *testing.T) {
		t.Parallel()
		s, _ := file.Scenario("hero-click")
		first := s.Steps[0]
		if first.Action != ActionWaitSelector || first.Selector != "h1" || first.State != StateVisible {
			t.Errorf("unexpected first step %+v", first)
		}
	})

	t.Run("logo-ticker-mobile stops quietly when the server is down", func(t *testing.T) {
		t.Parallel()
		s, _ := file.Scenario("logo-ticker-mobile")
		first := s.Steps[0]
		if first.Action != ActionNavigate || !first.Catch || !first.Stop {
			t.Errorf("unexpected first step %+v", first)
		}
	})

	t.Run("logo-ticker-mobile uses the small phone profile", func(t *testing.T) {
		t.Parallel()
		s, _ := file.Scenario("logo-ticker-mobile")
		if s.Viewport == nil || s.Viewport.Width != 375 || s.Viewport.Height != 667 {
			t.Errorf("unexpected viewport %+v", s.Viewport)
		}
		if !strings.Contains(s.UserAgent, "iPhone OS 11_0") {
			t.Errorf("unexpected user agent %q", s.UserAgent)
		}
	})
}

// TestAssetJobs tests asset job defaults and validation.
func TestAssetJobs(t *testing.T) {
	t.Parallel()

	t.Run("defaults match the three conversions", func(t *testing.T) {
		t.Parallel()

		jobs := DefaultAssetJobs()
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}
		for _, job := range jobs {
			if err := job.Validate(); err != nil {
				t.Errorf("default job %s invalid: %v", job.Name, err)
			}
		}
		if jobs[1].Format != FormatICO || jobs[1].Width != 32 {
			t.Errorf("unexpected favicon job %+v", jobs[1])
		}
		if jobs[2].EffectiveQuality() != 85 || jobs[2].EffectiveMode() != ModeRGB {
			t.Errorf("unexpected og job %+v", jobs[2])
		}
	})

	t.Run("nil assets file falls back to defaults", func(t *testing.T) {
		t.Parallel()
		var a *AssetsFile
		if len(a.JobsOrDefault()) != 3 {
			t.Error("expected default jobs")
		}
	})

	t.Run("rejects invalid jobs", func(t *testing.T) {
		t.Parallel()

		bad := []AssetJob{
			{Name: "x", Source: "a.png", Dest: "b.png", Width: 0, Height: 10, Format: FormatPNG},
			{Name: "x", Source: "a.png", Dest: "b.gif", Width: 10, Height: 10, Format: "gif"},
			{Name: "x", Source: "a.png", Dest: "b.ico", Width: 512, Height: 512, Format: FormatICO},
			{Name: "x", Source: "a.png", Dest: "b.jpg", Width: 10, Height: 10, Format: FormatJPEG, Quality: 101},
			{Source: "a.png", Dest: "b.png", Width: 10, Height: 10, Format: FormatPNG},
		}
		for _, job := range bad {
			if err := job.Validate(); !errors.Is(err, ErrInvalidAssetJob) {
				t.Errorf("expected ErrInvalidAssetJob for %+v, got %v", job, err)
			}
		}
	})

	t.Run("jpeg forces rgb mode", func(t *testing.T) {
		t.Parallel()
		job := AssetJob{Format: FormatJPEG, Mode: ModeRGBA}
		if job.EffectiveMode() != ModeRGB {
			t.Errorf("expected rgb, got %q", job.EffectiveMode())
		}
	})
}

// TestLoadConfigFile tests loading configuration from YAML files.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  timeout: 10s
  viewport:
    width: 390
    height: 844
scenarios:
  home:
    url: http://localhost:3000
    steps:
      - action: wait_selector
        selector: h1
      - action: click
        selector: "[data-testid='sphere']"
        force: true
      - action: screenshot
        path: out/home.png
assets:
  keepSources: true
  jobs:
    - name: icon
      source: logo.jpg
      dest: icon.png
      width: 64
      height: 64
      format: png
`
		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s, ok := cf.Scenario("home")
		if !ok {
			t.Fatal("expected scenario home")
		}
		if s.Timeout != 10*time.Second {
			t.Errorf("expected 10s timeout, got %v", s.Timeout)
		}
		if s.Viewport == nil || s.Viewport.Width != 390 {
			t.Errorf("expected default viewport, got %+v", s.Viewport)
		}
		if len(s.Steps) != 3 || !s.Steps[1].Force {
			t.Errorf("unexpected steps %+v", s.Steps)
		}
		if !cf.Assets.KeepSources || len(cf.Assets.Jobs) != 1 {
			t.Errorf("unexpected assets %+v", cf.Assets)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte("scenarios: [unclosed"), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns StepError for invalid step", func(t *testing.T) {
		t.Parallel()

		content := `
scenarios:
  broken:
    url: http://localhost:3000
    steps:
      - action: click
`
		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfigFile(path)
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			t.Fatalf("expected StepError, got %v", err)
		}
		if stepErr.Scenario != "broken" {
			t.Errorf("expected scenario broken, got %q", stepErr.Scenario)
		}
	})

	t.Run("initializes nil maps", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".queuelab")
		if err := os.WriteFile(path, []byte("defaults: {}\n"), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Scenarios == nil || cf.Assets == nil {
			t.Error("expected scenarios and assets to be initialized")
		}
	})
}

// TestResolve tests config resolution with explicit paths.
func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("explicit missing path is an error", func(t *testing.T) {
		t.Parallel()

		_, _, err := Resolve(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("explicit path is loaded", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		content := "scenarios:\n  a:\n    url: http://localhost:3000\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, got, err := Resolve(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != path {
			t.Errorf("expected path %q, got %q", path, got)
		}
		if _, ok := cf.Scenarios["a"]; !ok {
			t.Error("expected scenario a")
		}
	})
}

// TestFindConfigFile tests configuration file discovery.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/non/existent/.queuelab"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestXDGDirs tests XDG directory helpers.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %s, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %s, got %q", AppName, XDGConfigDir())
	}
}
