package config

import (
	"fmt"
	"sort"
	"time"
)

// Step actions understood by the pipeline.
const (
	ActionNavigate      = "navigate"
	ActionWaitSelector  = "wait_selector"
	ActionWait          = "wait"
	ActionWaitLoad      = "wait_load"
	ActionClick         = "click"
	ActionFill          = "fill"
	ActionCheck         = "check"
	ActionReload        = "reload"
	ActionScroll        = "scroll"
	ActionScreenshot    = "screenshot"
	ActionExpectVisible = "expect_visible"
	ActionExpectValue   = "expect_value"
	ActionExpectChecked = "expect_checked"
	ActionExpectCount   = "expect_count"
	ActionVisible       = "visible"
	ActionCount         = "count"
	ActionBoundingBox   = "bounding_box"
	ActionEval          = "eval"
	ActionSnapshot      = "snapshot"
)

// Error handling modes for a scenario.
const (
	// OnErrorFail stops the scenario at the first failing step. This is the default.
	OnErrorFail = "fail"

	// OnErrorScreenshot stops the scenario at the first failing step and
	// captures a full-page diagnostic screenshot to ErrorScreenshot. A step
	// that timed out is caught: the run ends there and still passes. Any
	// other error fails the run.
	OnErrorScreenshot = "screenshot"

	// OnErrorContinue records failures and keeps executing later steps.
	OnErrorContinue = "continue"
)

// Wait states for wait_selector.
const (
	StateVisible  = "visible"
	StateAttached = "attached"
	StateHidden   = "hidden"
)

// Load states for navigate and wait_load.
const (
	UntilLoad        = "load"
	UntilNetworkIdle = "networkidle"
)

// DefaultErrorScreenshot is where the diagnostic screenshot goes when a
// scenario uses OnErrorScreenshot without naming a path.
const DefaultErrorScreenshot = "error.png"

// Viewport is the emulated window size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Scenario is one visual verification procedure: a page, a device profile
// and a linear list of steps.
type Scenario struct {
	// Description is a one-line summary shown by `verify --list`.
	Description string `yaml:"description,omitempty"`

	// URL is the page to open. A navigate step is synthesized from it when
	// the steps do not start with one.
	URL string `yaml:"url,omitempty"`

	// Viewport overrides the default viewport.
	Viewport *Viewport `yaml:"viewport,omitempty"`

	// UserAgent overrides the browser user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Mobile enables touch and mobile layout emulation.
	Mobile bool `yaml:"mobile,omitempty"`

	// Timeout bounds each navigation and wait of the scenario.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// OnError is one of OnErrorFail, OnErrorScreenshot, OnErrorContinue.
	OnError string `yaml:"onError,omitempty"`

	// ErrorScreenshot is the diagnostic screenshot path for OnErrorScreenshot.
	ErrorScreenshot string `yaml:"errorScreenshot,omitempty"`

	// DevServerLog is a log file printed when navigation fails, to show why
	// the dev server is not answering.
	DevServerLog string `yaml:"devServerLog,omitempty"`

	// Steps are executed in order.
	Steps []StepSpec `yaml:"steps,omitempty"`
}

// StepSpec is the configuration form of a pipeline step. Which fields apply
// depends on Action.
type StepSpec struct {
	// Action selects the step type (see the Action constants).
	Action string `yaml:"action"`

	// Name labels observations recorded by count, bounding_box and eval.
	Name string `yaml:"name,omitempty"`

	// Selector is a CSS selector.
	Selector string `yaml:"selector,omitempty"`

	// HasText narrows Selector to elements whose text contains this string.
	HasText string `yaml:"hasText,omitempty"`

	// Label locates a form control by its associated label text.
	Label string `yaml:"label,omitempty"`

	// Text locates the first element whose own text equals this string.
	Text string `yaml:"text,omitempty"`

	// Nth picks the n-th (0-based) match.
	Nth int `yaml:"nth,omitempty"`

	// URL is the navigation target for navigate steps.
	URL string `yaml:"url,omitempty"`

	// Value is the text typed by fill or expected by expect_value.
	Value string `yaml:"value,omitempty"`

	// State is the wait_selector condition (visible, attached, hidden).
	State string `yaml:"state,omitempty"`

	// Until is the load condition (load, networkidle).
	Until string `yaml:"until,omitempty"`

	// Duration is the sleep length of wait steps.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Timeout overrides the scenario timeout for this step.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Path is the output file of screenshot steps.
	Path string `yaml:"path,omitempty"`

	// FullPage captures the whole scrollable page instead of the viewport.
	FullPage bool `yaml:"fullPage,omitempty"`

	// Force clicks without waiting for the element to become interactable.
	Force bool `yaml:"force,omitempty"`

	// Script is the JavaScript function body evaluated by eval steps.
	Script string `yaml:"script,omitempty"`

	// Count is the expected number of matches for expect_count.
	Count *int `yaml:"count,omitempty"`

	// Limit caps how many matches bounding_box reports.
	Limit int `yaml:"limit,omitempty"`

	// Classes lists class names whose elements snapshot steps count.
	Classes []string `yaml:"classes,omitempty"`

	// Optional records a missing element as skipped instead of failing.
	Optional bool `yaml:"optional,omitempty"`

	// Catch keeps a failure of this step from stopping the scenario; the
	// error is logged and recorded on the step only.
	Catch bool `yaml:"catch,omitempty"`

	// Stop, together with Catch, ends the scenario when this step fails.
	// The remaining steps are skipped and the run still passes.
	Stop bool `yaml:"stop,omitempty"`
}

// HasLocator reports whether the step names an element.
func (s StepSpec) HasLocator() bool {
	return s.Selector != "" || s.Label != "" || s.Text != ""
}

// File represents the structure of the .queuelab configuration file.
type File struct {
	// Defaults are applied to every scenario unless overridden.
	Defaults Scenario `yaml:"defaults,omitempty"`

	// Scenarios maps scenario names to their definitions.
	Scenarios map[string]Scenario `yaml:"scenarios,omitempty"`

	// Assets configures the asset preprocessing command.
	Assets *AssetsFile `yaml:"assets,omitempty"`
}

// ScenarioNames returns the scenario names in sorted order.
func (f *File) ScenarioNames() []string {
	names := make([]string, 0, len(f.Scenarios))
	for name := range f.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario returns the named scenario merged with the file defaults.
func (f *File) Scenario(name string) (Scenario, bool) {
	s, ok := f.Scenarios[name]
	if !ok {
		return Scenario{}, false
	}
	return mergeScenario(f.Defaults, s), true
}

// mergeScenario overrides defaults with the non-zero fields of s.
// Steps are never inherited.
func mergeScenario(defaults, s Scenario) Scenario {
	result := defaults
	result.Steps = s.Steps
	result.Description = s.Description

	if s.URL != "" {
		result.URL = s.URL
	}
	if s.Viewport != nil {
		vp := *s.Viewport
		result.Viewport = &vp
	}
	if s.UserAgent != "" {
		result.UserAgent = s.UserAgent
	}
	if s.Mobile {
		result.Mobile = true
	}
	if s.Timeout > 0 {
		result.Timeout = s.Timeout
	}
	if s.OnError != "" {
		result.OnError = s.OnError
	}
	if s.ErrorScreenshot != "" {
		result.ErrorScreenshot = s.ErrorScreenshot
	}
	if s.DevServerLog != "" {
		result.DevServerLog = s.DevServerLog
	}

	return result
}

// Validate checks the scenario and its steps. Step problems are reported as
// *StepError wrapping one of the sentinel errors.
func (s Scenario) Validate(name string) error {
	if s.URL == "" && (len(s.Steps) == 0 || s.Steps[0].Action != ActionNavigate || s.Steps[0].URL == "") {
		return fmt.Errorf("scenario %s: %w", name, ErrMissingURL)
	}

	switch s.OnError {
	case "", OnErrorFail, OnErrorScreenshot, OnErrorContinue:
	default:
		return fmt.Errorf("scenario %s: invalid onError %q", name, s.OnError)
	}

	if s.Timeout < 0 {
		return fmt.Errorf("scenario %s: %w", name, ErrInvalidTimeout)
	}

	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return &StepError{Scenario: name, Index: i, Action: step.Action, Err: err}
		}
	}

	return nil
}

// validate checks the fields required by the step's action.
func (s StepSpec) validate() error {
	if s.Stop && !s.Catch {
		return fmt.Errorf("stop needs catch")
	}

	switch s.Action {
	case ActionNavigate, ActionReload, ActionSnapshot:
		return nil
	case ActionWaitLoad:
		return validateUntil(s.Until)
	case ActionWait:
		if s.Duration <= 0 {
			return fmt.Errorf("wait needs a positive duration")
		}
		return nil
	case ActionScreenshot:
		if s.Path == "" {
			return fmt.Errorf("screenshot needs a path")
		}
		return nil
	case ActionEval:
		if s.Script == "" {
			return fmt.Errorf("eval needs a script")
		}
		return nil
	case ActionWaitSelector:
		switch s.State {
		case "", StateVisible, StateAttached, StateHidden:
		default:
			return fmt.Errorf("unknown wait state %q", s.State)
		}
	case ActionExpectCount:
		if s.Count == nil {
			return fmt.Errorf("expect_count needs a count")
		}
	case ActionClick, ActionFill, ActionCheck, ActionScroll,
		ActionExpectVisible, ActionExpectValue, ActionExpectChecked,
		ActionCount, ActionBoundingBox, ActionVisible:
	default:
		return fmt.Errorf("%w %q", ErrUnknownAction, s.Action)
	}

	if !s.HasLocator() {
		return ErrMissingLocator
	}
	return nil
}

// validateUntil checks a load condition name.
func validateUntil(until string) error {
	switch until {
	case "", UntilLoad, UntilNetworkIdle:
		return nil
	default:
		return fmt.Errorf("unknown load state %q", until)
	}
}

// EffectiveTimeout returns the step timeout, falling back to the scenario
// timeout and then to fallback.
func EffectiveTimeout(step StepSpec, scenario Scenario, fallback time.Duration) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	if scenario.Timeout > 0 {
		return scenario.Timeout
	}
	return fallback
}
