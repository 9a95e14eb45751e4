package config

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration validation errors returned by Config.Validate and
// Scenario.Validate. Callers match them with errors.Is.
var (
	// ErrNoScenario is returned when the configuration defines no scenarios.
	ErrNoScenario = errors.New("no scenarios defined: add scenarios to the configuration file or remove it to use the built-ins")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDebounce is returned when watch mode is enabled with a
	// non-positive debounce.
	ErrInvalidDebounce = errors.New("invalid debounce: must be positive when watching")

	// ErrMissingURL is returned when a scenario has no URL and no navigate step.
	ErrMissingURL = errors.New("scenario has no url")

	// ErrUnknownAction is returned for a step whose action is not supported.
	ErrUnknownAction = errors.New("unknown step action")

	// ErrMissingLocator is returned when an element step names no element.
	ErrMissingLocator = errors.New("step needs a selector, label or text")

	// ErrInvalidAssetJob is returned when an asset job is incomplete.
	ErrInvalidAssetJob = errors.New("invalid asset job")
)

// UnknownScenarioError is returned when a requested scenario is not defined.
type UnknownScenarioError struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

// StepError wraps a validation error with the position of the offending step.
type StepError struct {
	Scenario string
	Index    int
	Action   string
	Err      error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %s: step %d (%s): %v", e.Scenario, e.Index+1, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}
