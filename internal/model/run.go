package model

import (
	"time"

	"github.com/google/uuid"
)

// RunReport is the result of executing one scenario against the dev server.
// Steps append their results, artifacts and observations as they run.
type RunReport struct {
	// ID uniquely identifies the run across history.
	ID string `json:"id"`

	// Scenario is the scenario name from the configuration.
	Scenario string `json:"scenario"`

	// URL is the page the scenario navigated to.
	URL string `json:"url"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Status is the overall outcome, computed by Finalize.
	Status Status `json:"status"`

	// Steps holds one entry per executed (or skipped) step in order.
	Steps []StepResult `json:"steps,omitempty"`

	// Artifacts lists every file written by the run.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Observations are values read from the page (element counts, bounding
	// boxes, evaluated expressions) in the order they were recorded.
	Observations []Observation `json:"observations,omitempty"`

	// TimedOut is true when a wait or navigation hit its deadline.
	TimedOut bool `json:"timed_out"`

	// Error is the error that stopped the run. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// StepResult records the outcome of a single pipeline step.
type StepResult struct {
	// Name is the step name, e.g. "click".
	Name string `json:"name"`

	// Target describes what the step acted on (selector, URL, path).
	Target string `json:"target,omitempty"`

	// Status is the step outcome.
	Status Status `json:"status"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`

	// Caught marks a failure that was logged but did not fail the run.
	Caught bool `json:"caught,omitempty"`
}

// Observation is a named value read from the page.
type Observation struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewRunReport creates a pending report for a scenario.
func NewRunReport(scenario, url string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		URL:       url,
		StartedAt: time.Now(),
		Status:    StatusPending,
	}
}

// AddStep appends a step result.
func (r *RunReport) AddStep(result StepResult) {
	r.Steps = append(r.Steps, result)
}

// AddArtifact appends an artifact. A later artifact with the same path
// replaces the earlier record, matching the file on disk being overwritten.
func (r *RunReport) AddArtifact(a Artifact) {
	for i := range r.Artifacts {
		if r.Artifacts[i].Path == a.Path {
			r.Artifacts[i] = a
			return
		}
	}
	r.Artifacts = append(r.Artifacts, a)
}

// Observe records a named value.
func (r *RunReport) Observe(key, value string) {
	r.Observations = append(r.Observations, Observation{Key: key, Value: value})
}

// Observation returns the last value recorded under key.
func (r *RunReport) Observation(key string) (string, bool) {
	for i := len(r.Observations) - 1; i >= 0; i-- {
		if r.Observations[i].Key == key {
			return r.Observations[i].Value, true
		}
	}
	return "", false
}

// Fail records err as the run error.
func (r *RunReport) Fail(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Finalize stamps FinishedAt and derives Status from the recorded state.
func (r *RunReport) Finalize() {
	r.FinishedAt = time.Now()

	switch {
	case r.TimedOut:
		r.Status = StatusTimedOut
	case r.ErrorMessage != "":
		r.Status = StatusFailed
	default:
		r.Status = StatusPassed
		for _, s := range r.Steps {
			if !s.Caught && (s.Status == StatusFailed || s.Status == StatusTimedOut) {
				r.Status = StatusFailed
				break
			}
		}
	}
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Screenshots returns the screenshot artifacts, including error screenshots.
func (r *RunReport) Screenshots() []Artifact {
	shots := make([]Artifact, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		if a.Kind == ArtifactScreenshot || a.Kind == ArtifactErrorScreenshot {
			shots = append(shots, a)
		}
	}
	return shots
}
