package model

import (
	"fmt"
	"strings"
)

// Status is the outcome of a scenario run or a single step.
type Status int

const (
	// StatusPending means the run or step has not finished yet.
	StatusPending Status = iota

	// StatusPassed means every step completed and every expectation held.
	StatusPassed

	// StatusFailed means a step returned an error or an expectation did not hold.
	StatusFailed

	// StatusTimedOut means a wait or navigation exceeded its deadline.
	// A timed out run may still carry a diagnostic screenshot.
	StatusTimedOut

	// StatusSkipped means the step was not executed, for example because an
	// earlier step failed or an optional element was absent.
	StatusSkipped
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusPassed:
		return "PASSED"
	case StatusFailed:
		return "FAILED"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status as its lower-case name so stored reports
// stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText decodes a status written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	status, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseStatus converts a status name (case-insensitive) back into a Status.
func ParseStatus(name string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PENDING", "":
		return StatusPending, nil
	case "PASSED":
		return StatusPassed, nil
	case "FAILED":
		return StatusFailed, nil
	case "TIMED_OUT":
		return StatusTimedOut, nil
	case "SKIPPED":
		return StatusSkipped, nil
	default:
		return StatusPending, fmt.Errorf("unknown status %q", name)
	}
}

// OK reports whether the status counts as a successful outcome.
func (s Status) OK() bool {
	return s == StatusPassed
}
