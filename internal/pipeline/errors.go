package pipeline

import "errors"

var (
	// ErrSkipped is returned by optional steps whose element is not on the
	// page. The pipeline records the step as skipped and carries on.
	ErrSkipped = errors.New("element not found, step skipped")

	// ErrExpectationFailed is returned when an expect_* step did not observe
	// the expected state before its timeout.
	ErrExpectationFailed = errors.New("expectation failed")

	// ErrTextNotFound is returned by a snapshot step when the rendered text
	// does not contain the expected string.
	ErrTextNotFound = errors.New("text not found in page")
)
