package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a navigation or wait exceeded its deadline.
	// It is always accompanied by context.DeadlineExceeded in the chain.
	ErrTimeout = errors.New("timed out")

	// ErrNotStarted is returned when a page is requested before Start.
	ErrNotStarted = errors.New("browser not started")

	// ErrNotChecked is returned when a check action did not leave the
	// control checked.
	ErrNotChecked = errors.New("element is not checked after clicking")
)

// wrapError annotates err with the operation and its target.
func wrapError(op string, target fmt.Stringer, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w: %w", op, target, ErrTimeout, err)
	}
	return fmt.Errorf("%s %s: %w", op, target, err)
}

// target is a plain string that satisfies fmt.Stringer.
type target string

func (t target) String() string { return string(t) }
