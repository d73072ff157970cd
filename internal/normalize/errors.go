package normalize

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyForeground is returned when the binary image holds no foreground
	// pixel at all. Retrying with the same image cannot succeed.
	ErrEmptyForeground = errors.New("no foreground pixels found")

	// ErrDegenerateGeometry marks a non-positive box or intermediate size.
	// It indicates a bug rather than bad input.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid normalization parameters")
)

// GeometryError reports the stage and the offending dimensions of a
// degenerate intermediate. It unwraps to ErrDegenerateGeometry.
type GeometryError struct {
	Stage  string
	Width  int
	Height int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: %v (%dx%d)", e.Stage, ErrDegenerateGeometry, e.Width, e.Height)
}

func (e *GeometryError) Unwrap() error {
	return ErrDegenerateGeometry
}

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
