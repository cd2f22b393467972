package tracto

import "errors"

var (
	// ErrOutOfBounds is returned by the interpolator when a query maps
	// outside the volume grid. The stepper converts it into the
	// CauseOutOfBounds termination; it never aborts a run.
	ErrOutOfBounds = errors.New("position outside volume grid")

	// ErrEmptySeeds is returned by Run when no seed points were supplied.
	ErrEmptySeeds = errors.New("seed set is empty")

	// ErrInputLengthMismatch is returned at run start when the predictor's
	// declared input length does not match the context window shape.
	ErrInputLengthMismatch = errors.New("predictor input length does not match context window")
)
