package smoother

import "errors"

var (
	// ErrInvalidArgument is returned before any computation when an argument
	// has the wrong type, shape or range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNumericalInconsistency is returned when the operator has a zero
	// diagonal entry on a row that has nonzero entries, or when the
	// minimization produces a NaN residual.
	ErrNumericalInconsistency = errors.New("numerical inconsistency")
)
