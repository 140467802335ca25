package stepcompress

import "errors"

var (
	// ErrInvalidSequence is returned by Append when a step clock does not
	// strictly increase on the previous not-yet-committed one, and by
	// CheckLine when a replayed move leaves a tolerance window or its count
	// does not match the number of points.
	ErrInvalidSequence = errors.New("stepcompress: invalid sequence")

	// ErrIntervalOverflow is returned by CheckLine when a reproduced StepMove
	// would require a wire interval of 2^31 or more ticks.
	ErrIntervalOverflow = errors.New("stepcompress: interval overflow")
)
