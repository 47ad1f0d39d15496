package colmean

import "github.com/LynnColeArt/colmean/device"

var (
	// ErrSampleColumnMajor is returned when sample (N-1) normalization is
	// requested for column-major input. The column-major kernel folds the
	// division by N into the reduction and has no sample variant.
	ErrSampleColumnMajor = device.NewNotImplementedError("Mean", "sample normalization is not supported for column-major input")

	// ErrSampleTooFewRows is returned for sample normalization with N < 2.
	ErrSampleTooFewRows = device.NewInvalidArgError("Mean", "sample normalization needs at least two rows")
)
