package domain

import "errors"

// ErrInvalidConfig is returned when analysis parameters are out of
// range for the input, e.g. k < 1 or k greater than the number of
// records. The pipeline fails fast instead of clamping.
var ErrInvalidConfig = errors.New("invalid analysis configuration")
