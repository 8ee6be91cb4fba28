package course

import "errors"

// ErrInvalidGPX is returned when a GPX document can't be parsed or has
// fewer than two track points.
var ErrInvalidGPX = errors.New("invalid gpx document")
