// Package vision holds the frame and geometry types shared by the turn
// watcher, plus the blob extraction primitive used for both tank and
// impact localisation.
package vision

import "errors"

// Input contract violations. These are the only conditions the analysis
// packages surface as errors; uncertain detections are reported through
// lowered confidence instead.
var (
	// ErrDimensionMismatch is returned when two frames that must be compared
	// pixel for pixel have different sizes.
	ErrDimensionMismatch = errors.New("frame dimension mismatch")

	// ErrEmptyFrame is returned for frames with no pixels.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrInvalidConfig is wrapped by every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)
