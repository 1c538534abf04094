// Package pipeline drives the turn watcher: it pulls frames from a
// capture source, feeds motion samples to a turn session, and analyses the
// shot once the screen settles.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Fallback policies applied when a turn never settles.
const (
	// FallbackFinish analyses the last frame as if the turn had finished.
	FallbackFinish = "finish"
	// FallbackAbort drops the turn with ErrTurnAborted.
	FallbackAbort = "abort"
)

// Reasons a turn fell back.
const (
	ReasonBudget      = "frame budget exhausted"
	ReasonSourceEnded = "source ended"
)

var (
	// ErrTurnAborted is returned when a turn ran out of frames under the
	// abort policy.
	ErrTurnAborted = errors.New("turn aborted")

	// ErrNoFrames is returned when the source ends before a pre-shot frame.
	ErrNoFrames = errors.New("no frames")

	// ErrNoMotion is returned when the source ends while the screen is
	// still, before any turn started.
	ErrNoMotion = errors.New("no motion before source ended")
)

// Config holds driver settings.
type Config struct {
	// MaxFrames is the frame budget for one turn, pre-shot frame included.
	// 0 means unlimited.
	MaxFrames int `json:"max_frames" mapstructure:"max_frames"`

	// Fallback is "finish" or "abort".
	Fallback string `json:"fallback" mapstructure:"fallback"`
}

// DefaultConfig allows two minutes at 5 fps and analyses whatever is on
// screen when the budget runs out.
func DefaultConfig() Config {
	return Config{
		MaxFrames: 600,
		Fallback:  FallbackFinish,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("max_frames must be >= 0, got %d", c.MaxFrames))
	}
	switch c.Fallback {
	case FallbackFinish, FallbackAbort:
	default:
		errs = append(errs, fmt.Errorf("fallback must be %q or %q, got %q", FallbackFinish, FallbackAbort, c.Fallback))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: pipeline: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
