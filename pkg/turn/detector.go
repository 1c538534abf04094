package turn

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pocketbench/pkg/motion"
)

var (
	// ErrOutOfOrder is returned when a sample's timestamp does not strictly
	// increase over the previous sample of the session.
	ErrOutOfOrder = errors.New("motion sample out of order")

	// ErrInvalidSample is returned for negative or NaN magnitudes.
	ErrInvalidSample = errors.New("invalid motion sample")
)

// Session is the mutable state of one turn-detection session. The driver
// owns it and passes it to Detector.Observe; a Session must not be shared
// between goroutines. Track concurrent turns with one Session each.
type Session struct {
	ID    uuid.UUID
	State State
	Quiet int // consecutive quiet samples

	Samples       int           // samples accepted while the turn was open
	Ignored       int           // samples delivered after Finished
	LastTimestamp time.Duration // timestamp of the last accepted sample
	FinishedAt    time.Duration // timestamp of the sample that finished the turn
}

// NewSession starts a fresh session in the Active state.
func NewSession() *Session {
	return &Session{ID: uuid.New(), State: Active}
}

// Reset starts a new session in place under a new ID.
func (s *Session) Reset() {
	*s = Session{ID: uuid.New(), State: Active}
}

// Finished reports whether the session reached its terminal state.
func (s *Session) Finished() bool {
	return s.State == Finished
}

// Detector applies the stability rule. It only holds configuration and
// can serve any number of sessions.
type Detector struct {
	config Config
}

// New creates a detector after validating cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{config: cfg}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// NewSession starts a session for this detector.
func (d *Detector) NewSession() *Session {
	return NewSession()
}

// Observe advances sess by one sample and returns the resulting state.
//
// A quiet sample (magnitude below the threshold) moves Active to Settling
// and counts toward StableFrames; the StableFrames-th consecutive quiet
// sample finishes the turn. Any loud sample sends the session back to
// Active with the counter cleared. Finished sessions ignore further samples.
func (d *Detector) Observe(sess *Session, sample motion.Sample) (State, error) {
	if sess.State == Finished {
		sess.Ignored++
		return Finished, nil
	}

	if math.IsNaN(sample.Magnitude) || sample.Magnitude < 0 {
		return sess.State, fmt.Errorf("%w: magnitude %v", ErrInvalidSample, sample.Magnitude)
	}
	if sess.Samples > 0 && sample.Timestamp <= sess.LastTimestamp {
		return sess.State, fmt.Errorf("%w: %v after %v", ErrOutOfOrder, sample.Timestamp, sess.LastTimestamp)
	}
	sess.Samples++
	sess.LastTimestamp = sample.Timestamp

	if d.config.Loud(sample.Magnitude) {
		sess.State = Active
		sess.Quiet = 0
		return sess.State, nil
	}

	sess.Quiet++
	sess.State = Settling
	if sess.Quiet >= d.config.StableFrames {
		sess.State = Finished
		sess.FinishedAt = sample.Timestamp
	}
	return sess.State, nil
}
