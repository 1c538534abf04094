// Package turn decides when a turn is over by watching motion samples
// settle. The detector is weapon-agnostic; callers pick a Config preset
// (or their own thresholds) per weapon class.
package turn

import "fmt"

// State is the phase of a turn-detection session.
type State int

const (
	// Active means motion is expected or occurring.
	Active State = iota
	// Settling means motion dropped below threshold and quiet samples are
	// being counted.
	Settling
	// Finished is terminal for the session.
	Finished
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Settling:
		return "SETTLING"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ACTIVE":
		*s = Active
	case "SETTLING":
		*s = Settling
	case "FINISHED":
		*s = Finished
	default:
		return fmt.Errorf("unknown turn state %q", text)
	}
	return nil
}
