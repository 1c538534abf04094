package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
)

// EventType names a watcher event.
type EventType string

const (
	EventTurnStarted  EventType = "turn_started"
	EventStateChanged EventType = "state_changed"
	EventFallback     EventType = "fallback"
	EventOutcome      EventType = "outcome"
)

// Event is published to the agent layer as a turn progresses.
type Event struct {
	Type      EventType     `json:"type"`
	Session   uuid.UUID     `json:"session"`
	Turn      int           `json:"turn"`
	State     turn.State    `json:"state"`
	Timestamp time.Duration `json:"ts"`

	Magnitude float64              `json:"magnitude,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Tanks     *tanks.Result        `json:"tanks,omitempty"`
	Outcome   *outcome.MoveOutcome `json:"outcome,omitempty"`
}

// TurnResult is everything known about one watched turn.
type TurnResult struct {
	Session  uuid.UUID           `json:"session"`
	Turn     int                 `json:"turn"`
	State    turn.State          `json:"state"`
	Frames   int                 `json:"frames"`
	Started  time.Duration       `json:"started"`
	Ended    time.Duration       `json:"ended"`
	FellBack bool                `json:"fell_back"`
	Reason   string              `json:"reason,omitempty"`
	Tanks    tanks.Result        `json:"tanks"`
	Outcome  outcome.MoveOutcome `json:"outcome"`
}

// Publisher receives watcher events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Recorder persists completed turns.
type Recorder interface {
	Record(ctx context.Context, res TurnResult) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f.
func (f PublisherFunc) Publish(e Event) { f(e) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Publishers fans events out to several publishers.
type Publishers []Publisher

// Publish forwards e to every publisher.
func (ps Publishers) Publish(e Event) {
	for _, p := range ps {
		p.Publish(e)
	}
}
