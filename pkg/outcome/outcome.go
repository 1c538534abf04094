package outcome

import (
	"fmt"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Verdict is a coarse label for a shot.
type Verdict string

const (
	VerdictHit        Verdict = "hit"
	VerdictNearMiss   Verdict = "near_miss"
	VerdictOvershoot  Verdict = "overshoot"
	VerdictUndershoot Verdict = "undershoot"
	VerdictNoSignal   Verdict = "no_signal" // no impact region found
	VerdictUnknown    Verdict = "unknown"   // tanks not usable as a target line
)

// Distance units.
const (
	UnitsPixels = "px"
)

// Impact is the changed region attributed to the shot.
type Impact struct {
	Location vision.Position `json:"location"`
	Area     int             `json:"area"`
}

// MoveOutcome is the result of one completed turn.
type MoveOutcome struct {
	HitDetected       bool            `json:"hit_detected"`
	ImpactLocation    vision.Position `json:"impact_location"`
	DistanceError     float64         `json:"distance_error"`
	TerrainChangeArea int             `json:"terrain_change_area"`
	Confidence        float64         `json:"confidence"`

	Verdict Verdict `json:"verdict"`

	// Units is "px" or the normalization basis the distances were divided by.
	Units string `json:"units"`

	// LateralOffset is set only when the analyzer is configured to report it.
	LateralOffset *float64 `json:"lateral_offset,omitempty"`
}

func (o MoveOutcome) String() string {
	return fmt.Sprintf("%s error=%+.2f%s at (%.0f,%.0f) area=%d conf=%.2f",
		o.Verdict, o.DistanceError, o.Units, o.ImpactLocation.X, o.ImpactLocation.Y,
		o.TerrainChangeArea, o.Confidence)
}

// verdict labels an outcome from its hit flag and signed error in pixels.
func verdict(hit bool, distanceError, nearMiss float64) Verdict {
	switch {
	case hit:
		return VerdictHit
	case distanceError >= -nearMiss && distanceError <= nearMiss:
		return VerdictNearMiss
	case distanceError > 0:
		return VerdictOvershoot
	default:
		return VerdictUndershoot
	}
}
