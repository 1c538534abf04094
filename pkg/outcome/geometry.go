package outcome

import (
	"math"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Geometry is an impact measured against the player→opponent line.
type Geometry struct {
	// TargetLength is the player→opponent distance.
	TargetLength float64

	// Projection is the shot vector's scalar projection on the target line.
	Projection float64

	// DistanceError is Projection - TargetLength: positive past the
	// opponent, negative short of it.
	DistanceError float64

	// Lateral is the unsigned perpendicular distance of the impact from the
	// target line.
	Lateral float64

	// Degenerate is set when the tanks coincide or either was not detected.
	// All other fields are zero in that case.
	Degenerate bool
}

// Measure projects impact onto the line from player to opponent.
func Measure(player, opponent, impact vision.Position) Geometry {
	if player.Confidence == 0 || opponent.Confidence == 0 || player.SameSpot(opponent) {
		return Geometry{Degenerate: true}
	}

	tx, ty := opponent.X-player.X, opponent.Y-player.Y
	sx, sy := impact.X-player.X, impact.Y-player.Y
	length := math.Hypot(tx, ty)

	proj := (sx*tx + sy*ty) / length
	return Geometry{
		TargetLength:  length,
		Projection:    proj,
		DistanceError: proj - length,
		Lateral:       math.Abs(sx*ty-sy*tx) / length,
	}
}

// alignment is 1 for an impact on the target line and falls toward 0 as
// the lateral offset grows relative to the line length.
func (g Geometry) alignment() float64 {
	if g.Degenerate || g.TargetLength == 0 {
		return 0
	}
	return g.TargetLength / (g.TargetLength + g.Lateral)
}
