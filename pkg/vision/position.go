package vision

import "math"

// Position is a pixel coordinate with a detection confidence in [0,1].
type Position struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// NewPosition returns a Position with its confidence clamped to [0,1].
func NewPosition(x, y, confidence float64) Position {
	return Position{X: x, Y: y, Confidence: ClampConfidence(confidence)}
}

// DistanceTo returns the Euclidean distance in pixels.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// SameSpot reports whether two positions are within a hundredth of a pixel.
func (p Position) SameSpot(o Position) bool {
	return p.DistanceTo(o) < 1e-2
}

// ClampConfidence maps any value (including NaN) into [0,1].
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// AreaConfidence scales a blob area into a confidence. A blob at minArea
// scores 1/saturation and anything at saturation*minArea or above scores 1.
// Blobs below minArea score 0.
func AreaConfidence(area, minArea int, saturation float64) float64 {
	if minArea <= 0 || area < minArea {
		return 0
	}
	if saturation < 1 {
		saturation = 1
	}
	return ClampConfidence(float64(area) / (float64(minArea) * saturation))
}
