// Package outcome judges where a shot landed relative to the opponent.
//
// The analyzer diffs the pre-shot and post-shot frames, takes the largest
// changed region as the impact, and measures it against the line from the
// player tank to the opponent tank.
package outcome

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Normalization bases for distance reporting.
const (
	BasisScreenWidth = "screen_width"
	BasisTargetLine  = "target_line"
)

// Config holds the analyzer parameters.
type Config struct {
	// ChangeThreshold is the grey-level difference (0-255) above which a
	// pixel counts as changed.
	ChangeThreshold float64 `json:"change_threshold" mapstructure:"change_threshold"`

	// DilateSize merges nearby changed pixels with a square kernel of this
	// size before labelling. 0 disables dilation.
	DilateSize int `json:"dilate_size" mapstructure:"dilate_size"`

	// ImpactMinArea is the smallest changed region in pixels accepted as an
	// impact. Smaller regions are jitter or UI flicker.
	ImpactMinArea int `json:"impact_min_area" mapstructure:"impact_min_area"`

	// ImpactFullConfidenceArea is the region area at which impact
	// confidence reaches 1.
	ImpactFullConfidenceArea int `json:"impact_full_confidence_area" mapstructure:"impact_full_confidence_area"`

	// HitRadius is the distance in pixels from the opponent within which an
	// impact counts as a hit. 0 derives it from the opponent's blob area as
	// HitRadiusScale * sqrt(area), or FallbackHitRadius when the area is
	// unknown.
	HitRadius float64 `json:"hit_radius" mapstructure:"hit_radius"`

	// HitRadiusScale multiplies the square root of the opponent tank area
	// when HitRadius is 0.
	HitRadiusScale float64 `json:"hit_radius_scale" mapstructure:"hit_radius_scale"`

	// NearMissTolerance is the |distance error| in pixels reported as a
	// near miss rather than an overshoot or undershoot.
	NearMissTolerance float64 `json:"near_miss_tolerance" mapstructure:"near_miss_tolerance"`

	// NoSignalConfidence is the fixed confidence reported when no impact
	// region was found.
	NoSignalConfidence float64 `json:"no_signal_confidence" mapstructure:"no_signal_confidence"`

	// DegeneratePenalty scales confidence when the target line is unusable.
	// It is also the floor of the alignment factor for usable lines.
	DegeneratePenalty float64 `json:"degenerate_penalty" mapstructure:"degenerate_penalty"`

	// NormalizeByScreenSize divides reported distances by NormalizationBasis.
	NormalizeByScreenSize bool `json:"normalize_by_screen_size" mapstructure:"normalize_by_screen_size"`

	// NormalizationBasis is "screen_width" or "target_line".
	NormalizationBasis string `json:"normalization_basis" mapstructure:"normalization_basis"`

	// ReportLateralOffset adds the perpendicular offset to each outcome.
	ReportLateralOffset bool `json:"report_lateral_offset" mapstructure:"report_lateral_offset"`
}

// FallbackHitRadius is the hit radius used when it is derived from the
// tank size but no tank area is known.
const FallbackHitRadius = 30.0

// HitRadiusFor returns the hit radius for an opponent blob of the given
// area in pixels.
func (c Config) HitRadiusFor(opponentArea int) float64 {
	if c.HitRadius > 0 {
		return c.HitRadius
	}
	if opponentArea <= 0 {
		return FallbackHitRadius
	}
	return c.HitRadiusScale * math.Sqrt(float64(opponentArea))
}

// DefaultConfig is tuned for 800x600 captures.
func DefaultConfig() Config {
	return Config{
		ChangeThreshold:          40,
		DilateSize:               0,
		ImpactMinArea:            100,
		ImpactFullConfidenceArea: 1000,
		HitRadius:                0,
		HitRadiusScale:           3,
		NearMissTolerance:        50,
		NoSignalConfidence:       0.05,
		DegeneratePenalty:        0.5,
		NormalizeByScreenSize:    false,
		NormalizationBasis:       BasisScreenWidth,
		ReportLateralOffset:      false,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if !(c.ChangeThreshold >= 0 && c.ChangeThreshold < 255) {
		errs = append(errs, fmt.Errorf("change_threshold must be in [0,255), got %v", c.ChangeThreshold))
	}
	if c.DilateSize < 0 {
		errs = append(errs, fmt.Errorf("dilate_size must be >= 0, got %d", c.DilateSize))
	}
	if c.ImpactMinArea < 1 {
		errs = append(errs, fmt.Errorf("impact_min_area must be > 0, got %d", c.ImpactMinArea))
	}
	if c.ImpactFullConfidenceArea < c.ImpactMinArea {
		errs = append(errs, fmt.Errorf("impact_full_confidence_area (%d) must be >= impact_min_area (%d)", c.ImpactFullConfidenceArea, c.ImpactMinArea))
	}
	if !(c.HitRadius >= 0) || math.IsInf(c.HitRadius, 0) {
		errs = append(errs, fmt.Errorf("hit_radius must be >= 0, got %v", c.HitRadius))
	}
	if !(c.HitRadiusScale > 0) || math.IsInf(c.HitRadiusScale, 0) {
		errs = append(errs, fmt.Errorf("hit_radius_scale must be > 0, got %v", c.HitRadiusScale))
	}
	if !(c.NearMissTolerance >= 0) {
		errs = append(errs, fmt.Errorf("near_miss_tolerance must be >= 0, got %v", c.NearMissTolerance))
	}
	if !(c.NoSignalConfidence > 0 && c.NoSignalConfidence < 1) {
		errs = append(errs, fmt.Errorf("no_signal_confidence must be in (0,1), got %v", c.NoSignalConfidence))
	}
	if !(c.DegeneratePenalty >= 0 && c.DegeneratePenalty < 1) {
		errs = append(errs, fmt.Errorf("degenerate_penalty must be in [0,1), got %v", c.DegeneratePenalty))
	}
	switch c.NormalizationBasis {
	case BasisScreenWidth, BasisTargetLine:
	default:
		errs = append(errs, fmt.Errorf("normalization_basis must be %q or %q, got %q", BasisScreenWidth, BasisTargetLine, c.NormalizationBasis))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: outcome: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) impactSaturation() float64 {
	return float64(c.ImpactFullConfidenceArea) / float64(c.ImpactMinArea)
}
