// Package tanks finds the player and opponent tanks on a game frame.
//
// Tanks sit on the terrain near the bottom of the screen, the player on
// the left and the opponent on the right. The locator crops the lower part
// of the frame, splits it in half and takes the largest blob of tank-coloured
// pixels in each half.
package tanks

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Config holds tank detection parameters.
type Config struct {
	// ColorRange is the HSV interval tank pixels fall in.
	ColorRange vision.HSVRange `json:"color_range" mapstructure:"color_range"`

	// CropFraction is the lower fraction of the frame searched, in (0,1].
	CropFraction float64 `json:"crop_fraction" mapstructure:"crop_fraction"`

	// MinBlobArea is the smallest blob in pixels accepted as a tank.
	MinBlobArea int `json:"min_blob_area" mapstructure:"min_blob_area"`

	// FullConfidenceArea is the blob area at which confidence reaches 1.
	FullConfidenceArea int `json:"full_confidence_area" mapstructure:"full_confidence_area"`
}

// DefaultConfig matches the default green tanks at 800x600.
func DefaultConfig() Config {
	return Config{
		ColorRange: vision.HSVRange{
			Lower: vision.HSV{H: 35, S: 120, V: 120},
			Upper: vision.HSV{H: 85, S: 255, V: 255},
		},
		CropFraction:       0.3,
		MinBlobArea:        50,
		FullConfidenceArea: 200,
	}
}

// RedTankConfig matches red tanks. The hue interval wraps through 0.
func RedTankConfig() Config {
	cfg := DefaultConfig()
	cfg.ColorRange = vision.HSVRange{
		Lower: vision.HSV{H: 170, S: 120, V: 120},
		Upper: vision.HSV{H: 10, S: 255, V: 255},
	}
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.ColorRange.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(c.CropFraction > 0 && c.CropFraction <= 1) {
		errs = append(errs, fmt.Errorf("crop_fraction must be in (0,1], got %v", c.CropFraction))
	}
	if c.MinBlobArea < 1 {
		errs = append(errs, fmt.Errorf("min_blob_area must be > 0, got %d", c.MinBlobArea))
	}
	if c.FullConfidenceArea < c.MinBlobArea {
		errs = append(errs, fmt.Errorf("full_confidence_area (%d) must be >= min_blob_area (%d)", c.FullConfidenceArea, c.MinBlobArea))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: tanks: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// saturation is the confidence scaling factor for vision.AreaConfidence.
func (c Config) saturation() float64 {
	return float64(c.FullConfidenceArea) / float64(c.MinBlobArea)
}
