// Package motion measures how much the screen changed between two
// consecutive frames.
package motion

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Aggregate names how per-pixel differences are reduced to one number.
const (
	AggregateMean       = "mean"
	AggregatePercentile = "percentile"
)

// Config holds the tunable parameters for motion estimation.
type Config struct {
	// NoiseFloor is the per-pixel intensity difference (0-255) at or below
	// which a pixel counts as unchanged. Absorbs compression and scaler jitter.
	NoiseFloor float64 `json:"noise_floor" mapstructure:"noise_floor"`

	// Border is the number of pixels ignored along every edge (UI chrome).
	Border int `json:"border" mapstructure:"border"`

	// Aggregate is "mean" or "percentile".
	Aggregate string `json:"aggregate" mapstructure:"aggregate"`

	// Percentile in (0,1], used when Aggregate is "percentile".
	Percentile float64 `json:"percentile" mapstructure:"percentile"`
}

// DefaultConfig returns the mean-of-differences estimator.
func DefaultConfig() Config {
	return Config{
		NoiseFloor: 8,
		Border:     0,
		Aggregate:  AggregateMean,
		Percentile: 0.99,
	}
}

// PercentileConfig reacts to small fast objects (a single shell in flight)
// that barely move the frame mean.
func PercentileConfig() Config {
	cfg := DefaultConfig()
	cfg.Aggregate = AggregatePercentile
	cfg.Percentile = 0.995
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.NoiseFloor < 0 || c.NoiseFloor >= 255 {
		errs = append(errs, fmt.Errorf("noise_floor must be in [0,255), got %v", c.NoiseFloor))
	}
	if c.Border < 0 {
		errs = append(errs, fmt.Errorf("border must be >= 0, got %d", c.Border))
	}
	switch c.Aggregate {
	case AggregateMean:
	case AggregatePercentile:
		if c.Percentile <= 0 || c.Percentile > 1 {
			errs = append(errs, fmt.Errorf("percentile must be in (0,1], got %v", c.Percentile))
		}
	default:
		errs = append(errs, fmt.Errorf("aggregate must be %q or %q, got %q", AggregateMean, AggregatePercentile, c.Aggregate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: motion: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
