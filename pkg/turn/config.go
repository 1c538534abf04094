package turn

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Config holds the stability parameters of the detector.
type Config struct {
	// MotionThreshold is the magnitude below which a sample counts as quiet.
	MotionThreshold float64 `json:"motion_threshold" mapstructure:"motion_threshold"`

	// StableFrames is the number of consecutive quiet samples that end a turn.
	StableFrames int `json:"stable_frame_count" mapstructure:"stable_frame_count"`
}

// Preset names, one per weapon class.
const (
	PresetFast      = "fast"
	PresetStandard  = "standard"
	PresetExplosive = "explosive"
)

// DefaultConfig is the standard preset.
func DefaultConfig() Config {
	return StandardConfig()
}

// StandardConfig suits ordinary shells: a short flight, one explosion.
func StandardConfig() Config {
	return Config{
		MotionThreshold: 0.05,
		StableFrames:    10,
	}
}

// FastConfig suits quick projectiles with little debris. Lower threshold so
// a small fast sprite still reads as motion, shorter quiet window.
func FastConfig() Config {
	return Config{
		MotionThreshold: 0.02,
		StableFrames:    6,
	}
}

// ExplosiveConfig suits large or multi-stage explosions that leave terrain
// sliding for a while after the blast.
func ExplosiveConfig() Config {
	return Config{
		MotionThreshold: 0.1,
		StableFrames:    20,
	}
}

// Presets returns all named presets.
func Presets() map[string]Config {
	return map[string]Config{
		PresetFast:      FastConfig(),
		PresetStandard:  StandardConfig(),
		PresetExplosive: ExplosiveConfig(),
	}
}

// PresetNames returns the preset names in a stable order.
func PresetNames() []string {
	return []string{PresetFast, PresetStandard, PresetExplosive}
}

// GetPreset returns a preset by name, or nil if not found. The sensitivity
// names "high", "medium" and "low" are accepted as aliases.
func GetPreset(name string) *Config {
	switch name {
	case "high":
		name = PresetFast
	case "medium":
		name = PresetStandard
	case "low":
		name = PresetExplosive
	}
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// Loud reports whether a motion magnitude counts as movement.
func (c Config) Loud(magnitude float64) bool {
	return magnitude >= c.MotionThreshold
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if !(c.MotionThreshold > 0) || math.IsInf(c.MotionThreshold, 0) {
		errs = append(errs, fmt.Errorf("motion_threshold must be > 0, got %v", c.MotionThreshold))
	}
	if c.StableFrames < 1 {
		errs = append(errs, fmt.Errorf("stable_frame_count must be >= 1, got %d", c.StableFrames))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: turn: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
