// Package config loads pocketbench settings from a YAML/JSON file and
// POCKETBENCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/teslashibe/go-pocketbench/pkg/capture"
	"github.com/teslashibe/go-pocketbench/pkg/motion"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// EnvPrefix prefixes every environment override, e.g.
// POCKETBENCH_TURN_PRESET=explosive.
const EnvPrefix = "POCKETBENCH"

// Config is the full application configuration.
type Config struct {
	Log      LogConfig       `json:"log" mapstructure:"log"`
	Capture  capture.Config  `json:"capture" mapstructure:"capture"`
	Motion   motion.Config   `json:"motion" mapstructure:"motion"`
	Turn     TurnConfig      `json:"turn" mapstructure:"turn"`
	Tanks    tanks.Config    `json:"tanks" mapstructure:"tanks"`
	Outcome  outcome.Config  `json:"outcome" mapstructure:"outcome"`
	Pipeline pipeline.Config `json:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig     `json:"store" mapstructure:"store"`
	Web      WebConfig       `json:"web" mapstructure:"web"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// TurnConfig picks a weapon preset; non-zero fields override it.
type TurnConfig struct {
	Preset          string  `json:"preset" mapstructure:"preset"`
	MotionThreshold float64 `json:"motion_threshold,omitempty" mapstructure:"motion_threshold"`
	StableFrames    int     `json:"stable_frame_count,omitempty" mapstructure:"stable_frame_count"`
}

// Resolve returns the effective turn parameters.
func (t TurnConfig) Resolve() (turn.Config, error) {
	base := turn.GetPreset(t.Preset)
	if base == nil {
		return turn.Config{}, fmt.Errorf("%w: turn: unknown preset %q (have %s)",
			vision.ErrInvalidConfig, t.Preset, strings.Join(turn.PresetNames(), ", "))
	}
	cfg := *base
	if t.MotionThreshold != 0 {
		cfg.MotionThreshold = t.MotionThreshold
	}
	if t.StableFrames != 0 {
		cfg.StableFrames = t.StableFrames
	}
	return cfg, nil
}

// StoreConfig locates the outcome history database.
type StoreConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
}

// Addr returns the listen address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf(":%d", w.Port)
}

// Load reads path (if not empty) over the built-in defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Capture:  capture.DefaultConfig(),
		Motion:   motion.DefaultConfig(),
		Turn:     TurnConfig{Preset: turn.PresetStandard},
		Tanks:    tanks.DefaultConfig(),
		Outcome:  outcome.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Store:    StoreConfig{Enabled: true, Path: "pocketbench.db"},
		Web:      WebConfig{Enabled: true, Port: 8080},
	}
}

// Validate checks every section. Capture is checked when a source is
// opened, since one-shot tools take their input from the command line.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log.level must be debug, info, warn or error, got %q", vision.ErrInvalidConfig, c.Log.Level))
	}
	if tc, err := c.Turn.Resolve(); err != nil {
		errs = append(errs, err)
	} else if err := tc.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, err := range []error{
		c.Motion.Validate(),
		c.Tanks.Validate(),
		c.Outcome.Validate(),
		c.Pipeline.Validate(),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		errs = append(errs, fmt.Errorf("%w: web.port out of range: %d", vision.ErrInvalidConfig, c.Web.Port))
	}
	return errors.Join(errs...)
}

// setDefaults registers every key so environment overrides reach nested
// fields on Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("capture.path", d.Capture.Path)
	v.SetDefault("capture.device", d.Capture.Device)
	v.SetDefault("capture.url", d.Capture.URL)
	v.SetDefault("capture.fps", d.Capture.FPS)
	v.SetDefault("capture.height", d.Capture.Height)

	v.SetDefault("motion.noise_floor", d.Motion.NoiseFloor)
	v.SetDefault("motion.border", d.Motion.Border)
	v.SetDefault("motion.aggregate", d.Motion.Aggregate)
	v.SetDefault("motion.percentile", d.Motion.Percentile)

	v.SetDefault("turn.preset", d.Turn.Preset)
	v.SetDefault("turn.motion_threshold", 0.0)
	v.SetDefault("turn.stable_frame_count", 0)

	setHSVDefault(v, "tanks.color_range.lower", d.Tanks.ColorRange.Lower)
	setHSVDefault(v, "tanks.color_range.upper", d.Tanks.ColorRange.Upper)
	v.SetDefault("tanks.crop_fraction", d.Tanks.CropFraction)
	v.SetDefault("tanks.min_blob_area", d.Tanks.MinBlobArea)
	v.SetDefault("tanks.full_confidence_area", d.Tanks.FullConfidenceArea)

	v.SetDefault("outcome.change_threshold", d.Outcome.ChangeThreshold)
	v.SetDefault("outcome.dilate_size", d.Outcome.DilateSize)
	v.SetDefault("outcome.impact_min_area", d.Outcome.ImpactMinArea)
	v.SetDefault("outcome.impact_full_confidence_area", d.Outcome.ImpactFullConfidenceArea)
	v.SetDefault("outcome.hit_radius", d.Outcome.HitRadius)
	v.SetDefault("outcome.hit_radius_scale", d.Outcome.HitRadiusScale)
	v.SetDefault("outcome.near_miss_tolerance", d.Outcome.NearMissTolerance)
	v.SetDefault("outcome.no_signal_confidence", d.Outcome.NoSignalConfidence)
	v.SetDefault("outcome.degenerate_penalty", d.Outcome.DegeneratePenalty)
	v.SetDefault("outcome.normalize_by_screen_size", d.Outcome.NormalizeByScreenSize)
	v.SetDefault("outcome.normalization_basis", d.Outcome.NormalizationBasis)
	v.SetDefault("outcome.report_lateral_offset", d.Outcome.ReportLateralOffset)

	v.SetDefault("pipeline.max_frames", d.Pipeline.MaxFrames)
	v.SetDefault("pipeline.fallback", d.Pipeline.Fallback)

	v.SetDefault("store.enabled", d.Store.Enabled)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.port", d.Web.Port)
}

func setHSVDefault(v *viper.Viper, key string, c vision.HSV) {
	v.SetDefault(key+".h", c.H)
	v.SetDefault(key+".s", c.S)
	v.SetDefault(key+".v", c.V)
}
