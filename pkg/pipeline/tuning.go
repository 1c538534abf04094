package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/teslashibe/go-pocketbench/pkg/turn"
)

// Tuning holds the turn-detection parameters used for the next turn. The
// agent layer swaps them between turns to match the weapon it fires.
type Tuning struct {
	mu     sync.RWMutex
	config turn.Config
	preset string

	// OnChange is called after every successful update.
	OnChange func(cfg turn.Config)
}

// NewTuning starts from cfg.
func NewTuning(cfg turn.Config) *Tuning {
	return &Tuning{config: cfg}
}

// Config returns the current parameters.
func (t *Tuning) Config() turn.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// Preset returns the name of the last applied preset, or "" after a manual
// change.
func (t *Tuning) Preset() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.preset
}

// Set replaces the parameters.
func (t *Tuning) Set(cfg turn.Config) error {
	return t.set(cfg, "")
}

// ApplyPreset switches to a named weapon preset.
func (t *Tuning) ApplyPreset(name string) error {
	preset := turn.GetPreset(name)
	if preset == nil {
		return fmt.Errorf("unknown preset: %s", name)
	}
	return t.set(*preset, name)
}

func (t *Tuning) set(cfg turn.Config, preset string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	t.config = cfg
	t.preset = preset
	callback := t.OnChange
	t.mu.Unlock()

	if callback != nil {
		callback(cfg)
	}
	return nil
}

// Update applies a partial change from a decoded JSON body. A "preset" key
// is applied first so individual fields can override it.
func (t *Tuning) Update(params map[string]interface{}) error {
	cfg := t.Config()
	preset := ""

	if name, ok := params["preset"].(string); ok {
		p := turn.GetPreset(name)
		if p == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		cfg, preset = *p, name
	}

	for key, value := range params {
		switch key {
		case "motion_threshold":
			v, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("motion_threshold: not a number: %v", value)
			}
			cfg.MotionThreshold, preset = v, ""
		case "stable_frame_count":
			v, ok := toInt(value)
			if !ok {
				return fmt.Errorf("stable_frame_count: not an integer: %v", value)
			}
			cfg.StableFrames, preset = v, ""
		}
	}

	return t.set(cfg, preset)
}

// JSON returns the current state for serialization.
func (t *Tuning) JSON() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]interface{}{
		"motion_threshold":   t.config.MotionThreshold,
		"stable_frame_count": t.config.StableFrames,
		"preset":             t.preset,
		"presets":            turn.PresetNames(),
	}
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
