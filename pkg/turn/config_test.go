package turn

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

func TestPresets_Valid(t *testing.T) {
	for name, cfg := range Presets() {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if len(PresetNames()) != len(Presets()) {
		t.Error("PresetNames out of sync with Presets")
	}
}

func TestPresets_Ordering(t *testing.T) {
	fast, std, exp := FastConfig(), StandardConfig(), ExplosiveConfig()

	// Slower, messier weapons need a higher threshold and a longer quiet window
	if !(fast.MotionThreshold < std.MotionThreshold && std.MotionThreshold < exp.MotionThreshold) {
		t.Errorf("thresholds not increasing: %v %v %v", fast.MotionThreshold, std.MotionThreshold, exp.MotionThreshold)
	}
	if !(fast.StableFrames < std.StableFrames && std.StableFrames < exp.StableFrames) {
		t.Errorf("stable frames not increasing: %d %d %d", fast.StableFrames, std.StableFrames, exp.StableFrames)
	}
}

func TestGetPreset(t *testing.T) {
	tests := []struct {
		name string
		want *Config
	}{
		{PresetFast, ptr(FastConfig())},
		{"high", ptr(FastConfig())},
		{"medium", ptr(StandardConfig())},
		{"low", ptr(ExplosiveConfig())},
		{"nuclear", nil},
	}
	for _, tc := range tests {
		got := GetPreset(tc.name)
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("GetPreset(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{MotionThreshold: 0, StableFrames: 5},
		{MotionThreshold: -1, StableFrames: 5},
		{MotionThreshold: 1, StableFrames: 0},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, vision.ErrInvalidConfig) {
			t.Errorf("%+v: got %v, want ErrInvalidConfig", cfg, err)
		}
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) should fail", cfg)
		}
	}
}

func ptr(c Config) *Config { return &c }

func TestConfig_Loud(t *testing.T) {
	cfg := Config{MotionThreshold: 2, StableFrames: 3}
	tests := map[float64]bool{0: false, 1.99: false, 2: true, 50: true}
	for m, want := range tests {
		if got := cfg.Loud(m); got != want {
			t.Errorf("Loud(%v) = %v, want %v", m, got, want)
		}
	}
}
