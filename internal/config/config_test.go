package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	tc, err := cfg.Turn.Resolve()
	require.NoError(t, err)
	assert.Equal(t, turn.StandardConfig(), tc)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "bench.yaml", `
log:
  level: debug
turn:
  preset: explosive
  stable_frame_count: 12
tanks:
  color_range:
    lower: {h: 170, s: 100, v: 100}
    upper: {h: 10, s: 255, v: 255}
outcome:
  hit_radius: 25
  report_lateral_offset: true
pipeline:
  fallback: abort
web:
  port: 9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 170.0, cfg.Tanks.ColorRange.Lower.H)
	assert.Equal(t, 10.0, cfg.Tanks.ColorRange.Upper.H)
	assert.Equal(t, 0.3, cfg.Tanks.CropFraction, "unset keys keep defaults")
	assert.Equal(t, 25.0, cfg.Outcome.HitRadius)
	assert.True(t, cfg.Outcome.ReportLateralOffset)
	assert.Equal(t, pipeline.FallbackAbort, cfg.Pipeline.Fallback)
	assert.Equal(t, ":9090", cfg.Web.Addr())

	tc, err := cfg.Turn.Resolve()
	require.NoError(t, err)
	assert.Equal(t, turn.ExplosiveConfig().MotionThreshold, tc.MotionThreshold)
	assert.Equal(t, 12, tc.StableFrames)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("POCKETBENCH_TURN_PRESET", "fast")
	t.Setenv("POCKETBENCH_OUTCOME_HIT_RADIUS", "40")
	t.Setenv("POCKETBENCH_STORE_PATH", "/tmp/x.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fast", cfg.Turn.Preset)
	assert.Equal(t, 40.0, cfg.Outcome.HitRadius)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "turn:\n  preset: nuclear\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, vision.ErrInvalidConfig)

	path = writeFile(t, "bad.yaml", "tanks:\n  crop_fraction: 2\noutcome:\n  hit_radius: -1\n")
	_, err = Load(path)
	require.ErrorIs(t, err, vision.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "crop")
	assert.Contains(t, err.Error(), "hit_radius")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	assert.ErrorIs(t, cfg.Validate(), vision.ErrInvalidConfig)

	cfg = Default()
	cfg.Web.Port = 0
	assert.Error(t, cfg.Validate())
	cfg.Web.Enabled = false
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Turn.MotionThreshold = -1
	assert.ErrorIs(t, cfg.Validate(), vision.ErrInvalidConfig)
}
