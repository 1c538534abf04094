package motion

import (
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Sample is the motion magnitude between two frames, stamped with the
// timestamp of the later frame.
type Sample struct {
	Magnitude float64       `json:"magnitude"`
	Timestamp time.Duration `json:"timestamp"`
}

// Estimator turns frame pairs into motion samples. It holds no per-call
// state and is safe for concurrent use.
type Estimator struct {
	config Config
}

// New creates an estimator after validating cfg.
func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{config: cfg}, nil
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.config
}

// Estimate returns the motion magnitude between prev and next. Frames of
// different sizes are rejected with vision.ErrDimensionMismatch.
func (e *Estimator) Estimate(prev, next vision.Frame) (Sample, error) {
	if err := prev.SameSize(next); err != nil {
		return Sample{}, err
	}

	diff, err := grayDiff(prev, next)
	if err != nil {
		return Sample{}, err
	}
	defer diff.Close()

	// Per-pixel jitter at or below the noise floor counts as no change.
	gocv.Threshold(diff, &diff, float32(e.config.NoiseFloor), 255, gocv.ThresholdToZero)

	roi := diff.Region(e.interior(diff.Cols(), diff.Rows()))
	defer roi.Close()

	var magnitude float64
	switch e.config.Aggregate {
	case AggregatePercentile:
		magnitude = percentile(roi, e.config.Percentile)
	default:
		magnitude = roi.Mean().Val1
	}
	if magnitude < 0 {
		magnitude = 0
	}

	return Sample{Magnitude: magnitude, Timestamp: next.Timestamp}, nil
}

// interior returns the analysed rectangle. A border that would swallow the
// whole frame is ignored.
func (e *Estimator) interior(w, h int) image.Rectangle {
	b := e.config.Border
	if b <= 0 || 2*b >= w || 2*b >= h {
		return image.Rect(0, 0, w, h)
	}
	return image.Rect(b, b, w-b, h-b)
}

// grayDiff returns |gray(prev) - gray(next)| as a single-channel Mat.
func grayDiff(prev, next vision.Frame) (gocv.Mat, error) {
	a, err := toGray(prev)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer a.Close()
	b, err := toGray(next)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer b.Close()

	diff := gocv.NewMat()
	gocv.AbsDiff(a, b, &diff)
	return diff, nil
}

func toGray(f vision.Frame) (gocv.Mat, error) {
	bgr, err := f.Mat()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame to mat: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// percentile computes the p-quantile of the pixel values in m.
func percentile(m gocv.Mat, p float64) float64 {
	// Regions are not continuous; clone before reading raw bytes.
	flat := m.Clone()
	defer flat.Close()

	raw := flat.ToBytes()
	if len(raw) == 0 {
		return 0
	}
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v)
	}
	sort.Float64s(values)
	return stat.Quantile(p, stat.Empirical, values, nil)
}
