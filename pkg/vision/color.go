package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// HSV is a colour in OpenCV's 8-bit HSV space: H in [0,179], S and V in
// [0,255].
type HSV struct {
	H float64 `json:"h" mapstructure:"h"`
	S float64 `json:"s" mapstructure:"s"`
	V float64 `json:"v" mapstructure:"v"`
}

// HSVRange is a closed colour interval. When Lower.H > Upper.H the hue
// interval wraps through 0, which is how reds are expressed.
type HSVRange struct {
	Lower HSV `json:"lower" mapstructure:"lower"`
	Upper HSV `json:"upper" mapstructure:"upper"`
}

// WrapsHue reports whether the hue interval crosses 179 -> 0.
func (r HSVRange) WrapsHue() bool {
	return r.Lower.H > r.Upper.H
}

// Validate checks channel bounds and ordering.
func (r HSVRange) Validate() error {
	var errs []error
	for _, c := range []struct {
		name string
		v    float64
		max  float64
	}{
		{"lower.h", r.Lower.H, 179}, {"upper.h", r.Upper.H, 179},
		{"lower.s", r.Lower.S, 255}, {"upper.s", r.Upper.S, 255},
		{"lower.v", r.Lower.V, 255}, {"upper.v", r.Upper.V, 255},
	} {
		if c.v < 0 || c.v > c.max {
			errs = append(errs, fmt.Errorf("%s must be between 0 and %.0f, got %v", c.name, c.max, c.v))
		}
	}
	if r.Lower.S > r.Upper.S {
		errs = append(errs, errors.New("lower.s must not exceed upper.s"))
	}
	if r.Lower.V > r.Upper.V {
		errs = append(errs, errors.New("lower.v must not exceed upper.v"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: color range: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// MaskFunc writes a single-channel mask of src into dst: 255 where the
// pixel satisfies the predicate, 0 elsewhere.
type MaskFunc func(src gocv.Mat, dst *gocv.Mat)

// InHSVRange selects pixels of a BGR image whose colour lies inside r.
func InHSVRange(r HSVRange) MaskFunc {
	return func(src gocv.Mat, dst *gocv.Mat) {
		hsv := gocv.NewMat()
		defer hsv.Close()
		gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

		if !r.WrapsHue() {
			gocv.InRangeWithScalar(hsv, lowerScalar(r.Lower.H, r), upperScalar(r.Upper.H, r), dst)
			return
		}

		// Split a wrapping hue interval into [lower.h,179] and [0,upper.h].
		high := gocv.NewMat()
		defer high.Close()
		low := gocv.NewMat()
		defer low.Close()
		gocv.InRangeWithScalar(hsv, lowerScalar(r.Lower.H, r), upperScalar(179, r), &high)
		gocv.InRangeWithScalar(hsv, lowerScalar(0, r), upperScalar(r.Upper.H, r), &low)
		gocv.BitwiseOr(high, low, dst)
	}
}

func lowerScalar(h float64, r HSVRange) gocv.Scalar {
	return gocv.NewScalar(h, r.Lower.S, r.Lower.V, 0)
}

func upperScalar(h float64, r HSVRange) gocv.Scalar {
	return gocv.NewScalar(h, r.Upper.S, r.Upper.V, 0)
}

// Above selects pixels of a single-channel image strictly brighter than
// threshold.
func Above(threshold float64) MaskFunc {
	return func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, float32(threshold), 255, gocv.ThresholdBinary)
	}
}
