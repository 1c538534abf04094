package capture

import (
	"context"
	"image"

	"github.com/disintegration/gift"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Scaler resizes every frame of a source to a fixed height so analysis
// parameters tuned at one resolution hold across captures.
type Scaler struct {
	src    Source
	height int
	filter *gift.GIFT
}

// Scale wraps src. Frames already at height pass through untouched.
func Scale(src Source, height int) *Scaler {
	return &Scaler{
		src:    src,
		height: height,
		filter: gift.New(gift.Resize(0, height, gift.LinearResampling)),
	}
}

// Next returns the next frame of the wrapped source, resized.
func (s *Scaler) Next(ctx context.Context) (vision.Frame, error) {
	f, err := s.src.Next(ctx)
	if err != nil {
		return f, err
	}
	return s.Resize(f)
}

// Resize scales a single frame.
func (s *Scaler) Resize(f vision.Frame) (vision.Frame, error) {
	if _, h := f.Size(); h == s.height || f.Empty() {
		return f, nil
	}
	src := f.Image()
	dst := image.NewRGBA(s.filter.Bounds(src.Bounds()))
	s.filter.Draw(dst, src)
	return vision.NewFrame(dst, f.Timestamp)
}

// Close closes the wrapped source.
func (s *Scaler) Close() error {
	return s.src.Close()
}
