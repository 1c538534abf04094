package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"gocv.io/x/gocv"
)

// VideoSource reads frames from a video file or capture device.
type VideoSource struct {
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	period time.Duration
	count  int
	closed bool
}

// OpenVideo opens a video file. The container's frame rate is used when it
// reports one, otherwise fps.
func OpenVideo(path string, fps float64) (*VideoSource, error) {
	return openCapture(path, fps)
}

// OpenDevice opens a capture device such as a capture card or a virtual
// camera showing the game window.
func OpenDevice(index int, fps float64) (*VideoSource, error) {
	return openCapture(index, fps)
}

func openCapture(target interface{}, fps float64) (*VideoSource, error) {
	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open capture %v: %w", target, err)
	}
	if rate := vc.Get(gocv.VideoCaptureFPS); rate > 0 {
		fps = rate
	}
	if !(fps > 0) {
		vc.Close()
		return nil, fmt.Errorf("%w: capture %v reports no frame rate", vision.ErrInvalidConfig, target)
	}
	return &VideoSource{cap: vc, mat: gocv.NewMat(), period: interval(fps)}, nil
}

// Next grabs and decodes the next frame. io.EOF marks the end of a file or
// a device that stopped delivering.
func (s *VideoSource) Next(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	if s.closed {
		return vision.Frame{}, ErrClosed
	}
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return vision.Frame{}, io.EOF
	}

	ts := time.Duration(s.count) * s.period
	s.count++
	return vision.FromMat(s.mat, ts)
}

// Close releases the capture and its frame buffer.
func (s *VideoSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.cap.Close()
}
