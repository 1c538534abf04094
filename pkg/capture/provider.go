package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Provider captures one encoded screenshot (JPEG or PNG) on demand, e.g.
// from a screen grabber or a remote game host.
type Provider interface {
	CaptureFrame() ([]byte, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() ([]byte, error)

// CaptureFrame calls f.
func (f ProviderFunc) CaptureFrame() ([]byte, error) { return f() }

// ProviderSource polls a Provider at a fixed rate. Frames are stamped with
// the time elapsed since the first capture.
type ProviderSource struct {
	provider Provider
	period   time.Duration
	now      func() time.Time

	start  time.Time
	last   time.Duration
	count  int
	closed bool
}

// NewProviderSource polls p at fps frames per second.
func NewProviderSource(p Provider, fps float64) (*ProviderSource, error) {
	if !(fps > 0) {
		return nil, fmt.Errorf("%w: fps must be > 0", vision.ErrInvalidConfig)
	}
	return &ProviderSource{provider: p, period: interval(fps), now: time.Now}, nil
}

// Next waits for the next poll slot, captures and decodes a screenshot.
func (s *ProviderSource) Next(ctx context.Context) (vision.Frame, error) {
	if s.closed {
		return vision.Frame{}, ErrClosed
	}
	if s.count > 0 {
		wait := s.start.Add(time.Duration(s.count) * s.period).Sub(s.now())
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return vision.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	} else if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}

	data, err := s.provider.CaptureFrame()
	if err != nil {
		return vision.Frame{}, fmt.Errorf("capture frame: %w", err)
	}

	at := s.now()
	if s.count == 0 {
		s.start = at
	}
	ts := at.Sub(s.start)
	// Keep timestamps strictly increasing even if the clock stalls.
	if s.count > 0 && ts <= s.last {
		ts = s.last + time.Nanosecond
	}
	s.last = ts
	s.count++

	return decode(data, ts)
}

// Close stops the source. The provider is not closed.
func (s *ProviderSource) Close() error {
	s.closed = true
	return nil
}
