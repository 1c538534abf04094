// Package capture supplies game frames to the turn watcher: recorded
// screenshot sequences, video files or devices, and live screenshot
// providers.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("capture source closed")

// Source yields frames in increasing timestamp order. Next returns io.EOF
// when the stream is exhausted. All frames of one source share the same
// dimensions.
type Source interface {
	Next(ctx context.Context) (vision.Frame, error)
	Close() error
}

// Config selects and tunes a frame source.
type Config struct {
	// Path is an image directory or a video file. Ignored when Device >= 0.
	Path string `json:"path" mapstructure:"path"`

	// Device is a capture device index; -1 disables it.
	Device int `json:"device" mapstructure:"device"`

	// URL polls a screenshot server instead of reading a local source.
	URL string `json:"url" mapstructure:"url"`

	// FPS stamps frames from directories and devices that do not report a
	// rate of their own.
	FPS float64 `json:"fps" mapstructure:"fps"`

	// Height rescales every frame to this height, keeping the aspect ratio.
	// 0 keeps the native size.
	Height int `json:"height" mapstructure:"height"`
}

// DefaultConfig stamps frames at 5 fps. An input must still be chosen.
func DefaultConfig() Config {
	return Config{
		Device: -1,
		FPS:    5,
		Height: 0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Path == "" && c.Device < 0 && c.URL == "" {
		errs = append(errs, errors.New("one of path, device or url must be set"))
	}
	if !(c.FPS > 0) {
		errs = append(errs, fmt.Errorf("fps must be > 0, got %v", c.FPS))
	}
	if c.Height < 0 {
		errs = append(errs, fmt.Errorf("height must be >= 0, got %d", c.Height))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: capture: %w", vision.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Open builds the source described by cfg: a screenshot URL, a device, an
// image directory or a video file, rescaled when Height is set.
func Open(cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		src Source
		err error
	)
	switch {
	case cfg.URL != "":
		src, err = NewProviderSource(NewHTTPProvider(cfg.URL), cfg.FPS)
	case cfg.Device >= 0:
		src, err = OpenDevice(cfg.Device, cfg.FPS)
	case isDir(cfg.Path):
		src, err = OpenDir(cfg.Path, cfg.FPS)
	default:
		src, err = OpenVideo(cfg.Path, cfg.FPS)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Height > 0 {
		src = Scale(src, cfg.Height)
	}
	return src, nil
}

// interval returns the frame period for fps.
func interval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
