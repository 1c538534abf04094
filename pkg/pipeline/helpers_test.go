package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/motion"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

var (
	sky   = color.RGBA{20, 20, 50, 255}
	green = color.RGBA{0, 255, 0, 255}
	white = color.RGBA{250, 250, 250, 255}

	playerTank   = image.Rect(10, 85, 30, 95)   // 200 px, centroid (19.5, 89.5)
	opponentTank = image.Rect(160, 80, 170, 90) // 100 px, centroid (164.5, 84.5)
	crater       = image.Rect(155, 55, 175, 75) // 400 px, centroid (164.5, 64.5)
)

// scene draws the battlefield plus extra white rectangles.
func scene(t *testing.T, ts time.Duration, extra ...image.Rectangle) vision.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{sky}, image.Point{}, draw.Src)
	draw.Draw(img, playerTank, &image.Uniform{green}, image.Point{}, draw.Src)
	draw.Draw(img, opponentTank, &image.Uniform{green}, image.Point{}, draw.Src)
	for _, r := range extra {
		draw.Draw(img, r, &image.Uniform{white}, image.Point{}, draw.Src)
	}
	f, err := vision.NewFrame(img, ts)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func shell(x, y int) image.Rectangle { return image.Rect(x, y, x+10, y+10) }

// shotFrames is one turn: the pre-shot frame, a shell in flight, the
// crater appearing, then the crater on a still screen.
func shotFrames(t *testing.T, quiet int) []vision.Frame {
	t.Helper()
	step := 200 * time.Millisecond
	frames := []vision.Frame{
		scene(t, 0),
		scene(t, 1*step, shell(40, 20)),
		scene(t, 2*step, shell(90, 10)),
		scene(t, 3*step, crater),
	}
	for i := 0; i < quiet; i++ {
		frames = append(frames, scene(t, time.Duration(4+i)*step, crater))
	}
	return frames
}

// sliceSource replays frames and honours cancellation.
type sliceSource struct {
	frames []vision.Frame
	reads  int
}

func (s *sliceSource) Next(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	if s.reads >= len(s.frames) {
		return vision.Frame{}, io.EOF
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

// eventLog collects published events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type recorderFunc func(ctx context.Context, res TurnResult) error

func (f recorderFunc) Record(ctx context.Context, res TurnResult) error { return f(ctx, res) }

func parts(t *testing.T, stable int) Parts {
	t.Helper()
	est, err := motion.New(motion.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	loc, err := tanks.New(tanks.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	an, err := outcome.New(outcome.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return Parts{
		Estimator: est,
		Locator:   loc,
		Analyzer:  an,
		Tuning:    NewTuning(turn.Config{MotionThreshold: 0.5, StableFrames: stable}),
	}
}

func watcher(t *testing.T, cfg Config, p Parts, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(cfg, p, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}
