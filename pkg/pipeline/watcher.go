package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-pocketbench/pkg/capture"
	"github.com/teslashibe/go-pocketbench/pkg/motion"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Parts are the analysis components a Watcher drives.
type Parts struct {
	Estimator *motion.Estimator
	Locator   *tanks.Locator
	Analyzer  *outcome.Analyzer

	// Tuning supplies the turn parameters; defaults to the standard preset.
	Tuning *Tuning
}

// Watcher watches turns one at a time. WatchTurn may be called from
// several goroutines on different sources; each call owns its session.
type Watcher struct {
	config    Config
	parts     Parts
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger

	turns atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(w *Watcher) { w.publisher = p }
}

// WithRecorder sets the turn recorder.
func WithRecorder(r Recorder) Option {
	return func(w *Watcher) { w.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher.
func New(cfg Config, parts Parts, opts ...Option) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if parts.Estimator == nil || parts.Locator == nil || parts.Analyzer == nil {
		return nil, errors.New("pipeline: estimator, locator and analyzer are required")
	}
	if parts.Tuning == nil {
		parts.Tuning = NewTuning(turn.DefaultConfig())
	}

	w := &Watcher{
		config:    cfg,
		parts:     parts,
		publisher: nopPublisher{},
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Tuning returns the live turn parameters.
func (w *Watcher) Tuning() *Tuning {
	return w.parts.Tuning
}

// Turns returns the number of turns started so far.
func (w *Watcher) Turns() int {
	return int(w.turns.Load())
}

// WatchTurn waits for the screen to move, then consumes frames until it
// settles and analyses the shot. While the screen is still, each frame
// replaces the pre-shot frame, so the pre-shot frame is the last still
// frame before motion. Still frames do not count toward the frame budget.
//
// When the frame budget runs out or the source ends first, the fallback
// policy decides: "finish" analyses the last frame and marks the result
// FellBack, "abort" returns ErrTurnAborted. A source that ends before any
// motion yields ErrNoFrames or ErrNoMotion and nothing is published.
// Cancelling ctx abandons the turn and returns the context error.
func (w *Watcher) WatchTurn(ctx context.Context, src capture.Source) (TurnResult, error) {
	pre, err := src.Next(ctx)
	if errors.Is(err, io.EOF) {
		return TurnResult{}, ErrNoFrames
	}
	if err != nil {
		return TurnResult{}, fmt.Errorf("pre-shot frame: %w", err)
	}

	det, err := turn.New(w.parts.Tuning.Config())
	if err != nil {
		return TurnResult{}, err
	}

	first, firstSample, idle, err := w.awaitMotion(ctx, src, &pre, det.Config())
	if err != nil {
		return TurnResult{}, err
	}

	sess := det.NewSession()
	if _, err := det.Observe(sess, firstSample); err != nil {
		return TurnResult{}, fmt.Errorf("first motion sample: %w", err)
	}

	res := TurnResult{
		Session: sess.ID,
		Turn:    int(w.turns.Add(1)),
		State:   sess.State,
		Frames:  2,
		Started: pre.Timestamp,
		Ended:   first.Timestamp,
	}
	logger := w.logger.With("session", sess.ID, "turn", res.Turn)
	logger.Info("turn started", "ts", pre.Timestamp, "idle_frames", idle,
		"threshold", det.Config().MotionThreshold, "stable_frames", det.Config().StableFrames)
	w.publish(res, EventTurnStarted, func(e *Event) {
		e.Timestamp = pre.Timestamp
		e.Magnitude = firstSample.Magnitude
	})

	prev := first
	for !sess.Finished() {
		if err := ctx.Err(); err != nil {
			logger.Info("turn abandoned", "frames", res.Frames, "err", err)
			return res, err
		}
		if w.config.MaxFrames > 0 && res.Frames >= w.config.MaxFrames {
			res.Reason = ReasonBudget
			break
		}

		next, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			res.Reason = ReasonSourceEnded
			break
		}
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", res.Frames, err)
		}
		res.Frames++

		sample, err := w.parts.Estimator.Estimate(prev, next)
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", res.Frames-1, err)
		}
		before := sess.State
		state, err := det.Observe(sess, sample)
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", res.Frames-1, err)
		}

		prev = next
		res.Ended = next.Timestamp
		res.State = state

		if state != before {
			logger.Debug("turn state", "from", before, "to", state, "ts", sample.Timestamp, "magnitude", sample.Magnitude)
			w.publish(res, EventStateChanged, func(e *Event) {
				e.Timestamp = sample.Timestamp
				e.Magnitude = sample.Magnitude
			})
		}
	}

	if !sess.Finished() {
		res.FellBack = true
		logger.Warn("turn did not settle", "reason", res.Reason, "frames", res.Frames, "policy", w.config.Fallback)
		w.publish(res, EventFallback, func(e *Event) {
			e.Timestamp = res.Ended
			e.Reason = res.Reason
		})
		if w.config.Fallback == FallbackAbort {
			return res, fmt.Errorf("%w: %s after %d frames", ErrTurnAborted, res.Reason, res.Frames)
		}
	}

	if err := w.analyse(ctx, &res, pre, prev); err != nil {
		return res, err
	}
	logger.Info("turn analysed",
		"verdict", res.Outcome.Verdict,
		"hit", res.Outcome.HitDetected,
		"distance_error", res.Outcome.DistanceError,
		"confidence", res.Outcome.Confidence,
		"frames", res.Frames)
	return res, nil
}

// awaitMotion reads frames until one differs loudly from *pre, sliding
// *pre forward over still frames. It returns the first moving frame, its
// sample and the number of still frames skipped.
func (w *Watcher) awaitMotion(ctx context.Context, src capture.Source, pre *vision.Frame, cfg turn.Config) (vision.Frame, motion.Sample, int, error) {
	for idle := 0; ; idle++ {
		if err := ctx.Err(); err != nil {
			return vision.Frame{}, motion.Sample{}, idle, err
		}
		next, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			w.logger.Debug("source ended while idle", "idle_frames", idle)
			return vision.Frame{}, motion.Sample{}, idle, ErrNoMotion
		}
		if err != nil {
			return vision.Frame{}, motion.Sample{}, idle, fmt.Errorf("idle frame %d: %w", idle, err)
		}
		sample, err := w.parts.Estimator.Estimate(*pre, next)
		if err != nil {
			return vision.Frame{}, motion.Sample{}, idle, fmt.Errorf("idle frame %d: %w", idle, err)
		}
		if cfg.Loud(sample.Magnitude) {
			return next, sample, idle, nil
		}
		*pre = next
	}
}

// analyse locates the tanks on the pre-shot frame, scores the shot and
// hands the result to the publisher and recorder.
func (w *Watcher) analyse(ctx context.Context, res *TurnResult, pre, post vision.Frame) error {
	located, err := w.parts.Locator.Locate(pre)
	if err != nil {
		return fmt.Errorf("locate tanks: %w", err)
	}
	out, err := w.parts.Analyzer.AnalyzeSized(pre, post, located.Player, located.Opponent, located.OpponentArea)
	if err != nil {
		return fmt.Errorf("analyse outcome: %w", err)
	}
	res.Tanks = located
	res.Outcome = out

	w.publish(*res, EventOutcome, func(e *Event) {
		e.Timestamp = res.Ended
		e.Reason = res.Reason
		e.Tanks = &located
		e.Outcome = &out
	})

	if w.recorder != nil {
		if err := w.recorder.Record(ctx, *res); err != nil {
			// History is best effort; the outcome was already published.
			w.logger.Warn("record turn failed", "session", res.Session, "err", err)
		}
	}
	return nil
}

func (w *Watcher) publish(res TurnResult, typ EventType, fill func(*Event)) {
	e := Event{
		Type:    typ,
		Session: res.Session,
		Turn:    res.Turn,
		State:   res.State,
	}
	fill(&e)
	w.publisher.Publish(e)
}

// Run watches consecutive turns until the source ends, ctx is cancelled or
// maxTurns turns completed (0 means no limit). Aborted turns are logged and
// skipped. A still screen never opens a turn, so idle stretches are neither
// published nor recorded. Run returns the number of turns analysed.
func (w *Watcher) Run(ctx context.Context, src capture.Source, maxTurns int) (int, error) {
	done := 0
	for maxTurns <= 0 || done < maxTurns {
		res, err := w.WatchTurn(ctx, src)
		switch {
		case err == nil:
			done++
			if res.Reason == ReasonSourceEnded {
				return done, nil
			}
		case errors.Is(err, ErrNoFrames), errors.Is(err, ErrNoMotion):
			return done, nil
		case errors.Is(err, ErrTurnAborted):
			if res.Reason == ReasonSourceEnded {
				return done, nil
			}
		default:
			return done, err
		}
	}
	return done, nil
}
