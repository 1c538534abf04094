package outcome

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"gocv.io/x/gocv"
)

// Analyzer turns a pre/post frame pair and the tank positions into a
// MoveOutcome. It is stateless and safe for concurrent use.
type Analyzer struct {
	config  Config
	changed vision.MaskFunc
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an analyzer after validating cfg.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		config:  cfg,
		changed: vision.Above(cfg.ChangeThreshold),
		logger:  slog.Default().With("component", "outcome"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze compares pre and post and scores the impact against the target
// line from player to opponent. Only mismatched or empty frames are errors;
// weak detections lower the confidence instead. Without a tank area the
// hit radius is HitRadius or FallbackHitRadius.
func (a *Analyzer) Analyze(pre, post vision.Frame, player, opponent vision.Position) (MoveOutcome, error) {
	return a.AnalyzeSized(pre, post, player, opponent, 0)
}

// AnalyzeSized is Analyze with the opponent's blob area, which sizes the
// hit radius when HitRadius is 0.
func (a *Analyzer) AnalyzeSized(pre, post vision.Frame, player, opponent vision.Position, opponentArea int) (MoveOutcome, error) {
	mask, err := a.changeMask(pre, post)
	if err != nil {
		return MoveOutcome{}, err
	}
	defer mask.Close()

	impact, ok := a.impact(mask)
	if !ok {
		return a.noSignal(mask, impact.Area), nil
	}
	width, _ := pre.Size()
	return a.score(impact, player, opponent, a.config.HitRadiusFor(opponentArea), float64(width)), nil
}

// DetectImpact returns the largest changed region between pre and post.
// The bool is false when nothing reached ImpactMinArea.
func (a *Analyzer) DetectImpact(pre, post vision.Frame) (Impact, bool, error) {
	mask, err := a.changeMask(pre, post)
	if err != nil {
		return Impact{}, false, err
	}
	defer mask.Close()

	impact, ok := a.impact(mask)
	return impact, ok, nil
}

// impact picks the largest changed region. On failure only Area is set, to
// the largest region seen.
func (a *Analyzer) impact(mask gocv.Mat) (Impact, bool) {
	blob, ok := vision.LargestBlob(mask, image.Point{}, a.config.ImpactMinArea)
	if !ok {
		return Impact{Area: blob.Area}, false
	}
	conf := vision.AreaConfidence(blob.Area, a.config.ImpactMinArea, a.config.impactSaturation())
	return Impact{Location: blob.Position(conf), Area: blob.Area}, true
}

// score builds the outcome for a detected impact.
func (a *Analyzer) score(impact Impact, player, opponent vision.Position, hitRadius, screenWidth float64) MoveOutcome {
	g := Measure(player, opponent, impact.Location)
	base := math.Min(impact.Location.Confidence, math.Min(player.Confidence, opponent.Confidence))

	out := MoveOutcome{
		ImpactLocation:    impact.Location,
		TerrainChangeArea: impact.Area,
		Units:             UnitsPixels,
	}

	if g.Degenerate {
		out.Confidence = vision.ClampConfidence(base * a.config.DegeneratePenalty)
		out.Verdict = VerdictUnknown
		a.logger.Debug("degenerate target line",
			"player", player, "opponent", opponent, "confidence", out.Confidence)
		return a.finish(out, g, screenWidth)
	}

	out.HitDetected = impact.Location.DistanceTo(opponent) <= hitRadius
	out.DistanceError = g.DistanceError
	// A usable line always scores above the degenerate penalty.
	p := a.config.DegeneratePenalty
	out.Confidence = vision.ClampConfidence(base * (p + (1-p)*g.alignment()))
	out.Verdict = verdict(out.HitDetected, g.DistanceError, a.config.NearMissTolerance)
	return a.finish(out, g, screenWidth)
}

// noSignal reports a turn with no impact region: the location is the
// centroid of the unchanged pixels and confidence is the fixed floor.
func (a *Analyzer) noSignal(mask gocv.Mat, largest int) MoveOutcome {
	x, y := vision.NoChangeCentroid(mask)
	a.logger.Debug("no impact region", "largest_area", largest, "min_area", a.config.ImpactMinArea)

	out := MoveOutcome{
		ImpactLocation: vision.NewPosition(x, y, a.config.NoSignalConfidence),
		Confidence:     a.config.NoSignalConfidence,
		Verdict:        VerdictNoSignal,
		Units:          UnitsPixels,
	}
	if a.config.ReportLateralOffset {
		zero := 0.0
		out.LateralOffset = &zero
	}
	if a.config.NormalizeByScreenSize {
		out.Units = a.config.NormalizationBasis
	}
	return out
}

// finish applies the reporting options: lateral offset and normalization.
func (a *Analyzer) finish(out MoveOutcome, g Geometry, screenWidth float64) MoveOutcome {
	lateral := g.Lateral
	if a.config.NormalizeByScreenSize {
		basis := screenWidth
		if a.config.NormalizationBasis == BasisTargetLine {
			basis = g.TargetLength
		}
		out.Units = a.config.NormalizationBasis
		if basis > 0 {
			out.DistanceError /= basis
			lateral /= basis
		} else {
			out.DistanceError, lateral = 0, 0
		}
	}
	if a.config.ReportLateralOffset {
		out.LateralOffset = &lateral
	}
	return out
}

// changeMask returns the binary mask of pixels that changed between pre and
// post, dilated if configured.
func (a *Analyzer) changeMask(pre, post vision.Frame) (gocv.Mat, error) {
	if err := pre.SameSize(post); err != nil {
		return gocv.NewMat(), err
	}

	before, err := pre.Mat()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("pre-shot frame: %w", err)
	}
	defer before.Close()
	after, err := post.Mat()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("post-shot frame: %w", err)
	}
	defer after.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(before, after, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	a.changed(gray, &mask)

	if k := a.config.DilateSize; k > 0 {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
		defer kernel.Close()
		dilated := gocv.NewMat()
		gocv.Dilate(mask, &dilated, kernel)
		mask.Close()
		mask = dilated
	}
	return mask, nil
}
