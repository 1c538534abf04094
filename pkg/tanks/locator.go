package tanks

import (
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"gocv.io/x/gocv"
)

// Result holds both tank positions. A position with zero confidence is the
// fallback corner of its half.
type Result struct {
	Player       vision.Position `json:"player"`
	Opponent     vision.Position `json:"opponent"`
	PlayerArea   int             `json:"player_area"`
	OpponentArea int             `json:"opponent_area"`
}

// Found reports whether both tanks were detected.
func (r Result) Found() bool {
	return r.Player.Confidence > 0 && r.Opponent.Confidence > 0
}

// Locator finds tanks by colour. It is stateless and safe for concurrent use.
type Locator struct {
	config Config
	mask   vision.MaskFunc
	logger *slog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(loc *Locator) { loc.logger = l }
}

// New creates a locator after validating cfg.
func New(cfg Config, opts ...Option) (*Locator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Locator{
		config: cfg,
		mask:   vision.InHSVRange(cfg.ColorRange),
		logger: slog.Default().With("component", "tanks"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the locator configuration.
func (l *Locator) Config() Config {
	return l.config
}

// Locate returns the player (bottom-left) and opponent (bottom-right) tank
// positions. A half with no blob of at least MinBlobArea pixels yields its
// bottom corner with confidence 0; this is not an error.
func (l *Locator) Locate(frame vision.Frame) (Result, error) {
	bgr, err := frame.Mat()
	if err != nil {
		return Result{}, err
	}
	defer bgr.Close()

	left, right := l.searchAreas(bgr.Cols(), bgr.Rows())

	var res Result
	res.Player, res.PlayerArea = l.find(bgr, left, image.Pt(0, bgr.Rows()-1))
	res.Opponent, res.OpponentArea = l.find(bgr, right, image.Pt(bgr.Cols()-1, bgr.Rows()-1))

	if !res.Found() {
		l.logger.Debug("tank detection fell back",
			"player_conf", res.Player.Confidence,
			"opponent_conf", res.Opponent.Confidence,
			"player_area", res.PlayerArea,
			"opponent_area", res.OpponentArea)
	}
	return res, nil
}

// searchAreas returns the left and right halves of the lower crop.
func (l *Locator) searchAreas(w, h int) (left, right image.Rectangle) {
	cropH := int(math.Round(float64(h) * l.config.CropFraction))
	if cropH < 1 {
		cropH = 1
	}
	if cropH > h {
		cropH = h
	}
	top := h - cropH
	mid := w / 2
	if mid < 1 {
		mid = w
	}
	return image.Rect(0, top, mid, h), image.Rect(mid, top, w, h)
}

// find extracts the largest tank blob inside area, or returns the fallback
// corner with confidence 0. The area is also returned on fallback so
// callers can see how close detection came.
func (l *Locator) find(bgr gocv.Mat, area image.Rectangle, corner image.Point) (vision.Position, int) {
	fallback := vision.NewPosition(float64(corner.X), float64(corner.Y), 0)
	if area.Empty() {
		return fallback, 0
	}

	roi := bgr.Region(area)
	defer roi.Close()

	blob, ok := vision.ExtractLargest(roi, l.mask, area.Min, l.config.MinBlobArea)
	if !ok {
		return fallback, blob.Area
	}
	conf := vision.AreaConfidence(blob.Area, l.config.MinBlobArea, l.config.saturation())
	return blob.Position(conf), blob.Area
}
