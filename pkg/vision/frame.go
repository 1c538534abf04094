package vision

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured screenshot. The pixel data is private and never
// modified after construction, so a Frame can be shared freely between
// goroutines.
type Frame struct {
	img *image.RGBA

	// Timestamp is the capture time as an offset from the start of the
	// stream. Sources guarantee it increases from frame to frame.
	Timestamp time.Duration
}

// NewFrame copies img into a new Frame.
func NewFrame(img image.Image, ts time.Duration) (Frame, error) {
	if img == nil || img.Bounds().Empty() {
		return Frame{}, ErrEmptyFrame
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return Frame{img: dst, Timestamp: ts}, nil
}

// FromMat builds a Frame from a BGR (or grayscale) gocv.Mat.
// The Mat is not closed.
func FromMat(mat gocv.Mat, ts time.Duration) (Frame, error) {
	if mat.Empty() {
		return Frame{}, ErrEmptyFrame
	}

	img, err := mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("convert mat: %w", err)
	}
	return NewFrame(img, ts)
}

// Bounds returns the frame rectangle, always anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Rect
}

// Size returns width and height in pixels.
func (f Frame) Size() (width, height int) {
	b := f.Bounds()
	return b.Dx(), b.Dy()
}

// Empty reports whether the frame has no pixel data.
func (f Frame) Empty() bool {
	return f.img == nil || f.img.Rect.Empty()
}

// Image returns a copy of the pixel data.
func (f Frame) Image() *image.RGBA {
	if f.img == nil {
		return nil
	}
	dst := image.NewRGBA(f.img.Rect)
	copy(dst.Pix, f.img.Pix)
	return dst
}

// Mat converts the frame to a BGR gocv.Mat. The caller owns the Mat and
// must Close it.
func (f Frame) Mat() (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	return gocv.ImageToMatRGB(f.img)
}

// SameSize returns ErrDimensionMismatch unless both frames have identical
// dimensions.
func (f Frame) SameSize(other Frame) error {
	if f.Empty() || other.Empty() {
		return ErrEmptyFrame
	}
	if f.Bounds() != other.Bounds() {
		w1, h1 := f.Size()
		w2, h2 := other.Size()
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, w1, h1, w2, h2)
	}
	return nil
}
