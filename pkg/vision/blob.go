package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// Column layout of the stats matrix produced by ConnectedComponentsWithStats.
const (
	ccStatLeft = iota
	ccStatTop
	ccStatWidth
	ccStatHeight
	ccStatArea
)

// Blob is a connected region of mask pixels.
type Blob struct {
	Area     int             `json:"area"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Bounds   image.Rectangle `json:"bounds"`
	Labelled int             `json:"labelled"` // components found, background excluded
}

// Position returns the blob centroid with the given confidence.
func (b Blob) Position(confidence float64) Position {
	return NewPosition(b.X, b.Y, confidence)
}

// LargestBlob finds the 8-connected component with the most pixels in a
// single-channel mask. Coordinates are shifted by origin so callers working
// on a sub-region get frame coordinates back. The bool is false when no
// component reaches minArea; the returned Blob still carries the largest
// area seen so callers can log near misses.
func LargestBlob(mask gocv.Mat, origin image.Point, minArea int) (Blob, bool) {
	if mask.Empty() {
		return Blob{}, false
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	// Row 0 is the background label.
	best, bestArea := -1, 0
	for i := 1; i < stats.Rows(); i++ {
		area := int(stats.GetIntAt(i, ccStatArea))
		if area > bestArea {
			best, bestArea = i, area
		}
	}

	found := stats.Rows() - 1
	if found < 0 {
		found = 0
	}
	if best < 0 || bestArea < minArea {
		return Blob{Area: bestArea, Labelled: found}, false
	}

	left := int(stats.GetIntAt(best, ccStatLeft)) + origin.X
	top := int(stats.GetIntAt(best, ccStatTop)) + origin.Y
	return Blob{
		Area:     bestArea,
		X:        centroids.GetDoubleAt(best, 0) + float64(origin.X),
		Y:        centroids.GetDoubleAt(best, 1) + float64(origin.Y),
		Bounds:   image.Rect(left, top, left+int(stats.GetIntAt(best, ccStatWidth)), top+int(stats.GetIntAt(best, ccStatHeight))),
		Labelled: found,
	}, true
}

// ExtractLargest runs pred over src and returns the largest matching blob.
// This is the single segmentation primitive: tank detection passes a colour
// predicate, impact detection a change-threshold predicate.
func ExtractLargest(src gocv.Mat, pred MaskFunc, origin image.Point, minArea int) (Blob, bool) {
	mask := gocv.NewMat()
	defer mask.Close()
	pred(src, &mask)
	return LargestBlob(mask, origin, minArea)
}

// NoChangeCentroid returns the centroid of the zero pixels of a mask, or
// the mask centre when every pixel is set.
func NoChangeCentroid(mask gocv.Mat) (x, y float64) {
	cx, cy := float64(mask.Cols())/2, float64(mask.Rows())/2
	if mask.Empty() {
		return cx, cy
	}

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(mask, &inverted)

	m := gocv.Moments(inverted, true)
	if m["m00"] == 0 {
		return cx, cy
	}
	return m["m10"] / m["m00"], m["m01"] / m["m00"]
}
