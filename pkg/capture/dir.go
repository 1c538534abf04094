package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"gocv.io/x/gocv"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// DirSource replays a directory of screenshots in file-name order. Frame i
// is stamped i/fps.
type DirSource struct {
	files  []string
	next   int
	period time.Duration
	closed bool
}

// OpenDir lists the image files in dir.
func OpenDir(dir string, fps float64) (*DirSource, error) {
	if !(fps > 0) {
		return nil, fmt.Errorf("%w: fps must be > 0", vision.ErrInvalidConfig)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	return &DirSource{files: files, period: interval(fps)}, nil
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Next decodes the next image.
func (s *DirSource) Next(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	if s.closed {
		return vision.Frame{}, ErrClosed
	}
	if s.next >= len(s.files) {
		return vision.Frame{}, io.EOF
	}

	path := s.files[s.next]
	ts := time.Duration(s.next) * s.period
	s.next++

	f, err := ReadImage(path, ts)
	if err != nil {
		return vision.Frame{}, err
	}
	return f, nil
}

// Close releases the source.
func (s *DirSource) Close() error {
	s.closed = true
	return nil
}

// ReadImage decodes a single image file into a frame.
func ReadImage(path string, ts time.Duration) (vision.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := decode(data, ts)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// decode turns encoded image bytes (PNG, JPEG, BMP) into a frame.
func decode(data []byte, ts time.Duration) (vision.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return vision.Frame{}, err
	}
	defer mat.Close()
	return vision.FromMat(mat, ts)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
