// Package sequence describes raw input video files. Geometry and format are
// taken from explicit attributes when given, otherwise inferred from the
// conventional `name_<w>x<h>_<fps>fps_<depth>bit_<chroma>.yuv` file naming,
// and the frame count falls back to a file-size computation.
package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultFramerate = 25
	defaultChroma    = 420
	defaultBitDepth  = 8
)

var (
	resolutionPattern = regexp.MustCompile(`([0-9]+)x([0-9]+)`)
	frameratePattern  = regexp.MustCompile(`[0-9]+x[0-9]+_([0-9]+)fps`)
	bitDepthPattern   = regexp.MustCompile(`[0-9]+x[0-9]+_[0-9]+fps_([0-9]+)bit`)
	chromaPattern     = regexp.MustCompile(`[0-9]+x[0-9]+_[0-9]+fps_[0-9]+bit_([0-9]+)`)
	classPattern      = regexp.MustCompile(`(?i)hevc-([a-z])`)
)

// Attrs carries explicitly supplied sequence attributes. Zero values mean
// "not given" and are filled from the filename or defaults.
type Attrs struct {
	Width      int
	Height     int
	Framerate  int
	Chroma     int
	BitDepth   int
	FrameCount int
	Class      string
}

// Sequence is a read-only raw video descriptor, constructed once per
// distinct file path for the duration of a run.
type Sequence struct {
	Path       string
	Width      int
	Height     int
	Framerate  int
	Chroma     int // 400 or 420
	BitDepth   int // 8 or 10
	FrameCount int
	Class      string
}

// New builds a Sequence for path. Explicit attributes always win over
// filename-derived ones; anything still unknown falls back to defaults,
// except resolution which must be determinable.
func New(path string, explicit Attrs) (*Sequence, error) {
	name := filepath.Base(path)

	s := &Sequence{
		Path:       path,
		Width:      explicit.Width,
		Height:     explicit.Height,
		Framerate:  explicit.Framerate,
		Chroma:     explicit.Chroma,
		BitDepth:   explicit.BitDepth,
		FrameCount: explicit.FrameCount,
		Class:      explicit.Class,
	}

	if s.Width == 0 || s.Height == 0 {
		if m := resolutionPattern.FindStringSubmatch(name); m != nil {
			s.Width, _ = strconv.Atoi(m[1])
			s.Height, _ = strconv.Atoi(m[2])
		} else {
			return nil, fmt.Errorf("sequence %s: resolution not given and not present in filename", name)
		}
	}

	if s.Framerate == 0 {
		if m := frameratePattern.FindStringSubmatch(name); m != nil {
			s.Framerate, _ = strconv.Atoi(m[1])
		} else {
			s.Framerate = defaultFramerate
		}
	}

	if s.BitDepth == 0 {
		if m := bitDepthPattern.FindStringSubmatch(name); m != nil {
			s.BitDepth, _ = strconv.Atoi(m[1])
		} else {
			s.BitDepth = defaultBitDepth
		}
	}
	if s.BitDepth != 8 && s.BitDepth != 10 {
		return nil, fmt.Errorf("sequence %s: unsupported bit depth %d", name, s.BitDepth)
	}

	if s.Chroma == 0 {
		if m := chromaPattern.FindStringSubmatch(name); m != nil {
			s.Chroma, _ = strconv.Atoi(m[1])
		} else {
			s.Chroma = defaultChroma
		}
	}
	if s.Chroma != 400 && s.Chroma != 420 {
		return nil, fmt.Errorf("sequence %s: unsupported chroma format %d", name, s.Chroma)
	}

	if s.Class == "" {
		if m := classPattern.FindStringSubmatch(path); m != nil {
			s.Class = strings.ToUpper(m[1])
		}
	}

	if s.FrameCount == 0 {
		count, err := frameCountFromSize(path, s.FrameBytes())
		if err != nil {
			return nil, fmt.Errorf("sequence %s: frame count not given and not derivable: %w", name, err)
		}
		s.FrameCount = count
	}

	return s, nil
}

func frameCountFromSize(path string, frameBytes int64) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if frameBytes == 0 {
		return 0, fmt.Errorf("zero frame size")
	}
	return int(info.Size() / frameBytes), nil
}

// BytesPerPixel is 1 for 8-bit content and 2 for 10-bit.
func (s *Sequence) BytesPerPixel() int {
	if s.BitDepth > 8 {
		return 2
	}
	return 1
}

// PixelsPerFrame counts luma plus subsampled chroma samples per frame.
func (s *Sequence) PixelsPerFrame() int {
	luma := s.Width * s.Height
	if s.Chroma == 400 {
		return luma
	}
	return luma * 3 / 2
}

// FrameBytes is the size of one raw frame on disk.
func (s *Sequence) FrameBytes() int64 {
	return int64(s.PixelsPerFrame()) * int64(s.BytesPerPixel())
}

// DurationSeconds is the sequence duration at its native framerate.
func (s *Sequence) DurationSeconds() float64 {
	return float64(s.FrameCount) / float64(s.Framerate)
}

// FramesFrom returns the number of frames available after a seek offset.
func (s *Sequence) FramesFrom(seek int) int {
	if seek >= s.FrameCount {
		return 0
	}
	return s.FrameCount - seek
}

// PixelFormat returns the ffmpeg pixel format string for the sequence.
func (s *Sequence) PixelFormat() string {
	switch {
	case s.Chroma == 400 && s.BitDepth == 8:
		return "gray"
	case s.Chroma == 400 && s.BitDepth == 10:
		return "gray16le"
	case s.Chroma == 420 && s.BitDepth == 8:
		return "yuv420p"
	default:
		return "yuv420p10le"
	}
}

// Stem is the file name without directory or extension, used as the base
// of output file names.
func (s *Sequence) Stem() string {
	name := filepath.Base(s.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (s *Sequence) String() string {
	return fmt.Sprintf("%s (%dx%d %dfps %d-bit %d)", s.Stem(), s.Width, s.Height, s.Framerate, s.BitDepth, s.Chroma)
}
