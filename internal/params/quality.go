package params

import (
	"fmt"
	"math"
	"strings"
)

// Quality identifies the encoder control swept across a test to trace a
// rate-distortion curve.
type Quality int

const (
	QP Quality = iota + 1
	Bitrate
	CRF
	BPP
	ResScaledBitrate
	ResRootScaledBitrate
)

// ParseQuality resolves a short name from configuration to a kind.
func ParseQuality(s string) (Quality, error) {
	for _, q := range []Quality{QP, Bitrate, CRF, BPP, ResScaledBitrate, ResRootScaledBitrate} {
		if strings.EqualFold(s, q.ShortName()) {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quality parameter %q", s)
}

// referencePixels is the 1080p pixel count that resolution-scaled bitrates
// are expressed relative to.
const referencePixels = 1920 * 1080

// Name returns the display name of the quality parameter.
func (q Quality) Name() string {
	switch q {
	case QP:
		return "QP"
	case Bitrate:
		return "bitrate"
	case CRF:
		return "CRF"
	case BPP:
		return "bits per pixel"
	case ResScaledBitrate:
		return "resolution scaled bitrate"
	case ResRootScaledBitrate:
		return "resolution root scaled bitrate"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ShortName returns the compact name used in file names and report columns.
func (q Quality) ShortName() string {
	switch q {
	case QP:
		return "qp"
	case Bitrate:
		return "br"
	case CRF:
		return "crf"
	case BPP:
		return "bpp"
	case ResScaledBitrate:
		return "rsbr"
	case ResRootScaledBitrate:
		return "rrsbr"
	default:
		return fmt.Sprintf("q%d", int(q))
	}
}

// RateLike reports whether larger values of the parameter mean more bits.
// Sweeps over rate-like parameters are ordered ascending and QP-like ones
// descending so operating points always run from low to high bitrate.
func (q Quality) RateLike() bool {
	switch q {
	case Bitrate, BPP, ResScaledBitrate, ResRootScaledBitrate:
		return true
	}
	return false
}

// Scale converts a raw sweep value into the value handed to the encoder,
// using the input sequence's geometry. It is applied exactly once, when an
// encoding run is constructed.
func (q Quality) Scale(value float64, width, height int, framerate float64, pixelsPerFrame int) float64 {
	switch q {
	case BPP:
		return value * float64(pixelsPerFrame) * framerate
	case ResScaledBitrate:
		return value * float64(width*height) / referencePixels
	case ResRootScaledBitrate:
		return value * math.Sqrt(float64(width*height)/referencePixels)
	default:
		return value
	}
}
