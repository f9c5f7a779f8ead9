// Package compare computes anchor-relative figures: per-point speedup and
// Bjontegaard-style bitrate deltas between a test and its anchor. A
// comparison that cannot be made yields NaN, never an error; reports render
// NaN distinctly.
package compare

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
)

// Point is one operating point of a rate-distortion curve.
type Point struct {
	Rate    float64 // bits per second
	Quality float64 // metric value (PSNR dB, SSIM, VMAF score)
}

// bdGridSamples is the resolution of the integration grid over the
// overlapping quality range.
const bdGridSamples = 100

// BDRate returns the average bitrate difference of test against anchor at
// equal quality, in percent: negative means the test needs fewer bits.
// Each series needs at least two points and the quality ranges must
// overlap; otherwise the result is NaN. Curves are fitted as monotone
// cubics of log-rate over quality, so no overshoot between operating
// points distorts the integral.
func BDRate(test, anchor []Point) float64 {
	testFit, testLo, testHi, ok := fitLogRate(test)
	if !ok {
		return math.NaN()
	}
	anchorFit, anchorLo, anchorHi, ok := fitLogRate(anchor)
	if !ok {
		return math.NaN()
	}

	lo := math.Max(testLo, anchorLo)
	hi := math.Min(testHi, anchorHi)
	if lo >= hi {
		return math.NaN()
	}

	xs := make([]float64, bdGridSamples)
	diff := make([]float64, bdGridSamples)
	step := (hi - lo) / float64(bdGridSamples-1)
	for i := range xs {
		x := lo + float64(i)*step
		xs[i] = x
		diff[i] = testFit.Predict(x) - anchorFit.Predict(x)
	}
	avg := integrate.Trapezoidal(xs, diff) / (hi - lo)
	return (math.Pow(10, avg) - 1) * 100
}

// fitLogRate fits log10(rate) as a monotone function of quality and returns
// the fitted curve with its quality range. ok is false when the series has
// fewer than two usable points or repeated quality values.
func fitLogRate(points []Point) (curve interp.FritschButland, lo, hi float64, ok bool) {
	usable := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Rate > 0 && !math.IsNaN(p.Rate) && !math.IsNaN(p.Quality) {
			usable = append(usable, p)
		}
	}
	if len(usable) < 2 {
		return curve, 0, 0, false
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Quality < usable[j].Quality })

	xs := make([]float64, len(usable))
	ys := make([]float64, len(usable))
	for i, p := range usable {
		xs[i] = p.Quality
		ys[i] = math.Log10(p.Rate)
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return curve, 0, 0, false
		}
	}
	if err := curve.Fit(xs, ys); err != nil {
		return curve, 0, 0, false
	}
	return curve, xs[0], xs[len(xs)-1], true
}

// Speedup is the anchor-to-test encoding time ratio for one sweep index.
func Speedup(testSeconds, anchorSeconds float64) float64 {
	if testSeconds <= 0 {
		return math.NaN()
	}
	return anchorSeconds / testSeconds
}

// meanSkipNaN averages the usable values; NaN when none are usable.
func meanSkipNaN(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
