package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/gwlsn/encbench/internal/bench"
	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/metrics"
	"github.com/gwlsn/encbench/internal/sequence"
)

// SelfAnchorLabel marks a test compared against itself.
const SelfAnchorLabel = "none"

// QualityMetrics are the record fields BD-rate is computed over.
var QualityMetrics = []string{metrics.FieldPSNR, metrics.FieldSSIM, metrics.FieldVMAF}

// SequenceResult compares one test against one anchor on one sequence.
type SequenceResult struct {
	Test     string
	Anchor   string
	Sequence string
	Class    string
	// Speedups holds the anchor/test time ratio per sweep index.
	Speedups []float64
	// BDRate maps each quality metric to the bitrate delta percentage.
	BDRate map[string]float64
}

// ClassResult aggregates sequence results over one sequence class.
type ClassResult struct {
	Test    string
	Anchor  string
	Class   string
	Speedup float64
	BDRate  map[string]float64
}

// OverallResult aggregates class results across all classes.
type OverallResult struct {
	Test    string
	Anchor  string
	Speedup float64
	BDRate  map[string]float64
}

// Report carries all three aggregation levels.
type Report struct {
	Sequences []SequenceResult
	Classes   []ClassResult
	Overall   []OverallResult
}

// Comparator reads the metrics records of a finished session and derives
// anchor-relative figures. Unusable data turns into NaN entries, not
// errors, so one broken run cannot sink a whole report.
type Comparator struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Comparator { return &Comparator{cfg: cfg} }

// seriesPoint is the round-averaged measurement of one sweep index on one
// sequence.
type seriesPoint struct {
	rate    float64
	seconds float64
	quality map[string]float64
}

// Compare walks every test's declared anchors and builds the full report.
func (c *Comparator) Compare(tc *bench.TesterContext) (*Report, error) {
	report := &Report{}
	for _, t := range tc.Tests() {
		for _, anchorName := range t.Anchors {
			if anchorName == t.Name {
				report.Sequences = append(report.Sequences, c.selfResults(t, tc.Sequences())...)
				continue
			}
			anchor := tc.TestByName(anchorName)
			if anchor == nil {
				return nil, fmt.Errorf("anchor %q of test %q not in context", anchorName, t.Name)
			}
			for _, seq := range tc.Sequences() {
				res, err := c.compareOnSequence(t, anchor, seq)
				if err != nil {
					return nil, err
				}
				report.Sequences = append(report.Sequences, res)
			}
		}
	}
	report.Classes = aggregateClasses(report.Sequences)
	report.Overall = aggregateOverall(report.Classes)
	return report, nil
}

// selfResults renders a self-anchored test: speedup 0 per point, zero
// BD-rate, anchor labelled "none".
func (c *Comparator) selfResults(t *bench.Test, seqs []*sequence.Sequence) []SequenceResult {
	var out []SequenceResult
	for _, seq := range seqs {
		bd := map[string]float64{}
		for _, m := range QualityMetrics {
			bd[m] = 0
		}
		out = append(out, SequenceResult{
			Test:     t.Name,
			Anchor:   SelfAnchorLabel,
			Sequence: seq.Stem(),
			Class:    classLabel(seq),
			Speedups: make([]float64, len(t.SubTests)),
			BDRate:   bd,
		})
	}
	return out
}

func (c *Comparator) compareOnSequence(t, anchor *bench.Test, seq *sequence.Sequence) (SequenceResult, error) {
	testSeries, err := c.series(t, seq)
	if err != nil {
		return SequenceResult{}, err
	}
	anchorSeries, err := c.series(anchor, seq)
	if err != nil {
		return SequenceResult{}, err
	}

	n := len(testSeries)
	if len(anchorSeries) < n {
		n = len(anchorSeries)
	}
	speedups := make([]float64, n)
	for i := 0; i < n; i++ {
		speedups[i] = Speedup(testSeries[i].seconds, anchorSeries[i].seconds)
	}

	bd := map[string]float64{}
	for _, m := range QualityMetrics {
		bd[m] = BDRate(points(testSeries, m), points(anchorSeries, m))
		if math.IsNaN(bd[m]) {
			logger.Debug("comparison not possible", "test", t.Name, "anchor", anchor.Name,
				"sequence", seq.Stem(), "metric", m)
		}
	}

	return SequenceResult{
		Test:     t.Name,
		Anchor:   anchor.Name,
		Sequence: seq.Stem(),
		Class:    classLabel(seq),
		Speedups: speedups,
		BDRate:   bd,
	}, nil
}

// series reads the round-averaged measurements of every sweep point of a
// test on one sequence. Fields never written read as NaN.
func (c *Comparator) series(t *bench.Test, seq *sequence.Sequence) ([]seriesPoint, error) {
	out := make([]seriesPoint, 0, len(t.SubTests))
	for _, st := range t.SubTests {
		var rates, seconds []float64
		quality := map[string][]float64{}
		for round := 1; round <= t.Rounds; round++ {
			run, err := bench.NewRun(st, seq, round)
			if err != nil {
				return nil, err
			}
			store := run.Store(c.cfg.OutputPath())
			rates = append(rates, floatOrNaN(store, metrics.FieldBitrate))
			seconds = append(seconds, floatOrNaN(store, metrics.FieldEncodingTime))
			for _, m := range QualityMetrics {
				quality[m] = append(quality[m], floatOrNaN(store, m))
			}
		}
		pt := seriesPoint{
			rate:    meanSkipNaN(rates),
			seconds: meanSkipNaN(seconds),
			quality: map[string]float64{},
		}
		for _, m := range QualityMetrics {
			pt.quality[m] = meanSkipNaN(quality[m])
		}
		out = append(out, pt)
	}
	return out, nil
}

// RDPoint is one sweep point's round-averaged measurements, exposed for
// rate-distortion curve dumps.
type RDPoint struct {
	Index   int
	Rate    float64
	Seconds float64
	Quality map[string]float64
}

// RDSeries returns the measured operating points of a test on a sequence,
// ordered by sweep index.
func (c *Comparator) RDSeries(t *bench.Test, seq *sequence.Sequence) ([]RDPoint, error) {
	series, err := c.series(t, seq)
	if err != nil {
		return nil, err
	}
	out := make([]RDPoint, len(series))
	for i, p := range series {
		out[i] = RDPoint{Index: i, Rate: p.rate, Seconds: p.seconds, Quality: p.quality}
	}
	return out, nil
}

func floatOrNaN(store *metrics.Store, field string) float64 {
	v, err := store.GetFloat(field)
	if err != nil {
		return math.NaN()
	}
	return v
}

func points(series []seriesPoint, metric string) []Point {
	out := make([]Point, len(series))
	for i, p := range series {
		out[i] = Point{Rate: p.rate, Quality: p.quality[metric]}
	}
	return out
}

func classLabel(seq *sequence.Sequence) string {
	if seq.Class == "" {
		return "unclassified"
	}
	return seq.Class
}

type pairKey struct{ test, anchor, class string }

func aggregateClasses(seqs []SequenceResult) []ClassResult {
	grouped := map[pairKey][]SequenceResult{}
	var order []pairKey
	for _, r := range seqs {
		k := pairKey{r.Test, r.Anchor, r.Class}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].test != order[j].test {
			return order[i].test < order[j].test
		}
		if order[i].anchor != order[j].anchor {
			return order[i].anchor < order[j].anchor
		}
		return order[i].class < order[j].class
	})

	out := make([]ClassResult, 0, len(order))
	for _, k := range order {
		group := grouped[k]
		var speedups []float64
		perMetric := map[string][]float64{}
		for _, r := range group {
			speedups = append(speedups, meanSkipNaN(r.Speedups))
			for _, m := range QualityMetrics {
				perMetric[m] = append(perMetric[m], r.BDRate[m])
			}
		}
		bd := map[string]float64{}
		for _, m := range QualityMetrics {
			bd[m] = meanSkipNaN(perMetric[m])
		}
		out = append(out, ClassResult{
			Test: k.test, Anchor: k.anchor, Class: k.class,
			Speedup: meanSkipNaN(speedups), BDRate: bd,
		})
	}
	return out
}

func aggregateOverall(classes []ClassResult) []OverallResult {
	type key struct{ test, anchor string }
	grouped := map[key][]ClassResult{}
	var order []key
	for _, r := range classes {
		k := key{r.Test, r.Anchor}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].test != order[j].test {
			return order[i].test < order[j].test
		}
		return order[i].anchor < order[j].anchor
	})

	out := make([]OverallResult, 0, len(order))
	for _, k := range order {
		group := grouped[k]
		var speedups []float64
		perMetric := map[string][]float64{}
		for _, r := range group {
			speedups = append(speedups, r.Speedup)
			for _, m := range QualityMetrics {
				perMetric[m] = append(perMetric[m], r.BDRate[m])
			}
		}
		bd := map[string]float64{}
		for _, m := range QualityMetrics {
			bd[m] = meanSkipNaN(perMetric[m])
		}
		out = append(out, OverallResult{
			Test: k.test, Anchor: k.anchor,
			Speedup: meanSkipNaN(speedups), BDRate: bd,
		})
	}
	return out
}
