package compare_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/encbench/internal/bench"
	"github.com/gwlsn/encbench/internal/compare"
	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/encoder"
	"github.com/gwlsn/encbench/internal/metrics"
	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
)

const rev = "0123456789abcdef0123456789abcdef01234567"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	return cfg
}

func newTest(t *testing.T, name string, values []float64, anchors []string) *bench.Test {
	t.Helper()
	f, err := encoder.Lookup("kvazaar")
	if err != nil {
		t.Fatal(err)
	}
	test, err := bench.NewTest(name, encoder.NewBinding(f, rev, nil),
		params.Set{Quality: params.QP}, values, 1, anchors)
	if err != nil {
		t.Fatal(err)
	}
	return test
}

func newSequence(t *testing.T, name string) *sequence.Sequence {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, 2*352*288*3/2), 0o644); err != nil {
		t.Fatal(err)
	}
	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

// fillRecords writes one metrics record per sweep point of a test.
func fillRecords(t *testing.T, cfg *config.Config, test *bench.Test, seq *sequence.Sequence,
	rates, psnrs, times []float64) {
	t.Helper()
	for i, st := range test.SubTests {
		run, err := bench.NewRun(st, seq, 1)
		if err != nil {
			t.Fatal(err)
		}
		err = run.Store(cfg.OutputPath()).SetAll(map[string]any{
			metrics.FieldBitrate:      rates[i],
			metrics.FieldEncodingTime: times[i],
			metrics.FieldPSNR:         psnrs[i],
			metrics.FieldSSIM:         0.9 + float64(i)*0.01,
			metrics.FieldVMAF:         80 + float64(i)*2,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSelfAnchorIsNeutral(t *testing.T) {
	cfg := testConfig(t)
	test := newTest(t, "solo", []float64{22, 27, 32, 37}, []string{"solo"})
	seq := newSequence(t, "akiyo_352x288_25fps_8bit_420.yuv")
	tc := bench.NewContext([]*bench.Test{test}, []*sequence.Sequence{seq})
	if err := tc.ValidateBottom(); err != nil {
		t.Fatal(err)
	}

	report, err := compare.New(cfg).Compare(tc)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Sequences) != 1 {
		t.Fatalf("sequence results = %d, want 1", len(report.Sequences))
	}
	res := report.Sequences[0]
	if res.Anchor != compare.SelfAnchorLabel {
		t.Fatalf("self-anchor label = %q, want %q", res.Anchor, compare.SelfAnchorLabel)
	}
	if len(res.Speedups) != 4 {
		t.Fatalf("speedup count = %d, want 4", len(res.Speedups))
	}
	for i, s := range res.Speedups {
		if s != 0 {
			t.Fatalf("self-anchor speedup[%d] = %v, want 0", i, s)
		}
	}
	for m, bd := range res.BDRate {
		if bd != 0 {
			t.Fatalf("self-anchor BD-rate[%s] = %v, want 0", m, bd)
		}
	}
}

func TestCompareAgainstAnchor(t *testing.T) {
	cfg := testConfig(t)
	anchor := newTest(t, "anchor", []float64{22, 27, 32, 37}, nil)
	cand := newTest(t, "cand", []float64{22, 27, 32, 37}, []string{"anchor"})
	seq := newSequence(t, "akiyo_352x288_25fps_8bit_420.yuv")

	// Sweep index 0 is the highest QP, so rates and qualities ascend.
	qualities := []float64{32.1, 35.4, 38.2, 40.9}
	fillRecords(t, cfg, anchor, seq,
		[]float64{500e3, 1000e3, 2000e3, 4000e3}, qualities,
		[]float64{10, 20, 30, 40})
	fillRecords(t, cfg, cand, seq,
		[]float64{1000e3, 2000e3, 4000e3, 8000e3}, qualities,
		[]float64{5, 10, 15, 20})

	tc := bench.NewContext([]*bench.Test{anchor, cand}, []*sequence.Sequence{seq})
	report, err := compare.New(cfg).Compare(tc)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Sequences) != 1 {
		t.Fatalf("sequence results = %d, want 1", len(report.Sequences))
	}
	res := report.Sequences[0]
	for i, want := range []float64{2, 2, 2, 2} {
		if math.Abs(res.Speedups[i]-want) > 1e-9 {
			t.Fatalf("speedup[%d] = %v, want %v", i, res.Speedups[i], want)
		}
	}
	if bd := res.BDRate[metrics.FieldPSNR]; math.Abs(bd-100) > 1e-6 {
		t.Fatalf("BD-rate over PSNR = %v, want 100", bd)
	}
	if len(report.Classes) != 1 || len(report.Overall) != 1 {
		t.Fatalf("aggregation = %d classes, %d overall", len(report.Classes), len(report.Overall))
	}
	if bd := report.Overall[0].BDRate[metrics.FieldPSNR]; math.Abs(bd-100) > 1e-6 {
		t.Fatalf("overall BD-rate = %v, want 100", bd)
	}
}

func TestMissingRecordsYieldNaN(t *testing.T) {
	cfg := testConfig(t)
	anchor := newTest(t, "anchor", []float64{22, 27, 32, 37}, nil)
	cand := newTest(t, "cand", []float64{22, 27}, []string{"anchor"})
	seq := newSequence(t, "akiyo_352x288_25fps_8bit_420.yuv")

	tc := bench.NewContext([]*bench.Test{anchor, cand}, []*sequence.Sequence{seq})
	report, err := compare.New(cfg).Compare(tc)
	if err != nil {
		t.Fatal(err)
	}
	res := report.Sequences[0]
	for _, m := range compare.QualityMetrics {
		if !math.IsNaN(res.BDRate[m]) {
			t.Fatalf("BD-rate[%s] without records = %v, want NaN", m, res.BDRate[m])
		}
	}
}
