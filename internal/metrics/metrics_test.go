package metrics_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/gwlsn/encbench/internal/metrics"
)

func newStore(t *testing.T) *metrics.Store {
	t.Helper()
	return metrics.NewStore(filepath.Join(t.TempDir(), "run_metrics.json"))
}

func TestMergePreservesFields(t *testing.T) {
	s := newStore(t)
	if err := s.Set(metrics.FieldEncodingTime, 12.5); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(metrics.FieldPSNR, 38.71); err != nil {
		t.Fatal(err)
	}
	ti, err := s.GetFloat(metrics.FieldEncodingTime)
	if err != nil || ti != 12.5 {
		t.Fatalf("encoding_time = %v, %v", ti, err)
	}
	psnr, err := s.GetFloat(metrics.FieldPSNR)
	if err != nil || psnr != 38.71 {
		t.Fatalf("psnr_avg = %v, %v", psnr, err)
	}
}

func TestMissingFieldErrors(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(metrics.FieldVMAF)
	var missing *metrics.MissingMetricError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingMetricError, got %v", err)
	}
	if missing.Field != metrics.FieldVMAF {
		t.Fatalf("MissingMetricError.Field = %q", missing.Field)
	}
}

func TestZeroIsNotMissing(t *testing.T) {
	s := newStore(t)
	if err := s.Set(metrics.FieldBitrate, 0.0); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetFloat(metrics.FieldBitrate)
	if err != nil {
		t.Fatalf("zero-valued field reported missing: %v", err)
	}
	if v != 0 {
		t.Fatalf("bitrate = %v", v)
	}
}

func TestMissingFileIsEmptyRecord(t *testing.T) {
	s := newStore(t)
	rec, err := s.Record()
	if err != nil {
		t.Fatal(err)
	}
	if len(rec) != 0 {
		t.Fatalf("record = %v, want empty", rec)
	}
	if s.Has(metrics.FieldEncodingTime) {
		t.Fatal("Has reported a field on a missing file")
	}
}

func TestHasQualityMetrics(t *testing.T) {
	s := newStore(t)
	if s.HasQualityMetrics() {
		t.Fatal("empty record reported quality metrics")
	}
	if err := s.Set(metrics.FieldSSIM, 0.98); err != nil {
		t.Fatal(err)
	}
	if !s.HasQualityMetrics() {
		t.Fatal("ssim_avg not counted as a quality metric")
	}
}

func TestReencodePolicyTable(t *testing.T) {
	tests := []struct {
		policy                        metrics.ReencodePolicy
		outputExists, timing, quality bool
		want                          bool
	}{
		{metrics.Force, true, true, true, true},
		{metrics.Force, false, false, false, true},

		{metrics.Soft, true, true, true, false},
		{metrics.Soft, true, true, false, false},
		{metrics.Soft, false, true, true, true},
		{metrics.Soft, true, false, true, true},

		{metrics.Off, true, true, true, false},
		{metrics.Off, true, true, false, false},
		{metrics.Off, false, true, true, false},
		{metrics.Off, false, true, false, true},
		{metrics.Off, true, false, true, true},
		{metrics.Off, false, false, false, true},
	}
	for _, tt := range tests {
		got := tt.policy.NeedsEncoding(tt.outputExists, tt.timing, tt.quality)
		if got != tt.want {
			t.Errorf("%s.NeedsEncoding(output=%v timing=%v quality=%v) = %v, want %v",
				tt.policy, tt.outputExists, tt.timing, tt.quality, got, tt.want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for s, want := range map[string]metrics.ReencodePolicy{
		"off": metrics.Off, "": metrics.Off, "soft": metrics.Soft, "FORCE": metrics.Force,
	} {
		got, err := metrics.ParsePolicy(s)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := metrics.ParsePolicy("sometimes"); err == nil {
		t.Fatal("ParsePolicy accepted garbage")
	}
}
