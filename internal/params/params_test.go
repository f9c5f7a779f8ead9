package params_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gwlsn/encbench/internal/params"
)

var kvazaarPositional = []string{"--preset", "--gop"}

func TestCanonicalPositionalFirst(t *testing.T) {
	set := params.Set{
		Quality:      params.QP,
		QualityValue: 27,
		Args:         "--gop 8 --preset fast",
	}

	got, err := set.Canonical(kvazaarPositional, "--qp", true)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	want := []string{"--preset", "fast", "--gop", "8", "--qp", "27"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	set := params.Set{
		Quality:      params.QP,
		QualityValue: 32,
		Args:         "--preset veryslow --no-wpp -n 256 --bipred --rd=2",
	}

	first, err := set.CanonicalString(kvazaarPositional, "--qp", true)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	// Feed the canonical output back in as the raw argument string.
	again := params.Set{Quality: params.QP, QualityValue: 32, Args: first}
	second, err := again.CanonicalString(kvazaarPositional, "", false)
	if err != nil {
		t.Fatalf("Canonical of canonical failed: %v", err)
	}

	if first != second {
		t.Errorf("canonicalization not idempotent:\n first: %s\nsecond: %s", first, second)
	}
}

func TestCanonicalOrderIndependent(t *testing.T) {
	a := params.Set{Quality: params.QP, QualityValue: 22, Args: "--preset fast --gop 8 --no-wpp --rd 2"}
	b := params.Set{Quality: params.QP, QualityValue: 22, Args: "--rd 2 --no-wpp --gop 8 --preset fast"}

	canonA, err := a.CanonicalString(kvazaarPositional, "--qp", true)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	canonB, err := b.CanonicalString(kvazaarPositional, "--qp", true)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	if canonA != canonB {
		t.Errorf("permuted args canonicalize differently:\na: %s\nb: %s", canonA, canonB)
	}
}

func TestCanonicalGrouping(t *testing.T) {
	// Boolean flags come before long value flags, which come before short
	// value flags; each group is lexically sorted.
	set := params.Set{
		Quality:      params.QP,
		QualityValue: 27,
		Args:         "-n 256 --rd 2 --bipred --aud -p 0",
	}

	got, err := set.Canonical(nil, "", false)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	want := []string{"--aud", "--bipred", "--rd", "2", "-n", "256", "-p", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCanonicalSplitsAttachedValues(t *testing.T) {
	a := params.Set{Args: "-n256 --rd=2"}
	b := params.Set{Args: "-n 256 --rd 2"}

	canonA, err := a.CanonicalString(nil, "", false)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	canonB, err := b.CanonicalString(nil, "", false)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	if canonA != canonB {
		t.Errorf("attached and separated values canonicalize differently: %q vs %q", canonA, canonB)
	}
}

func TestDuplicateOptionRejected(t *testing.T) {
	set := params.Set{Args: "--bar 1 --bar 2"}

	_, err := set.Canonical(nil, "", false)
	if err == nil {
		t.Fatal("expected error for duplicated option")
	}

	var cfgErr *params.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if cfgErr.Option != "--bar" {
		t.Errorf("expected offending option --bar, got %s", cfgErr.Option)
	}
}

func TestConflictingNegationRejected(t *testing.T) {
	set := params.Set{Args: "--foo --no-foo"}

	_, err := set.Canonical(nil, "", false)
	if err == nil {
		t.Fatal("expected error for conflicting negated option")
	}

	var cfgErr *params.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestQualityFlagDuplicateRejected(t *testing.T) {
	// A quality flag already present in the raw args collides with the
	// one appended by the sweep.
	set := params.Set{Quality: params.QP, QualityValue: 27, Args: "--qp 22"}

	_, err := set.Canonical(nil, "--qp", true)
	if err == nil {
		t.Fatal("expected duplicate error when raw args already contain quality flag")
	}
}

func TestSeekAndFramesIncluded(t *testing.T) {
	set := params.Set{
		Quality:      params.QP,
		QualityValue: 27,
		Seek:         10,
		Frames:       100,
		Args:         "--preset fast",
	}

	got, err := set.CanonicalString(kvazaarPositional, "--qp", true)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	for _, part := range []string{"--seek 10", "--frames 100", "--qp 27"} {
		if !strings.Contains(got, part) {
			t.Errorf("expected canonical string to contain %q, got %q", part, got)
		}
	}
}

func TestStructuralEquality(t *testing.T) {
	a := params.Set{Quality: params.QP, QualityValue: 27, Args: "--preset fast"}
	b := params.Set{Quality: params.QP, QualityValue: 27, Args: "--preset fast"}
	c := params.Set{Quality: params.QP, QualityValue: 32, Args: "--preset fast"}

	if a != b {
		t.Error("identical sets should be equal")
	}
	if a == c {
		t.Error("sets with different quality values should differ")
	}
}

func TestScaling(t *testing.T) {
	tests := []struct {
		name    string
		quality params.Quality
		value   float64
		width   int
		height  int
		fps     float64
		ppf     int
		want    float64
	}{
		{"qp untouched", params.QP, 27, 1920, 1080, 30, 3110400, 27},
		{"bitrate untouched", params.Bitrate, 1000000, 3840, 2160, 60, 12441600, 1000000},
		{"bpp scales by pixels and fps", params.BPP, 0.05, 1920, 1080, 30, 3110400, 0.05 * 3110400 * 30},
		{"res scaled at reference is identity", params.ResScaledBitrate, 500, 1920, 1080, 30, 3110400, 500},
		{"res scaled at quarter res", params.ResScaledBitrate, 500, 960, 540, 30, 777600, 125},
		{"res root scaled at quarter res", params.ResRootScaledBitrate, 500, 960, 540, 30, 777600, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.quality.Scale(tt.value, tt.width, tt.height, tt.fps, tt.ppf)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Scale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSweepOrdering(t *testing.T) {
	if params.QP.RateLike() || params.CRF.RateLike() {
		t.Error("QP and CRF are not rate-like")
	}
	for _, q := range []params.Quality{params.Bitrate, params.BPP, params.ResScaledBitrate, params.ResRootScaledBitrate} {
		if !q.RateLike() {
			t.Errorf("%s should be rate-like", q.Name())
		}
	}
}
