// Package bench models the test hierarchy: a Test sweeps one encoder
// binding over a set of quality values, a SubTest is one point of that
// sweep, and an EncodingRun applies a SubTest to one input sequence for
// one round. It also hosts the context that validates and executes the
// whole configuration.
package bench

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/gwlsn/encbench/internal/encoder"
	"github.com/gwlsn/encbench/internal/metrics"
	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
)

// Test is a named sweep of quality values for one encoder binding, with
// zero or more anchor tests it is compared against.
type Test struct {
	Name     string
	Binding  *encoder.Binding
	Anchors  []string
	Rounds   int
	SubTests []*SubTest
}

// NewTest builds a test from a base parameter set and the raw sweep values.
// Values are ordered so operating points run from low to high bitrate:
// rate-like parameters ascending, QP-like descending.
func NewTest(name string, binding *encoder.Binding, base params.Set, values []float64, rounds int, anchors []string) (*Test, error) {
	if name == "" {
		return nil, fmt.Errorf("test name must not be empty")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("test %s: no quality values", name)
	}
	if rounds < 1 {
		rounds = 1
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("test %s: %w", name, err)
	}
	if _, err := binding.Family.QualityFlag(base.Quality); err != nil {
		return nil, fmt.Errorf("test %s: %w", name, err)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	// A value listed twice would make two runs share one output path.
	sorted = slices.Compact(sorted)
	if !base.Quality.RateLike() {
		slices.Reverse(sorted)
	}

	t := &Test{Name: name, Binding: binding, Anchors: slices.Clone(anchors), Rounds: rounds}
	for i, v := range sorted {
		p := base
		p.QualityValue = v
		t.SubTests = append(t.SubTests, &SubTest{Test: t, Params: p, Index: i})
	}
	return t, nil
}

// EquivalentTo reports whether two tests describe the same work: same
// binding, same parameter sets, same round count. Names and anchors are
// ignored. Two equivalent tests under different names are a configuration
// mistake caught at validation.
func (t *Test) EquivalentTo(other *Test) bool {
	if !t.Binding.Equal(other.Binding) || t.Rounds != other.Rounds ||
		len(t.SubTests) != len(other.SubTests) {
		return false
	}
	for i := range t.SubTests {
		if t.SubTests[i].Params != other.SubTests[i].Params {
			return false
		}
	}
	return true
}

// SelfAnchored reports whether the test only compares against itself.
func (t *Test) SelfAnchored() bool {
	for _, a := range t.Anchors {
		if a != t.Name {
			return false
		}
	}
	return true
}

// SubTest is one point of a test's quality sweep. Params carries the raw
// sweep value; scaling to the encoder value happens per sequence when the
// run is constructed.
type SubTest struct {
	Test   *Test
	Params params.Set
	Index  int
}

// Name is the test name qualified with the sweep point.
func (st *SubTest) Name() string {
	return fmt.Sprintf("%s_%s%s", st.Test.Name,
		st.Params.Quality.ShortName(), params.FormatValue(st.Params.QualityValue))
}

// EncodingRun is one SubTest applied to one input sequence for one round.
// All output paths derive deterministically from its identity.
type EncodingRun struct {
	SubTest *SubTest
	Seq     *sequence.Sequence
	Round   int

	// Scaled carries the quality value after the per-sequence scaling
	// rule has been applied, exactly once.
	Scaled params.Set

	encodeArgs []string
	dirName    string
}

// NewRun materializes a run, applying the quality scaling rule for the
// sequence and pre-rendering the canonical argument lists.
func NewRun(st *SubTest, seq *sequence.Sequence, round int) (*EncodingRun, error) {
	if seq.FramesFrom(st.Params.Seek) == 0 {
		return nil, fmt.Errorf("run %s/%s: seek %d leaves no frames of %d to encode",
			st.Name(), seq.Stem(), st.Params.Seek, seq.FrameCount)
	}
	scaled := st.Params
	scaled.QualityValue = st.Params.Quality.Scale(
		st.Params.QualityValue, seq.Width, seq.Height, float64(seq.Framerate), seq.PixelsPerFrame())

	family := st.Test.Binding.Family
	flag, err := family.QualityFlag(st.Params.Quality)
	if err != nil {
		return nil, err
	}
	encodeArgs, err := scaled.Canonical(family.PositionalArgs(), flag, true)
	if err != nil {
		return nil, fmt.Errorf("run %s/%s: %w", st.Name(), seq.Stem(), err)
	}
	dirName, err := scaled.CanonicalString(family.PositionalArgs(), flag, false)
	if err != nil {
		return nil, fmt.Errorf("run %s/%s: %w", st.Name(), seq.Stem(), err)
	}
	if dirName == "" {
		dirName = "default"
	}

	return &EncodingRun{
		SubTest:    st,
		Seq:        seq,
		Round:      round,
		Scaled:     scaled,
		encodeArgs: encodeArgs,
		dirName:    dirName,
	}, nil
}

// BaseName combines sequence, quality point and round into the stem all of
// the run's files share. The raw sweep value keeps the name stable across
// sequences of different geometry.
func (r *EncodingRun) BaseName() string {
	return fmt.Sprintf("%s_%s%s_%d", r.Seq.Stem(),
		r.SubTest.Params.Quality.ShortName(),
		params.FormatValue(r.SubTest.Params.QualityValue), r.Round)
}

// Dir is the run's output directory under outRoot, partitioned by binding
// identity and the canonical non-quality argument string.
func (r *EncodingRun) Dir(outRoot string) string {
	return filepath.Join(outRoot, r.SubTest.Test.Binding.Identity(), r.dirName)
}

// OutputPath is the encoded bitstream location.
func (r *EncodingRun) OutputPath(outRoot string) string {
	return filepath.Join(r.Dir(outRoot), r.BaseName()+"."+r.SubTest.Test.Binding.Family.OutputSuffix())
}

// MetricsPath is the run's JSON metrics record location.
func (r *EncodingRun) MetricsPath(outRoot string) string {
	return filepath.Join(r.Dir(outRoot), r.BaseName()+"_metrics.json")
}

// LogPath is where the encoder's captured output is written.
func (r *EncodingRun) LogPath(outRoot string) string {
	return filepath.Join(r.Dir(outRoot), r.BaseName()+"_encoding_log.txt")
}

// Store opens the run's metrics record.
func (r *EncodingRun) Store(outRoot string) *metrics.Store {
	return metrics.NewStore(r.MetricsPath(outRoot))
}

// EncodeArgs is the canonical parameter list handed to the encoder,
// quality flag included with the scaled value.
func (r *EncodingRun) EncodeArgs() []string {
	return r.encodeArgs
}

// FrameCount is the number of frames this run encodes.
func (r *EncodingRun) FrameCount() int {
	if r.Scaled.Frames > 0 {
		return r.Scaled.Frames
	}
	return r.Seq.FramesFrom(r.Scaled.Seek)
}

// ID names the run in logs and the session store.
func (r *EncodingRun) ID() string {
	return fmt.Sprintf("%s/%s/%s", r.SubTest.Test.Binding.Identity(), r.dirName, r.BaseName())
}
