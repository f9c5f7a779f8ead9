package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/encoder"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
	"github.com/gwlsn/encbench/internal/vcs"
)

// Definition is the user-written YAML description of one benchmark: which
// tests to run over which input sequences.
type Definition struct {
	Tests     []TestDefinition     `yaml:"tests"`
	Sequences []SequenceDefinition `yaml:"sequences"`
}

// TestDefinition declares one test before revisions are resolved.
type TestDefinition struct {
	Name     string    `yaml:"name"`
	Encoder  string    `yaml:"encoder"`
	Revision string    `yaml:"revision"`
	Defines  []string  `yaml:"defines"`
	Args     string    `yaml:"args"`
	Quality  string    `yaml:"quality"`
	Values   []float64 `yaml:"values"`
	Seek     int       `yaml:"seek"`
	Frames   int       `yaml:"frames"`
	Rounds   int       `yaml:"rounds"`
	Anchors  []string  `yaml:"anchors"`
}

// SequenceDefinition names one input file with optional explicit geometry.
// Fields left zero are inferred from the filename.
type SequenceDefinition struct {
	Path      string `yaml:"path"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
	BitDepth  int    `yaml:"bit_depth"`
	Chroma    int    `yaml:"chroma"`
	Frames    int    `yaml:"frames"`
	Class     string `yaml:"class"`
}

// LoadDefinition parses a benchmark definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading benchmark definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing benchmark definition %s: %w", path, err)
	}
	if len(def.Tests) == 0 {
		return nil, fmt.Errorf("benchmark definition %s declares no tests", path)
	}
	if len(def.Sequences) == 0 {
		return nil, fmt.Errorf("benchmark definition %s declares no sequences", path)
	}
	return &def, nil
}

// Materialize resolves a definition into an unvalidated context: encoder
// families are looked up, revisions resolved to full hashes through the
// family's source clone, and sequences probed on disk.
func (d *Definition) Materialize(ctx context.Context, cfg *config.Config) (*TesterContext, error) {
	var tests []*Test
	for _, td := range d.Tests {
		t, err := td.materialize(ctx, cfg)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}

	var seqs []*sequence.Sequence
	for _, sd := range d.Sequences {
		path := sd.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.SequencesPath(), path)
		}
		seq, err := sequence.New(path, sequence.Attrs{
			Width:      sd.Width,
			Height:     sd.Height,
			Framerate:  sd.Framerate,
			BitDepth:   sd.BitDepth,
			Chroma:     sd.Chroma,
			FrameCount: sd.Frames,
			Class:      sd.Class,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("sequence ready", "sequence", seq.Stem(),
			"frames", seq.FrameCount, "duration_seconds", seq.DurationSeconds())
		seqs = append(seqs, seq)
	}

	return NewContext(tests, seqs), nil
}

func (td TestDefinition) materialize(ctx context.Context, cfg *config.Config) (*Test, error) {
	family, err := encoder.Lookup(td.Encoder)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", td.Name, err)
	}
	quality, err := params.ParseQuality(td.Quality)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", td.Name, err)
	}

	repo := vcs.NewRepo(cfg.GitPath, filepath.Join(cfg.SourcesPath(), family.Name()), family.RemoteURL())
	if err := repo.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("test %s: %w", td.Name, err)
	}
	if err := repo.Fetch(ctx); err != nil {
		logger.Warn("fetch failed, resolving against local clone", "encoder", family.Name(), "error", err)
	}
	revision, err := repo.RevParse(ctx, td.Revision)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", td.Name, err)
	}

	base := params.Set{Quality: quality, Seek: td.Seek, Frames: td.Frames, Args: td.Args}
	return NewTest(td.Name, encoder.NewBinding(family, revision, td.Defines), base,
		td.Values, td.Rounds, td.Anchors)
}
