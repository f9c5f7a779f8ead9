// Package encoder models a video encoder bound to a specific source
// revision and set of compile-time defines. The binding's identity drives
// output path partitioning and binary reuse across sessions.
package encoder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
)

// BuildError reports a failed external build with the tool's captured output.
type BuildError struct {
	Binding string
	Output  string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of %s failed: %v\n%s", e.Binding, e.Err, e.Output)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Family is one encoder implementation. Each family knows its command-line
// dialect and how to build itself from a checked-out source tree.
type Family interface {
	// Name is the family identifier used in registry lookups and paths.
	Name() string
	// RemoteURL is the upstream source repository.
	RemoteURL() string
	// OutputSuffix is the bitstream file extension without the dot.
	OutputSuffix() string
	// PositionalArgs lists the flags that keep a fixed leading position
	// in canonical command lines, in order.
	PositionalArgs() []string
	// QualityFlag maps a quality parameter kind to this family's flag
	// spelling. Rate-derived kinds share the bitrate flag.
	QualityFlag(q params.Quality) (string, error)
	// BuildSteps returns the commands to run, in order, inside the source
	// tree to produce the binary for the given defines.
	BuildSteps(defines []string) [][]string
	// BuiltBinary is the path of the produced binary relative to the
	// source tree root.
	BuiltBinary() string
	// EncodeArgs assembles the full argument vector for encoding seq into
	// outPath with the given canonical parameter list.
	EncodeArgs(args []string, seq *sequence.Sequence, outPath string) []string
}

var registry = map[string]Family{}

// Register adds a family to the lookup table. Called from family init().
func Register(f Family) {
	registry[f.Name()] = f
}

// Lookup resolves an encoder family by name.
func Lookup(name string) (Family, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
	return f, nil
}

// Binding is one encoder family at one resolved revision with one set of
// defines. Two bindings are equal iff all three components match.
type Binding struct {
	Family   Family
	Revision string   // full commit hash
	Defines  []string // sorted, deduplicated
}

// NewBinding creates a binding. Defines are sorted and deduplicated so that
// the identity hash is order-independent.
func NewBinding(family Family, revision string, defines []string) *Binding {
	d := slices.Clone(defines)
	slices.Sort(d)
	d = slices.Compact(d)
	return &Binding{Family: family, Revision: revision, Defines: d}
}

// RevShort is the 16-hex-char revision prefix used in file names.
func (b *Binding) RevShort() string {
	if len(b.Revision) <= 16 {
		return b.Revision
	}
	return b.Revision[:16]
}

// DefinesShort is an 8-hex-char digest of the sorted defines.
func (b *Binding) DefinesShort() string {
	sum := md5.Sum([]byte(strings.Join(b.Defines, " ")))
	return hex.EncodeToString(sum[:])[:8]
}

// Identity is the stable name partitioning outputs and binaries on disk.
func (b *Binding) Identity() string {
	return fmt.Sprintf("%s_%s_%s", b.Family.Name(), b.RevShort(), b.DefinesShort())
}

// ExePath is where the built binary for this binding lives under binDir.
func (b *Binding) ExePath(binDir string) string {
	return filepath.Join(binDir, b.Identity())
}

// Equal reports whether two bindings denote the same built encoder.
func (b *Binding) Equal(other *Binding) bool {
	return b.Family.Name() == other.Family.Name() &&
		b.Revision == other.Revision &&
		slices.Equal(b.Defines, other.Defines)
}

// Build produces the binding's executable under binDir, checking out the
// revision in srcDir first. An existing binary at the target path makes the
// whole call a no-op. The build tool output is written next to the binary
// as <exe>_build_log.txt and carried in the error on failure.
func (b *Binding) Build(ctx context.Context, srcDir, binDir string) (string, error) {
	exe := b.ExePath(binDir)
	if _, err := os.Stat(exe); err == nil {
		logger.Debug("binary already built", "exe", exe)
		return exe, nil
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("creating binary dir: %w", err)
	}

	logger.Info("building encoder", "binding", b.Identity())
	var log strings.Builder
	for _, step := range b.Family.BuildSteps(b.Defines) {
		cmd := exec.CommandContext(ctx, step[0], step[1:]...)
		cmd.Dir = srcDir
		out, err := cmd.CombinedOutput()
		fmt.Fprintf(&log, "$ %s\n%s\n", strings.Join(step, " "), out)
		if err != nil {
			writeBuildLog(exe, log.String())
			return "", &BuildError{Binding: b.Identity(), Output: log.String(), Err: err}
		}
	}
	writeBuildLog(exe, log.String())

	src := filepath.Join(srcDir, b.Family.BuiltBinary())
	if err := copyFile(src, exe); err != nil {
		return "", &BuildError{Binding: b.Identity(), Output: log.String(), Err: err}
	}
	return exe, nil
}

func writeBuildLog(exe, content string) {
	path := exe + "_build_log.txt"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Warn("cannot write build log", "path", path, "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening built binary: %w", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying binary: %w", err)
	}
	return nil
}

// DummyRun validates a parameter list cheaply by encoding one synthetic
// frame. A non-zero exit means the encoder rejects the arguments.
func (b *Binding) DummyRun(ctx context.Context, exe string, args []string) error {
	dir, err := os.MkdirTemp("", "encbench-dummy-*")
	if err != nil {
		return fmt.Errorf("creating dummy workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	const w, h = 144, 144
	in := filepath.Join(dir, "dummy_144x144_25fps_8bit_420.yuv")
	frame := make([]byte, w*h*3/2)
	if err := os.WriteFile(in, frame, 0o644); err != nil {
		return fmt.Errorf("writing dummy frame: %w", err)
	}
	seq, err := sequence.New(in, sequence.Attrs{})
	if err != nil {
		return fmt.Errorf("describing dummy input: %w", err)
	}
	outPath := filepath.Join(dir, "dummy."+b.Family.OutputSuffix())

	argv := b.Family.EncodeArgs(args, seq, outPath)
	cmd := exec.CommandContext(ctx, exe, argv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("dummy run rejected arguments: %w\n%s", err, string(out))
	}
	return nil
}

// Encode runs the executable with the given argument vector and returns the
// wall-clock duration together with the captured combined output.
func Encode(ctx context.Context, exe string, argv []string) (time.Duration, string, error) {
	cmd := exec.CommandContext(ctx, exe, argv...)
	start := time.Now()
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, string(out), fmt.Errorf("%s: %w", filepath.Base(exe), err)
	}
	return elapsed, string(out), nil
}
