package encoder

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
)

// kvazaar is the HEVC encoder from Ultra Video Group.
type kvazaar struct{}

func init() { Register(kvazaar{}) }

func (kvazaar) Name() string { return "kvazaar" }
func (kvazaar) RemoteURL() string { return "https://github.com/ultravideo/kvazaar.git" }

func (kvazaar) OutputSuffix() string { return "hevc" }

func (kvazaar) PositionalArgs() []string { return []string{"--preset", "--gop"} }

func (kvazaar) QualityFlag(q params.Quality) (string, error) {
	switch q {
	case params.QP:
		return "--qp", nil
	case params.Bitrate, params.BPP, params.ResScaledBitrate, params.ResRootScaledBitrate:
		return "--bitrate", nil
	default:
		return "", fmt.Errorf("kvazaar does not support quality parameter %s", q.Name())
	}
}

func (kvazaar) BuildSteps(defines []string) [][]string {
	cflags := "-O2"
	for _, d := range defines {
		cflags += " -D" + d
	}
	return [][]string{
		{"./autogen.sh"},
		{"./configure", "CFLAGS=" + cflags},
		{"make", "-j", strconv.Itoa(runtime.NumCPU())},
	}
}

func (kvazaar) BuiltBinary() string { return "src/kvazaar" }

func (kvazaar) EncodeArgs(args []string, seq *sequence.Sequence, outPath string) []string {
	argv := []string{
		"-i", seq.Path,
		"--input-res", fmt.Sprintf("%dx%d", seq.Width, seq.Height),
		"--input-fps", strconv.Itoa(seq.Framerate),
	}
	if seq.BitDepth == 10 {
		argv = append(argv, "--input-bitdepth", "10")
	}
	argv = append(argv, args...)
	return append(argv, "-o", outPath)
}
