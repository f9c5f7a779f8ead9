package encoder

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/gwlsn/encbench/internal/params"
	"github.com/gwlsn/encbench/internal/sequence"
)

// vvenc is the Fraunhofer VVC encoder (vvencapp).
type vvenc struct{}

func init() { Register(vvenc{}) }

func (vvenc) Name() string { return "vvenc" }
func (vvenc) RemoteURL() string { return "https://github.com/fraunhoferhhi/vvenc.git" }

func (vvenc) OutputSuffix() string { return "vvc" }

func (vvenc) PositionalArgs() []string { return []string{"--preset"} }

func (vvenc) QualityFlag(q params.Quality) (string, error) {
	switch q {
	case params.QP:
		return "--qp", nil
	case params.Bitrate, params.BPP, params.ResScaledBitrate, params.ResRootScaledBitrate:
		return "--bitrate", nil
	default:
		return "", fmt.Errorf("vvenc does not support quality parameter %s", q.Name())
	}
}

func (vvenc) BuildSteps(defines []string) [][]string {
	flags := "-O2"
	for _, d := range defines {
		flags += " -D" + d
	}
	return [][]string{
		{"cmake", "-S", ".", "-B", "build", "-DCMAKE_BUILD_TYPE=Release",
			"-DCMAKE_CXX_FLAGS=" + flags},
		{"cmake", "--build", "build", "--parallel", strconv.Itoa(runtime.NumCPU())},
	}
}

func (vvenc) BuiltBinary() string { return "build/source/App/vvencapp/vvencapp" }

func (vvenc) EncodeArgs(args []string, seq *sequence.Sequence, outPath string) []string {
	argv := []string{
		"-i", seq.Path,
		"--size", fmt.Sprintf("%dx%d", seq.Width, seq.Height),
		"--framerate", strconv.Itoa(seq.Framerate),
	}
	if seq.BitDepth == 10 {
		argv = append(argv, "--internal-bitdepth", "10")
	}
	argv = append(argv, args...)
	return append(argv, "-o", outPath)
}
