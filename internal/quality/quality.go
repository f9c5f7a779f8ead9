// Package quality computes PSNR, SSIM and VMAF for an encoded bitstream
// against its raw reference using ffmpeg. Tool failures surface the full
// captured output; scores are never silently zeroed.
package quality

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/sequence"
)

// Scores are the average quality metrics of one encoded stream.
type Scores struct {
	PSNR float64
	SSIM float64
	VMAF float64
}

// Measure decodes the encoded file and compares it frame by frame against
// the raw reference sequence. seek and frames mirror the encode window so
// the compared streams align.
func Measure(ctx context.Context, cfg *config.Config, encodedPath string, seq *sequence.Sequence, frames, seek int) (Scores, error) {
	var s Scores
	var err error
	if s.PSNR, err = run(ctx, cfg, encodedPath, seq, frames, seek, "psnr", parsePSNR); err != nil {
		return s, err
	}
	if s.SSIM, err = run(ctx, cfg, encodedPath, seq, frames, seek, "ssim", parseSSIM); err != nil {
		return s, err
	}
	if s.VMAF, err = run(ctx, cfg, encodedPath, seq, frames, seek, vmafFilter(cfg), parseVMAF); err != nil {
		return s, err
	}
	return s, nil
}

func vmafFilter(cfg *config.Config) string {
	// Some ffmpeg builds reject "-" as log_path, /dev/stdout works everywhere.
	if cfg.VMAFModel != "" {
		return fmt.Sprintf("libvmaf=model=version=%s:log_fmt=json:log_path=/dev/stdout", cfg.VMAFModel)
	}
	return "libvmaf=log_fmt=json:log_path=/dev/stdout"
}

// run invokes ffmpeg with input 0 = distorted (decoded bitstream) and
// input 1 = reference (raw video) through one comparison filter.
func run(ctx context.Context, cfg *config.Config, encodedPath string, seq *sequence.Sequence, frames, seek int, filter string, parse func(string) (float64, error)) (float64, error) {
	args := []string{"-i", encodedPath}
	if seek > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(seek)/float64(seq.Framerate), 'f', -1, 64))
	}
	args = append(args,
		"-f", "rawvideo",
		"-pixel_format", seq.PixelFormat(),
		"-video_size", fmt.Sprintf("%dx%d", seq.Width, seq.Height),
		"-framerate", strconv.Itoa(seq.Framerate),
		"-i", seq.Path,
		"-filter_complex", fmt.Sprintf("[0:v][1:v]%s", filter),
	)
	if frames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(frames))
	}
	args = append(args, "-f", "null", "-")

	logger.Debug("running quality tool", "filter", filter, "encoded", encodedPath)
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("quality computation (%s) failed: %w\n%s", filter, err, string(out))
	}
	return parse(string(out))
}

var (
	psnrPattern = regexp.MustCompile(`PSNR.*average:([\d.]+)`)
	ssimPattern = regexp.MustCompile(`SSIM.*All:([\d.]+)`)

	vmafPatterns = []*regexp.Regexp{
		regexp.MustCompile(`VMAF score:\s*([\d.]+)`),
		regexp.MustCompile(`"vmaf"[^}]*"mean":\s*([\d.]+)`),
		regexp.MustCompile(`vmaf_v.*mean:\s*([\d.]+)`),
	}
)

func parsePSNR(output string) (float64, error) {
	return matchScore(psnrPattern, output, "PSNR")
}

func parseSSIM(output string) (float64, error) {
	return matchScore(ssimPattern, output, "SSIM")
}

func parseVMAF(output string) (float64, error) {
	for _, p := range vmafPatterns {
		if m := p.FindStringSubmatch(output); len(m) >= 2 {
			score, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
			if err == nil {
				return score, nil
			}
		}
	}
	return 0, fmt.Errorf("could not parse VMAF score from ffmpeg output")
}

func matchScore(pattern *regexp.Regexp, output, name string) (float64, error) {
	m := pattern.FindStringSubmatch(output)
	if len(m) < 2 {
		return 0, fmt.Errorf("could not parse %s from ffmpeg output", name)
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s value %q: %w", name, m[1], err)
	}
	return score, nil
}
