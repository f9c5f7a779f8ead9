package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/encoder"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/metrics"
	"github.com/gwlsn/encbench/internal/quality"
	"github.com/gwlsn/encbench/internal/store"
	"github.com/gwlsn/encbench/internal/vcs"
)

// vcsRepo is the source clone an encoder family builds from.
func vcsRepo(cfg *config.Config, f encoder.Family) *vcs.Repo {
	return vcs.NewRepo(cfg.GitPath, filepath.Join(cfg.SourcesPath(), f.Name()), f.RemoteURL())
}

// Runner drives a validated context through its three passes: build every
// distinct binding, encode the run matrix, then compute quality metrics
// over the produced bitstreams. Build and validation failures abort the
// session; a single run failing only loses that run.
type Runner struct {
	cfg    *config.Config
	tc     *TesterContext
	sess   *store.Store
	policy metrics.ReencodePolicy
}

// NewRunner creates a runner. The session store may be nil, in which case
// run status is not persisted.
func NewRunner(cfg *config.Config, tc *TesterContext, sess *store.Store) (*Runner, error) {
	policy, err := metrics.ParsePolicy(cfg.Reencode)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, tc: tc, sess: sess, policy: policy}, nil
}

type runFailure struct {
	id  string
	err error
}

// Run executes the full session. The returned error is non-nil when the
// session aborts (validation, build) or when any run failed.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.tc.ValidateBottom(); err != nil {
		return err
	}
	if err := r.buildPass(ctx); err != nil {
		return err
	}
	if err := r.tc.ValidateTop(ctx, r.cfg.BinariesPath()); err != nil {
		return err
	}

	runs, err := r.tc.Runs()
	if err != nil {
		return err
	}
	if err := r.tc.setRunning(); err != nil {
		return err
	}
	if r.sess != nil {
		if err := r.sess.ResetRunning(); err != nil {
			logger.Warn("cannot reset stale session state", "error", err)
		}
	}

	logger.Info("starting session", "runs", len(runs),
		"encode_workers", r.cfg.EncodeWorkers, "metric_workers", r.cfg.MetricWorkers)

	failures := r.encodePass(ctx, runs)
	failures = append(failures, r.metricPass(ctx, runs)...)
	r.tc.setDone()

	if len(failures) > 0 {
		for _, f := range failures {
			logger.Error("run failed", "run", f.id, "error", f.err)
		}
		return fmt.Errorf("session finished with %d of %d runs failed", len(failures), len(runs))
	}
	logger.Info("session complete", "runs", len(runs))
	return nil
}

// RunMetrics recomputes the quality metric pass over whatever encodes
// already exist, without building or encoding anything.
func (r *Runner) RunMetrics(ctx context.Context) error {
	if err := r.tc.ValidateBottom(); err != nil {
		return err
	}
	runs, err := r.tc.Runs()
	if err != nil {
		return err
	}
	logger.Info("recomputing metrics", "runs", len(runs), "metric_workers", r.cfg.MetricWorkers)
	failures := r.metricPass(ctx, runs)
	if len(failures) > 0 {
		for _, f := range failures {
			logger.Error("run failed", "run", f.id, "error", f.err)
		}
		return fmt.Errorf("metric pass finished with %d of %d runs failed", len(failures), len(runs))
	}
	return nil
}

// buildPass builds every distinct binding. Bindings of the same family
// share a source tree, so they build sequentially within the family while
// families proceed in parallel, bounded by the configured build fan-out.
func (r *Runner) buildPass(ctx context.Context) error {
	groups := map[string][]*encoder.Binding{}
	seen := map[string]bool{}
	for _, t := range r.tc.Tests() {
		b := t.Binding
		if seen[b.Identity()] {
			continue
		}
		seen[b.Identity()] = true
		groups[b.Family.Name()] = append(groups[b.Family.Name()], b)
	}

	workers := r.cfg.BuildWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	errCh := make(chan error, len(groups))
	var wg sync.WaitGroup

	for family, bindings := range groups {
		wg.Add(1)
		go func(family string, bindings []*encoder.Binding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errCh <- r.buildFamily(ctx, family, bindings)
		}(family, bindings)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) buildFamily(ctx context.Context, family string, bindings []*encoder.Binding) error {
	srcDir := filepath.Join(r.cfg.SourcesPath(), family)
	repo := vcsRepo(r.cfg, bindings[0].Family)
	for _, b := range bindings {
		exe := b.ExePath(r.cfg.BinariesPath())
		if _, err := os.Stat(exe); err == nil {
			logger.Debug("reusing cached binary", "exe", exe)
			continue
		}
		if err := repo.Ensure(ctx); err != nil {
			return err
		}
		if err := repo.Checkout(ctx, b.Revision); err != nil {
			return err
		}
		if _, err := b.Build(ctx, srcDir, r.cfg.BinariesPath()); err != nil {
			return err
		}
	}
	return nil
}

// toolCtx derives the context external tool invocations run under.
func (r *Runner) toolCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := r.cfg.ToolTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// encodePass fans the run matrix out over the encode workers. Each run is
// side-effect-isolated to its own output file and metrics record, so no
// locking is needed beyond the work channel.
func (r *Runner) encodePass(ctx context.Context, runs []*EncodingRun) []runFailure {
	return r.fanOut(runs, r.cfg.EncodeWorkers, func(run *EncodingRun) error {
		return r.encodeOne(ctx, run)
	})
}

// metricPass computes quality metrics over completed encodes.
func (r *Runner) metricPass(ctx context.Context, runs []*EncodingRun) []runFailure {
	return r.fanOut(runs, r.cfg.MetricWorkers, func(run *EncodingRun) error {
		return r.measureOne(ctx, run)
	})
}

func (r *Runner) fanOut(runs []*EncodingRun, workers int, do func(*EncodingRun) error) []runFailure {
	if workers < 1 {
		workers = 1
	}
	work := make(chan *EncodingRun)
	var mu sync.Mutex
	var failures []runFailure
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range work {
				if err := do(run); err != nil {
					mu.Lock()
					failures = append(failures, runFailure{id: run.ID(), err: err})
					mu.Unlock()
				}
			}
		}()
	}
	for _, run := range runs {
		work <- run
	}
	close(work)
	wg.Wait()
	return failures
}

func (r *Runner) encodeOne(ctx context.Context, run *EncodingRun) error {
	outRoot := r.cfg.OutputPath()
	st := run.Store(outRoot)
	outPath := run.OutputPath(outRoot)

	if !r.policy.NeedsEncodingFor(outPath, st) {
		saved, _ := st.GetFloat(metrics.FieldEncodingTime)
		logger.Debug("cached encode reused", "run", run.ID(), "saved_seconds", saved)
		r.markSkipped(run, saved)
		return nil
	}
	if err := os.MkdirAll(run.Dir(outRoot), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	r.markRunning(run)

	binding := run.SubTest.Test.Binding
	exe := binding.ExePath(r.cfg.BinariesPath())
	argv := binding.Family.EncodeArgs(run.EncodeArgs(), run.Seq, outPath)
	logger.Info("encoding", "run", run.ID())
	if logger.IsDebug() {
		logger.Debug("encode command", "exe", exe, "args", strings.Join(argv, " "))
	}

	tctx, cancel := r.toolCtx(ctx)
	defer cancel()
	elapsed, out, err := encoder.Encode(tctx, exe, argv)

	if werr := os.WriteFile(run.LogPath(outRoot), []byte(out), 0o644); werr != nil {
		logger.Warn("cannot write encode log", "run", run.ID(), "error", werr)
	}
	if err != nil {
		os.Remove(outPath)
		r.markFailed(run, err)
		return fmt.Errorf("encode failed: %w\n%s", err, out)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		r.markFailed(run, err)
		return fmt.Errorf("encoder exited cleanly but produced no output: %w", err)
	}
	seconds := elapsed.Seconds()
	bitrate := float64(info.Size()) * 8 * float64(run.Seq.Framerate) / float64(run.FrameCount())

	if err := st.SetAll(map[string]any{
		metrics.FieldEncoder:      binding.Family.Name(),
		metrics.FieldRevision:     binding.Revision,
		metrics.FieldDefines:      strings.Join(binding.Defines, " "),
		metrics.FieldCmdline:      strings.Join(run.EncodeArgs(), " "),
		metrics.FieldInput:        run.Seq.Stem(),
		metrics.FieldResolution:   fmt.Sprintf("%dx%d", run.Seq.Width, run.Seq.Height),
		metrics.FieldEncodingTime: seconds,
		metrics.FieldBitrate:      bitrate,
	}); err != nil {
		r.markFailed(run, err)
		return err
	}
	r.markComplete(run, seconds)
	return nil
}

func (r *Runner) measureOne(ctx context.Context, run *EncodingRun) error {
	outRoot := r.cfg.OutputPath()
	st := run.Store(outRoot)
	outPath := run.OutputPath(outRoot)

	if _, err := os.Stat(outPath); err != nil {
		// Encode pass failed for this run; already reported there.
		return nil
	}
	if st.Has(metrics.FieldPSNR) && st.Has(metrics.FieldSSIM) && st.Has(metrics.FieldVMAF) {
		logger.Debug("cached metrics reused", "run", run.ID())
		return nil
	}

	logger.Info("measuring quality", "run", run.ID())
	tctx, cancel := r.toolCtx(ctx)
	defer cancel()
	scores, err := quality.Measure(tctx, r.cfg, outPath, run.Seq, run.FrameCount(), run.Scaled.Seek)
	if err != nil {
		r.markFailed(run, err)
		return err
	}
	return st.SetAll(map[string]any{
		metrics.FieldPSNR: scores.PSNR,
		metrics.FieldSSIM: scores.SSIM,
		metrics.FieldVMAF: scores.VMAF,
	})
}

func (r *Runner) markRunning(run *EncodingRun) {
	if r.sess != nil {
		if err := r.sess.MarkRunning(run.ID()); err != nil {
			logger.Warn("session store update failed", "run", run.ID(), "error", err)
		}
	}
}

func (r *Runner) markComplete(run *EncodingRun, seconds float64) {
	if r.sess != nil {
		if err := r.sess.MarkComplete(run.ID(), seconds); err != nil {
			logger.Warn("session store update failed", "run", run.ID(), "error", err)
		}
	}
}

func (r *Runner) markSkipped(run *EncodingRun, savedSeconds float64) {
	if r.sess != nil {
		if err := r.sess.MarkSkipped(run.ID(), savedSeconds); err != nil {
			logger.Warn("session store update failed", "run", run.ID(), "error", err)
		}
	}
}

func (r *Runner) markFailed(run *EncodingRun, cause error) {
	if r.sess != nil {
		if err := r.sess.MarkFailed(run.ID(), cause.Error()); err != nil {
			logger.Warn("session store update failed", "run", run.ID(), "error", err)
		}
	}
}
