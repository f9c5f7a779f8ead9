package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full harness configuration. It is constructed once at
// process start and passed by reference to every component; there is no
// global configuration state.
type Config struct {
	// WorkDir is the root directory for all harness state (sources,
	// binaries, encodings, reports). Relative sub-paths below resolve
	// against it.
	WorkDir string `yaml:"work_dir"`

	// SequencesDir is the directory holding raw input sequences (YUV files)
	SequencesDir string `yaml:"sequences_dir"`

	// SourcesDir is where encoder git checkouts live
	SourcesDir string `yaml:"sources_dir"`

	// BinariesDir is where built encoder executables are cached
	BinariesDir string `yaml:"binaries_dir"`

	// OutputDir is where encoded files and metrics records are written
	OutputDir string `yaml:"output_dir"`

	// ReportsDir is where CSV/HTML reports are written
	ReportsDir string `yaml:"reports_dir"`

	// DBFile is the session database path (default: WorkDir/encbench.db)
	DBFile string `yaml:"db_file"`

	// EncodeWorkers is the number of concurrent encoding runs (default 1)
	EncodeWorkers int `yaml:"encode_workers"`

	// MetricWorkers is the number of concurrent quality-metric computations.
	// Quality tools are CPU-heavy, so this is independent of EncodeWorkers.
	MetricWorkers int `yaml:"metric_workers"`

	// BuildWorkers is the number of concurrent encoder builds (default 1)
	BuildWorkers int `yaml:"build_workers"`

	// Reencode controls when existing results are discarded and re-encoded.
	// Options: "off" (default), "soft", "force". See metrics.ReencodePolicy.
	Reencode string `yaml:"reencode"`

	// ToolTimeoutSeconds bounds each external tool invocation (encoder,
	// ffmpeg, vmaf). 0 disables the timeout.
	ToolTimeoutSeconds int `yaml:"tool_timeout_seconds"`

	// FFmpegPath is the path to the ffmpeg binary (default: "ffmpeg")
	FFmpegPath string `yaml:"ffmpeg_path"`

	// GitPath is the path to the git binary (default: "git")
	GitPath string `yaml:"git_path"`

	// VMAFModel selects the libvmaf model version ("" = ffmpeg default)
	VMAFModel string `yaml:"vmaf_model"`

	// CSVFields selects and orders the columns of generated CSV reports.
	// Empty means the full default field set (see report.DefaultFields).
	CSVFields []string `yaml:"csv_fields"`

	// LogLevel is the logging verbosity: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		WorkDir:       "encbench-work",
		SequencesDir:  "sequences",
		SourcesDir:    "sources",
		BinariesDir:   "binaries",
		OutputDir:     "output",
		ReportsDir:    "reports",
		EncodeWorkers: 1,
		MetricWorkers: 1,
		BuildWorkers:  1,
		Reencode:      "off",
		FFmpegPath:    "ffmpeg",
		GitPath:       "git",
		LogLevel:      "info",
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Apply defaults for empty values
	if cfg.WorkDir == "" {
		cfg.WorkDir = "encbench-work"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.GitPath == "" {
		cfg.GitPath = "git"
	}
	if cfg.EncodeWorkers < 1 {
		cfg.EncodeWorkers = 1
	}
	if cfg.MetricWorkers < 1 {
		cfg.MetricWorkers = 1
	}
	if cfg.BuildWorkers < 1 {
		cfg.BuildWorkers = 1
	}
	if cfg.Reencode == "" {
		cfg.Reencode = "off"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// resolve joins a possibly-relative sub-path with the work dir.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// SequencesPath returns the absolute sequences directory.
func (c *Config) SequencesPath() string { return c.resolve(c.SequencesDir) }

// SourcesPath returns the absolute encoder sources directory.
func (c *Config) SourcesPath() string { return c.resolve(c.SourcesDir) }

// BinariesPath returns the absolute built-binaries directory.
func (c *Config) BinariesPath() string { return c.resolve(c.BinariesDir) }

// OutputPath returns the absolute encoding output directory.
func (c *Config) OutputPath() string { return c.resolve(c.OutputDir) }

// ReportsPath returns the absolute reports directory.
func (c *Config) ReportsPath() string { return c.resolve(c.ReportsDir) }

// DBPath returns the session database path.
func (c *Config) DBPath() string {
	if c.DBFile != "" {
		return c.resolve(c.DBFile)
	}
	return filepath.Join(c.WorkDir, "encbench.db")
}

// ToolTimeout returns the per-invocation external tool timeout.
// Zero means no timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// EnsureDirs creates the working directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.WorkDir,
		c.SequencesPath(),
		c.SourcesPath(),
		c.BinariesPath(),
		c.OutputPath(),
		c.ReportsPath(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
