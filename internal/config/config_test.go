package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EncodeWorkers < 1 || cfg.MetricWorkers < 1 || cfg.BuildWorkers < 1 {
		t.Fatalf("worker defaults not positive: %+v", cfg)
	}
	if cfg.Reencode != "off" {
		t.Fatalf("default re-encode policy = %q, want off", cfg.Reencode)
	}
	if cfg.ToolTimeout() != 0 {
		t.Fatalf("default tool timeout = %v, want none", cfg.ToolTimeout())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.Reencode != DefaultConfig().Reencode {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encbench.yaml")
	cfg := DefaultConfig()
	cfg.WorkDir = "/data/bench"
	cfg.EncodeWorkers = 8
	cfg.Reencode = "soft"
	cfg.ToolTimeoutSeconds = 3600
	cfg.CSVFields = []string{"test", "anchor", "bd_psnr"}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.WorkDir != "/data/bench" || loaded.EncodeWorkers != 8 || loaded.Reencode != "soft" {
		t.Fatalf("round trip lost fields: %+v", loaded)
	}
	if loaded.ToolTimeout() != time.Hour {
		t.Fatalf("ToolTimeout = %v, want 1h", loaded.ToolTimeout())
	}
	if len(loaded.CSVFields) != 3 {
		t.Fatalf("CSVFields = %v", loaded.CSVFields)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encbench.yaml")
	if err := os.WriteFile(path, []byte("work_dir: /data/bench\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkDir != "/data/bench" {
		t.Fatalf("explicit field lost: %+v", cfg)
	}
	if cfg.EncodeWorkers < 1 || cfg.FFmpegPath == "" {
		t.Fatalf("omitted fields not defaulted: %+v", cfg)
	}
}

func TestPathsResolveAgainstWorkDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = "/data/bench"
	if got := cfg.OutputPath(); got != filepath.Join("/data/bench", cfg.OutputDir) {
		t.Fatalf("OutputPath = %q", got)
	}
	cfg.OutputDir = "/raid/out"
	if got := cfg.OutputPath(); got != "/raid/out" {
		t.Fatalf("absolute OutputDir not kept: %q", got)
	}
}
