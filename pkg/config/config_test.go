package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"DTA_DIR", "OUTPUT_DIR", "DATA_DIR", "DB_FILE_NAME", "OUTPUT_FORMAT",
		"OPENCC_CONFIG", "LEGACY_ENCODING", "SHEET_NAME", "WATCH_DEBOUNCE"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DTADir != "dta" || cfg.OutputDir != "output" || cfg.OutputFormat != "csv" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.OpenCCConfig != "s2t" || cfg.LegacyEncoding != "gb18030" || cfg.SheetName != "Sheet1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WatchDebounce != 5*time.Second {
		t.Fatalf("debounce want=5s got=%v", cfg.WatchDebounce)
	}
	if cfg.DBPath != filepath.Join("data", "conversions.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("DATA_DIR", filepath.Join(dir, "db"))
	t.Setenv("OUTPUT_FORMAT", "both")
	t.Setenv("WATCH_DEBOUNCE", "250ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputFormat != "both" || cfg.WatchDebounce != 250*time.Millisecond {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	for _, d := range []string{cfg.OutputDir, cfg.DataDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("directory %s not created: %v", d, err)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if got := parseDurationOrDefault("nonsense", time.Second); got != time.Second {
		t.Fatalf("want fallback, got %v", got)
	}
	if got := parseDurationOrDefault("2m", time.Second); got != 2*time.Minute {
		t.Fatalf("want 2m, got %v", got)
	}
}
