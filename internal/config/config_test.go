package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DETEVAL_IOU_THRESHOLD",
		"DETEVAL_SCORE_THRESHOLD",
		"DETEVAL_MODE",
		"DETEVAL_CLASS_FILTER",
		"DETEVAL_CLASSES",
		"DETEVAL_WORKERS",
		"DETEVAL_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IoUThreshold != 0.5 || cfg.ScoreThreshold != 0.5 {
		t.Errorf("thresholds = %v/%v, want 0.5/0.5", cfg.IoUThreshold, cfg.ScoreThreshold)
	}
	if cfg.Mode != "strict" {
		t.Errorf("Mode = %q, want strict", cfg.Mode)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.ClassFilter != nil {
		t.Errorf("ClassFilter = %v, want nil", cfg.ClassFilter)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DETEVAL_IOU_THRESHOLD", "0.75")
	t.Setenv("DETEVAL_MODE", "iou")
	t.Setenv("DETEVAL_CLASS_FILTER", "Tanks, Camo,,")
	t.Setenv("DETEVAL_WORKERS", "not-a-number")
	t.Setenv("DETEVAL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IoUThreshold != 0.75 {
		t.Errorf("IoUThreshold = %v, want 0.75", cfg.IoUThreshold)
	}
	if cfg.Mode != "iou" {
		t.Errorf("Mode = %q, want iou", cfg.Mode)
	}
	if want := []string{"Tanks", "Camo"}; !reflect.DeepEqual(cfg.ClassFilter, want) {
		t.Errorf("ClassFilter = %v, want %v", cfg.ClassFilter, want)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want default for bad value", cfg.Workers)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DETEVAL_MODE", "class")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DETEVAL_SCORE_THRESHOLD=0.25\nDETEVAL_MODE=iou\nDETEVAL_CLASSES=Tanks,Radar2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("DETEVAL_SCORE_THRESHOLD")
		_ = os.Unsetenv("DETEVAL_CLASSES")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScoreThreshold != 0.25 {
		t.Errorf("ScoreThreshold = %v, want 0.25 from file", cfg.ScoreThreshold)
	}
	if cfg.Mode != "class" {
		t.Errorf("Mode = %q, want class from environment", cfg.Mode)
	}
	if want := []string{"Tanks", "Radar2"}; !reflect.DeepEqual(cfg.Classes, want) {
		t.Errorf("Classes = %v, want %v", cfg.Classes, want)
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(""); got != nil {
		t.Errorf("SplitList(\"\") = %v, want nil", got)
	}
	if got, want := SplitList(" a ,b"), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList() = %v, want %v", got, want)
	}
}
