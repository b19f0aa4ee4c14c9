package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("RENDER_TIMEOUT", "")
	t.Setenv("KEEP_TEMP", "")

	cfg := FromEnv()
	if cfg.Renderer.Timeout != 180*time.Second {
		t.Errorf("render timeout = %v", cfg.Renderer.Timeout)
	}
	if !cfg.Compile.BakeAnnotations || !cfg.Compile.Crop || !cfg.Compile.Verify || cfg.Compile.KeepTemp {
		t.Errorf("compile defaults = %+v", cfg.Compile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RENDER_TIMEOUT", "45s")
	t.Setenv("KEEP_TEMP", "yes")
	t.Setenv("MAX_NESTING_DEPTH", "not a number")

	cfg := FromEnv()
	if cfg.Renderer.Timeout != 45*time.Second {
		t.Errorf("render timeout = %v", cfg.Renderer.Timeout)
	}
	if !cfg.Compile.KeepTemp {
		t.Error("KEEP_TEMP=yes not applied")
	}
	if cfg.Compile.MaxDepth != 3 {
		t.Errorf("max depth = %d, want default 3", cfg.Compile.MaxDepth)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
renderer:
  timeout: 90s
compile:
  keep_temp: true
  redact_color: "#000000"
  locator_source: stext
storage:
  bucket: reports
`)
	t.Setenv("REPORT_CONFIG", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Renderer.Timeout != 90*time.Second || !cfg.Compile.KeepTemp || cfg.Storage.Bucket != "reports" {
		t.Errorf("cfg = %+v", cfg)
	}
	// keys absent from the file keep their environment defaults
	if !cfg.Compile.BakeAnnotations || cfg.Queue.Stream == "" {
		t.Errorf("defaults lost: %+v", cfg.Compile)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") }, ErrConfigNotFound},
		{"unknown key", func(t *testing.T) string { return writeConfig(t, "compile:\n  keeptemp: true\n") }, ErrConfigParse},
		{"bad color", func(t *testing.T) string { return writeConfig(t, "compile:\n  redact_color: white\n") }, ErrConfigInvalid},
		{"parallel renderer", func(t *testing.T) string { return writeConfig(t, "renderer:\n  max_concurrent: 4\n") }, ErrConfigInvalid},
		{"locator", func(t *testing.T) string { return writeConfig(t, "compile:\n  locator_source: ocr\n") }, ErrConfigInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path(t))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	got, err := ParseColor("#ff8000")
	if err != nil || got != [3]float64{1, 128.0 / 255, 0} {
		t.Errorf("ParseColor = %v, %v", got, err)
	}
	for _, bad := range []string{"", "#fff", "zz0000", "#12345g"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded", bad)
		}
	}
}
