package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUsage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, ExitUsage},
		{"unknown command", []string{"frobnicate"}, ExitUsage},
		{"help", []string{"help"}, ExitSuccess},
		{"version", []string{"version"}, ExitSuccess},
		{"compile missing args", []string{"compile", "only-input.docx"}, ExitUsage},
		{"compile help", []string{"compile", "--help"}, ExitSuccess},
		{"inspect missing args", []string{"inspect"}, ExitUsage},
		{"page-image bad page", []string{"page-image", "a.pdf", "zero", "out.png"}, ExitUsage},
		{"unknown flag", []string{"compile", "--bogus", "a.docx", "b.pdf"}, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run(%v) = %d, want %d\nstderr: %s", tt.args, got, tt.want, stderr.String())
			}
		})
	}
}

// Not parallel: compile initializes the global logger.
func TestRunCompileMissingInput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEMP_DIR", dir)
	var stdout, stderr bytes.Buffer
	code := run([]string{"compile", filepath.Join(dir, "missing.docx"), filepath.Join(dir, "out.pdf")}, &stdout, &stderr)
	if code != ExitIO {
		t.Fatalf("exit = %d, want %d\nstderr: %s", code, ExitIO, stderr.String())
	}
	if !strings.Contains(stderr.String(), "missing.docx") {
		t.Errorf("stderr does not name the input: %s", stderr.String())
	}
}
