package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opts Options
		want zerolog.Level
	}{
		{Options{}, zerolog.InfoLevel},
		{Options{Level: "warn"}, zerolog.WarnLevel},
		{Options{Level: "bogus"}, zerolog.InfoLevel},
		{Options{Level: "error", Verbose: true}, zerolog.DebugLevel},
	}
	for _, tc := range tests {
		if got := level(tc.opts); got != tc.want {
			t.Errorf("level(%+v) = %v, want %v", tc.opts, got, tc.want)
		}
	}
}

func TestAxiomEvent(t *testing.T) {
	t.Parallel()

	if _, ok := axiomEvent([]byte(`{"level":"debug","message":"x"}`)); ok {
		t.Error("debug event forwarded")
	}
	ev, ok := axiomEvent([]byte(`{"level":"info","message":"report compiled"}`))
	if !ok || ev["service"] != service || ev["message"] != "report compiled" {
		t.Errorf("event = %v, %v", ev, ok)
	}
	ev, ok = axiomEvent([]byte("not json"))
	if !ok || ev["message"] != "not json" {
		t.Errorf("raw event = %v", ev)
	}
}

func TestInitWritesFileAndConsole(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "compile.log")
	if err := Init(Options{Level: "info", Console: &console, File: file, MaxSizeMB: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	log.Debug().Msg("hidden")
	log.Info().Str("marker", "%%MERGE_START_00%%").Msg("visible")
	out := console.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"marker":"%%MERGE_START_00%%"`) {
		t.Errorf("console = %s", out)
	}
}
