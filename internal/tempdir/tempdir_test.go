package tempdir

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScopeClose(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	s, err := New(parent, false)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := s.Sub("render")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "base.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Errorf("scope dir still exists: %v", err)
	}
}

func TestScopeKeep(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir); err != nil {
		t.Errorf("kept scope dir missing: %v", err)
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	old := filepath.Join(parent, Prefix+"old")
	fresh := filepath.Join(parent, Prefix+"fresh")
	other := filepath.Join(parent, "unrelated")
	for _, d := range []string{old, fresh, other} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-3 * time.Hour)
	for _, d := range []string{old, other} {
		if err := os.Chtimes(d, past, past); err != nil {
			t.Fatal(err)
		}
	}

	if n := Sweep(parent, time.Hour); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale scope not removed")
	}
	for _, d := range []string{fresh, other} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("%s removed: %v", d, err)
		}
	}
}
