// Package tempdir manages the scratch directory of one compile.
package tempdir

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Prefix names every scratch directory, so stale ones can be swept.
const Prefix = "reportcompiler-"

// Scope is a unique scratch directory removed recursively by Close unless
// Keep is set.
type Scope struct {
	Dir  string
	Keep bool
}

// New creates a scope under parent, or under the system temp dir when
// parent is empty.
func New(parent string, keep bool) (*Scope, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(parent, Prefix+"*")
	if err != nil {
		return nil, err
	}
	return &Scope{Dir: dir, Keep: keep}, nil
}

// Path joins name onto the scope directory.
func (s *Scope) Path(name ...string) string {
	return filepath.Join(append([]string{s.Dir}, name...)...)
}

// Sub creates a directory inside the scope.
func (s *Scope) Sub(name string) (string, error) {
	p := s.Path(name)
	return p, os.MkdirAll(p, 0o755)
}

// Close removes the directory, or logs where it was kept.
func (s *Scope) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	if s.Keep {
		log.Info().Str("dir", s.Dir).Msg("keeping temporary files")
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Sweep removes scratch directories under parent older than maxAge, left
// behind by crashed runs. It returns the number removed.
func Sweep(parent string, maxAge time.Duration) int {
	if parent == "" {
		parent = os.TempDir()
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(parent, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("parent", parent).Msg("swept stale temporary directories")
	}
	return removed
}
