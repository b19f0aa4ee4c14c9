package orchestrator

import (
	"os"
	"path/filepath"
)

// localOutput returns the path a job's report is published to under dir,
// creating dir. Directory defaults to ./reports.
func localOutput(dir, name string) (string, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}
