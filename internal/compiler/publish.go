package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/reporterr"
)

// checkOutput creates the parent directory of output and rejects a path
// naming a directory.
func checkOutput(output string) error {
	if output == "" {
		return reporterr.New(reporterr.KindMissingSourceFile, "no output path")
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return reporterr.New(reporterr.KindMissingSourceFile, "output %s is a directory", output)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return reporterr.Wrap(reporterr.KindMissingSourceFile, err, "create output directory")
	}
	return nil
}

// publish lets write fill a temporary file in the directory of output and
// renames it over output when write succeeds. The temporary file is removed
// on any failure.
func publish(output string, write func(tmp string) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(output), filepath.Base(output)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmp := f.Name()
	f.Close()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err = os.Rename(tmp, output); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	log.Debug().Str("output", output).Msg("output published")
	return nil
}
