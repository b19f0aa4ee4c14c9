// Package converter renders DOCX documents to PDF with headless LibreOffice.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/reporterr"
)

// DefaultTimeout bounds one conversion.
const DefaultTimeout = 180 * time.Second

// LibreOffice converts documents with soffice. LibreOffice does not support
// concurrent conversions in one process tree, so every conversion holds an
// exclusive slot.
type LibreOffice struct {
	binary  string
	timeout time.Duration
	slot    chan struct{}
}

// NewLibreOffice creates a converter. An empty binary selects soffice, or
// libreoffice when soffice is not on PATH.
func NewLibreOffice(binary string, timeout time.Duration) *LibreOffice {
	if binary == "" {
		binary = "soffice"
		if _, err := exec.LookPath(binary); err != nil {
			binary = "libreoffice"
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LibreOffice{binary: binary, timeout: timeout, slot: make(chan struct{}, 1)}
}

// Binary returns the executable used for conversions.
func (l *LibreOffice) Binary() string { return l.binary }

// Acquire waits for the exclusive conversion slot. The returned function
// releases it.
func (l *LibreOffice) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.slot <- struct{}{}:
		return func() { <-l.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Version reports the installed LibreOffice version.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, l.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Render converts docxPath into a PDF inside outDir and returns its path.
// The conversion is killed, with its whole process group, when ctx ends or
// the timeout expires.
func (l *LibreOffice) Render(ctx context.Context, docxPath, outDir string) (string, error) {
	release, err := l.Acquire(ctx)
	if err != nil {
		return "", reporterr.Wrap(reporterr.KindRenderFailure, err, "waiting for renderer")
	}
	defer release()

	startTime := time.Now()
	if err := validateInput(docxPath); err != nil {
		return "", reporterr.Wrap(reporterr.KindRenderFailure, err, "input validation failed")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Create unique profile directory for this conversion
	profileDir := filepath.Join(os.TempDir(), fmt.Sprintf("libreoffice_profile_%s", uuid.New().String()))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)

	cmd := exec.Command(
		l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", filepath.ToSlash(profileDir)),
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", outDir,
		docxPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")
	if err := cmd.Start(); err != nil {
		return "", reporterr.Wrap(reporterr.KindRenderFailure, err, "start %s", l.binary)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return "", reporterr.Wrap(reporterr.KindRenderFailure, err, "conversion failed: %s", strings.TrimSpace(stderr.String()))
		}
	case <-timer.C:
		killProcessGroup(cmd.Process.Pid)
		<-done
		return "", reporterr.Wrap(reporterr.KindRenderFailure, ErrTimeout, "conversion timeout after %v", l.timeout)
	case <-ctx.Done():
		killProcessGroup(cmd.Process.Pid)
		<-done
		return "", reporterr.Wrap(reporterr.KindRenderFailure, ctx.Err(), "conversion cancelled")
	}

	output := expectedOutputPath(docxPath, outDir)
	if _, err := os.Stat(output); err != nil {
		return "", reporterr.Wrap(reporterr.KindRenderFailure, err, "output file not created")
	}

	log.Info().Str("input", docxPath).Str("output", output).Dur("duration", time.Since(startTime)).Msg("conversion successful")
	return output, nil
}

// validateInput checks if the input file is readable
func validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("file not readable: %w", err)
	}
	return file.Close()
}

// expectedOutputPath is where LibreOffice writes the PDF for inputPath.
func expectedOutputPath(inputPath, outputDir string) string {
	baseName := filepath.Base(inputPath)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	return filepath.Join(outputDir, nameWithoutExt+".pdf")
}
