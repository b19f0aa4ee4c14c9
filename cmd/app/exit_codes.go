package main

import (
	"errors"
	"os"

	"github.com/local/reportcompiler/internal/config"
	"github.com/local/reportcompiler/internal/reporterr"
)

// Exit codes for the CLI.
const (
	ExitSuccess  = 0 // Compiled
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config or placeholders
	ExitIO       = 3 // Missing or unreadable input
	ExitRender   = 4 // LibreOffice conversion failed
	ExitGeometry = 5 // Marker not found, duplicated or left in the output
)

// ErrUsage marks wrong arguments.
var ErrUsage = errors.New("invalid usage")

// exitCodeFor returns the appropriate exit code for an error.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch reporterr.KindOf(err) {
	case reporterr.KindPlaceholderSyntax, reporterr.KindEmptyPageSelection, reporterr.KindStructuralMismatch:
		return ExitUsage
	case reporterr.KindMissingSourceFile:
		return ExitIO
	case reporterr.KindRenderFailure:
		return ExitRender
	case reporterr.KindMarkerNotFound, reporterr.KindDuplicateMarker,
		reporterr.KindGeometryResolution, reporterr.KindMarkerLeak:
		return ExitGeometry
	}

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return ExitIO
	}
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigInvalid) {
		return ExitUsage
	}
	return ExitGeneral
}
