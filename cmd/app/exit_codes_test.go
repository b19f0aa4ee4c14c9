package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/local/reportcompiler/internal/config"
	"github.com/local/reportcompiler/internal/reporterr"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		{"placeholder syntax", reporterr.New(reporterr.KindPlaceholderSyntax, "unclosed directive"), ExitUsage},
		{"empty selection", reporterr.New(reporterr.KindEmptyPageSelection, "pages=9"), ExitUsage},
		{"structural mismatch", reporterr.New(reporterr.KindStructuralMismatch, "overlay outside a table"), ExitUsage},
		{"usage", fmt.Errorf("%w: missing output", ErrUsage), ExitUsage},
		{"config parse", fmt.Errorf("%w: line 3", config.ErrConfigParse), ExitUsage},
		{"config invalid", config.ErrConfigInvalid, ExitUsage},

		{"missing source", reporterr.New(reporterr.KindMissingSourceFile, "a.pdf"), ExitIO},
		{"file not exist", fmt.Errorf("open: %w", os.ErrNotExist), ExitIO},
		{"permission", os.ErrPermission, ExitIO},

		{"render failure", reporterr.New(reporterr.KindRenderFailure, "soffice exited 1"), ExitRender},

		{"marker not found", reporterr.New(reporterr.KindMarkerNotFound, "m"), ExitGeometry},
		{"duplicate marker", reporterr.New(reporterr.KindDuplicateMarker, "m"), ExitGeometry},
		{"geometry", reporterr.New(reporterr.KindGeometryResolution, "m"), ExitGeometry},
		{"marker leak", reporterr.New(reporterr.KindMarkerLeak, "m"), ExitGeometry},
		{"wrapped marker", fmt.Errorf("compile: %w", reporterr.New(reporterr.KindMarkerNotFound, "m")), ExitGeometry},

		{"unknown", errors.New("boom"), ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodesBelow126(t *testing.T) {
	t.Parallel()
	for _, c := range []int{ExitSuccess, ExitGeneral, ExitUsage, ExitIO, ExitRender, ExitGeometry} {
		if c < 0 || c >= 126 {
			t.Errorf("exit code %d outside the portable range", c)
		}
	}
}
