package redact_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/local/reportcompiler/internal/compositor"
	"github.com/local/reportcompiler/internal/geometry"
	"github.com/local/reportcompiler/internal/locator"
	"github.com/local/reportcompiler/internal/mupdf"
	"github.com/local/reportcompiler/internal/pdfinfo/pdfinfotest"
	"github.com/local/reportcompiler/internal/pdftest"
	"github.com/local/reportcompiler/internal/redact"
	"github.com/local/reportcompiler/internal/reporterr"
)

func TestCompositeThenRedact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	src := pdfinfotest.WriteFile(t, dir, "source.pdf",
		pdfinfotest.Letter("SOURCEONE"),
		pdfinfotest.Letter("SOURCETWO"),
	)
	base := pdfinfotest.WriteFile(t, dir, "base.pdf",
		pdfinfotest.Letter("BASETEXT", "%%OVERLAY_START_00%%"),
		pdfinfotest.Letter("%%MERGE_START_01%%"),
		pdfinfotest.Letter("RESERVED"),
		pdfinfotest.Letter("AFTER"),
	)

	comp := compositor.New(compositor.Options{})
	overlaid := filepath.Join(dir, "overlaid.pdf")
	err := comp.Overlay(ctx, base, overlaid, []compositor.OverlayTask{{
		Source:     src,
		SourcePage: 2,
		TargetPage: 1,
		Rect:       geometry.Rect{X: 72, Y: 300, W: 300, H: 200},
	}})
	if err != nil {
		t.Fatalf("Overlay() error = %v", err)
	}
	merged := filepath.Join(dir, "merged.pdf")
	err = comp.Merge(ctx, overlaid, merged, []compositor.MergeTask{{
		Source: src, Pages: []int{2, 1}, StartPage: 2, Reserved: 2, Index: 1,
	}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if _, err := pdftest.Verify(merged); !errors.Is(err, reporterr.ErrMarkerLeak) {
		t.Fatalf("Verify() before redaction = %v, want a marker leak", err)
	}

	out := filepath.Join(dir, "report.pdf")
	r := redact.New(locator.New(mupdf.NewGoFitzExtractor()), redact.Options{})
	res, err := r.Redact(ctx, merged, out)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if res.Markers != 1 || res.Operations != 1 {
		t.Errorf("Redact() = %+v, want one marker removed by one operation", res)
	}

	diag, err := pdftest.Verify(out)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if diag.TotalPages != 4 {
		t.Errorf("pages = %d, want 4", diag.TotalPages)
	}

	doc, err := fitz.New(out)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			t.Fatal(err)
		}
		pages = append(pages, strings.Join(strings.Fields(text), " "))
	}
	for i, want := range [][]string{{"BASETEXT", "SOURCETWO"}, {"SOURCETWO"}, {"SOURCEONE"}, {"AFTER"}} {
		for _, w := range want {
			if !strings.Contains(pages[i], w) {
				t.Errorf("page %d = %q, lacks %s", i+1, pages[i], w)
			}
		}
		if strings.Contains(pages[i], "%%") {
			t.Errorf("page %d = %q, still shows marker text", i+1, pages[i])
		}
	}
}
