// Package redact removes marker text from a composited PDF: the operations
// that show a marker are cut from the page content and an opaque fill is
// painted over the marker's box.
package redact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/locator"
)

// DefaultExpand grows each marker box before redaction, in points.
const DefaultExpand = 1.0

// Scanner finds every marker occurrence in a PDF.
type Scanner interface {
	Scan(ctx context.Context, pdfPath string) ([]locator.Hit, error)
}

// Options configures a Redactor.
type Options struct {
	Fill   Fill
	Expand float64
}

// Redactor erases residual markers.
type Redactor struct {
	scanner Scanner
	opts    Options
}

// New creates a Redactor. A zero Fill means white.
func New(scanner Scanner, opts Options) *Redactor {
	if opts.Fill == (Fill{}) {
		opts.Fill = White
	}
	if opts.Expand <= 0 {
		opts.Expand = DefaultExpand
	}
	return &Redactor{scanner: scanner, opts: opts}
}

// Result summarizes one redaction run.
type Result struct {
	Markers    int // marker occurrences found
	Operations int // text operations removed
	Pages      int
}

// Redact writes inPath to outPath with every marker occurrence removed.
// It always writes the output, also when no marker is found.
func (r *Redactor) Redact(ctx context.Context, inPath, outPath string) (Result, error) {
	hits, err := r.scanner.Scan(ctx, inPath)
	if err != nil {
		return Result{}, fmt.Errorf("scan for markers: %w", err)
	}
	if len(hits) == 0 {
		log.Debug().Str("pdf", inPath).Msg("no residual markers")
		return Result{}, copyFile(inPath, outPath)
	}

	pdf, err := pdfapi.ReadContextFile(inPath)
	if err != nil {
		return Result{}, err
	}
	if err := pdf.EnsurePageCount(); err != nil {
		return Result{}, err
	}

	byPage := make(map[int][]locator.Hit)
	var pages []int
	for _, h := range hits {
		if _, ok := byPage[h.Page]; !ok {
			pages = append(pages, h.Page)
		}
		byPage[h.Page] = append(byPage[h.Page], h)
	}

	res := Result{Markers: len(hits), Pages: len(pages)}
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := r.redactPage(pdf, p, byPage[p])
		if err != nil {
			return res, fmt.Errorf("redact page %d: %w", p, err)
		}
		res.Operations += n
	}

	var out bytes.Buffer
	if err := pdfapi.WriteContext(pdf, &out); err != nil {
		return res, err
	}
	if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
		return res, err
	}
	log.Info().
		Int("markers", res.Markers).
		Int("operations", res.Operations).
		Int("pages", res.Pages).
		Str("output", outPath).
		Msg("markers redacted")
	return res, nil
}

func (r *Redactor) redactPage(pdf *model.Context, page int, hits []locator.Hit) (int, error) {
	d, _, inh, err := pdf.PageDict(page, false)
	if err != nil {
		return 0, err
	}
	pb := inh.CropBox
	if pb == nil {
		pb = inh.MediaBox
	}
	if pb == nil {
		return 0, fmt.Errorf("page has no media box")
	}

	boxes := make([]Box, len(hits))
	for i, h := range hits {
		e := r.opts.Expand
		boxes[i] = Box{
			X0: pb.LL.X + h.Box.X0 - e,
			X1: pb.LL.X + h.Box.X1 + e,
			Y0: pb.UR.Y - h.Box.Y1 - e,
			Y1: pb.UR.Y - h.Box.Y0 + e,
		}
		log.Debug().Int("page", page).Str("marker", h.Marker).Msg("redacting marker")
	}

	content, err := pdf.PageContent(d)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return 0, err
	}
	filtered, n, err := filterContent(content, boxes, r.opts.Fill)
	if err != nil {
		return 0, err
	}

	sd, err := pdf.NewStreamDictForBuf(filtered)
	if err != nil {
		return 0, err
	}
	if err := sd.Encode(); err != nil {
		return 0, err
	}
	ref, err := pdf.IndRefForNewObject(*sd)
	if err != nil {
		return 0, err
	}
	d["Contents"] = *ref
	return n, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
