// Package pdfinfo answers page count and page size questions about local PDFs.
package pdfinfo

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// Inspector reads PDF structure with pdfcpu and falls back to MuPDF for
// files pdfcpu refuses to validate.
type Inspector struct{}

// New creates an Inspector.
func New() *Inspector { return &Inspector{} }

// PageCount returns the number of pages in the PDF at path.
func (in *Inspector) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err == nil {
		return n, nil
	}
	log.Debug().Err(err).Str("pdf", path).Msg("pdfcpu page count failed, trying mupdf")

	doc, ferr := fitz.New(path)
	if ferr != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() == 0 {
		return 0, fmt.Errorf("page count: %s has no pages", path)
	}
	return doc.NumPage(), nil
}

// PageSizes returns the size of every page, 1-based page i at index i-1.
func (in *Inspector) PageSizes(path string) ([]Size, error) {
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("page dimensions: %w", err)
	}
	out := make([]Size, len(dims))
	for i, d := range dims {
		out[i] = Size{Width: d.Width, Height: d.Height}
	}
	return out, nil
}
