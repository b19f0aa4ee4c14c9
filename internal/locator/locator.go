// Package locator finds the markers written by the mutator in a rendered PDF.
package locator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/mupdf"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
)

// Hit is one occurrence of a marker. Box uses page space with the origin at
// the top-left corner, in points.
type Hit struct {
	Marker     string
	Page       int // 1-based
	Box        mupdf.Box
	FontSize   float64
	PageWidth  float64
	PageHeight float64
}

// Locator searches rendered pages for marker text.
type Locator struct {
	src mupdf.Source
}

// New creates a Locator reading text through src.
func New(src mupdf.Source) *Locator {
	return &Locator{src: src}
}

// Source selects the text backend by name: "stext" uses mutool when it is
// installed, anything else the embedded go-fitz HTML output.
func Source(name string) mupdf.Source {
	if name == "stext" {
		ex := mupdf.NewExtractor()
		if ex.IsAvailable() {
			return ex
		}
		log.Warn().Msg("mutool not found, locating markers through go-fitz")
	}
	return mupdf.NewGoFitzExtractor()
}

// Scan returns every marker occurrence in the PDF, in page order.
func (l *Locator) Scan(ctx context.Context, pdfPath string) ([]Hit, error) {
	pages, err := l.src.Pages(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read %s text: %w", l.src.Name(), err)
	}
	var hits []Hit
	for _, p := range pages {
		hits = append(hits, FindInPage(p)...)
	}
	return hits, nil
}

// Locate requires exactly one occurrence of every wanted marker.
func (l *Locator) Locate(ctx context.Context, pdfPath string, want []placeholder.Marker) (map[string]Hit, error) {
	hits, err := l.Scan(ctx, pdfPath)
	if err != nil {
		return nil, reporterr.Wrap(reporterr.KindRenderFailure, err, "locate markers")
	}
	return Match(hits, want)
}

// Match indexes hits by marker text. It fails on the first wanted marker
// that is missing or appears more than once.
func Match(hits []Hit, want []placeholder.Marker) (map[string]Hit, error) {
	byText := make(map[string][]Hit, len(hits))
	for _, h := range hits {
		byText[h.Marker] = append(byText[h.Marker], h)
	}

	out := make(map[string]Hit, len(want))
	for _, m := range want {
		text := m.String()
		found := byText[text]
		switch {
		case len(found) == 0:
			return nil, reporterr.New(reporterr.KindMarkerNotFound, "%s does not appear in the rendered document", text).
				For(m.Index, "", "")
		case len(found) > 1:
			pages := make([]int, len(found))
			for i, h := range found {
				pages[i] = h.Page
			}
			return nil, reporterr.New(reporterr.KindDuplicateMarker, "%s appears %d times (pages %v)", text, len(found), pages).
				For(m.Index, "", "")
		}
		h := found[0]
		log.Debug().
			Str("marker", text).
			Int("page", h.Page).
			Float64("x", h.Box.X0).
			Float64("y", h.Box.Y0).
			Msg("marker located")
		out[text] = h
	}
	return out, nil
}

// FindInPage returns the markers on one page. A marker wrapped over two
// consecutive lines is reported with the union of both line fragments.
func FindInPage(p mupdf.Page) []Hit {
	var hits []Hit
	hit := func(text string, box mupdf.Box, size float64) {
		hits = append(hits, Hit{
			Marker:     text,
			Page:       p.Number,
			Box:        box,
			FontSize:   size,
			PageWidth:  p.Width,
			PageHeight: p.Height,
		})
	}

	for i, line := range p.Lines {
		runes := []rune(line.Text)
		for _, loc := range runeMatches(runes) {
			hit(string(runes[loc[0]:loc[1]]), subBox(line, loc[0], loc[1]), line.Size)
		}

		if i+1 == len(p.Lines) {
			continue
		}
		next := p.Lines[i+1]
		joined := append(append([]rune{}, runes...), []rune(next.Text)...)
		for _, loc := range runeMatches(joined) {
			if loc[0] >= len(runes) || loc[1] <= len(runes) {
				continue
			}
			box := subBox(line, loc[0], len(runes)).Union(subBox(next, 0, loc[1]-len(runes)))
			hit(string(joined[loc[0]:loc[1]]), box, max(line.Size, next.Size))
		}
	}
	return hits
}

// runeMatches returns marker matches as rune offsets.
func runeMatches(runes []rune) [][2]int {
	s := string(runes)
	locs := placeholder.MarkerPattern.FindAllStringIndex(s, -1)
	if locs == nil {
		return nil
	}
	out := make([][2]int, len(locs))
	for i, loc := range locs {
		out[i] = [2]int{len([]rune(s[:loc[0]])), len([]rune(s[:loc[1]]))}
	}
	return out
}

// subBox is the box of runes [from, to) of line.
func subBox(line mupdf.Line, from, to int) mupdf.Box {
	n := len([]rune(line.Text))
	if len(line.Chars) == n && n > 0 && to > from {
		b := line.Chars[from]
		for _, c := range line.Chars[from+1 : to] {
			b = b.Union(c)
		}
		return b
	}
	if n == 0 {
		return line.Box
	}
	w := line.Box.Width()
	return mupdf.Box{
		X0: line.Box.X0 + w*float64(from)/float64(n),
		Y0: line.Box.Y0,
		X1: line.Box.X0 + w*float64(to)/float64(n),
		Y1: line.Box.Y1,
	}
}
