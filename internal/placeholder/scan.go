package placeholder

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/reporterr"
)

// Placeholder is one directive found in the primary document. It is not
// modified after Scan returns.
type Placeholder struct {
	Index     int
	Kind      Kind
	Source    string // path as written in the directive
	Path      string // absolute local path, empty for remote sources
	Spec      PageSpec
	Crop      bool
	Directive string

	// Anchor is the w:tbl of an overlay or the w:p of a merge.
	Anchor *etree.Element
}

// Remote reports whether the source is fetched over s3:// or http(s)://.
func (p Placeholder) Remote() bool { return isRemote(p.Source) }

// Nested reports whether the source is itself a report to be compiled first.
func (p Placeholder) Nested() bool {
	return strings.EqualFold(filepath.Ext(p.Source), ".docx")
}

// Scan returns the placeholders of doc in document order. Relative source
// paths resolve against baseDir. Every malformed placeholder is reported;
// the returned error joins them and the valid placeholders are still returned.
func Scan(doc *docx.Document, baseDir string) ([]Placeholder, error) {
	s := scanner{baseDir: baseDir}
	for _, block := range docx.Blocks(doc.Body()) {
		switch {
		case docx.Is(block, "tbl"):
			s.table(block)
		case docx.Is(block, "p"):
			s.paragraph(block)
		}
	}
	if existing := findExistingMarkers(doc.Body()); existing != "" {
		s.errs = append(s.errs, reporterr.New(reporterr.KindStructuralMismatch,
			"document already contains marker text %q", existing))
	}
	return s.out, errors.Join(s.errs...)
}

type scanner struct {
	baseDir string
	next    int
	out     []Placeholder
	errs    []error
}

func (s *scanner) take() int {
	i := s.next
	s.next++
	return i
}

func (s *scanner) fail(idx int, d Directive, err error) {
	s.errs = append(s.errs, reporterr.Attach(err, idx, d.Path, d.Text))
}

func (s *scanner) table(tbl *etree.Element) {
	type hit struct {
		cell *etree.Element
		text string
		d    Directive
	}
	var hits []hit
	for _, tr := range docx.Rows(tbl) {
		for _, tc := range docx.Cells(tr) {
			text := docx.CellText(tc)
			ds, err := FindDirectives(text)
			if err != nil {
				s.fail(s.take(), Directive{Text: strings.TrimSpace(text)}, err)
				continue
			}
			for _, d := range ds {
				hits = append(hits, hit{cell: tc, text: text, d: d})
			}
		}
	}
	if len(hits) == 0 {
		return
	}

	rows, cols := docx.Shape(tbl)
	if rows != 1 || cols != 1 || len(hits) != 1 {
		for _, h := range hits {
			s.fail(s.take(), h.d, reporterr.New(reporterr.KindStructuralMismatch,
				"placeholder must be the only content of a single-cell table, found a %dx%d table", rows, cols))
		}
		return
	}

	h := hits[0]
	idx := s.take()
	if strings.TrimSpace(h.text) != h.d.Text || docx.HasNestedTable(h.cell) {
		s.fail(idx, h.d, reporterr.New(reporterr.KindStructuralMismatch,
			"placeholder must be the only content of its table cell"))
		return
	}
	s.add(idx, KindOverlay, h.d, tbl)
}

func (s *scanner) paragraph(p *etree.Element) {
	text := docx.Text(p)
	ds, err := FindDirectives(text)
	if err != nil {
		s.fail(s.take(), Directive{Text: strings.TrimSpace(text)}, err)
		return
	}
	if len(ds) == 0 {
		return
	}
	if len(ds) > 1 {
		for _, d := range ds {
			s.fail(s.take(), d, reporterr.New(reporterr.KindStructuralMismatch,
				"a paragraph may hold only one placeholder, found %d", len(ds)))
		}
		return
	}

	d := ds[0]
	idx := s.take()
	if d.Keyword == KeywordOverlay {
		s.fail(idx, d, reporterr.New(reporterr.KindStructuralMismatch,
			"OVERLAY placeholders must sit alone in a single-cell table"))
		return
	}
	if strings.TrimSpace(text) != d.Text {
		log.Warn().Int("placeholder", idx).Str("paragraph", text).Msg("text around merge placeholder will be replaced")
	}
	s.add(idx, KindMerge, d, p)
}

func (s *scanner) add(idx int, kind Kind, d Directive, anchor *etree.Element) {
	ph := Placeholder{
		Index:     idx,
		Kind:      kind,
		Source:    d.Path,
		Spec:      d.Spec,
		Crop:      d.Crop,
		Directive: d.Text,
		Anchor:    anchor,
	}
	if !ph.Remote() {
		ph.Path = resolvePath(s.baseDir, d.Path)
	}
	if kind == KindOverlay && ph.Nested() {
		s.fail(idx, d, reporterr.New(reporterr.KindStructuralMismatch, "overlay source must be a PDF"))
		return
	}
	log.Debug().
		Int("placeholder", idx).
		Str("kind", string(kind)).
		Str("source", ph.Source).
		Str("pages", ph.Spec.String()).
		Bool("crop", ph.Crop).
		Msg("found placeholder")
	s.out = append(s.out, ph)
}

func resolvePath(baseDir, p string) string {
	if runtime.GOOS != "windows" {
		p = strings.ReplaceAll(p, `\`, "/")
	}
	p = strings.TrimPrefix(p, "file://")
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, p))
	if err != nil {
		return filepath.Join(baseDir, p)
	}
	return abs
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "s3://") || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

func findExistingMarkers(body *etree.Element) string {
	for _, t := range body.FindElements(".//w:t") {
		text := t.Text()
		for _, prefix := range MarkerPrefixes {
			if strings.Contains(text, prefix) {
				if m := MarkerPattern.FindString(text); m != "" {
					return m
				}
				return prefix
			}
		}
	}
	return ""
}
