// Package pdftest re-reads a finished PDF and reports any marker text that
// survived redaction.
package pdftest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
)

// PageProbe captures the result of probing a single PDF page.
type PageProbe struct {
	PageIndex int      `json:"page_index"`
	CharCount int      `json:"char_count"`
	Markers   []string `json:"markers,omitempty"`
	Err       string   `json:"err,omitempty"`
}

// Diagnostics describes one leak check.
type Diagnostics struct {
	FilePath   string      `json:"file_path"`
	TotalPages int         `json:"total_pages"`
	Probes     []PageProbe `json:"probes"`
	Leaks      int         `json:"leaks"`
	DurationMs int64       `json:"duration_ms"`
}

// whitespaceRegex matches any whitespace (Unicode-aware). Extraction may
// break a marker over lines, so text is compared without it.
var whitespaceRegex = regexp.MustCompile(`\s+`)

func stripWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, "")
}

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for text extraction.
type Page interface {
	Text() (string, error)
	Close()
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in doc_open_fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the default opener, useful for tests or alternate backends.
func setDefaultOpener(o Opener) { defaultOpener = o }

// FindMarkers extracts the text of every page and lists the marker
// fragments found on each.
func FindMarkers(pdfPath string) (*Diagnostics, error) {
	return findMarkers(defaultOpener, pdfPath)
}

func findMarkers(opener Opener, pdfPath string) (*Diagnostics, error) {
	if opener == nil {
		return nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := opener.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	diag := &Diagnostics{FilePath: pdfPath, TotalPages: d.NumPage()}
	for idx := 0; idx < diag.TotalPages; idx++ {
		probe := PageProbe{PageIndex: idx}
		p, perr := d.Page(idx)
		if perr != nil {
			probe.Err = perr.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}
		text, terr := p.Text()
		p.Close()
		if terr != nil {
			probe.Err = terr.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}

		cleaned := stripWhitespace(text)
		probe.CharCount = len([]rune(cleaned))
		probe.Markers = markersIn(cleaned)
		diag.Leaks += len(probe.Markers)
		diag.Probes = append(diag.Probes, probe)
	}
	diag.DurationMs = time.Since(start).Milliseconds()
	return diag, nil
}

// markersIn returns complete markers, then any bare marker prefix not part
// of a complete one.
func markersIn(text string) []string {
	out := placeholder.MarkerPattern.FindAllString(text, -1)
	rest := placeholder.MarkerPattern.ReplaceAllString(text, "")
	for _, prefix := range placeholder.MarkerPrefixes {
		for i := strings.Count(rest, prefix); i > 0; i-- {
			out = append(out, prefix)
		}
	}
	return out
}

// Verify fails with a MarkerLeak error when any marker text can still be
// extracted from pdfPath. Pages that cannot be read fail the check too.
func Verify(pdfPath string) (*Diagnostics, error) {
	diag, err := FindMarkers(pdfPath)
	if err != nil {
		return nil, reporterr.Wrap(reporterr.KindMarkerLeak, err, "verify %s", pdfPath)
	}
	return diag, diag.Err()
}

// Err reports the first leaking or unreadable page.
func (d *Diagnostics) Err() error {
	for _, p := range d.Probes {
		if p.Err != "" {
			return reporterr.New(reporterr.KindMarkerLeak, "page %d could not be checked: %s", p.PageIndex+1, p.Err)
		}
		if len(p.Markers) > 0 {
			return reporterr.New(reporterr.KindMarkerLeak, "page %d still shows %s", p.PageIndex+1, strings.Join(p.Markers, ", "))
		}
	}
	return nil
}
