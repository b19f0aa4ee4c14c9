// Package mutator rewrites a report so that every placeholder becomes one or
// more unique markers the renderer will carry into the base PDF.
package mutator

import (
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
)

// Reservation records what was written for one placeholder.
type Reservation struct {
	placeholder.Resolved

	// Markers holds one marker per reserved region. For overlays Markers[i]
	// receives Pages[i]; merges have a single marker heading the reserved run.
	Markers []placeholder.Marker

	// Metrics are captured before replication, overlays only.
	Metrics docx.LayoutMetrics

	// Breaks is the number of hard page breaks appended to a merge paragraph.
	Breaks int
}

// Mutate rewrites doc in place. Placeholders must come from scanning doc.
func Mutate(doc *docx.Document, rs []placeholder.Resolved) ([]Reservation, error) {
	out := make([]Reservation, 0, len(rs))
	for _, r := range rs {
		var (
			res Reservation
			err error
		)
		switch r.Kind {
		case placeholder.KindOverlay:
			res, err = overlay(doc, r)
		case placeholder.KindMerge:
			res, err = merge(doc, r)
		}
		if err != nil {
			return nil, reporterr.Attach(err, r.Index, r.Source, r.Directive)
		}
		out = append(out, res)
	}
	return out, nil
}

func overlay(doc *docx.Document, r placeholder.Resolved) (Reservation, error) {
	tbl := r.Anchor
	rows := docx.Rows(tbl)
	if len(rows) != 1 || len(docx.Cells(rows[0])) != 1 {
		return Reservation{}, reporterr.New(reporterr.KindStructuralMismatch, "overlay table is no longer a single cell")
	}

	res := Reservation{Resolved: r}
	res.Metrics = docx.TableMetrics(tbl, docx.SectionLayout(doc.Body(), tbl))

	first := rows[0]
	docx.EnsureCantSplit(first)
	prev := first
	for i := range r.Pages {
		m := placeholder.Marker{Kind: placeholder.KindOverlay, Index: r.Index, PageInGroup: i}
		row := first
		if i > 0 {
			row = docx.CloneRowAfter(first, prev)
			prev = row
		}
		docx.SetCellText(docx.Cells(row)[0], m.String())
		res.Markers = append(res.Markers, m)
	}

	log.Debug().
		Int("placeholder", r.Index).
		Int("cells", len(res.Markers)).
		Float64("width_pt", res.Metrics.Width).
		Float64("row_height_pt", res.Metrics.RowHeight).
		Bool("absolute", res.Metrics.Absolute).
		Msg("overlay cells reserved")
	return res, nil
}

func merge(doc *docx.Document, r placeholder.Resolved) (Reservation, error) {
	p := r.Anchor
	m := placeholder.Marker{Kind: placeholder.KindMerge, Index: r.Index}

	docx.EnsurePageBreakBefore(p)
	docx.SetParagraphText(p, m.String())

	// the marker page is the first reserved page; the trailing break pushes
	// following content off the last one
	breaks := len(r.Pages) - 1
	if !docx.IsLastBlock(doc.Body(), p) && !docx.EndsSection(p) {
		breaks++
	}
	docx.AppendPageBreaks(p, breaks)

	log.Debug().
		Int("placeholder", r.Index).
		Int("pages", len(r.Pages)).
		Int("breaks", breaks).
		Msg("merge pages reserved")
	return Reservation{Resolved: r, Markers: []placeholder.Marker{m}, Breaks: breaks}, nil
}
