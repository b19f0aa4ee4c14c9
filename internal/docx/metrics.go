package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Unit conversions to PDF points.
const (
	PointsPerInch = 72.0
	TwipsPerPoint = 20.0
	EMUPerPoint   = 12700.0
)

// Letter portrait with 1in margins, the Word default when a section omits sizes.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
	defaultMargin     = 72.0
)

// PageLayout is the page size and margins of a section, in points.
type PageLayout struct {
	Width, Height float64
	MarginLeft    float64
	MarginRight   float64
	MarginTop     float64
	MarginBottom  float64
}

// ContentWidth is the width between the left and right margins.
func (p PageLayout) ContentWidth() float64 { return p.Width - p.MarginLeft - p.MarginRight }

// LayoutMetrics describes a placeholder table as Word lays it out, in points.
type LayoutMetrics struct {
	Width     float64
	RowHeight float64
	Rows      int
	HasWidth  bool
	HasHeight bool

	Indent float64
	Align  string // w:jc value: left, center, right (start/end normalized)

	// Absolute holds when the table is floating with a page or margin anchored
	// position; X and Y are then page-relative top-left offsets.
	Absolute bool
	X, Y     float64

	Page PageLayout
}

// Height is the full table height when every row keeps the first row's height.
func (m LayoutMetrics) Height() float64 { return m.RowHeight * float64(max(m.Rows, 1)) }

// SectionLayout returns the page layout of the section that contains el.
func SectionLayout(body, el *etree.Element) PageLayout {
	top := el
	for top != nil && top.Parent() != body {
		top = top.Parent()
	}
	if top != nil {
		seen := false
		for _, c := range body.ChildElements() {
			if c == top {
				seen = true
			}
			if !seen {
				continue
			}
			if Is(c, "p") {
				if sp := c.FindElement("./w:pPr/w:sectPr"); sp != nil {
					return pageLayout(sp)
				}
			}
		}
	}
	if sp := child(body, "sectPr"); sp != nil {
		return pageLayout(sp)
	}
	return pageLayout(nil)
}

func pageLayout(sectPr *etree.Element) PageLayout {
	p := PageLayout{
		Width:        defaultPageWidth,
		Height:       defaultPageHeight,
		MarginLeft:   defaultMargin,
		MarginRight:  defaultMargin,
		MarginTop:    defaultMargin,
		MarginBottom: defaultMargin,
	}
	if sectPr == nil {
		return p
	}
	if sz := child(sectPr, "pgSz"); sz != nil {
		if v, ok := twips(attr(sz, "w")); ok {
			p.Width = v
		}
		if v, ok := twips(attr(sz, "h")); ok {
			p.Height = v
		}
	}
	if mar := child(sectPr, "pgMar"); mar != nil {
		if v, ok := twips(attr(mar, "left")); ok {
			p.MarginLeft = v
		}
		if v, ok := twips(attr(mar, "right")); ok {
			p.MarginRight = v
		}
		if v, ok := twips(attr(mar, "top")); ok {
			p.MarginTop = abs(v)
		}
		if v, ok := twips(attr(mar, "bottom")); ok {
			p.MarginBottom = abs(v)
		}
	}
	return p
}

// TableMetrics measures a table in the given page layout.
func TableMetrics(tbl *etree.Element, page PageLayout) LayoutMetrics {
	m := LayoutMetrics{Page: page, Align: "left"}
	tblPr := child(tbl, "tblPr")

	if tblPr != nil {
		if w := child(tblPr, "tblW"); w != nil {
			m.Width, m.HasWidth = widthValue(attr(w, "type"), attr(w, "w"), page.ContentWidth())
		}
		if ind := child(tblPr, "tblInd"); ind != nil {
			if v, ok := twips(attr(ind, "w")); ok && attr(ind, "type") != "pct" {
				m.Indent = v
			}
		}
		if jc := child(tblPr, "jc"); jc != nil {
			switch attr(jc, "val") {
			case "center":
				m.Align = "center"
			case "right", "end":
				m.Align = "right"
			}
		}
	}

	if !m.HasWidth {
		m.Width, m.HasWidth = gridWidth(tbl)
	}
	if !m.HasWidth {
		if tcW := tbl.FindElement(".//w:tc/w:tcPr/w:tcW"); tcW != nil {
			m.Width, m.HasWidth = widthValue(attr(tcW, "type"), attr(tcW, "w"), page.ContentWidth())
		}
	}

	rows := Rows(tbl)
	m.Rows = len(rows)
	if len(rows) > 0 {
		if h := rows[0].FindElement("./w:trPr/w:trHeight"); h != nil {
			if v, ok := twips(attr(h, "val")); ok && v > 0 {
				m.RowHeight = v
				m.HasHeight = true
			}
		}
	}

	if tblPr != nil {
		if pp := child(tblPr, "tblpPr"); pp != nil {
			m.Absolute, m.X, m.Y = floatingPosition(pp, m, page)
		}
	}
	return m
}

// Left returns the left edge of the table on its page when it is not floating.
func (m LayoutMetrics) Left() float64 {
	switch m.Align {
	case "center":
		return m.Page.MarginLeft + (m.Page.ContentWidth()-m.Width)/2
	case "right":
		return m.Page.Width - m.Page.MarginRight - m.Width
	}
	return m.Page.MarginLeft + m.Indent
}

func floatingPosition(pp *etree.Element, m LayoutMetrics, page PageLayout) (bool, float64, float64) {
	horz := attrOr(pp, "horzAnchor", "text")
	vert := attrOr(pp, "vertAnchor", "text")
	if vert == "text" {
		// paragraph relative; only the rendered marker knows where that is
		return false, 0, 0
	}

	var x float64
	originX, spanX := page.MarginLeft, page.ContentWidth()
	if horz == "page" {
		originX, spanX = 0, page.Width
	}
	switch attr(pp, "tblpXSpec") {
	case "center":
		x = originX + (spanX-m.Width)/2
	case "right", "outside":
		x = originX + spanX - m.Width
	case "left", "inside":
		x = originX
	default:
		v, _ := twips(attr(pp, "tblpX"))
		x = originX + v
	}

	var y float64
	originY, spanY := page.MarginTop, page.Height-page.MarginTop-page.MarginBottom
	if vert == "page" {
		originY, spanY = 0, page.Height
	}
	switch attr(pp, "tblpYSpec") {
	case "center":
		y = originY + (spanY-m.Height())/2
	case "bottom", "outside":
		y = originY + spanY - m.Height()
	case "top", "inside":
		y = originY
	default:
		v, _ := twips(attr(pp, "tblpY"))
		y = originY + v
	}
	return true, x, y
}

func gridWidth(tbl *etree.Element) (float64, bool) {
	var sum float64
	for _, gc := range tbl.FindElements("./w:tblGrid/w:gridCol") {
		if v, ok := twips(attr(gc, "w")); ok {
			sum += v
		}
	}
	return sum, sum > 0
}

// widthValue converts a ST_TblWidth pair to points.
func widthValue(typ, val string, contentWidth float64) (float64, bool) {
	switch typ {
	case "pct":
		if strings.HasSuffix(val, "%") {
			f, err := strconv.ParseFloat(strings.TrimSuffix(val, "%"), 64)
			if err != nil || f <= 0 {
				return 0, false
			}
			return contentWidth * f / 100, true
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return 0, false
		}
		return contentWidth * f / 5000, true
	case "auto", "nil":
		return 0, false
	default:
		v, ok := twips(val)
		return v, ok && v > 0
	}
}

// twips parses a twentieth-of-a-point measure, or a universal measure with
// a unit suffix (mm, cm, in, pt, pc, pi), into points.
func twips(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	units := []struct {
		suffix string
		points float64
	}{
		{"mm", PointsPerInch / 25.4},
		{"cm", PointsPerInch / 2.54},
		{"in", PointsPerInch},
		{"pt", 1},
		{"pc", 12},
		{"pi", 12},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			f, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
			if err != nil {
				return 0, false
			}
			return f * u.points, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f / TwipsPerPoint, true
}

func attr(e *etree.Element, key string) string {
	if v := e.SelectAttrValue("w:"+key, ""); v != "" {
		return v
	}
	return e.SelectAttrValue(key, "")
}

func attrOr(e *etree.Element, key, def string) string {
	if v := attr(e, key); v != "" {
		return v
	}
	return def
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
