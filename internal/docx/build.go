package docx

import (
	"github.com/beevik/etree"
)

// SetParagraphText replaces every run of p with a single run holding text.
// Paragraph properties and the first run's formatting are kept.
func SetParagraphText(p *etree.Element, text string) {
	var rPr *etree.Element
	if r := p.FindElement(".//w:r/w:rPr"); r != nil {
		rPr = r.Copy()
		for _, c := range rPr.ChildElements() {
			if Is(c, "vanish") || Is(c, "webHidden") || Is(c, "specVanish") {
				rPr.RemoveChild(c)
			}
		}
	}
	for _, c := range p.ChildElements() {
		if !Is(c, "pPr") {
			p.RemoveChild(c)
		}
	}
	p.AddChild(newRun(text, rPr))
}

// SetCellText makes text the sole content of a table cell. The first
// paragraph is reused so its style survives; every other block is removed.
func SetCellText(tc *etree.Element, text string) {
	var first *etree.Element
	for _, c := range tc.ChildElements() {
		switch {
		case Is(c, "tcPr"):
		case Is(c, "p") && first == nil:
			first = c
		default:
			tc.RemoveChild(c)
		}
	}
	if first == nil {
		first = tc.CreateElement("w:p")
	}
	SetParagraphText(first, text)
}

// EnsurePageBreakBefore sets w:pageBreakBefore on p.
func EnsurePageBreakBefore(p *etree.Element) {
	pPr := child(p, "pPr")
	if pPr == nil {
		pPr = etree.NewElement("w:pPr")
		p.InsertChildAt(0, pPr)
	}
	if child(pPr, "pageBreakBefore") != nil {
		return
	}
	// schema order: pStyle, keepNext, keepLines, pageBreakBefore, ...
	at := 0
	for i, c := range pPr.ChildElements() {
		if Is(c, "pStyle") || Is(c, "keepNext") || Is(c, "keepLines") {
			at = i + 1
		}
	}
	el := etree.NewElement("w:pageBreakBefore")
	insertElementAt(pPr, at, el)
}

// AppendPageBreaks appends n runs carrying a hard page break to p.
func AppendPageBreaks(p *etree.Element, n int) {
	for i := 0; i < n; i++ {
		r := p.CreateElement("w:r")
		br := r.CreateElement("w:br")
		br.CreateAttr("w:type", "page")
	}
}

// CloneRowAfter inserts a deep copy of tr directly after after and returns it.
func CloneRowAfter(tr, after *etree.Element) *etree.Element {
	cp := tr.Copy()
	parent := after.Parent()
	parent.InsertChildAt(after.Index()+1, cp)
	return cp
}

func newRun(text string, rPr *etree.Element) *etree.Element {
	r := etree.NewElement("w:r")
	if rPr != nil {
		r.AddChild(rPr)
	}
	t := r.CreateElement("w:t")
	t.CreateAttr("xml:space", "preserve")
	t.SetText(text)
	return r
}

// insertElementAt inserts el before the i-th child element of parent.
func insertElementAt(parent *etree.Element, i int, el *etree.Element) {
	elems := parent.ChildElements()
	if i >= len(elems) {
		parent.AddChild(el)
		return
	}
	parent.InsertChildAt(elems[i].Index(), el)
}

// EnsureCantSplit keeps a table row on one page.
func EnsureCantSplit(tr *etree.Element) {
	trPr := child(tr, "trPr")
	if trPr == nil {
		trPr = etree.NewElement("w:trPr")
		at := 0
		for i, c := range tr.ChildElements() {
			if Is(c, "tblPrEx") {
				at = i + 1
			}
		}
		insertElementAt(tr, at, trPr)
	}
	if child(trPr, "cantSplit") == nil {
		insertElementAt(trPr, 0, etree.NewElement("w:cantSplit"))
	}
}

// EndsSection reports whether p closes a section that starts its successor
// on a new page.
func EndsSection(p *etree.Element) bool {
	sp := p.FindElement("./w:pPr/w:sectPr")
	if sp == nil {
		return false
	}
	if t := sp.FindElement("./w:type"); t != nil && attr(t, "val") == "continuous" {
		return false
	}
	return true
}
