package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// Is reports whether e is the WordprocessingML element with the given local name.
func Is(e *etree.Element, local string) bool {
	if e == nil || e.Tag != local {
		return false
	}
	return e.Space == "w" || e.NamespaceURI() == wordNS
}

// Blocks returns body-level paragraphs and tables in document order.
// Content controls and custom XML wrappers are descended into; tables are not.
func Blocks(body *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(parent *etree.Element)
	walk = func(parent *etree.Element) {
		for _, c := range parent.ChildElements() {
			switch {
			case Is(c, "p"), Is(c, "tbl"):
				out = append(out, c)
			case Is(c, "sdt"):
				if content := child(c, "sdtContent"); content != nil {
					walk(content)
				}
			case Is(c, "customXml"):
				walk(c)
			}
		}
	}
	walk(body)
	return out
}

// Text returns the visible text under e: w:t runs in order, w:tab as a tab.
// Deleted revisions are skipped.
func Text(e *etree.Element) string {
	var b strings.Builder
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			switch {
			case Is(c, "t"):
				b.WriteString(c.Text())
			case Is(c, "tab") && Is(el, "r"):
				b.WriteByte('\t')
			case Is(c, "del"), Is(c, "delText"), Is(c, "instrText"):
			default:
				walk(c)
			}
		}
	}
	walk(e)
	return b.String()
}

// Rows returns the direct w:tr children of a table.
func Rows(tbl *etree.Element) []*etree.Element { return children(tbl, "tr") }

// Cells returns the direct w:tc children of a row.
func Cells(tr *etree.Element) []*etree.Element { return children(tr, "tc") }

// Shape returns the number of rows and the widest row's cell count.
func Shape(tbl *etree.Element) (rows, cols int) {
	for _, tr := range Rows(tbl) {
		rows++
		if n := len(Cells(tr)); n > cols {
			cols = n
		}
	}
	return rows, cols
}

// CellText returns the text of a cell, one line per paragraph.
func CellText(tc *etree.Element) string {
	var lines []string
	for _, p := range tc.FindElements(".//w:p") {
		lines = append(lines, Text(p))
	}
	return strings.Join(lines, "\n")
}

// HasNestedTable reports whether a cell contains another table.
func HasNestedTable(tc *etree.Element) bool {
	return tc.FindElement(".//w:tbl") != nil
}

// IsLastBlock reports whether el is the last paragraph or table in the body.
func IsLastBlock(body, el *etree.Element) bool {
	blocks := Blocks(body)
	return len(blocks) > 0 && blocks[len(blocks)-1] == el
}

func child(e *etree.Element, local string) *etree.Element {
	for _, c := range e.ChildElements() {
		if Is(c, local) {
			return c
		}
	}
	return nil
}

func children(e *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if Is(c, local) {
			out = append(out, c)
		}
	}
	return out
}
