package docx_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/docx/docxtest"
)

func parse(t *testing.T, body string) *docx.Document {
	t.Helper()
	doc, err := docx.Parse(docxtest.Build(t, body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestParseRejectsNonDocx(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("hello.txt")
	w.Write([]byte("hi"))
	zw.Close()

	_, err := docx.Parse(buf.Bytes())
	if !errors.Is(err, docx.ErrNotDocx) {
		t.Errorf("Parse() error = %v, want ErrNotDocx", err)
	}

	if _, err := docx.Parse([]byte("not a zip")); err == nil {
		t.Error("Parse(garbage) error = nil, want error")
	}
}

func TestBlocksAndText(t *testing.T) {
	t.Parallel()

	doc := parse(t,
		docxtest.Para("Intro")+
			`<w:sdt><w:sdtContent>`+docxtest.Para("[[INS|ERT: a.pdf]]")+`</w:sdtContent></w:sdt>`+
			docxtest.Table(7200, 2880, []string{"cell"})+
			docxtest.Para("Outro"))

	blocks := docx.Blocks(doc.Body())
	if len(blocks) != 4 {
		t.Fatalf("len(Blocks) = %d, want 4", len(blocks))
	}
	if got := docx.Text(blocks[1]); got != "[[INSERT: a.pdf]]" {
		t.Errorf("Text(split runs) = %q, want joined directive", got)
	}
	if !docx.Is(blocks[2], "tbl") {
		t.Errorf("blocks[2] = %s, want w:tbl", blocks[2].Tag)
	}
	if !docx.IsLastBlock(doc.Body(), blocks[3]) {
		t.Error("IsLastBlock(last paragraph) = false")
	}
	if docx.IsLastBlock(doc.Body(), blocks[0]) {
		t.Error("IsLastBlock(first paragraph) = true")
	}
}

func TestShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rows     [][]string
		wantRows int
		wantCols int
	}{
		{"single cell", [][]string{{"a"}}, 1, 1},
		{"one row two cells", [][]string{{"a", "b"}}, 1, 2},
		{"two rows", [][]string{{"a"}, {"b"}}, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := parse(t, docxtest.Table(7200, 1440, tt.rows...))
			tbl := docx.Blocks(doc.Body())[0]
			r, c := docx.Shape(tbl)
			if r != tt.wantRows || c != tt.wantCols {
				t.Errorf("Shape() = %d,%d want %d,%d", r, c, tt.wantRows, tt.wantCols)
			}
		})
	}
}

func TestTableMetrics(t *testing.T) {
	t.Parallel()

	page := docx.PageLayout{Width: 612, Height: 792, MarginLeft: 90, MarginRight: 90, MarginTop: 72, MarginBottom: 72}

	tests := []struct {
		name       string
		tbl        string
		wantWidth  float64
		wantHeight float64
		wantLeft   float64
		wantAbs    bool
	}{
		{
			name:       "dxa width and exact row height",
			tbl:        docxtest.Table(7200, 2880, []string{"x"}),
			wantWidth:  360,
			wantHeight: 144,
			wantLeft:   90,
		},
		{
			name: "indent",
			tbl: `<w:tbl><w:tblPr><w:tblW w:w="4320" w:type="dxa"/><w:tblInd w:w="720" w:type="dxa"/></w:tblPr>` +
				`<w:tr><w:trPr><w:trHeight w:val="1440"/></w:trPr><w:tc>` + docxtest.Para("x") + `</w:tc></w:tr></w:tbl>`,
			wantWidth:  216,
			wantHeight: 72,
			wantLeft:   126,
		},
		{
			name: "percentage width centered",
			tbl: `<w:tbl><w:tblPr><w:tblW w:w="2500" w:type="pct"/><w:jc w:val="center"/></w:tblPr>` +
				`<w:tr><w:trPr><w:trHeight w:val="720"/></w:trPr><w:tc>` + docxtest.Para("x") + `</w:tc></w:tr></w:tbl>`,
			wantWidth:  216,
			wantHeight: 36,
			wantLeft:   90 + 108,
		},
		{
			name: "auto width falls back to grid",
			tbl: `<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr><w:tblGrid><w:gridCol w:w="3000"/><w:gridCol w:w="1000"/></w:tblGrid>` +
				`<w:tr><w:trPr><w:trHeight w:val="400"/></w:trPr><w:tc>` + docxtest.Para("x") + `</w:tc></w:tr></w:tbl>`,
			wantWidth:  200,
			wantHeight: 20,
			wantLeft:   90,
		},
		{
			name: "floating page anchored",
			tbl: `<w:tbl><w:tblPr><w:tblpPr w:horzAnchor="page" w:vertAnchor="page" w:tblpX="1440" w:tblpY="2880"/><w:tblW w:w="2880" w:type="dxa"/></w:tblPr>` +
				`<w:tr><w:trPr><w:trHeight w:val="1440"/></w:trPr><w:tc>` + docxtest.Para("x") + `</w:tc></w:tr></w:tbl>`,
			wantWidth:  144,
			wantHeight: 72,
			wantLeft:   90,
			wantAbs:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := parse(t, tt.tbl)
			tbl := docx.Blocks(doc.Body())[0]
			m := docx.TableMetrics(tbl, page)

			if !m.HasWidth || !near(m.Width, tt.wantWidth) {
				t.Errorf("Width = %v (has %v), want %v", m.Width, m.HasWidth, tt.wantWidth)
			}
			if !m.HasHeight || !near(m.Height(), tt.wantHeight) {
				t.Errorf("Height() = %v (has %v), want %v", m.Height(), m.HasHeight, tt.wantHeight)
			}
			if m.Absolute != tt.wantAbs {
				t.Errorf("Absolute = %v, want %v", m.Absolute, tt.wantAbs)
			}
			if !tt.wantAbs && !near(m.Left(), tt.wantLeft) {
				t.Errorf("Left() = %v, want %v", m.Left(), tt.wantLeft)
			}
			if tt.wantAbs && (!near(m.X, 72) || !near(m.Y, 144)) {
				t.Errorf("X,Y = %v,%v want 72,144", m.X, m.Y)
			}
		})
	}
}

func TestTableMetricsMissingHeight(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<w:tbl><w:tblPr/><w:tr><w:tc>`+docxtest.Para("x")+`</w:tc></w:tr></w:tbl>`)
	m := docx.TableMetrics(docx.Blocks(doc.Body())[0], docx.PageLayout{Width: 612, Height: 792})
	if m.HasWidth || m.HasHeight {
		t.Errorf("HasWidth=%v HasHeight=%v, want both false", m.HasWidth, m.HasHeight)
	}
}

func TestSectionLayout(t *testing.T) {
	t.Parallel()

	// first section is A4 landscape closed by a paragraph sectPr, second uses the body sectPr
	body := docxtest.Para("one") +
		`<w:p><w:pPr><w:sectPr><w:pgSz w:w="16838" w:h="11906"/><w:pgMar w:top="720" w:right="720" w:bottom="720" w:left="720"/></w:sectPr></w:pPr></w:p>` +
		docxtest.Para("two") +
		docxtest.Section(12240, 15840, 1800, 1800, 1440, 1440)
	doc := parse(t, body)
	blocks := docx.Blocks(doc.Body())

	first := docx.SectionLayout(doc.Body(), blocks[0])
	if !near(first.Width, 841.9) || !near(first.MarginLeft, 36) {
		t.Errorf("first section = %+v, want A4 landscape with 36pt margins", first)
	}
	second := docx.SectionLayout(doc.Body(), blocks[2])
	if !near(second.Width, 612) || !near(second.MarginLeft, 90) {
		t.Errorf("second section = %+v, want letter with 90pt left margin", second)
	}
}

func TestEditsAndRoundTrip(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:jc w:val="center"/></w:pPr>`+
		`<w:r><w:rPr><w:b/><w:vanish/></w:rPr><w:t>[[INSERT: </w:t></w:r><w:r><w:t>b.pdf]]</w:t></w:r></w:p>`+
		docxtest.Para("after"))
	p := docx.Blocks(doc.Body())[0]

	docx.SetParagraphText(p, "%%MERGE_START_00%%")
	docx.EnsurePageBreakBefore(p)
	docx.EnsurePageBreakBefore(p)
	docx.AppendPageBreaks(p, 2)

	if got := docx.Text(p); got != "%%MERGE_START_00%%" {
		t.Errorf("Text() = %q", got)
	}
	if n := len(p.FindElements(".//w:pageBreakBefore")); n != 1 {
		t.Errorf("pageBreakBefore count = %d, want 1", n)
	}
	pPr := p.ChildElements()[0]
	if kids := pPr.ChildElements(); kids[1].Tag != "pageBreakBefore" {
		t.Errorf("pageBreakBefore at position %q, want right after pStyle", kids[1].Tag)
	}
	if n := len(p.FindElements(".//w:br[@w:type='page']")); n != 2 {
		t.Errorf("page breaks = %d, want 2", n)
	}
	if p.FindElement(".//w:vanish") != nil {
		t.Error("hidden formatting should not be carried onto the marker run")
	}
	if p.FindElement(".//w:b") == nil {
		t.Error("first run formatting should be kept")
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	again, err := docx.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse(written) error = %v", err)
	}
	if got := docx.Text(docx.Blocks(again.Body())[0]); got != "%%MERGE_START_00%%" {
		t.Errorf("round trip text = %q", got)
	}

	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "[Content_Types].xml,_rels/.rels,word/document.xml" {
		t.Errorf("parts = %s", got)
	}
}

func TestCloneRowAfterAndSetCellText(t *testing.T) {
	t.Parallel()

	doc := parse(t, docxtest.Table(7200, 2880, []string{"[[OVERLAY: a.pdf]]"}))
	tbl := docx.Blocks(doc.Body())[0]
	first := docx.Rows(tbl)[0]

	docx.SetCellText(docx.Cells(first)[0], "M0")
	prev := first
	for _, text := range []string{"M1", "M2"} {
		row := docx.CloneRowAfter(first, prev)
		docx.SetCellText(docx.Cells(row)[0], text)
		prev = row
	}

	rows := docx.Rows(tbl)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, want := range []string{"M0", "M1", "M2"} {
		if got := docx.CellText(docx.Cells(rows[i])[0]); got != want {
			t.Errorf("row %d text = %q, want %q", i, got, want)
		}
		if rows[i].FindElement("./w:trPr/w:trHeight[@w:val='2880']") == nil {
			t.Errorf("row %d lost its height", i)
		}
	}
}
