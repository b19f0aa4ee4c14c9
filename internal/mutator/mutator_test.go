package mutator_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/docx/docxtest"
	"github.com/local/reportcompiler/internal/mutator"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
)

// prepare parses body, scans it and binds each placeholder to the given pages.
func prepare(t *testing.T, body string, pages ...placeholder.Selection) (*docx.Document, []placeholder.Resolved) {
	t.Helper()
	doc, err := docx.Parse(docxtest.Build(t, body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	phs, err := placeholder.Scan(doc, t.TempDir())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(phs) != len(pages) {
		t.Fatalf("found %d placeholders, want %d", len(phs), len(pages))
	}
	rs := make([]placeholder.Resolved, len(phs))
	for i, ph := range phs {
		rs[i] = placeholder.Resolved{Placeholder: ph, Pages: pages[i], PageCount: 10}
	}
	return doc, rs
}

func TestOverlayReplicatesCells(t *testing.T) {
	t.Parallel()

	body := docxtest.Para("Figure 1") +
		docxtest.Table(9360, 4320, []string{"[[INSERT: a.pdf:2-4,7]]"}) +
		docxtest.Para("after")
	doc, rs := prepare(t, body, placeholder.Selection{2, 3, 4, 7})

	res, err := mutator.Mutate(doc, rs)
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	wantMarkers := []string{
		"%%OVERLAY_START_00%%",
		"%%OVERLAY_START_00_PAGE_01%%",
		"%%OVERLAY_START_00_PAGE_02%%",
		"%%OVERLAY_START_00_PAGE_03%%",
	}
	if len(res[0].Markers) != len(wantMarkers) {
		t.Fatalf("markers = %v, want %d", res[0].Markers, len(wantMarkers))
	}

	tbl := docx.Blocks(doc.Body())[1]
	rows := docx.Rows(tbl)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4 replicated cells", len(rows))
	}
	seen := map[string]bool{}
	for i, row := range rows {
		text := docx.CellText(docx.Cells(row)[0])
		if text != wantMarkers[i] || res[0].Markers[i].String() != wantMarkers[i] {
			t.Errorf("row %d = %q (marker %s), want %q", i, text, res[0].Markers[i], wantMarkers[i])
		}
		if seen[text] {
			t.Errorf("marker %q repeated", text)
		}
		seen[text] = true
		if row.FindElement("./w:trPr/w:trHeight[@w:val='4320']") == nil {
			t.Errorf("row %d lost the original height", i)
		}
		if row.FindElement("./w:trPr/w:cantSplit") == nil {
			t.Errorf("row %d may split across pages", i)
		}
	}

	m := res[0].Metrics
	if math.Abs(m.Width-468) > 0.01 || math.Abs(m.RowHeight-216) > 0.01 || m.Rows != 1 {
		t.Errorf("metrics = %+v, want 468pt x 216pt single row", m)
	}
}

func TestOverlaySinglePage(t *testing.T) {
	t.Parallel()

	doc, rs := prepare(t, docxtest.Table(7200, 2880, []string{"[[OVERLAY: a.pdf, page=5]]"}), placeholder.Selection{5})
	res, err := mutator.Mutate(doc, rs)
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	tbl := docx.Blocks(doc.Body())[0]
	if n := len(docx.Rows(tbl)); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if got := res[0].Markers[0].String(); got != "%%OVERLAY_START_00%%" {
		t.Errorf("marker = %s", got)
	}
}

func TestMergeInsertsPageBreaks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		pages      placeholder.Selection
		wantBreaks int
	}{
		{
			name:       "content follows",
			body:       docxtest.Para("intro") + docxtest.Para("[[INSERT: b.pdf]]") + docxtest.Para("outro"),
			pages:      placeholder.Selection{1, 2, 3},
			wantBreaks: 3,
		},
		{
			name:       "last block",
			body:       docxtest.Para("intro") + docxtest.Para("[[INSERT: b.pdf]]"),
			pages:      placeholder.Selection{1, 2, 3},
			wantBreaks: 2,
		},
		{
			name:       "single page last block",
			body:       docxtest.Para("intro") + docxtest.Para("[[INSERT: b.pdf:2]]"),
			pages:      placeholder.Selection{2},
			wantBreaks: 0,
		},
		{
			name: "section end",
			body: docxtest.Para("intro") +
				`<w:p><w:pPr><w:sectPr/></w:pPr><w:r><w:t>[[INSERT: b.pdf]]</w:t></w:r></w:p>` +
				docxtest.Para("next section"),
			pages:      placeholder.Selection{1, 2},
			wantBreaks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, rs := prepare(t, tt.body, tt.pages)
			res, err := mutator.Mutate(doc, rs)
			if err != nil {
				t.Fatalf("Mutate() error = %v", err)
			}
			p := docx.Blocks(doc.Body())[1]
			if got := docx.Text(p); got != "%%MERGE_START_00%%" {
				t.Errorf("paragraph text = %q", got)
			}
			if p.FindElement("./w:pPr/w:pageBreakBefore") == nil {
				t.Error("merge paragraph must start a new page")
			}
			if n := len(p.FindElements(".//w:br[@w:type='page']")); n != tt.wantBreaks || res[0].Breaks != tt.wantBreaks {
				t.Errorf("page breaks = %d (reported %d), want %d", n, res[0].Breaks, tt.wantBreaks)
			}
		})
	}
}

func TestMutateMixedAndSaved(t *testing.T) {
	t.Parallel()

	body := docxtest.Table(7200, 2880, []string{"[[OVERLAY: a.pdf, page=1-2]]"}) +
		docxtest.Para("[[INSERT: b.pdf]]") +
		docxtest.Para("end")
	doc, rs := prepare(t, body, placeholder.Selection{1, 2}, placeholder.Selection{1})

	res, err := mutator.Mutate(doc, rs)
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if len(res) != 2 || res[1].Markers[0].String() != "%%MERGE_START_01%%" {
		t.Fatalf("reservations = %+v", res)
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		t.Fatal(err)
	}
	again, err := docx.Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	var all string
	for _, b := range docx.Blocks(again.Body()) {
		all += docx.Text(b)
	}
	for _, want := range []string{"%%OVERLAY_START_00%%", "%%OVERLAY_START_00_PAGE_01%%", "%%MERGE_START_01%%"} {
		if !bytes.Contains([]byte(all), []byte(want)) {
			t.Errorf("saved document lacks %s", want)
		}
	}
	if bytes.Contains([]byte(all), []byte("[[")) {
		t.Error("placeholder text survived mutation")
	}
}

func TestMutateRejectsChangedTable(t *testing.T) {
	t.Parallel()

	doc, rs := prepare(t, docxtest.Table(7200, 2880, []string{"[[OVERLAY: a.pdf]]"}), placeholder.Selection{1})
	docx.CloneRowAfter(docx.Rows(rs[0].Anchor)[0], docx.Rows(rs[0].Anchor)[0])

	_, err := mutator.Mutate(doc, rs)
	if !errors.Is(err, reporterr.ErrStructuralMismatch) {
		t.Errorf("Mutate() error = %v, want StructuralMismatchError", err)
	}
}
