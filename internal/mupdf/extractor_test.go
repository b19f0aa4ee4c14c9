package mupdf

import (
	"math"
	"strings"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestParseHTML(t *testing.T) {
	t.Parallel()

	markup := `<div id="page0" style="width:612.0pt;height:792.0pt">
<p style="top:62.4pt;left:72.0pt;line-height:12.0pt"><span style="font-family:Liberation Serif,serif;font-size:12.0pt">Heading &amp; intro</span></p>
<p style="top:400.4pt;left:90.0pt;line-height:10.0pt"><span style="font-family:Liberation Sans;font-size:10.0pt">%%OVERLAY_START_00%%</span></p>
<p style="top:500pt;left:90pt;line-height:10pt"><span style="font-size:10pt">   </span></p>
<img style="top:10pt;left:10pt;width:20pt;height:20pt" src="data:image/png;base64,AA==">
</div>`

	page, err := ParseHTML(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("ParseHTML() error = %v", err)
	}
	if !near(page.Width, 612) || !near(page.Height, 792) {
		t.Errorf("page size = %vx%v, want 612x792", page.Width, page.Height)
	}
	if len(page.Lines) != 2 {
		t.Fatalf("lines = %d, want 2 (blank lines skipped)", len(page.Lines))
	}

	if page.Lines[0].Text != "Heading & intro" {
		t.Errorf("text = %q, want unescaped", page.Lines[0].Text)
	}
	m := page.Lines[1]
	if m.Text != "%%OVERLAY_START_00%%" || !near(m.Size, 10) {
		t.Errorf("marker line = %+v", m)
	}
	if !near(m.Box.X0, 90) || !near(m.Box.Y0, 400.4) || !near(m.Box.Height(), 10) || m.Box.Width() <= 0 {
		t.Errorf("marker box = %+v", m.Box)
	}
	if m.Chars != nil {
		t.Error("html lines carry no glyph boxes")
	}
	// Helvetica sets this marker 14.338em wide; the box must cover it.
	if m.Box.Width() < 143.38 {
		t.Errorf("marker width = %.2f, narrower than the rendered text", m.Box.Width())
	}
}

func TestParseSText(t *testing.T) {
	t.Parallel()

	data := `<?xml version="1.0"?>
<document name="base.pdf">
<page id="page1" width="595.32" height="841.92">
<block bbox="72 70 200 82">
<line bbox="72 70 110 82" wmode="0" dir="1 0">
<font name="LiberationSerif" size="12">
<char quad="72 70 80 70 72 82 80 82" x="72" y="80" color="#000000" c="%"/>
<char quad="80 70 88 70 80 82 88 82" x="80" y="80" color="#000000" c="A"/>
<char bbox="88 70 96 82" x="88" y="80" color="#000000" c="B"/>
</font>
</line>
</block>
</page>
<page id="page2" width="612" height="792">
</page>
</document>`

	pages, err := ParseSText([]byte(data))
	if err != nil {
		t.Fatalf("ParseSText() error = %v", err)
	}
	if len(pages) != 2 || pages[1].Number != 2 || len(pages[1].Lines) != 0 {
		t.Fatalf("pages = %+v", pages)
	}
	p := pages[0]
	if !near(p.Width, 595.32) || !near(p.Height, 841.92) {
		t.Errorf("page size = %vx%v", p.Width, p.Height)
	}
	if len(p.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(p.Lines))
	}
	l := p.Lines[0]
	if l.Text != "%AB" || !near(l.Size, 12) || len(l.Chars) != 3 {
		t.Fatalf("line = %+v", l)
	}
	if want := (Box{80, 70, 88, 82}); l.Chars[1] != want {
		t.Errorf("quad box = %+v, want %+v", l.Chars[1], want)
	}
	if want := (Box{88, 70, 96, 82}); l.Chars[2] != want {
		t.Errorf("bbox fallback = %+v, want %+v", l.Chars[2], want)
	}
}

func TestPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.0pt", 12, true},
		{" 7pt ", 7, true},
		{"16px", 12, true},
		{"3.5", 3.5, true},
		{"", 0, false},
		{"auto", 0, false},
	}
	for _, tt := range tests {
		got, ok := points(tt.in)
		if ok != tt.ok || !near(got, tt.want) {
			t.Errorf("points(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
