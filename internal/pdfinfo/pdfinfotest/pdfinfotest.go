// Package pdfinfotest writes small uncompressed PDFs for tests.
package pdfinfotest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Text is one line of Helvetica set with its baseline origin at X, Y in
// PDF user space (bottom-left origin).
type Text struct {
	X, Y float64
	Size float64
	S    string
}

// Page is one page of a test document.
type Page struct {
	Width, Height float64
	Texts         []Text
}

// Letter is a US letter page showing the given lines, one inch apart from
// the top margin down.
func Letter(lines ...string) Page {
	p := Page{Width: 612, Height: 792}
	for i, s := range lines {
		p.Texts = append(p.Texts, Text{X: 72, Y: 700 - 72*float64(i), Size: 12, S: s})
	}
	return p
}

// Build returns a PDF with the given pages. Object 1 is the catalog, 2 the
// page tree, 3 the shared font; every page adds its dictionary and content.
func Build(t testing.TB, pages ...Page) []byte {
	t.Helper()
	if len(pages) == 0 {
		t.Fatal("pdfinfotest: no pages")
	}

	var objs []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, p := range pages {
		var content bytes.Buffer
		for _, tx := range p.Texts {
			fmt.Fprintf(&content, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", tx.Size, tx.X, tx.Y, escape(tx.S))
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				p.Width, p.Height, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// WriteFile builds a PDF and writes it to dir/name.
func WriteFile(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(t, pages...), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
