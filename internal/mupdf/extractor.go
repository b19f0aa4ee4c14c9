// Package mupdf extracts positioned page text through MuPDF, either the
// embedded go-fitz library or the mutool binary.
package mupdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"
)

// Box is a rectangle in page space with the origin at the top-left corner,
// in points.
type Box struct {
	X0, Y0, X1, Y1 float64
}

func (b Box) Width() float64  { return b.X1 - b.X0 }
func (b Box) Height() float64 { return b.Y1 - b.Y0 }

// Union returns the smallest box containing b and o.
func (b Box) Union(o Box) Box {
	return Box{min(b.X0, o.X0), min(b.Y0, o.Y0), max(b.X1, o.X1), max(b.Y1, o.Y1)}
}

// Line is one line of text as MuPDF groups it.
type Line struct {
	Text string
	Box  Box
	Size float64

	// Chars holds one box per rune of Text when the backend reports glyph
	// boxes; it is nil otherwise.
	Chars []Box
}

// Page is the positioned text of one page.
type Page struct {
	Number        int // 1-based
	Width, Height float64
	Lines         []Line
}

// Source extracts positioned text from every page of a PDF.
type Source interface {
	Name() string
	IsAvailable() bool
	Pages(ctx context.Context, pdfPath string) ([]Page, error)
}

// Extractor runs the mutool binary and reads its structured text output,
// which carries exact glyph boxes.
type Extractor struct {
	Binary string
}

// NewExtractor creates a mutool based extractor.
func NewExtractor() *Extractor {
	return &Extractor{Binary: "mutool"}
}

func (e *Extractor) Name() string { return "stext" }

// IsAvailable checks if MuPDF tools are available
func (e *Extractor) IsAvailable() bool {
	_, err := exec.LookPath(e.Binary)
	return err == nil
}

// Version returns the first line of mutool's version banner.
func (e *Extractor) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.Binary, "-v").CombinedOutput()
	if err != nil && len(out) == 0 {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Pages runs `mutool draw -F stext` over the whole document.
func (e *Extractor) Pages(ctx context.Context, pdfPath string) ([]Page, error) {
	tmp, err := os.CreateTemp("", "stext-*.xml")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	cmd := exec.CommandContext(ctx, e.Binary, "draw", "-q", "-F", "stext", "-o", tmp.Name(), pdfPath)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("mutool command")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("mutool draw: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	pages, err := ParseSText(data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("pdf", pdfPath).Int("pages", len(pages)).Msg("extracted structured text with mutool")
	return pages, nil
}

// ParseSText reads the XML written by `mutool draw -F stext`.
func ParseSText(data []byte) ([]Page, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse stext: %w", err)
	}

	var pages []Page
	for i, pe := range doc.FindElements("//page") {
		page := Page{
			Number: i + 1,
			Width:  floatAttr(pe, "width"),
			Height: floatAttr(pe, "height"),
		}
		for _, le := range pe.FindElements(".//line") {
			line := Line{Box: parseBox(le.SelectAttrValue("bbox", ""))}
			var sb strings.Builder
			var chars []Box
			for _, ce := range le.FindElements(".//char") {
				c := ce.SelectAttrValue("c", "")
				if c == "" {
					continue
				}
				if font := ce.Parent(); font != nil {
					line.Size = max(line.Size, floatAttr(font, "size"))
				}
				box := parseQuad(ce.SelectAttrValue("quad", ""))
				if box == (Box{}) {
					box = parseBox(ce.SelectAttrValue("bbox", ""))
				}
				for range []rune(c) {
					chars = append(chars, box)
				}
				sb.WriteString(c)
			}
			line.Text = sb.String()
			if line.Text == "" {
				continue
			}
			line.Chars = chars
			page.Lines = append(page.Lines, line)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func floatAttr(e *etree.Element, key string) float64 {
	v, _ := strconv.ParseFloat(e.SelectAttrValue(key, "0"), 64)
	return v
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func parseBox(s string) Box {
	n := parseNumbers(s)
	if len(n) != 4 {
		return Box{}
	}
	return Box{n[0], n[1], n[2], n[3]}
}

func parseQuad(s string) Box {
	n := parseNumbers(s)
	if len(n) != 8 {
		return Box{}
	}
	b := Box{n[0], n[1], n[0], n[1]}
	for i := 2; i < 8; i += 2 {
		b = b.Union(Box{n[i], n[i+1], n[i], n[i+1]})
	}
	return b
}
