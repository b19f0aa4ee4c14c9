package mupdf

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// GoFitzExtractor reads positioned text through go-fitz's HTML output, so no
// external tools are needed. Line boxes are derived from the baseline and
// font size; glyph boxes are not available.
type GoFitzExtractor struct{}

// NewGoFitzExtractor creates a new go-fitz based extractor
func NewGoFitzExtractor() *GoFitzExtractor {
	return &GoFitzExtractor{}
}

func (g *GoFitzExtractor) Name() string { return "html" }

// IsAvailable always returns true since go-fitz is embedded
func (g *GoFitzExtractor) IsAvailable() bool {
	return true
}

// Pages extracts the positioned text of every page.
func (g *GoFitzExtractor) Pages(ctx context.Context, pdfPath string) ([]Page, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]Page, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		markup, err := doc.HTML(i, false)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i+1, err)
		}
		page, err := ParseHTML(strings.NewReader(markup))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		page.Number = i + 1
		pages = append(pages, page)
	}
	log.Debug().Str("pdf", pdfPath).Int("pages", len(pages)).Msg("extracted positioned text with go-fitz")
	return pages, nil
}

// ParseHTML reads one page of MuPDF HTML output. The page div carries the
// page size; every <p> is one line whose top is placed 0.8em above the
// baseline and whose line-height is the font size.
func ParseHTML(r io.Reader) (Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	var page Page
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "div":
				if strings.HasPrefix(attrValue(n, "id"), "page") {
					st := styleMap(n)
					page.Width, _ = points(st["width"])
					page.Height, _ = points(st["height"])
				}
			case "p":
				if line, ok := htmlLine(n); ok {
					page.Lines = append(page.Lines, line)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return page, nil
}

func htmlLine(p *html.Node) (Line, bool) {
	st := styleMap(p)
	top, okTop := points(st["top"])
	left, okLeft := points(st["left"])
	if !okTop || !okLeft {
		return Line{}, false
	}
	height, _ := points(st["line-height"])

	var sb strings.Builder
	var size float64
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if fs, ok := points(styleMap(n)["font-size"]); ok && fs > size {
				size = fs
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p)

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return Line{}, false
	}
	if size == 0 {
		size = height
	}
	if height == 0 {
		height = size
	}
	width := estimateWidth(text, size)
	return Line{
		Text: text,
		Box:  Box{X0: left, Y0: top, X1: left + width, Y1: top + height},
		Size: size,
	}, true
}

// estimateWidth approximates the advance of text set at size. MuPDF does
// not report line widths in HTML. The per-class widths are the widest of
// Helvetica and Times, so a marker box errs on the large side.
func estimateWidth(text string, size float64) float64 {
	var em float64
	for _, r := range text {
		switch {
		case r == '%':
			em += 0.89
		case unicode.IsUpper(r):
			em += 0.72
		case unicode.IsDigit(r), r == '_':
			em += 0.56
		case unicode.IsSpace(r):
			em += 0.28
		default:
			em += 0.5
		}
	}
	return em * size
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func styleMap(n *html.Node) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(attrValue(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return out
}

// points parses "12.5pt" (or a bare number) into points.
func points(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "pt"):
		v = strings.TrimSuffix(v, "pt")
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
		scale = 0.75
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f * scale, true
}
