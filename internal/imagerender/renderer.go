// Package imagerender rasterizes PDF pages with go-fitz, for page images and
// for the pixel analysis behind content cropping and border detection.
package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Options controls WritePage.
type Options struct {
	DPI     int
	Quality int // JPEG only
	Color   ColorMode
}

// RenderPage renders one 1-based page at dpi.
func RenderPage(pdfPath string, pageNum int, dpi float64, mode ColorMode) (image.Image, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}
	if mode == ColorGray {
		return toGray(img), nil
	}
	return img, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)
	return g
}

// WritePage renders a page and writes it as PNG or JPEG, chosen by the
// extension of outPath.
func WritePage(pdfPath string, pageNum int, outPath string, opts Options) error {
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}

	img, err := RenderPage(pdfPath, pageNum, float64(opts.DPI), opts.Color)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch ext := strings.ToLower(filepath.Ext(outPath)); ext {
	case ".png":
		err = png.Encode(&buf, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality})
	default:
		return fmt.Errorf("unsupported image format %q (use .png, .jpg or .jpeg)", ext)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	b := img.Bounds()
	log.Info().
		Str("pdf", pdfPath).
		Int("page", pageNum).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("dpi", opts.DPI).
		Str("output", outPath).
		Msg("page image written")
	return nil
}
