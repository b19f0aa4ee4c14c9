package imagerender

import (
	"context"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/geometry"
)

const (
	// DPI for rendering pages for analysis
	AnalysisDPI = 150.0

	// Binary threshold for separating content from background
	BinaryThreshold = 200 // 0-255, higher keeps lighter marks

	// Components smaller than this are treated as scanner noise
	MinComponentPixels = 4

	// Shortest straight dark run that counts as a ruled table border
	MinRuleInches = 0.4
)

// Analyzer inspects rendered pages.
type Analyzer struct {
	DPI       float64
	Threshold uint8
}

// NewAnalyzer creates an Analyzer with the default resolution and threshold.
func NewAnalyzer() *Analyzer {
	return &Analyzer{DPI: AnalysisDPI, Threshold: BinaryThreshold}
}

func (a *Analyzer) binary(pdfPath string, page int) (*image.Gray, error) {
	img, err := RenderPage(pdfPath, page, a.DPI, ColorGray)
	if err != nil {
		return nil, err
	}
	return applyThreshold(img.(*image.Gray), a.Threshold), nil
}

func (a *Analyzer) toPoints(px int) float64 {
	return float64(px) * docx.PointsPerInch / a.DPI
}

// ContentBox returns the bounding box of everything drawn on the page, in
// points from the top-left corner. ok is false for a blank page.
func (a *Analyzer) ContentBox(ctx context.Context, pdfPath string, page int) (geometry.Rect, bool, error) {
	bin, err := a.binary(pdfPath, page)
	if err != nil {
		return geometry.Rect{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return geometry.Rect{}, false, err
	}

	components := findConnectedComponents(bin, MinComponentPixels)
	if len(components) == 0 {
		return geometry.Rect{}, false, nil
	}
	box := components[0]
	for _, c := range components[1:] {
		box.MinX = min(box.MinX, c.MinX)
		box.MinY = min(box.MinY, c.MinY)
		box.MaxX = max(box.MaxX, c.MaxX)
		box.MaxY = max(box.MaxY, c.MaxY)
	}

	b := bin.Bounds()
	r := geometry.Rect{
		X: a.toPoints(box.MinX - b.Min.X),
		Y: a.toPoints(box.MinY - b.Min.Y),
		W: a.toPoints(box.MaxX - box.MinX + 1),
		H: a.toPoints(box.MaxY - box.MinY + 1),
	}
	log.Debug().
		Str("pdf", pdfPath).
		Int("page", page).
		Int("components", len(components)).
		Stringer("content", r).
		Msg("content box detected")
	return r, true, nil
}

// FindBorder looks for the ruled box enclosing the point (x, y), given in
// points from the top-left corner. It walks outwards from the point until it
// meets a straight dark run at least MinRuleInches long on each side.
func (a *Analyzer) FindBorder(ctx context.Context, pdfPath string, page int, x, y float64) (geometry.Rect, bool, error) {
	bin, err := a.binary(pdfPath, page)
	if err != nil {
		return geometry.Rect{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return geometry.Rect{}, false, err
	}

	b := bin.Bounds()
	px := b.Min.X + int(x*a.DPI/docx.PointsPerInch)
	py := b.Min.Y + int(y*a.DPI/docx.PointsPerInch)
	if !(image.Point{X: px, Y: py}).In(b) {
		return geometry.Rect{}, false, nil
	}
	minRun := int(MinRuleInches * a.DPI)

	left, right, top, bottom := -1, -1, -1, -1
	for i := px; i >= b.Min.X; i-- {
		if isDark(bin, i, py) && verticalRun(bin, i, py) >= minRun {
			left = i
			break
		}
	}
	for i := px; i < b.Max.X; i++ {
		if isDark(bin, i, py) && verticalRun(bin, i, py) >= minRun {
			right = i
			break
		}
	}
	for j := py; j >= b.Min.Y; j-- {
		if isDark(bin, px, j) && horizontalRun(bin, px, j) >= minRun {
			top = j
			break
		}
	}
	for j := py; j < b.Max.Y; j++ {
		if isDark(bin, px, j) && horizontalRun(bin, px, j) >= minRun {
			bottom = j
			break
		}
	}
	if left < 0 || right < 0 || top < 0 || bottom < 0 || right-left < 2 || bottom-top < 2 {
		log.Debug().Str("pdf", pdfPath).Int("page", page).Msg("no ruled border around marker")
		return geometry.Rect{}, false, nil
	}

	r := geometry.Rect{
		X: a.toPoints(left - b.Min.X),
		Y: a.toPoints(top - b.Min.Y),
		W: a.toPoints(right - left),
		H: a.toPoints(bottom - top),
	}
	log.Debug().Str("pdf", pdfPath).Int("page", page).Stringer("border", r).Msg("ruled border detected")
	return r, true, nil
}

func isDark(img *image.Gray, x, y int) bool {
	return img.GrayAt(x, y).Y == 0
}

// verticalRun counts the contiguous dark pixels of column x through y.
func verticalRun(img *image.Gray, x, y int) int {
	b := img.Bounds()
	n := 0
	for j := y; j >= b.Min.Y && isDark(img, x, j); j-- {
		n++
	}
	for j := y + 1; j < b.Max.Y && isDark(img, x, j); j++ {
		n++
	}
	return n
}

// horizontalRun counts the contiguous dark pixels of row y through x.
func horizontalRun(img *image.Gray, x, y int) int {
	b := img.Bounds()
	n := 0
	for i := x; i >= b.Min.X && isDark(img, i, y); i-- {
		n++
	}
	for i := x + 1; i < b.Max.X && isDark(img, i, y); i++ {
		n++
	}
	return n
}
