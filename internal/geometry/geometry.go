// Package geometry turns captured table metrics and located markers into
// destination rectangles on rendered pages.
package geometry

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/locator"
	"github.com/local/reportcompiler/internal/reporterr"
)

// Defaults used when a table carries no usable size.
const (
	DefaultPadding = 10.0
	DefaultWidth   = 7.5 * docx.PointsPerInch
	DefaultHeight  = 4.0 * docx.PointsPerInch
)

// Rect is a rectangle with the origin at the top-left corner of the page,
// in points.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.W, r.H)
}

// Input is everything a strategy may look at for one marker.
type Input struct {
	Metrics docx.LayoutMetrics
	Hit     locator.Hit
	PDF     string // rendered base document
}

// PageSize is the rendered page size, falling back to the section layout.
func (in Input) PageSize() (float64, float64) {
	w, h := in.Hit.PageWidth, in.Hit.PageHeight
	if w <= 0 || h <= 0 {
		w, h = in.Metrics.Page.Width, in.Metrics.Page.Height
	}
	return w, h
}

// Placement is a resolved destination.
type Placement struct {
	Page     int
	Rect     Rect
	Strategy string
}

// Strategy resolves a destination rectangle. ok is false when the strategy
// does not apply to the input; an error aborts the chain.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, in Input) (r Rect, ok bool, err error)
}

// BorderFinder detects the ruled box drawn around a point of a rendered page.
type BorderFinder interface {
	FindBorder(ctx context.Context, pdfPath string, page int, x, y float64) (Rect, bool, error)
}

// Options configures the default strategy chain.
type Options struct {
	Padding float64      // space between the table top and the marker top
	Borders BorderFinder // nil disables border detection
}

// Mapper tries its strategies in order until one applies.
type Mapper struct {
	strategies []Strategy
}

// NewMapper returns the chain absolute, metrics, proximity, border.
func NewMapper(opts Options) *Mapper {
	if opts.Padding <= 0 {
		opts.Padding = DefaultPadding
	}
	s := []Strategy{
		Absolute{},
		FromMetrics{Padding: opts.Padding},
		Proximity{Padding: opts.Padding},
	}
	if opts.Borders != nil {
		s = append(s, Border{Finder: opts.Borders})
	}
	return &Mapper{strategies: s}
}

// NewMapperWith builds a chain from explicit strategies.
func NewMapperWith(s ...Strategy) *Mapper {
	return &Mapper{strategies: s}
}

// Resolve returns the placement of one marker. The rectangle keeps its
// size and is translated to lie inside the page.
func (m *Mapper) Resolve(ctx context.Context, in Input) (Placement, error) {
	var last error
	for _, s := range m.strategies {
		r, ok, err := s.Resolve(ctx, in)
		if err != nil {
			return Placement{}, reporterr.Wrap(reporterr.KindGeometryResolution, err, "%s strategy", s.Name())
		}
		if !ok {
			continue
		}
		pw, ph := in.PageSize()
		fitted, err := Contain(r, pw, ph)
		if err != nil {
			log.Debug().Err(err).
				Str("marker", in.Hit.Marker).
				Str("strategy", s.Name()).
				Msg("destination rejected, trying next strategy")
			last = err
			continue
		}
		log.Debug().
			Str("marker", in.Hit.Marker).
			Int("page", in.Hit.Page).
			Str("strategy", s.Name()).
			Stringer("rect", fitted).
			Msg("destination resolved")
		return Placement{Page: in.Hit.Page, Rect: fitted, Strategy: s.Name()}, nil
	}
	if last != nil {
		return Placement{}, last
	}
	return Placement{}, reporterr.New(reporterr.KindGeometryResolution,
		"no strategy could place %s on page %d", in.Hit.Marker, in.Hit.Page)
}

// Contain translates r so that it lies inside a pw x ph page. A rectangle
// larger than the page cannot be contained without scaling and is an error.
func Contain(r Rect, pw, ph float64) (Rect, error) {
	const eps = 0.01
	if r.W <= 0 || r.H <= 0 {
		return r, reporterr.New(reporterr.KindGeometryResolution, "empty destination %s", r)
	}
	if r.W > pw+eps || r.H > ph+eps {
		return r, reporterr.New(reporterr.KindGeometryResolution,
			"destination %s does not fit a %.2fx%.2f page", r, pw, ph)
	}
	r.X = clamp(r.X, 0, math.Max(pw-r.W, 0))
	r.Y = clamp(r.Y, 0, math.Max(ph-r.H, 0))
	return r, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Absolute uses the floating table position recorded in the document.
type Absolute struct{}

func (Absolute) Name() string { return "absolute" }

func (Absolute) Resolve(_ context.Context, in Input) (Rect, bool, error) {
	m := in.Metrics
	if !m.Absolute || !m.HasWidth || !m.HasHeight {
		return Rect{}, false, nil
	}
	return Rect{X: m.X, Y: m.Y, W: m.Width, H: m.Height()}, true, nil
}

// FromMetrics places the measured table at its computed left edge and just
// above the rendered marker.
type FromMetrics struct {
	Padding float64
}

func (FromMetrics) Name() string { return "metrics" }

func (s FromMetrics) Resolve(_ context.Context, in Input) (Rect, bool, error) {
	m := in.Metrics
	if !m.HasWidth || !m.HasHeight {
		return Rect{}, false, nil
	}
	return Rect{X: m.Left(), Y: in.Hit.Box.Y0 - s.Padding, W: m.Width, H: m.Height()}, true, nil
}

// Proximity anchors at the marker when only one table dimension is known;
// the other falls back to a default footprint clipped to the page margins.
type Proximity struct {
	Padding float64
}

func (Proximity) Name() string { return "proximity" }

func (s Proximity) Resolve(_ context.Context, in Input) (Rect, bool, error) {
	m := in.Metrics
	if !m.HasWidth && !m.HasHeight {
		return Rect{}, false, nil
	}
	pw, ph := in.PageSize()
	x := m.Left()
	y := in.Hit.Box.Y0 - s.Padding

	w, h := m.Width, m.Height()
	if !m.HasWidth {
		x = in.Hit.Box.X0
		w = math.Min(DefaultWidth, pw-m.Page.MarginRight-x)
	}
	if !m.HasHeight {
		h = math.Min(DefaultHeight, ph-m.Page.MarginBottom-y)
	}
	log.Warn().
		Str("marker", in.Hit.Marker).
		Bool("width_known", m.HasWidth).
		Bool("height_known", m.HasHeight).
		Msg("table size incomplete, using default footprint")
	return Rect{X: x, Y: y, W: w, H: h}, true, nil
}

// Border measures the ruled box around the marker on the rendered page.
type Border struct {
	Finder BorderFinder
}

func (Border) Name() string { return "border" }

func (s Border) Resolve(ctx context.Context, in Input) (Rect, bool, error) {
	if in.PDF == "" {
		return Rect{}, false, nil
	}
	cx := (in.Hit.Box.X0 + in.Hit.Box.X1) / 2
	cy := (in.Hit.Box.Y0 + in.Hit.Box.Y1) / 2
	return s.Finder.FindBorder(ctx, in.PDF, in.Hit.Page, cx, cy)
}
