package geometry

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/locator"
	"github.com/local/reportcompiler/internal/mupdf"
	"github.com/local/reportcompiler/internal/reporterr"
)

const eps = 0.01

func letter() docx.PageLayout {
	return docx.PageLayout{Width: 612, Height: 792, MarginLeft: 72, MarginRight: 72, MarginTop: 72, MarginBottom: 72}
}

func hitAt(x, y float64) locator.Hit {
	return locator.Hit{
		Marker:     "%%OVERLAY_START_00%%",
		Page:       2,
		Box:        mupdf.Box{X0: x, Y0: y, X1: x + 100, Y1: y + 10},
		PageWidth:  612,
		PageHeight: 792,
	}
}

func sameRect(a, b Rect) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

type fakeBorders struct {
	r  Rect
	ok bool
}

func (f fakeBorders) FindBorder(context.Context, string, int, float64, float64) (Rect, bool, error) {
	return f.r, f.ok, nil
}

func TestMapperResolve(t *testing.T) {
	t.Parallel()

	measured := docx.LayoutMetrics{Width: 468, RowHeight: 216, Rows: 1, HasWidth: true, HasHeight: true, Page: letter()}
	indented := measured
	indented.Indent = 36
	floating := measured
	floating.Absolute, floating.X, floating.Y = true, 100, 200
	widthOnly := docx.LayoutMetrics{Width: 300, HasWidth: true, Rows: 1, Page: letter()}
	heightOnly := docx.LayoutMetrics{RowHeight: 100, HasHeight: true, Rows: 1, Page: letter()}

	tests := []struct {
		name     string
		in       Input
		want     Rect
		strategy string
	}{
		{"metrics", Input{Metrics: measured, Hit: hitAt(80, 300)}, Rect{72, 290, 468, 216}, "metrics"},
		{"indent", Input{Metrics: indented, Hit: hitAt(120, 300)}, Rect{108, 290, 468, 216}, "metrics"},
		{"absolute wins", Input{Metrics: floating, Hit: hitAt(80, 300)}, Rect{100, 200, 468, 216}, "absolute"},
		{"pushed up from the bottom", Input{Metrics: measured, Hit: hitAt(80, 700)}, Rect{72, 576, 468, 216}, "metrics"},
		{"pushed down from the top", Input{Metrics: measured, Hit: hitAt(80, 4)}, Rect{72, 0, 468, 216}, "metrics"},
		{"width only", Input{Metrics: widthOnly, Hit: hitAt(80, 300)}, Rect{72, 290, 300, DefaultHeight}, "proximity"},
		{"height only", Input{Metrics: heightOnly, Hit: hitAt(90, 300)}, Rect{90, 290, 450, 100}, "proximity"},
		{"border", Input{Hit: hitAt(80, 300), PDF: "base.pdf"}, Rect{70, 280, 200, 120}, "border"},
		{"proximity off the page bottom falls back to border", Input{Metrics: widthOnly, Hit: hitAt(80, 740), PDF: "base.pdf"}, Rect{70, 280, 200, 120}, "border"},
	}

	m := NewMapper(Options{Borders: fakeBorders{r: Rect{70, 280, 200, 120}, ok: true}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := m.Resolve(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !sameRect(got.Rect, tt.want) || got.Strategy != tt.strategy || got.Page != 2 {
				t.Errorf("Resolve() = %+v (%s), want %v (%s)", got.Rect, got.Strategy, tt.want, tt.strategy)
			}
		})
	}
}

func TestMapperKeepsMeasuredSize(t *testing.T) {
	t.Parallel()

	m := NewMapper(Options{})
	for _, y := range []float64{0, 50, 333.3, 600, 780} {
		in := Input{
			Metrics: docx.LayoutMetrics{Width: 401.35, RowHeight: 187.2, Rows: 1, HasWidth: true, HasHeight: true, Page: letter()},
			Hit:     hitAt(72, y),
		}
		got, err := m.Resolve(context.Background(), in)
		if err != nil {
			t.Fatalf("y=%v: %v", y, err)
		}
		r := got.Rect
		if math.Abs(r.W-401.35) > eps || math.Abs(r.H-187.2) > eps {
			t.Errorf("y=%v: size %vx%v, want exactly 401.35x187.2", y, r.W, r.H)
		}
		if r.X < 0 || r.Y < 0 || r.X+r.W > 612+eps || r.Y+r.H > 792+eps {
			t.Errorf("y=%v: %v leaves the page", y, r)
		}
	}
}

func TestMapperFailures(t *testing.T) {
	t.Parallel()

	tooWide := docx.LayoutMetrics{Width: 700, RowHeight: 100, Rows: 1, HasWidth: true, HasHeight: true, Page: letter()}
	nothing := docx.LayoutMetrics{Page: letter()}

	tests := []struct {
		name string
		m    *Mapper
		in   Input
	}{
		{"larger than page", NewMapper(Options{}), Input{Metrics: tooWide, Hit: hitAt(72, 100)}},
		{"no metrics no borders", NewMapper(Options{}), Input{Metrics: nothing, Hit: hitAt(72, 100), PDF: "base.pdf"}},
		{"border not found", NewMapper(Options{Borders: fakeBorders{}}), Input{Metrics: nothing, Hit: hitAt(72, 100), PDF: "base.pdf"}},
		{"rejected rect and no border", NewMapper(Options{Borders: fakeBorders{}}), Input{Metrics: docx.LayoutMetrics{Width: 300, HasWidth: true, Rows: 1, Page: letter()}, Hit: hitAt(80, 740), PDF: "base.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.m.Resolve(context.Background(), tt.in)
			if !errors.Is(err, reporterr.ErrGeometryResolution) {
				t.Errorf("Resolve() error = %v, want GeometryResolutionError", err)
			}
		})
	}
}

func TestContain(t *testing.T) {
	t.Parallel()

	got, err := Contain(Rect{-10, -5, 100, 50}, 612, 792)
	if err != nil || !sameRect(got, Rect{0, 0, 100, 50}) {
		t.Errorf("Contain() = %v, %v", got, err)
	}
	got, err = Contain(Rect{600, 780, 612, 792}, 612, 792)
	if err != nil || !sameRect(got, Rect{0, 0, 612, 792}) {
		t.Errorf("full page Contain() = %v, %v", got, err)
	}
	if _, err := Contain(Rect{0, 0, 0, 10}, 612, 792); !errors.Is(err, reporterr.ErrGeometryResolution) {
		t.Errorf("empty rect error = %v", err)
	}
}
