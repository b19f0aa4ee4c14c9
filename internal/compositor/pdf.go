// Package compositor places source PDF pages into a rendered report: scaled
// into reserved table footprints (overlay) or spliced in as whole pages
// (merge).
package compositor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// readContext loads and validates a PDF.
func readContext(path string, conf *model.Configuration) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readContextFrom(f, conf)
}

func readContextFrom(rs io.ReadSeeker, conf *model.Configuration) (*model.Context, error) {
	ctx, err := pdfapi.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// segment writes the given pages of ctx, in order, as a standalone PDF.
func segment(ctx *model.Context, pages []int) ([]byte, error) {
	sub, err := pdfcpu.ExtractPages(ctx, pages, false)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := pdfapi.WriteContext(sub, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// concat merges segments into one PDF at path.
func concat(segments [][]byte, path string, conf *model.Configuration) error {
	if len(segments) == 0 {
		return fmt.Errorf("nothing to write to %s", path)
	}
	if len(segments) == 1 {
		return writeFile(path, segments[0])
	}
	readers := make([]io.ReadSeeker, len(segments))
	for i, data := range segments {
		readers[i] = bytes.NewReader(data)
	}
	var out bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &out, false, conf); err != nil {
		return err
	}
	return writeFile(path, out.Bytes())
}

func writeContextFile(ctx *model.Context, path string) error {
	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return err
	}
	return writeFile(path, out.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// pageBox is the visible box of a page: the crop box when set, else the
// media box.
func pageBox(inh *model.InheritedPageAttrs) *types.Rectangle {
	if inh == nil {
		return nil
	}
	if inh.CropBox != nil {
		return inh.CropBox
	}
	return inh.MediaBox
}

// copyDict makes a shallow copy of d so a page can get its own resources.
func copyDict(d types.Dict) types.Dict {
	out := types.NewDict()
	for k, v := range d {
		out[k] = v
	}
	return out
}

// number reads an integer or real PDF number.
func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

// rectangle reads a 4-number array, in any corner order.
func rectangle(ctx *model.Context, o types.Object) (*types.Rectangle, bool) {
	arr, err := ctx.DereferenceArray(o)
	if err != nil || len(arr) != 4 {
		return nil, false
	}
	var n [4]float64
	for i, e := range arr {
		obj, err := ctx.Dereference(e)
		if err != nil {
			return nil, false
		}
		v, ok := number(obj)
		if !ok {
			return nil, false
		}
		n[i] = v
	}
	return types.NewRectangle(min(n[0], n[2]), min(n[1], n[3]), max(n[0], n[2]), max(n[1], n[3])), true
}

// matrix reads a 6-number array, identity when absent.
func matrix(ctx *model.Context, o types.Object) [6]float64 {
	id := [6]float64{1, 0, 0, 1, 0, 0}
	if o == nil {
		return id
	}
	arr, err := ctx.DereferenceArray(o)
	if err != nil || len(arr) != 6 {
		return id
	}
	var m [6]float64
	for i, e := range arr {
		v, ok := number(e)
		if !ok {
			return id
		}
		m[i] = v
	}
	return m
}

// transformRect maps r by m and returns the bounding box of the result.
func transformRect(r *types.Rectangle, m [6]float64) *types.Rectangle {
	pts := [4][2]float64{{r.LL.X, r.LL.Y}, {r.UR.X, r.LL.Y}, {r.LL.X, r.UR.Y}, {r.UR.X, r.UR.Y}}
	var x0, y0, x1, y1 float64
	for i, p := range pts {
		x := m[0]*p[0] + m[2]*p[1] + m[4]
		y := m[1]*p[0] + m[3]*p[1] + m[5]
		if i == 0 {
			x0, y0, x1, y1 = x, y, x, y
			continue
		}
		x0, y0, x1, y1 = min(x0, x), min(y0, y), max(x1, x), max(y1, y)
	}
	return types.NewRectangle(x0, y0, x1, y1)
}

// fitMatrix maps from onto to with independent x and y scale.
func fitMatrix(from, to *types.Rectangle) [6]float64 {
	sx := to.Width() / from.Width()
	sy := to.Height() / from.Height()
	return [6]float64{sx, 0, 0, sy, to.LL.X - from.LL.X*sx, to.LL.Y - from.LL.Y*sy}
}

// drawForm is the content that paints XObject name under m.
func drawForm(name string, m [6]float64) string {
	return fmt.Sprintf("q %.5f %.5f %.5f %.5f %.5f %.5f cm /%s Do Q\n", m[0], m[1], m[2], m[3], m[4], m[5], name)
}
