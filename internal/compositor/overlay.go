package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/geometry"
	"github.com/local/reportcompiler/internal/reporterr"
)

// DefaultCropPadding is kept around the detected content of a cropped page.
const DefaultCropPadding = 6.0

// OverlayTask draws one source page into a rectangle of a base page.
type OverlayTask struct {
	Source     string
	SourcePage int
	TargetPage int
	Rect       geometry.Rect // top-left origin, points
	Crop       bool
	Marker     string
	Index      int    // placeholder index, for errors
	Directive  string // placeholder text, for errors
}

// Cropper finds the drawn content of a page, top-left origin.
type Cropper interface {
	ContentBox(ctx context.Context, pdfPath string, page int) (geometry.Rect, bool, error)
}

// Options configures a Compositor.
type Options struct {
	BakeAnnotations bool
	Cropper         Cropper // nil disables content cropping
	CropPadding     float64
	Conf            *model.Configuration
}

// Compositor writes overlays and merges into rendered base documents.
type Compositor struct {
	opts Options
}

// New creates a Compositor.
func New(opts Options) *Compositor {
	if opts.Conf == nil {
		opts.Conf = model.NewDefaultConfiguration()
	}
	if opts.CropPadding < 0 {
		opts.CropPadding = 0
	}
	return &Compositor{opts: opts}
}

type sourcePage struct {
	path string
	page int
}

type formKey struct {
	sourcePage
	cropped bool
}

type placement struct {
	form *types.IndirectRef
	m    [6]float64
}

// Overlay places every task onto basePath and writes the result to outPath.
// Source pages are copied into the base document as form XObjects, so the
// base keeps its page count and page sizes.
func (c *Compositor) Overlay(ctx context.Context, basePath, outPath string, tasks []OverlayTask) error {
	if len(tasks) == 0 {
		return copyFile(basePath, outPath)
	}

	clips, err := c.contentClips(ctx, tasks)
	if err != nil {
		return err
	}

	baseData, err := os.ReadFile(basePath)
	if err != nil {
		return err
	}
	baseCtx, err := readContextFrom(bytes.NewReader(baseData), c.opts.Conf)
	if err != nil {
		return reporterr.Wrap(reporterr.KindRenderFailure, err, "read rendered document")
	}
	baseCount := baseCtx.PageCount

	// Append every distinct source page once; forms are built from there.
	order, pagesOf := groupSourcePages(tasks)
	readers := []io.ReadSeeker{bytes.NewReader(baseData)}
	appended := make(map[sourcePage]int)
	next := baseCount + 1
	for _, src := range order {
		sctx, err := readContext(src, c.opts.Conf)
		if err != nil {
			return reporterr.Wrap(reporterr.KindMissingSourceFile, err, "read %s", src)
		}
		for _, t := range tasks {
			if t.Source == src && (t.SourcePage < 1 || t.SourcePage > sctx.PageCount) {
				return reporterr.New(reporterr.KindEmptyPageSelection,
					"page %d out of range, %s has %d pages", t.SourcePage, src, sctx.PageCount).For(t.Index, t.Source, t.Directive)
			}
		}
		data, err := segment(sctx, pagesOf[src])
		if err != nil {
			return fmt.Errorf("extract pages of %s: %w", src, err)
		}
		readers = append(readers, bytes.NewReader(data))
		for _, p := range pagesOf[src] {
			appended[sourcePage{src, p}] = next
			next++
		}
	}

	var merged bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &merged, false, c.opts.Conf); err != nil {
		return fmt.Errorf("combine overlay sources: %w", err)
	}
	mctx, err := readContextFrom(bytes.NewReader(merged.Bytes()), c.opts.Conf)
	if err != nil {
		return err
	}

	draws := make(map[int][]placement)
	forms := make(map[formKey]*types.IndirectRef)
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.TargetPage < 1 || t.TargetPage > baseCount {
			return reporterr.New(reporterr.KindMarkerNotFound,
				"target page %d out of range, document has %d pages", t.TargetPage, baseCount).For(t.Index, t.Source, t.Directive)
		}
		key := sourcePage{t.Source, t.SourcePage}
		nr := appended[key]

		clip := clips[i]
		fk := formKey{key, clip != nil}
		form, ok := forms[fk]
		var box *types.Rectangle
		if ok {
			box, err = formBox(mctx, form)
		} else {
			form, box, err = c.pageForm(mctx, nr, clip)
			forms[fk] = form
		}
		if err != nil {
			return fmt.Errorf("build form for %s page %d: %w", t.Source, t.SourcePage, err)
		}

		_, _, tinh, err := mctx.PageDict(t.TargetPage, false)
		if err != nil {
			return err
		}
		to := placeRect(pageBox(tinh), t.Rect)
		m := fitMatrix(box, to)
		draws[t.TargetPage] = append(draws[t.TargetPage], placement{form: form, m: m})

		log.Debug().
			Int("placeholder", t.Index).
			Str("source", t.Source).
			Int("page", t.SourcePage).
			Int("target", t.TargetPage).
			Str("marker", t.Marker).
			Stringer("rect", t.Rect).
			Float64("sx", m[0]).
			Float64("sy", m[3]).
			Msg("overlay placed")
	}

	targets := make([]int, 0, len(draws))
	for p := range draws {
		targets = append(targets, p)
	}
	sort.Ints(targets)
	seq := 0
	for _, p := range targets {
		if err := stampPage(mctx, p, draws[p], &seq); err != nil {
			return fmt.Errorf("stamp page %d: %w", p, err)
		}
	}

	keep := make([]int, baseCount)
	for i := range keep {
		keep[i] = i + 1
	}
	data, err := segment(mctx, keep)
	if err != nil {
		return err
	}
	log.Info().Int("overlays", len(tasks)).Int("pages", len(targets)).Str("output", outPath).Msg("overlays composited")
	return writeFile(outPath, data)
}

// contentClips returns, per task, the padded content box of the source page
// when cropping applies.
func (c *Compositor) contentClips(ctx context.Context, tasks []OverlayTask) ([]*geometry.Rect, error) {
	clips := make([]*geometry.Rect, len(tasks))
	if c.opts.Cropper == nil {
		return clips, nil
	}
	cache := make(map[sourcePage]*geometry.Rect)
	for i, t := range tasks {
		if !t.Crop {
			continue
		}
		key := sourcePage{t.Source, t.SourcePage}
		if r, ok := cache[key]; ok {
			clips[i] = r
			continue
		}
		box, ok, err := c.opts.Cropper.ContentBox(ctx, t.Source, t.SourcePage)
		if err != nil {
			return nil, fmt.Errorf("detect content of %s page %d: %w", t.Source, t.SourcePage, err)
		}
		if !ok {
			log.Debug().Str("source", t.Source).Int("page", t.SourcePage).Msg("blank page, not cropped")
			cache[key] = nil
			continue
		}
		r := pad(box, c.opts.CropPadding)
		cache[key] = &r
		clips[i] = &r
	}
	return clips, nil
}

func pad(r geometry.Rect, p float64) geometry.Rect {
	return geometry.Rect{X: r.X - p, Y: r.Y - p, W: r.W + 2*p, H: r.H + 2*p}
}

// groupSourcePages lists sources in first-use order and, per source, its
// distinct pages in ascending order.
func groupSourcePages(tasks []OverlayTask) ([]string, map[string][]int) {
	var order []string
	pages := make(map[string][]int)
	seen := make(map[sourcePage]bool)
	for _, t := range tasks {
		if _, ok := pages[t.Source]; !ok {
			order = append(order, t.Source)
			pages[t.Source] = nil
		}
		k := sourcePage{t.Source, t.SourcePage}
		if seen[k] {
			continue
		}
		seen[k] = true
		pages[t.Source] = append(pages[t.Source], t.SourcePage)
	}
	for _, ps := range pages {
		sort.Ints(ps)
	}
	return order, pages
}

// placeRect converts r, relative to the top-left of the visible box, into
// PDF user space.
func placeRect(box *types.Rectangle, r geometry.Rect) *types.Rectangle {
	llx := box.LL.X + r.X
	lly := box.UR.Y - r.Y - r.H
	return types.NewRectangle(llx, lly, llx+r.W, lly+r.H)
}

// clipRect converts a top-left clip into PDF user space, limited to box.
func clipRect(box *types.Rectangle, r geometry.Rect) *types.Rectangle {
	c := placeRect(box, r)
	x0, y0 := max(c.LL.X, box.LL.X), max(c.LL.Y, box.LL.Y)
	x1, y1 := min(c.UR.X, box.UR.X), min(c.UR.Y, box.UR.Y)
	if x1-x0 < 1 || y1-y0 < 1 {
		return box
	}
	return types.NewRectangle(x0, y0, x1, y1)
}

// pageForm turns page nr of ctx into a form XObject clipped to its visible
// box, or to clip when given.
func (c *Compositor) pageForm(ctx *model.Context, nr int, clip *geometry.Rect) (*types.IndirectRef, *types.Rectangle, error) {
	d, _, inh, err := ctx.PageDict(nr, false)
	if err != nil {
		return nil, nil, err
	}
	box := pageBox(inh)
	if box == nil {
		return nil, nil, fmt.Errorf("page %d has no media box", nr)
	}
	if clip != nil {
		box = clipRect(box, *clip)
	}

	content, err := ctx.PageContent(d)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return nil, nil, err
	}

	res := types.NewDict()
	if inh.Resources != nil {
		res = copyDict(inh.Resources)
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(content)
	buf.WriteString("\nQ\n")
	if c.opts.BakeAnnotations {
		if err := bakeAnnotations(ctx, d, res, &buf); err != nil {
			return nil, nil, err
		}
	}

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return nil, nil, err
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.Insert("BBox", box.Array())
	sd.Insert("Resources", res)
	if err := sd.Encode(); err != nil {
		return nil, nil, err
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, nil, err
	}
	return ref, box, nil
}

func formBox(ctx *model.Context, ref *types.IndirectRef) (*types.Rectangle, error) {
	sd, _, err := ctx.DereferenceStreamDict(*ref)
	if err != nil || sd == nil {
		return nil, fmt.Errorf("form %s: %v", ref, err)
	}
	o, _ := sd.Find("BBox")
	r, ok := rectangle(ctx, o)
	if !ok {
		return nil, fmt.Errorf("form %s has no bbox", ref)
	}
	return r, nil
}

// stampPage appends the placements to the content of page nr. The existing
// content is isolated in its own graphics state.
func stampPage(ctx *model.Context, nr int, ps []placement, seq *int) error {
	d, _, inh, err := ctx.PageDict(nr, false)
	if err != nil {
		return err
	}
	content, err := ctx.PageContent(d)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return err
	}

	res := types.NewDict()
	if inh.Resources != nil {
		res = copyDict(inh.Resources)
	}
	xobjs := types.NewDict()
	if o, ok := res.Find("XObject"); ok {
		existing, err := ctx.DereferenceDict(o)
		if err != nil {
			return err
		}
		xobjs = copyDict(existing)
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(content)
	buf.WriteString("\nQ\n")
	for _, p := range ps {
		var name string
		for {
			*seq++
			name = fmt.Sprintf("RcOvl%d", *seq)
			if _, taken := xobjs[name]; !taken {
				break
			}
		}
		xobjs.Insert(name, *p.form)
		buf.WriteString(drawForm(name, p.m))
	}
	res["XObject"] = xobjs
	d["Resources"] = res

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}
	d["Contents"] = *ref
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFile(dst, data)
}
