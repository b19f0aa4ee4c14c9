// Package compiler turns a DOCX report with placeholders into the final PDF.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/compositor"
	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/filetype"
	"github.com/local/reportcompiler/internal/geometry"
	"github.com/local/reportcompiler/internal/imagerender"
	"github.com/local/reportcompiler/internal/locator"
	"github.com/local/reportcompiler/internal/metrics"
	"github.com/local/reportcompiler/internal/mutator"
	"github.com/local/reportcompiler/internal/pdfinfo"
	"github.com/local/reportcompiler/internal/pdftest"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/redact"
	"github.com/local/reportcompiler/internal/reporterr"
	"github.com/local/reportcompiler/internal/tempdir"
)

// DefaultMaxDepth limits nested report compiles.
const DefaultMaxDepth = 3

// Renderer converts a DOCX file into a PDF placed in outDir.
type Renderer interface {
	Render(ctx context.Context, docxPath, outDir string) (string, error)
}

// Options configures a Compiler.
type Options struct {
	TempParent      string
	KeepTemp        bool
	BakeAnnotations bool
	Crop            bool // content-aware cropping of overlay sources
	CropPadding     float64
	MarkerPadding   float64
	BorderDetection bool
	Fill            redact.Fill
	LocatorSource   string // "html" or "stext"
	MaxDepth        int
	Verify          bool
	Concurrency     int // parallel source validation

	// Fetch downloads remote sources; nil rejects them.
	Fetch placeholder.FetchFunc
}

// DefaultOptions returns the options used by the CLI without a config file.
func DefaultOptions() Options {
	return Options{
		BakeAnnotations: true,
		Crop:            true,
		CropPadding:     compositor.DefaultCropPadding,
		MarkerPadding:   geometry.DefaultPadding,
		BorderDetection: true,
		Fill:            redact.White,
		LocatorSource:   "html",
		MaxDepth:        DefaultMaxDepth,
		Verify:          true,
		Concurrency:     4,
	}
}

// Compiler runs the compile pipeline. A Compiler is safe for concurrent use;
// conversions are serialized by the renderer.
type Compiler struct {
	renderer Renderer
	counter  placeholder.PageCounter
	locator  *locator.Locator
	mapper   *geometry.Mapper
	comp     *compositor.Compositor
	redactor *redact.Redactor
	opts     Options
}

// New creates a Compiler rendering through r.
func New(r Renderer, opts Options) *Compiler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	analyzer := imagerender.NewAnalyzer()

	geo := geometry.Options{Padding: opts.MarkerPadding}
	if opts.BorderDetection {
		geo.Borders = analyzer
	}
	copts := compositor.Options{BakeAnnotations: opts.BakeAnnotations, CropPadding: opts.CropPadding}
	if opts.Crop {
		copts.Cropper = analyzer
	}
	loc := locator.New(locator.Source(opts.LocatorSource))

	return &Compiler{
		renderer: r,
		counter:  pdfinfo.New(),
		locator:  loc,
		mapper:   geometry.NewMapper(geo),
		comp:     compositor.New(copts),
		redactor: redact.New(loc, redact.Options{Fill: opts.Fill}),
		opts:     opts,
	}
}

// WithFetch returns a Compiler sharing c's stages that downloads remote
// sources through fetch.
func (c *Compiler) WithFetch(fetch placeholder.FetchFunc) *Compiler {
	cp := *c
	cp.opts.Fetch = fetch
	return &cp
}

// Report describes a finished compile.
type Report struct {
	ID           string
	Input        string
	Output       string
	Placeholders int
	OverlayPages int
	MergePages   int
	Redacted     int
	Pages        int
	Duration     time.Duration
}

// Compile builds output from the report at input. The output is written to
// a temporary file next to it and renamed only when every step succeeded;
// on failure output is left untouched.
func (c *Compiler) Compile(ctx context.Context, input, output string) (*Report, error) {
	start := time.Now()
	rep, err := c.compile(ctx, input, output, nil)
	result := "ok"
	if err != nil {
		result = reporterr.KindOf(err).String()
	}
	metrics.ObserveCompile(result, time.Since(start))
	if err != nil {
		return nil, err
	}
	rep.Duration = time.Since(start)
	log.Info().
		Str("id", rep.ID).
		Str("output", rep.Output).
		Int("placeholders", rep.Placeholders).
		Int("pages", rep.Pages).
		Dur("duration", rep.Duration).
		Msg("report compiled")
	return rep, nil
}

// compile runs one report. chain holds the absolute paths of the reports
// currently being compiled, outermost first.
func (c *Compiler) compile(ctx context.Context, input, output string, chain []string) (*Report, error) {
	input, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	rep := &Report{ID: uuid.NewString(), Input: input, Output: output}
	logger := log.With().Str("id", rep.ID).Str("input", filepath.Base(input)).Int("depth", len(chain)).Logger()

	if err := checkInput(input); err != nil {
		return nil, err
	}
	if err := checkOutput(output); err != nil {
		return nil, err
	}

	scope, err := tempdir.New(c.opts.TempParent, c.opts.KeepTemp)
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer scope.Close()

	doc, err := docx.Open(input)
	if err != nil {
		return nil, reporterr.Wrap(reporterr.KindMissingSourceFile, err, "open %s", filepath.Base(input))
	}
	resolved, err := c.resolve(ctx, doc, input, scope, chain)
	if err != nil {
		return nil, err
	}
	rep.Placeholders = len(resolved)
	logger.Info().Int("placeholders", len(resolved)).Msg("placeholders resolved")

	reservations, err := mutator.Mutate(doc, resolved)
	if err != nil {
		return nil, err
	}
	mutated := scope.Path("mutated.docx")
	if err := doc.Save(mutated); err != nil {
		return nil, fmt.Errorf("save mutated document: %w", err)
	}

	base, err := c.render(ctx, mutated, scope.Path("render"))
	if err != nil {
		return nil, err
	}

	var want []placeholder.Marker
	for _, r := range reservations {
		want = append(want, r.Markers...)
	}
	hits, err := c.locator.Locate(ctx, base, want)
	if err != nil {
		return nil, attachReservation(err, reservations)
	}

	overlays, merges, err := plan(ctx, c.mapper, reservations, hits, base)
	if err != nil {
		return nil, err
	}

	overlaid := scope.Path("overlaid.pdf")
	if err := c.comp.Overlay(ctx, base, overlaid, overlays); err != nil {
		return nil, err
	}
	merged := scope.Path("merged.pdf")
	if err := c.comp.Merge(ctx, overlaid, merged, merges); err != nil {
		return nil, err
	}

	for _, r := range reservations {
		metrics.IncPlaceholder(string(r.Kind))
	}
	rep.OverlayPages = len(overlays)
	metrics.AddOverlayPages(rep.OverlayPages)
	for _, m := range merges {
		rep.MergePages += len(m.Pages)
	}
	metrics.AddMergePages(rep.MergePages)

	err = publish(output, func(tmp string) error {
		res, err := c.redactor.Redact(ctx, merged, tmp)
		if err != nil {
			return reporterr.Wrap(reporterr.KindMarkerLeak, err, "redact markers")
		}
		rep.Redacted = res.Markers
		metrics.AddRedactedMarkers(res.Markers)
		if !c.opts.Verify {
			return nil
		}
		diag, err := pdftest.Verify(tmp)
		if diag != nil {
			rep.Pages = diag.TotalPages
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (c *Compiler) resolve(ctx context.Context, doc *docx.Document, input string, scope *tempdir.Scope, chain []string) ([]placeholder.Resolved, error) {
	phs, err := placeholder.Scan(doc, filepath.Dir(input))
	if err != nil {
		log.Error().Err(err).Str("input", filepath.Base(input)).Msg("placeholder scan failed")
		return nil, reporterr.First(err)
	}
	v := placeholder.NewValidator(placeholder.ValidatorOptions{
		Counter:     c.counter,
		Fetch:       c.opts.Fetch,
		Build:       c.nested(scope, append(chain, input)),
		Concurrency: c.opts.Concurrency,
	})
	resolved, err := v.Validate(ctx, phs)
	if err != nil {
		log.Error().Err(err).Str("input", filepath.Base(input)).Msg("placeholder validation failed")
		return nil, reporterr.First(err)
	}
	return resolved, nil
}

// nested compiles child reports into scope. chain already includes the
// report being compiled.
func (c *Compiler) nested(scope *tempdir.Scope, chain []string) placeholder.BuildFunc {
	chain = append([]string(nil), chain...)
	return func(ctx context.Context, docxPath string) (string, error) {
		abs, err := filepath.Abs(docxPath)
		if err != nil {
			return "", err
		}
		for _, p := range chain {
			if p == abs {
				return "", reporterr.New(reporterr.KindStructuralMismatch, "report includes itself through %s", filepath.Base(abs))
			}
		}
		if len(chain) > c.opts.MaxDepth {
			return "", reporterr.New(reporterr.KindStructuralMismatch, "reports nested deeper than %d", c.opts.MaxDepth)
		}
		dir, err := scope.Sub("nested")
		if err != nil {
			return "", err
		}
		out := filepath.Join(dir, uuid.NewString()[:8]+"-"+trimExt(filepath.Base(abs))+".pdf")
		log.Info().Str("child", filepath.Base(abs)).Int("depth", len(chain)).Msg("compiling nested report")
		if _, err := c.compile(ctx, abs, out, chain); err != nil {
			return "", fmt.Errorf("nested report %s: %w", filepath.Base(abs), err)
		}
		return out, nil
	}
}

func (c *Compiler) render(ctx context.Context, docxPath, outDir string) (string, error) {
	start := time.Now()
	pdf, err := c.renderer.Render(ctx, docxPath, outDir)
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result = "canceled"
		}
	}
	metrics.ObserveRender(result, time.Since(start))
	if err != nil {
		if reporterr.KindOf(err) == reporterr.KindUnknown {
			err = reporterr.Wrap(reporterr.KindRenderFailure, err, "render")
		}
		return "", err
	}
	return pdf, nil
}

func checkInput(input string) error {
	if err := filetype.RequireDocx(input); err != nil {
		return reporterr.Wrap(reporterr.KindMissingSourceFile, err, "input report")
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
