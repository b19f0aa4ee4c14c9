package placeholder

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/filetype"
	"github.com/local/reportcompiler/internal/reporterr"
)

// PageCounter reports the page count of a local PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// FetchFunc downloads a remote source and returns the local path.
type FetchFunc func(ctx context.Context, ref string) (string, error)

// BuildFunc compiles a nested report and returns the resulting PDF path.
type BuildFunc func(ctx context.Context, docxPath string) (string, error)

// Resolved is a placeholder bound to a readable local PDF and its pages.
type Resolved struct {
	Placeholder
	PDF       string
	PageCount int
	Pages     Selection
	Dropped   []string
}

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	Counter     PageCounter
	Fetch       FetchFunc // nil rejects remote sources
	Build       BuildFunc // nil rejects nested reports
	Concurrency int
}

// Validator checks that every placeholder source exists and resolves its
// page selection. Sources are read in parallel; results keep document order.
type Validator struct {
	opts ValidatorOptions
}

// NewValidator creates a Validator.
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Validator{opts: opts}
}

// Validate resolves every placeholder. The error joins every failure.
func (v *Validator) Validate(ctx context.Context, phs []Placeholder) ([]Resolved, error) {
	out := make([]Resolved, len(phs))
	errs := make([]error, len(phs))

	sem := make(chan struct{}, v.opts.Concurrency)
	var wg sync.WaitGroup
	for i := range phs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i], errs[i] = v.resolve(ctx, phs[i])
			if errs[i] != nil {
				errs[i] = reporterr.Attach(errs[i], phs[i].Index, phs[i].Source, phs[i].Directive)
			}
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	crossCheck(out)
	return out, nil
}

func (v *Validator) resolve(ctx context.Context, ph Placeholder) (Resolved, error) {
	r := Resolved{Placeholder: ph, PDF: ph.Path}

	if ph.Remote() {
		if v.opts.Fetch == nil {
			return r, reporterr.New(reporterr.KindMissingSourceFile, "remote sources are not enabled")
		}
		local, err := v.opts.Fetch(ctx, ph.Source)
		if err != nil {
			return r, reporterr.Wrap(reporterr.KindMissingSourceFile, err, "fetch")
		}
		r.PDF = local
	}

	if err := checkFile(r.PDF); err != nil {
		return r, err
	}

	if ph.Nested() {
		if v.opts.Build == nil {
			return r, reporterr.New(reporterr.KindMissingSourceFile, "nested reports are not enabled")
		}
		pdf, err := v.opts.Build(ctx, r.PDF)
		if err != nil {
			return r, err
		}
		r.PDF = pdf
	}

	if err := filetype.RequirePDF(r.PDF); err != nil {
		return r, reporterr.Wrap(reporterr.KindMissingSourceFile, err, "unreadable source")
	}
	n, err := v.opts.Counter.PageCount(r.PDF)
	if err != nil {
		return r, reporterr.Wrap(reporterr.KindMissingSourceFile, err, "unreadable PDF")
	}
	r.PageCount = n

	sel, dropped, err := ph.Spec.Resolve(n)
	if err != nil {
		return r, err
	}
	r.Pages = sel
	r.Dropped = dropped
	if len(dropped) > 0 {
		log.Warn().
			Int("placeholder", ph.Index).
			Str("source", ph.Source).
			Int("page_count", n).
			Strs("dropped", dropped).
			Msg("pages outside the source were dropped")
	}
	return r, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return reporterr.Wrap(reporterr.KindMissingSourceFile, err, "source not found")
	}
	if info.IsDir() {
		return reporterr.New(reporterr.KindMissingSourceFile, "%s is a directory", path)
	}
	if info.Size() == 0 {
		return reporterr.New(reporterr.KindMissingSourceFile, "%s is empty", path)
	}
	return nil
}

// crossCheck logs sources used in conflicting roles.
func crossCheck(rs []Resolved) {
	kinds := map[string]map[Kind]int{}
	for _, r := range rs {
		if kinds[r.PDF] == nil {
			kinds[r.PDF] = map[Kind]int{}
		}
		kinds[r.PDF][r.Kind]++
	}
	for path, k := range kinds {
		if k[KindOverlay] > 0 && k[KindMerge] > 0 {
			log.Warn().Str("source", path).Msg("source is used both as overlay and as merge")
		} else if k[KindOverlay]+k[KindMerge] > 1 {
			log.Debug().Str("source", path).Msg("source referenced more than once")
		}
	}
}
