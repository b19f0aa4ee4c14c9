package compositor

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/reporterr"
)

// MergeTask replaces Reserved base pages, starting at StartPage, with the
// given Pages of Source.
type MergeTask struct {
	Source    string
	Pages     []int
	StartPage int
	Reserved  int
	Index     int
	Directive string
}

type pageRef struct {
	file string
	page int
}

// Merge splices the source pages of every task into basePath and writes the
// result to outPath.
func (c *Compositor) Merge(ctx context.Context, basePath, outPath string, tasks []MergeTask) error {
	if len(tasks) == 0 {
		return copyFile(basePath, outPath)
	}

	contexts := map[string]*model.Context{}
	open := func(path string) (*model.Context, error) {
		if pc, ok := contexts[path]; ok {
			return pc, nil
		}
		pc, err := readContext(path, c.opts.Conf)
		if err != nil {
			return nil, err
		}
		contexts[path] = pc
		return pc, nil
	}

	base, err := open(basePath)
	if err != nil {
		return reporterr.Wrap(reporterr.KindRenderFailure, err, "read rendered document")
	}
	for _, t := range tasks {
		sc, err := open(t.Source)
		if err != nil {
			return reporterr.Wrap(reporterr.KindMissingSourceFile, err, "read %s", t.Source).For(t.Index, t.Source, t.Directive)
		}
		for _, p := range t.Pages {
			if p < 1 || p > sc.PageCount {
				return reporterr.New(reporterr.KindEmptyPageSelection,
					"page %d out of range, %s has %d pages", p, t.Source, sc.PageCount).For(t.Index, t.Source, t.Directive)
			}
		}
	}

	layout, err := splice(basePages(basePath, base.PageCount), tasks)
	if err != nil {
		return err
	}

	var segments [][]byte
	for _, r := range runs(layout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := segment(contexts[r.file], r.pages)
		if err != nil {
			return fmt.Errorf("extract pages %v of %s: %w", r.pages, r.file, err)
		}
		segments = append(segments, data)
	}
	if err := concat(segments, outPath, c.opts.Conf); err != nil {
		return fmt.Errorf("write merged document: %w", err)
	}
	log.Info().
		Int("merges", len(tasks)).
		Int("pages", len(layout)).
		Int("segments", len(segments)).
		Str("output", outPath).
		Msg("merges spliced")
	return nil
}

func basePages(path string, n int) []pageRef {
	out := make([]pageRef, n)
	for i := range out {
		out[i] = pageRef{file: path, page: i + 1}
	}
	return out
}

// splice replaces the reserved range of every task, last first, so earlier
// start pages stay valid.
func splice(layout []pageRef, tasks []MergeTask) ([]pageRef, error) {
	ordered := append([]MergeTask(nil), tasks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartPage > ordered[j].StartPage })

	for i, t := range ordered {
		if i > 0 && t.StartPage+t.Reserved > ordered[i-1].StartPage {
			return nil, reporterr.New(reporterr.KindRenderFailure,
				"reserved pages %d-%d overlap another merge", t.StartPage, t.StartPage+t.Reserved-1).For(t.Index, t.Source, t.Directive)
		}
		if t.StartPage < 1 || t.Reserved < 1 || t.StartPage+t.Reserved-1 > len(layout) {
			return nil, reporterr.New(reporterr.KindRenderFailure,
				"reserved pages %d-%d not in rendered document of %d pages", t.StartPage, t.StartPage+t.Reserved-1, len(layout)).For(t.Index, t.Source, t.Directive)
		}
		src := make([]pageRef, len(t.Pages))
		for j, p := range t.Pages {
			src[j] = pageRef{file: t.Source, page: p}
		}
		from, to := t.StartPage-1, t.StartPage-1+t.Reserved
		next := make([]pageRef, 0, len(layout)-t.Reserved+len(src))
		next = append(next, layout[:from]...)
		next = append(next, src...)
		next = append(next, layout[to:]...)
		layout = next
	}
	return layout, nil
}

type run struct {
	file  string
	pages []int
}

// runs groups consecutive pages of one file with strictly increasing page
// numbers, each run becoming one extracted segment.
func runs(layout []pageRef) []run {
	var out []run
	for _, r := range layout {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.file == r.file && r.page > last.pages[len(last.pages)-1] {
				last.pages = append(last.pages, r.page)
				continue
			}
		}
		out = append(out, run{file: r.file, pages: []int{r.page}})
	}
	return out
}
