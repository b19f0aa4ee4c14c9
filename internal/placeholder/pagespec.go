package placeholder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/local/reportcompiler/internal/reporterr"
)

// Selection is an ordered list of 1-based source page numbers. Duplicates
// are kept: a spec of "1,1" selects page 1 twice.
type Selection []int

type pageRange struct {
	from, to int // to == 0 means open ended
}

func (r pageRange) String() string {
	switch {
	case r.to == 0:
		return fmt.Sprintf("%d-", r.from)
	case r.from == r.to:
		return strconv.Itoa(r.from)
	}
	return fmt.Sprintf("%d-%d", r.from, r.to)
}

// PageSpec is a parsed page selection, not yet bound to a page count.
type PageSpec struct {
	raw    string
	ranges []pageRange
}

// AllPages selects every page of the source.
var AllPages = PageSpec{ranges: []pageRange{{from: 1}}}

// ParsePageSpec parses "N", "N-M" and "N-" tokens separated by commas.
// An empty spec selects all pages.
func ParsePageSpec(s string) (PageSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return AllPages, nil
	}
	spec := PageSpec{raw: raw}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		r, err := parseToken(tok)
		if err != nil {
			return PageSpec{}, reporterr.New(reporterr.KindPlaceholderSyntax, "page spec %q: %v", raw, err)
		}
		spec.ranges = append(spec.ranges, r)
	}
	return spec, nil
}

func parseToken(tok string) (pageRange, error) {
	if tok == "" {
		return pageRange{}, fmt.Errorf("empty token")
	}
	from, to, isRange := strings.Cut(tok, "-")
	a, err := pageNumber(from)
	if err != nil {
		return pageRange{}, fmt.Errorf("token %q: %w", tok, err)
	}
	if !isRange {
		return pageRange{from: a, to: a}, nil
	}
	if strings.TrimSpace(to) == "" {
		return pageRange{from: a}, nil
	}
	b, err := pageNumber(to)
	if err != nil {
		return pageRange{}, fmt.Errorf("token %q: %w", tok, err)
	}
	if b < a {
		return pageRange{}, fmt.Errorf("token %q: range end before start", tok)
	}
	return pageRange{from: a, to: b}, nil
}

func pageNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing page number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not a page number", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a page number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("pages start at 1")
	}
	return n, nil
}

// String returns the spec as written, or "all".
func (p PageSpec) String() string {
	if p.raw == "" {
		return "all"
	}
	return p.raw
}

// Resolve binds the spec to a source with pageCount pages. Pages beyond the
// count are returned in dropped rather than failing; an empty result is an
// EmptyPageSelectionError.
func (p PageSpec) Resolve(pageCount int) (sel Selection, dropped []string, err error) {
	ranges := p.ranges
	if len(ranges) == 0 {
		ranges = AllPages.ranges
	}
	for _, r := range ranges {
		to := r.to
		if to == 0 {
			to = pageCount
		}
		for n := r.from; n <= min(to, pageCount); n++ {
			sel = append(sel, n)
		}
		switch {
		case r.from > pageCount:
			dropped = append(dropped, r.String())
		case r.to > pageCount:
			dropped = append(dropped, pageRange{from: pageCount + 1, to: r.to}.String())
		}
	}
	if len(sel) == 0 {
		return nil, dropped, reporterr.New(reporterr.KindEmptyPageSelection,
			"page spec %q selects no page of a %d-page document", p.String(), pageCount)
	}
	return sel, dropped, nil
}
