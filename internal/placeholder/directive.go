// Package placeholder finds and validates the insert and overlay directives
// embedded in a DOCX template.
package placeholder

import (
	"regexp"
	"strings"

	"github.com/local/reportcompiler/internal/reporterr"
)

// Kind is the destination type of a placeholder.
type Kind string

const (
	KindOverlay Kind = "overlay"
	KindMerge   Kind = "merge"
)

// Directive keywords as written in the document.
const (
	KeywordInsert  = "INSERT"
	KeywordOverlay = "OVERLAY"
)

var (
	directiveRe = regexp.MustCompile(`\[\[\s*(INSERT|OVERLAY)\s*:\s*(.*?)\s*\]\]`)
	openerRe    = regexp.MustCompile(`\[\[\s*(INSERT|OVERLAY)\b`)
)

// Directive is one parsed [[INSERT: ...]] or [[OVERLAY: ...]] occurrence.
type Directive struct {
	Keyword string
	Path    string
	Spec    PageSpec
	Crop    bool
	Text    string // verbatim, as found in the document
}

// FindDirectives returns every directive in text in order. Text that opens
// a directive without matching the grammar is a PlaceholderSyntaxError.
func FindDirectives(text string) ([]Directive, error) {
	matches := directiveRe.FindAllStringSubmatchIndex(text, -1)
	if opened := len(openerRe.FindAllStringIndex(text, -1)); opened > len(matches) {
		return nil, reporterr.New(reporterr.KindPlaceholderSyntax, "unterminated or malformed directive in %q", text)
	}

	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		d, err := ParseDirective(text[m[0]:m[1]])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseDirective parses a single directive.
func ParseDirective(text string) (Directive, error) {
	sm := directiveRe.FindStringSubmatch(text)
	if sm == nil {
		return Directive{}, syntaxErr(text, "not a directive")
	}
	d := Directive{Keyword: sm[1], Text: text, Crop: true}
	body := sm[2]

	var err error
	switch d.Keyword {
	case KeywordInsert:
		err = d.parseInsert(body)
	case KeywordOverlay:
		err = d.parseOverlay(body)
	}
	if err != nil {
		return Directive{}, err
	}
	if d.Path == "" {
		return Directive{}, syntaxErr(text, "missing path")
	}
	return d, nil
}

// parseInsert splits "<path>[:<pagespec>]". The spec is the text after the
// last colon when it holds no path characters, which keeps "C:\x\a.pdf" whole.
func (d *Directive) parseInsert(body string) error {
	d.Path = strings.TrimSpace(body)
	d.Spec = AllPages

	i := strings.LastIndex(body, ":")
	if i < 0 {
		return nil
	}
	tail := strings.TrimSpace(body[i+1:])
	if strings.ContainsAny(tail, `/\.`) {
		return nil
	}
	if tail == "" {
		return syntaxErr(d.Text, "empty page spec after ':'")
	}
	spec, err := ParsePageSpec(tail)
	if err != nil {
		return reporterr.Attach(err, -1, "", d.Text)
	}
	d.Path = strings.TrimSpace(body[:i])
	d.Spec = spec
	return nil
}

// parseOverlay parses "<path>[, page=<spec>][, crop=<bool>]". A parameter
// without a key is a page spec; commas inside a page spec continue it.
func (d *Directive) parseOverlay(body string) error {
	parts := strings.Split(body, ",")
	d.Path = strings.TrimSpace(parts[0])
	d.Spec = AllPages

	var pages []string
	lastKey := ""
	for _, part := range parts[1:] {
		key, val, hasKey := strings.Cut(part, "=")
		if !hasKey {
			if lastKey != "" && lastKey != "page" {
				return syntaxErr(d.Text, "unexpected parameter "+strings.TrimSpace(part))
			}
			pages = append(pages, strings.TrimSpace(part))
			lastKey = "page"
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "page", "pages":
			if len(pages) > 0 {
				return syntaxErr(d.Text, "page given twice")
			}
			pages = append(pages, val)
		case "crop":
			crop, ok := parseBool(val)
			if !ok {
				return syntaxErr(d.Text, "crop must be a boolean, got "+val)
			}
			d.Crop = crop
		default:
			return syntaxErr(d.Text, "unknown parameter "+key)
		}
		lastKey = key
	}

	if len(pages) > 0 {
		spec, err := ParsePageSpec(strings.Join(pages, ","))
		if err != nil {
			return reporterr.Attach(err, -1, "", d.Text)
		}
		if spec.raw == "" {
			return syntaxErr(d.Text, "empty page spec")
		}
		d.Spec = spec
	}
	return nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on", "enabled":
		return true, true
	case "false", "0", "no", "off", "disabled":
		return false, true
	}
	return false, false
}

func syntaxErr(directive, msg string) error {
	return &reporterr.Error{Kind: reporterr.KindPlaceholderSyntax, Index: -1, Directive: directive, Msg: msg}
}
