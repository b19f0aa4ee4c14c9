// Package reporterr defines the classified errors a compile can fail with.
package reporterr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a compile failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlaceholderSyntax
	KindMissingSourceFile
	KindEmptyPageSelection
	KindStructuralMismatch
	KindRenderFailure
	KindMarkerNotFound
	KindDuplicateMarker
	KindGeometryResolution
	KindMarkerLeak
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrPlaceholderSyntax  = errors.New("placeholder syntax error")
	ErrMissingSourceFile  = errors.New("missing source file")
	ErrEmptyPageSelection = errors.New("empty page selection")
	ErrStructuralMismatch = errors.New("structural mismatch")
	ErrRenderFailure      = errors.New("render failure")
	ErrMarkerNotFound     = errors.New("marker not found")
	ErrDuplicateMarker    = errors.New("duplicate marker")
	ErrGeometryResolution = errors.New("geometry resolution failed")
	ErrMarkerLeak         = errors.New("marker text left in output")
)

func (k Kind) sentinel() error {
	switch k {
	case KindPlaceholderSyntax:
		return ErrPlaceholderSyntax
	case KindMissingSourceFile:
		return ErrMissingSourceFile
	case KindEmptyPageSelection:
		return ErrEmptyPageSelection
	case KindStructuralMismatch:
		return ErrStructuralMismatch
	case KindRenderFailure:
		return ErrRenderFailure
	case KindMarkerNotFound:
		return ErrMarkerNotFound
	case KindDuplicateMarker:
		return ErrDuplicateMarker
	case KindGeometryResolution:
		return ErrGeometryResolution
	case KindMarkerLeak:
		return ErrMarkerLeak
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindPlaceholderSyntax:
		return "PlaceholderSyntaxError"
	case KindMissingSourceFile:
		return "MissingSourceFileError"
	case KindEmptyPageSelection:
		return "EmptyPageSelectionError"
	case KindStructuralMismatch:
		return "StructuralMismatchError"
	case KindRenderFailure:
		return "RenderFailure"
	case KindMarkerNotFound:
		return "MarkerNotFoundError"
	case KindDuplicateMarker:
		return "DuplicateMarkerError"
	case KindGeometryResolution:
		return "GeometryResolutionError"
	case KindMarkerLeak:
		return "MarkerLeakError"
	}
	return "CompileError"
}

// Error is a compile failure, optionally tied to one placeholder.
type Error struct {
	Kind      Kind
	Index     int // placeholder index, -1 when not tied to one
	Source    string
	Directive string
	Msg       string
	Err       error
}

// New returns an error of the given kind not yet tied to a placeholder.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: -1, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: -1, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Index >= 0 {
		fmt.Fprintf(&b, " in placeholder #%d", e.Index)
	}
	if e.Source != "" {
		fmt.Fprintf(&b, " (source %q)", e.Source)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Directive != "" {
		b.WriteString("\n  directive: ")
		b.WriteString(e.Directive)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// For returns a copy of e tied to a placeholder.
func (e *Error) For(index int, source, directive string) *Error {
	cp := *e
	cp.Index = index
	cp.Source = source
	cp.Directive = directive
	return &cp
}

// Attach ties err to a placeholder unless it already belongs to another one.
// An error tied to the same placeholder gains the source and directive it
// lacks. Errors that are not *Error are returned unchanged.
func Attach(err error, index int, source, directive string) error {
	var re *Error
	if !errors.As(err, &re) {
		return err
	}
	if re.Index >= 0 && (re.Index != index || (re.Source != "" && re.Directive != "")) {
		return err
	}
	if re.Source != "" {
		source = re.Source
	}
	if re.Directive != "" {
		directive = re.Directive
	}
	return re.For(index, source, directive)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// First returns the first *Error found in a joined error, or err itself.
func First(err error) error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		if _, isReport := err.(*Error); !isReport {
			for _, e := range j.Unwrap() {
				if e != nil {
					return First(e)
				}
			}
		}
	}
	return err
}
