package reporterr

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestErrorIsMatchesSentinelAndCause(t *testing.T) {
	t.Parallel()

	err := Wrap(KindMissingSourceFile, os.ErrNotExist, "stat %s", "a.pdf")

	if !errors.Is(err, ErrMissingSourceFile) {
		t.Error("errors.Is(err, ErrMissingSourceFile) = false, want true")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("errors.Is(err, os.ErrNotExist) = false, want true")
	}
	if errors.Is(err, ErrRenderFailure) {
		t.Error("errors.Is(err, ErrRenderFailure) = true, want false")
	}
}

func TestErrorMessageIncludesPlaceholder(t *testing.T) {
	t.Parallel()

	err := New(KindEmptyPageSelection, "no pages left").For(3, "appendix/b.pdf", "[[INSERT: appendix/b.pdf:40-]]")
	msg := err.Error()

	for _, want := range []string{
		"EmptyPageSelectionError",
		"placeholder #3",
		`"appendix/b.pdf"`,
		"[[INSERT: appendix/b.pdf:40-]]",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestAttach(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantIndex int
	}{
		{
			name:      "untied error gets placeholder",
			err:       New(KindMarkerNotFound, "gone"),
			wantIndex: 2,
		},
		{
			name:      "wrapped untied error gets placeholder",
			err:       fmt.Errorf("locate: %w", New(KindMarkerNotFound, "gone")),
			wantIndex: 2,
		},
		{
			name:      "error tied to the same placeholder gains context",
			err:       New(KindDuplicateMarker, "twice").For(2, "", ""),
			wantIndex: 2,
		},
		{
			name:      "already tied error keeps index",
			err:       New(KindMarkerNotFound, "gone").For(7, "x.pdf", "d"),
			wantIndex: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Attach(tt.err, 2, "a.pdf", "[[OVERLAY: a.pdf]]")
			var re *Error
			if !errors.As(got, &re) {
				t.Fatalf("Attach() = %v, not an *Error", got)
			}
			if re.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", re.Index, tt.wantIndex)
			}
			if re.Index == 2 && (re.Source != "a.pdf" || re.Directive != "[[OVERLAY: a.pdf]]") {
				t.Errorf("Source, Directive = %q, %q, want the placeholder's", re.Source, re.Directive)
			}
		})
	}
}

func TestAttachPlainError(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	if got := Attach(plain, 1, "a.pdf", "d"); got != plain {
		t.Errorf("Attach(plain) = %v, want unchanged", got)
	}
}

func TestKindOfAndFirst(t *testing.T) {
	t.Parallel()

	joined := errors.Join(
		New(KindPlaceholderSyntax, "bad").For(0, "a.pdf", "[[INSERT a.pdf]]"),
		New(KindStructuralMismatch, "bad table").For(1, "b.pdf", "[[OVERLAY: b.pdf]]"),
	)

	first := First(joined)
	if KindOf(first) != KindPlaceholderSyntax {
		t.Errorf("KindOf(First()) = %v, want %v", KindOf(first), KindPlaceholderSyntax)
	}
	if KindOf(errors.New("x")) != KindUnknown {
		t.Error("KindOf(plain) should be KindUnknown")
	}
	if First(nil) != nil {
		t.Error("First(nil) should be nil")
	}
}
