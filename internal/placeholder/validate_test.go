package placeholder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/local/reportcompiler/internal/reporterr"
)

type fakeCounter map[string]int

func (f fakeCounter) PageCount(path string) (int, error) {
	n, ok := f[filepath.Base(path)]
	if !ok {
		return 0, errors.New("unknown file")
	}
	return n, nil
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func placeholderFor(t *testing.T, idx int, kind Kind, path, spec string) Placeholder {
	t.Helper()
	ps, err := ParsePageSpec(spec)
	if err != nil {
		t.Fatal(err)
	}
	return Placeholder{Index: idx, Kind: kind, Source: filepath.Base(path), Path: path, Spec: ps, Directive: "[[INSERT: " + filepath.Base(path) + "]]"}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePDF(t, dir, "a.pdf")
	b := writePDF(t, dir, "b.pdf")

	v := NewValidator(ValidatorOptions{Counter: fakeCounter{"a.pdf": 10, "b.pdf": 3}})
	phs := []Placeholder{
		placeholderFor(t, 0, KindOverlay, a, "2-4,7,15"),
		placeholderFor(t, 1, KindMerge, b, ""),
	}

	got, err := v.Validate(context.Background(), phs)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !reflect.DeepEqual(got[0].Pages, Selection{2, 3, 4, 7}) || !reflect.DeepEqual(got[0].Dropped, []string{"15"}) {
		t.Errorf("overlay pages = %v dropped %v", got[0].Pages, got[0].Dropped)
	}
	if !reflect.DeepEqual(got[1].Pages, Selection{1, 2, 3}) || got[1].PageCount != 3 {
		t.Errorf("merge pages = %v count %d", got[1].Pages, got[1].PageCount)
	}

	again, err := v.Validate(context.Background(), phs)
	if err != nil || !reflect.DeepEqual(got, again) {
		t.Errorf("second Validate() differs: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePDF(t, dir, "a.pdf")
	notPDF := filepath.Join(dir, "notes.pdf")
	os.WriteFile(notPDF, []byte("just some text, not a pdf at all"), 0o644)
	empty := filepath.Join(dir, "empty.pdf")
	os.WriteFile(empty, nil, 0o644)

	tests := []struct {
		name string
		ph   Placeholder
		want error
	}{
		{"missing file", placeholderFor(t, 0, KindMerge, filepath.Join(dir, "nope.pdf"), ""), reporterr.ErrMissingSourceFile},
		{"directory", placeholderFor(t, 0, KindMerge, dir, ""), reporterr.ErrMissingSourceFile},
		{"empty file", placeholderFor(t, 0, KindMerge, empty, ""), reporterr.ErrMissingSourceFile},
		{"not a pdf", placeholderFor(t, 0, KindMerge, notPDF, ""), reporterr.ErrMissingSourceFile},
		{"all pages filtered", placeholderFor(t, 0, KindOverlay, a, "20-"), reporterr.ErrEmptyPageSelection},
		{"remote without fetcher", Placeholder{Index: 0, Kind: KindMerge, Source: "s3://bucket/a.pdf", Spec: AllPages}, reporterr.ErrMissingSourceFile},
		{"nested without builder", placeholderFor(t, 0, KindMerge, a[:len(a)-4]+".docx", ""), reporterr.ErrMissingSourceFile},
	}

	v := NewValidator(ValidatorOptions{Counter: fakeCounter{"a.pdf": 10}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := v.Validate(context.Background(), []Placeholder{tt.ph})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
			var re *reporterr.Error
			if errors.As(err, &re) && re.Index != 0 {
				t.Errorf("error not tied to placeholder: %v", re)
			}
		})
	}
}

func TestValidateFetchAndBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fetched := writePDF(t, dir, "remote.pdf")
	built := writePDF(t, dir, "child.pdf")
	child := filepath.Join(dir, "child.docx")
	os.WriteFile(child, []byte("PK placeholder"), 0o644)

	var builtFrom string
	v := NewValidator(ValidatorOptions{
		Counter: fakeCounter{"remote.pdf": 2, "child.pdf": 4},
		Fetch: func(ctx context.Context, ref string) (string, error) {
			return fetched, nil
		},
		Build: func(ctx context.Context, docxPath string) (string, error) {
			builtFrom = docxPath
			return built, nil
		},
	})

	remote := Placeholder{Index: 0, Kind: KindMerge, Source: "https://example.com/remote.pdf", Spec: AllPages}
	nested := Placeholder{Index: 1, Kind: KindMerge, Source: "child.docx", Path: child, Spec: AllPages}

	got, err := v.Validate(context.Background(), []Placeholder{remote, nested})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got[0].PDF != fetched || len(got[0].Pages) != 2 {
		t.Errorf("remote resolved to %s with %v", got[0].PDF, got[0].Pages)
	}
	if got[1].PDF != built || builtFrom != child || len(got[1].Pages) != 4 {
		t.Errorf("nested resolved to %s (built from %s) with %v", got[1].PDF, builtFrom, got[1].Pages)
	}
}
