package statuscheck

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type versionFunc func(ctx context.Context) (string, error)

func (f versionFunc) Version(ctx context.Context) (string, error) { return f(ctx) }

func TestSummary(t *testing.T) {
	t.Parallel()
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	office := versionFunc(func(context.Context) (string, error) { return "LibreOffice 7.6.4.1", nil })
	missing := versionFunc(func(context.Context) (string, error) { return "", errors.New("binary not found") })

	tests := []struct {
		name  string
		opts  Options
		ready bool
	}{
		{"all up", Options{Redis: ok, LibreOffice: office, MuPDF: office}, true},
		{"no mutool", Options{Redis: ok, LibreOffice: office, MuPDF: missing}, true},
		{"redis down", Options{Redis: down, LibreOffice: office}, false},
		{"no soffice", Options{Redis: ok, LibreOffice: missing}, false},
		{"nothing configured", Options{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sum := New(tt.opts).Summary(context.Background())
			if sum.Ready() != tt.ready {
				t.Fatalf("Ready() = %v, want %v (%+v)", sum.Ready(), tt.ready, sum)
			}
			if sum.S3.OK {
				t.Error("S3 reported OK without a client")
			}
		})
	}
}

func TestCheckBinaryMessage(t *testing.T) {
	t.Parallel()
	st := checkBinary(context.Background(), versionFunc(func(context.Context) (string, error) { return "7.6", nil }), "Running")
	if !st.OK || st.Message != "Running (7.6)" {
		t.Fatalf("status = %+v", st)
	}
}

func TestTrimError(t *testing.T) {
	t.Parallel()
	long := errors.New(strings.Repeat("x", 300))
	if got := trimError(long); len(got) != 120 {
		t.Fatalf("len = %d, want 120", len(got))
	}
	if trimError(nil) != "" {
		t.Fatal("nil error should trim to empty")
	}
}
