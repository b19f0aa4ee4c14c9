package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/reportcompiler/internal/dispatcher"
	"github.com/local/reportcompiler/internal/queue"
)

func TestOutputName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		job  queue.CompileJob
		want string
	}{
		{queue.CompileJob{Input: "/data/q3.docx"}, "q3.pdf"},
		{queue.CompileJob{Input: "https://example.com/r/annual.docx?sig=abc"}, "annual.pdf"},
		{queue.CompileJob{Input: "s3://b/in/q3.docx", Output: "s3://b/out/final.pdf"}, "final.pdf"},
		{queue.CompileJob{Input: "q3.docx", Output: "../../etc/x.pdf"}, "x.pdf"},
	}
	for _, tt := range tests {
		if got := outputName(tt.job); got != tt.want {
			t.Errorf("outputName(%+v) = %q, want %q", tt.job, got, tt.want)
		}
	}
}

func TestHostKey(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"s3://bucket/a.pdf":               "s3",
		"https://Files.example.com/a.pdf": "Files.example.com",
		"/local/a.pdf":                    "",
		"file:///local/a.pdf":             "",
	}
	for ref, want := range tests {
		if got := hostKey(ref); got != want {
			t.Errorf("hostKey(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestOutputKey(t *testing.T) {
	t.Parallel()
	key, err := outputKey("reports", queue.CompileJob{ID: "j1"}, "q3.pdf")
	if err != nil || key != "reports/j1/q3.pdf" {
		t.Fatalf("default key = %q, %v", key, err)
	}
	key, err = outputKey("reports", queue.CompileJob{Output: "s3://reports/final/q3.pdf"}, "q3.pdf")
	if err != nil || key != "final/q3.pdf" {
		t.Fatalf("explicit key = %q, %v", key, err)
	}
	_, err = outputKey("reports", queue.CompileJob{Output: "s3://other/q3.pdf"}, "q3.pdf")
	var verr *dispatcher.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("foreign bucket err = %v, want ValidationError", err)
	}
}

type recordingUploader struct {
	key      string
	data     []byte
	password string
	meta     map[string]string
}

func (u *recordingUploader) Upload(_ context.Context, key string, data []byte, password string, meta map[string]string) (string, error) {
	u.key, u.data, u.password, u.meta = key, data, password, meta
	return "s3://reports/" + key, nil
}

func TestSaveToS3(t *testing.T) {
	t.Parallel()
	pdf := filepath.Join(t.TempDir(), "q3.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}
	up := &recordingUploader{}
	url, err := saveToS3(context.Background(), up, "reports/j1/q3.pdf", pdf, "secret", "j1")
	if err != nil {
		t.Fatal(err)
	}
	if url != "s3://reports/reports/j1/q3.pdf" || string(up.data) != "%PDF-1.7" || up.password != "secret" {
		t.Fatalf("upload = %q %+v", url, up)
	}
	if up.meta["job-id"] != "j1" {
		t.Fatalf("meta = %v", up.meta)
	}
}

func TestLocalOutput(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out", "nested")
	p, err := localOutput(dir, "q3.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(dir, "q3.pdf") {
		t.Fatalf("path = %q", p)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestProcessRejectsEncryptWithoutS3(t *testing.T) {
	t.Parallel()
	p := NewProcessor(nil, nil, ProcessorOptions{OutputDir: t.TempDir(), Password: "secret"})
	_, err := p.Process(context.Background(), queue.CompileJob{ID: "j1", Input: "q3.docx", Encrypt: true})
	var verr *dispatcher.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
