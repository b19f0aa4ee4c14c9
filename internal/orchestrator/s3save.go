package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/local/reportcompiler/internal/dispatcher"
	"github.com/local/reportcompiler/internal/queue"
	"github.com/local/reportcompiler/internal/storage"
)

// Uploader stores compiled reports.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, password string, meta map[string]string) (string, error)
}

// saveToS3 uploads the compiled PDF and returns its s3:// URL. A non-empty
// password encrypts the object.
func saveToS3(ctx context.Context, up Uploader, key, pdfPath, password, jobID string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read compiled report: %w", err)
	}
	meta := map[string]string{
		"job-id":      jobID,
		"compiled-at": time.Now().UTC().Format(time.RFC3339),
	}
	return up.Upload(ctx, key, data, password, meta)
}

// outputKey is the object key of a job's result: the key of an s3:// output
// in the configured bucket, or reports/<job id>/<name>.
func outputKey(bucket string, job queue.CompileJob, name string) (string, error) {
	if strings.HasPrefix(job.Output, "s3://") {
		b, key, err := storage.ParseS3URL(job.Output)
		if err != nil {
			return "", &dispatcher.ValidationError{Message: err.Error()}
		}
		if b != bucket {
			return "", &dispatcher.ValidationError{Message: fmt.Sprintf("output bucket %q is not the configured bucket %q", b, bucket)}
		}
		return key, nil
	}
	return fmt.Sprintf("reports/%s/%s", job.ID, name), nil
}
