// Package storage moves report inputs and outputs between the local disk,
// HTTP servers and S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Fetcher makes a source reference available as a local file. References
// are local paths, file://, http(s):// or s3:// URLs.
type Fetcher struct {
	Dir      string // downloads land here
	HTTP     *http.Client
	Password string // decrypts encrypted downloads

	// S3 returns the S3 client, created on first use.
	S3 func(ctx context.Context) (*S3Client, error)
}

// HTTPError is a non-200 answer to a source download.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Fetch returns the local path for ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return f.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), nil
	}
	return ref, nil
}

func (f *Fetcher) target(name string) string {
	base := path.Base(name)
	if base == "." || base == "/" || base == "" {
		base = "source.pdf"
	}
	return filepath.Join(f.Dir, "fetched", uuid.NewString()[:8]+"-"+base)
}

func (f *Fetcher) fetchS3(ctx context.Context, ref string) (string, error) {
	if f.S3 == nil {
		return "", fmt.Errorf("s3 sources are not configured")
	}
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return "", err
	}
	cli, err := f.S3(ctx)
	if err != nil {
		return "", err
	}
	dst := f.target(key)
	if err := cli.Download(ctx, bucket, key, dst); err != nil {
		return "", err
	}
	return dst, f.decryptInPlace(dst)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	dst := f.target(req.URL.Path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	log.Info().Str("url", url).Int64("size", n).Str("file", filepath.Base(dst)).Msg("downloaded source")
	return dst, f.decryptInPlace(dst)
}

func (f *Fetcher) decryptInPlace(p string) error {
	if f.Password == "" {
		return nil
	}
	data, err := os.ReadFile(p)
	if err != nil || !IsEncrypted(data) {
		return err
	}
	plain, err := Decrypt(data, f.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(p), err)
	}
	return os.WriteFile(p, plain, 0o644)
}
