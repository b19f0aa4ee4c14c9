package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Options selects the bucket and, optionally, explicit credentials and an
// S3-compatible endpoint.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Client reads report sources from and writes compiled reports to S3.
type S3Client struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Client creates a new S3 client. Without explicit keys the default
// AWS credential chain is used.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{client: cli, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

// Lazy returns a constructor that creates the client on first successful
// use and hands out the same client afterwards.
func Lazy(opts S3Options) func(ctx context.Context) (*S3Client, error) {
	var (
		mu  sync.Mutex
		cli *S3Client
	)
	return func(ctx context.Context) (*S3Client, error) {
		mu.Lock()
		defer mu.Unlock()
		if cli != nil {
			return cli, nil
		}
		c, err := NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		cli = c
		return cli, nil
	}
}

// Bucket returns the default bucket.
func (s *S3Client) Bucket() string { return s.bucket }

// Ping checks that the default bucket is reachable.
func (s *S3Client) Ping(ctx context.Context) error {
	if s.bucket == "" {
		return fmt.Errorf("no bucket configured")
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Download writes s3://bucket/key to dst.
func (s *S3Client) Download(ctx context.Context, bucket, key, dst string) error {
	if bucket == "" {
		bucket = s.bucket
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := manager.NewDownloader(s.client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to download from S3: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("size", n).Str("file", filepath.Base(dst)).Msg("downloaded s3 object")
	return nil
}

// Upload stores data under the configured prefix and returns its s3:// URL.
// With a password the object is encrypted before upload.
func (s *S3Client) Upload(ctx context.Context, key string, data []byte, password string, meta map[string]string) (string, error) {
	if s.prefix != "" {
		key = s.prefix + "/" + strings.TrimPrefix(key, "/")
	}
	s3Metadata := map[string]string{"content-type": "application/pdf"}
	for k, v := range meta {
		s3Metadata[k] = v
	}

	body := data
	if password != "" {
		enc, err := encryptCBC(data, password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt data: %w", err)
		}
		body = enc
		s3Metadata["encrypted"] = "true"
		s3Metadata["encryption-format"] = formatCBC
	}

	out, err := manager.NewUploader(s.client).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
		Metadata:    s3Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().
		Str("key", key).
		Int("size", len(body)).
		Bool("encrypted", password != "").
		Str("location", out.Location).
		Msg("uploaded report to S3")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(ref string) (bucket, key string, err error) {
	path := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(path, "/")
	if !strings.HasPrefix(ref, "s3://") || slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return path[:slash], path[slash+1:], nil
}
