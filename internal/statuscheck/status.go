package statuscheck

import (
	"context"
	"errors"
	"time"

	"github.com/local/reportcompiler/internal/storage"
)

// Pinger models the minimal Redis capability we need for status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Versioner is an external binary that reports its version.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// Checker aggregates health checks for the external dependencies of the
// compile service.
type Checker struct {
	redis  Pinger
	s3     func(ctx context.Context) (*storage.S3Client, error)
	office Versioner
	mupdf  Versioner
}

// Options configures the Checker. Nil members report as not configured.
type Options struct {
	Redis       Pinger
	S3          func(ctx context.Context) (*storage.S3Client, error)
	LibreOffice Versioner
	MuPDF       Versioner
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis       Status `json:"redis"`
	S3          Status `json:"s3"`
	LibreOffice Status `json:"libreoffice"`
	MuPDF       Status `json:"mupdf"`
}

// Ready reports whether jobs can run: Redis and LibreOffice are required,
// S3 and mutool are optional.
func (s Summary) Ready() bool {
	return s.Redis.OK && s.LibreOffice.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{redis: opts.Redis, s3: opts.S3, office: opts.LibreOffice, mupdf: opts.MuPDF}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:       c.checkRedis(ctx),
		S3:          c.checkS3(ctx),
		LibreOffice: checkBinary(ctx, c.office, "Running"),
		MuPDF:       checkBinary(ctx, c.mupdf, "Available"),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3 == nil {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cli, err := c.s3(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if err := cli.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func checkBinary(ctx context.Context, v Versioner, okMsg string) Status {
	if v == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	version, err := v.Version(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if version == "" {
		return Status{OK: true, Message: okMsg}
	}
	return Status{OK: true, Message: okMsg + " (" + version + ")"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
