package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/compiler"
	"github.com/local/reportcompiler/internal/dispatcher"
	"github.com/local/reportcompiler/internal/limiter"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/queue"
	"github.com/local/reportcompiler/internal/reporterr"
	"github.com/local/reportcompiler/internal/storage"
	"github.com/local/reportcompiler/internal/tempdir"
)

// ProcessorOptions configures where a job's files come from and go.
type ProcessorOptions struct {
	TempParent string
	KeepTemp   bool
	// OutputDir receives compiled reports when S3 is not used.
	OutputDir string
	// Password decrypts encrypted downloads and encrypts uploads of jobs
	// that ask for it.
	Password string
	// HostSlots bounds parallel downloads per host.
	HostSlots int
	HTTP      *http.Client
}

// Processor runs compile jobs for the dispatcher worker.
type Processor struct {
	compiler *compiler.Compiler
	s3       func(ctx context.Context) (*storage.S3Client, error)
	slots    *limiter.Slots
	opts     ProcessorOptions
}

// NewProcessor creates a Processor. s3 may be nil when no bucket is
// configured.
func NewProcessor(c *compiler.Compiler, s3 func(ctx context.Context) (*storage.S3Client, error), opts ProcessorOptions) *Processor {
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	return &Processor{compiler: c, s3: s3, slots: limiter.New(opts.HostSlots), opts: opts}
}

// Process downloads the job's report, compiles it together with every
// remote source it references and publishes the PDF. It returns the local
// path or s3:// URL of the result.
func (p *Processor) Process(ctx context.Context, job queue.CompileJob) (string, error) {
	toS3 := p.uploads(job)
	if job.Encrypt && (!toS3 || p.opts.Password == "") {
		return "", &dispatcher.ValidationError{Message: "encrypt needs an S3 output and an encryption password"}
	}

	scope, err := tempdir.New(p.opts.TempParent, p.opts.KeepTemp)
	if err != nil {
		return "", err
	}
	defer scope.Close()

	fetcher := &storage.Fetcher{Dir: scope.Dir, HTTP: p.opts.HTTP, Password: p.opts.Password, S3: p.s3}
	fetch := p.limited(fetcher.Fetch)

	input, err := fetch(ctx, job.Input)
	if err != nil {
		return "", reporterr.Wrap(reporterr.KindMissingSourceFile, err, "fetch report %s", job.Input)
	}
	name := outputName(job)
	c := p.compiler.WithFetch(fetch)

	if !toS3 {
		dst, err := localOutput(p.opts.OutputDir, name)
		if err != nil {
			return "", err
		}
		if _, err := c.Compile(ctx, input, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	outDir, err := scope.Sub("out")
	if err != nil {
		return "", err
	}
	pdf := filepath.Join(outDir, name)
	rep, err := c.Compile(ctx, input, pdf)
	if err != nil {
		return "", err
	}
	client, err := p.s3(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}
	key, err := outputKey(client.Bucket(), job, name)
	if err != nil {
		return "", err
	}
	password := ""
	if job.Encrypt {
		password = p.opts.Password
	}
	log.Debug().Str("job_id", job.ID).Str("report", rep.ID).Str("key", key).Msg("uploading compiled report")
	return saveToS3(ctx, client, key, pdf, password, job.ID)
}

// uploads reports whether the job's result goes to S3.
func (p *Processor) uploads(job queue.CompileJob) bool {
	if strings.HasPrefix(job.Output, "s3://") {
		return true
	}
	return p.s3 != nil && p.opts.OutputDir == ""
}

// limited wraps fetch so that at most HostSlots downloads run against one
// host at a time.
func (p *Processor) limited(fetch placeholder.FetchFunc) placeholder.FetchFunc {
	return func(ctx context.Context, ref string) (string, error) {
		key := hostKey(ref)
		if key == "" {
			return fetch(ctx, ref)
		}
		release, err := p.slots.Acquire(ctx, key)
		if err != nil {
			return "", err
		}
		defer release()
		return fetch(ctx, ref)
	}
}

// hostKey is the limiter key of a remote reference, empty for local files.
func hostKey(ref string) string {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return "s3"
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		return u.Host
	}
	return ""
}

// outputName is the file name of the compiled PDF: the job's output name, or
// the report name with a .pdf extension.
func outputName(job queue.CompileJob) string {
	if job.Output != "" {
		return path.Base(refPath(job.Output))
	}
	base := path.Base(refPath(job.Input))
	return strings.TrimSuffix(base, path.Ext(base)) + ".pdf"
}
