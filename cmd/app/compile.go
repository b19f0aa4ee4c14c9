package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/local/reportcompiler/internal/compiler"
	"github.com/local/reportcompiler/internal/config"
	"github.com/local/reportcompiler/internal/converter"
	"github.com/local/reportcompiler/internal/logger"
	"github.com/local/reportcompiler/internal/redact"
	"github.com/local/reportcompiler/internal/storage"
	"github.com/local/reportcompiler/internal/tempdir"
)

func runCompile(args []string, stdout, stderr io.Writer) error {
	var f compileFlags
	fs := newFlagSet("compile", "<report.docx> <out.pdf>", stderr)
	addCompileFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("%w: compile needs an input report and an output path", ErrUsage)
	}

	cfg, err := loadConfig(fs, &f.common, &f)
	if err != nil {
		return err
	}
	if err := initLogging(cfg, f.common.verbose, stderr); err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, cleanup, err := newCLICompiler(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := c.Compile(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d placeholders, %d pages (%d overlaid, %d merged) in %s\n",
		rep.Output, rep.Placeholders, rep.Pages, rep.OverlayPages, rep.MergePages, rep.Duration.Round(time.Millisecond))
	return nil
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	var f compileFlags
	fs := newFlagSet("inspect", "<report.docx>", stderr)
	addCompileFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("%w: inspect needs an input report", ErrUsage)
	}

	cfg, err := loadConfig(fs, &f.common, &f)
	if err != nil {
		return err
	}
	if err := initLogging(cfg, f.common.verbose, stderr); err != nil {
		return err
	}
	defer logger.Close()

	c, cleanup, err := newCLICompiler(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	resolved, err := c.Inspect(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tSOURCE\tSPEC\tPAGES\tSOURCE PAGES")
	for _, r := range resolved {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", r.Index, r.Kind, r.Source, r.Spec, joinPages(r.Pages), r.PageCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range resolved {
		for _, d := range r.Dropped {
			fmt.Fprintf(stdout, "warning: placeholder %d (%s): %s\n", r.Index, r.Source, d)
		}
	}
	return nil
}

// newCLICompiler builds a Compiler from cfg that can fetch remote sources
// into a scratch directory. cleanup removes that directory.
func newCLICompiler(cfg config.Config) (*compiler.Compiler, func(), error) {
	opts, err := compilerOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	scope, err := tempdir.New(cfg.Compile.TempDir, cfg.Compile.KeepTemp)
	if err != nil {
		return nil, nil, err
	}
	fetcher := &storage.Fetcher{Dir: scope.Dir, Password: cfg.Storage.EncryptionPassword, S3: s3Source(cfg)}
	opts.Fetch = fetcher.Fetch

	office := converter.NewLibreOffice(cfg.Renderer.Binary, cfg.Renderer.Timeout)
	return compiler.New(office, opts), func() { _ = scope.Close() }, nil
}

// compilerOptions maps the compile section of cfg onto compiler options.
func compilerOptions(cfg config.Config) (compiler.Options, error) {
	fill, err := config.ParseColor(cfg.Compile.RedactColor)
	if err != nil {
		return compiler.Options{}, fmt.Errorf("%w: redact color: %v", config.ErrConfigInvalid, err)
	}
	opts := compiler.DefaultOptions()
	opts.TempParent = cfg.Compile.TempDir
	opts.KeepTemp = cfg.Compile.KeepTemp
	opts.BakeAnnotations = cfg.Compile.BakeAnnotations
	opts.Crop = cfg.Compile.Crop
	opts.CropPadding = cfg.Compile.CropPadding
	opts.MarkerPadding = cfg.Compile.MarkerPadding
	opts.BorderDetection = cfg.Compile.BorderDetection
	opts.Fill = redact.Fill(fill)
	opts.LocatorSource = cfg.Compile.LocatorSource
	if cfg.Compile.MaxDepth > 0 {
		opts.MaxDepth = cfg.Compile.MaxDepth
	}
	opts.Verify = cfg.Compile.Verify
	if cfg.Compile.Concurrency > 0 {
		opts.Concurrency = cfg.Compile.Concurrency
	}
	return opts, nil
}

// s3Source returns a lazy S3 client constructor, nil without a bucket.
func s3Source(cfg config.Config) func(ctx context.Context) (*storage.S3Client, error) {
	if cfg.Storage.Bucket == "" {
		return nil
	}
	return storage.Lazy(storage.S3Options{
		Bucket:    cfg.Storage.Bucket,
		Prefix:    cfg.Storage.Prefix,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	})
}

func joinPages(pages []int) string {
	s := make([]string, len(pages))
	for i, p := range pages {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ",")
}
