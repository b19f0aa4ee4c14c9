package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/local/reportcompiler/internal/config"
	"github.com/local/reportcompiler/internal/logger"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	verbose bool
	logFile string
}

// compileFlags override the compile section of the config.
type compileFlags struct {
	common        commonFlags
	keepTemp      bool
	noBake        bool
	noCrop        bool
	noBorders     bool
	noVerify      bool
	locator       string
	markerPadding float64
	redactColor   string
	maxDepth      int
	soffice       string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "YAML config file (defaults to $REPORT_CONFIG)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	fs.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this rotated file")
}

func addCompileFlags(fs *flag.FlagSet, f *compileFlags) {
	addCommonFlags(fs, &f.common)
	fs.BoolVar(&f.keepTemp, "keep-temp", false, "keep the scratch directory and log its path")
	fs.BoolVar(&f.noBake, "no-bake", false, "keep annotations of overlay sources as annotations")
	fs.BoolVar(&f.noCrop, "no-crop", false, "place overlay pages without content-aware cropping")
	fs.BoolVar(&f.noBorders, "no-borders", false, "skip table border detection")
	fs.BoolVar(&f.noVerify, "no-verify", false, "skip the final output check")
	fs.StringVar(&f.locator, "locator", "", "marker text source: html (go-fitz) or stext (mutool)")
	fs.Float64Var(&f.markerPadding, "marker-padding", 0, "points added around a marker when no table border is found")
	fs.StringVar(&f.redactColor, "redact-color", "", "fill color painted over removed markers, #rrggbb")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "maximum nesting depth of [[INSERT: x.docx]] reports")
	fs.StringVar(&f.soffice, "soffice", "", "LibreOffice binary")
}

// newFlagSet creates a FlagSet with usage routed to stderr.
func newFlagSet(name, args string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: app %s %s [flags]\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseError marks flag errors as usage errors; --help passes through.
func parseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// loadConfig reads the config and applies the flags the user set.
func loadConfig(fs *flag.FlagSet, common *commonFlags, f *compileFlags) (config.Config, error) {
	cfg, err := config.Load(common.config)
	if err != nil {
		return cfg, err
	}
	if common.logFile != "" {
		cfg.Logging.File = common.logFile
	}
	if f != nil {
		applyCompileFlags(fs, f, &cfg)
	}
	return cfg, cfg.Validate()
}

// applyCompileFlags overrides config values with the flags that were set.
func applyCompileFlags(fs *flag.FlagSet, f *compileFlags, cfg *config.Config) {
	if fs.Changed("keep-temp") {
		cfg.Compile.KeepTemp = f.keepTemp
	}
	if fs.Changed("no-bake") {
		cfg.Compile.BakeAnnotations = !f.noBake
	}
	if fs.Changed("no-crop") {
		cfg.Compile.Crop = !f.noCrop
	}
	if fs.Changed("no-borders") {
		cfg.Compile.BorderDetection = !f.noBorders
	}
	if fs.Changed("no-verify") {
		cfg.Compile.Verify = !f.noVerify
	}
	if fs.Changed("locator") {
		cfg.Compile.LocatorSource = f.locator
	}
	if fs.Changed("marker-padding") {
		cfg.Compile.MarkerPadding = f.markerPadding
	}
	if fs.Changed("redact-color") {
		cfg.Compile.RedactColor = f.redactColor
	}
	if fs.Changed("max-depth") {
		cfg.Compile.MaxDepth = f.maxDepth
	}
	if fs.Changed("soffice") {
		cfg.Renderer.Binary = f.soffice
	}
}

// initLogging sets up the global logger writing to console.
func initLogging(cfg config.Config, verbose bool, console io.Writer) error {
	return logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Verbose:      verbose,
		Pretty:       cfg.Logging.Pretty,
		Console:      console,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
}
