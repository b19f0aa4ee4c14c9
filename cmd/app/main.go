package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS, runtime defaults apply then
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return ExitUsage
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "compile":
		err = runCompile(rest, stdout, stderr)
	case "inspect":
		err = runInspect(rest, stdout, stderr)
	case "page-image":
		err = runPageImage(rest, stdout, stderr)
	case "serve":
		err = runServe(rest, stderr)
	case "version", "--version":
		fmt.Fprintln(stdout, Version)
		return ExitSuccess
	case "help", "-h", "--help":
		printUsage(stdout)
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return ExitUsage
	}

	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCodeFor(err)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: app <command> [flags]

Commands:
  compile <report.docx> <out.pdf>     compile a report into a PDF
  inspect <report.docx>               list placeholders without compiling
  page-image <pdf> <page> <out>       render one page to PNG or JPEG
  serve                               run the HTTP intake and job workers
  version                             print the version

Run 'app <command> --help' for the flags of a command.
`)
}
