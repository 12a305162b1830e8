// Package main is the entry point for the lsesample language server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/lsesample/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, exit, code := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if exit {
		return code
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return app.ExitError
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err = application.Run(ctx, newStdio(os.Stdin, os.Stdout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return code
}

// parseFlags parses the command line. exit reports that the process should
// stop with code without serving (help, version or a usage error).
func parseFlags(args []string, stdout, stderr io.Writer) (opts app.Options, exit bool, code int) {
	fs := flag.NewFlagSet("lsesample", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var showVersion, showHelp bool

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	fs.StringVar(&opts.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "lsesample - sample language server\n\n")
		fmt.Fprintf(stderr, "Usage: lsesample [options]\n\n")
		fmt.Fprintf(stderr, "Speaks the Language Server Protocol on stdin and stdout.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  LSESAMPLE_LOG_LEVEL, LSESAMPLE_LOG_FILE, LSESAMPLE_SOURCE\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, true, 0
		}
		return opts, true, app.ExitError
	}

	if showHelp {
		fs.Usage()
		return opts, true, 0
	}

	if showVersion {
		fmt.Fprintf(stdout, "lsesample %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, true, 0
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return opts, true, app.ExitError
	}

	opts.Version = version
	return opts, false, 0
}

// stdio joins stdin and stdout into the connection's stream.
type stdio struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func newStdio(in io.ReadCloser, out io.WriteCloser) *stdio {
	return &stdio{Reader: in, Writer: out, closers: []io.Closer{in, out}}
}

// Close closes both ends, returning the first error.
func (s *stdio) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
