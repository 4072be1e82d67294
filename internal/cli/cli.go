// Package cli implements the command-line interface for csvrows.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/eunmann/csvrows/internal/logctx"
	"github.com/eunmann/csvrows/pkg/logging"
	"github.com/eunmann/csvrows/pkg/memdiag"
	"github.com/eunmann/csvrows/pkg/rowcount"
	"github.com/eunmann/csvrows/pkg/source"
	"golang.org/x/sync/errgroup"
)

// Output modes for --mode.
const (
	ModeCount = "count"
	ModeDone  = "done"
)

// DoneMessage is printed in done mode.
const DoneMessage = "done!"

const usageText = `usage: csvrows [options] <path>

Counts the data rows of a CSV file and prints the count.

<path> is a local file, "-" for stdin, or s3://bucket/key.
Files ending in .gz, .zst, .lz4 or .br are decompressed; .parquet files
report the row count stored in their footer. Compressed parquet files
(data.parquet.gz) are rejected.

options:
`

// UsageError reports invalid arguments. It maps to exit code 2.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	var usageErr *UsageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usageErr):
		return 2
	default:
		return 1
	}
}

// Env holds the process-level collaborators of Run.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// S3 overrides the S3 client; nil uses the default AWS configuration.
	S3 S3
}

// S3 is the subset of *source.Client the CLI needs.
type S3 interface {
	source.ObjectStreamer
	source.ObjectDownloader
}

// DefaultEnv returns an Env bound to the process streams.
func DefaultEnv() Env {
	return Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

type config struct {
	path      string
	hasHeader bool
	mode      string
	debug     bool
	human     bool
	progress  time.Duration
}

func (e Env) withDefaults() Env {
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	return e
}

// Run executes the CLI with the given arguments. Unset Env streams default
// to the process streams.
func Run(ctx context.Context, args []string, env Env) error {
	env = env.withDefaults()
	cfg, err := parseArgs(args, env.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logging.InitWriter(env.Stderr, cfg.debug, cfg.human)
	ctx = logctx.WithLogger(ctx, logging.WithPhase("count"))
	ctx = logctx.WithStr(ctx, "path", cfg.path)
	log := logctx.FromContext(ctx)

	start := time.Now()
	memBefore := memdiag.Read()
	res, err := count(ctx, cfg, env)
	if err != nil {
		return err
	}

	ev := logging.PhaseComplete(log, "count", time.Since(start)).
		Count("rows", res.rows).
		Bytes("bytes_read", res.bytes).
		Str("format", res.format).
		Throughput(res.bytes)
	if cfg.debug {
		memdiag.Read().Since(memBefore).AddTo(ev)
	}
	ev.Log("count completed")

	if cfg.mode == ModeDone {
		_, err = fmt.Fprintln(env.Stdout, DoneMessage)
	} else {
		_, err = fmt.Fprintln(env.Stdout, res.rows)
	}
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func parseArgs(args []string, stderr io.Writer) (config, error) {
	fs := flag.NewFlagSet("csvrows", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}

	noHeader := fs.Bool("no-header", false, "count the first record as data")
	mode := fs.String("mode", ModeCount, "output mode: count prints the row count, done prints \""+DoneMessage+"\"")
	debug := fs.Bool("debug", false, "enable debug logging")
	logFormat := fs.String("log-format", logging.FormatAuto, "log format on stderr: auto, json or human")
	progress := fs.Duration("progress", 0, "log progress at this interval (0 disables)")

	var cfg config
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, err
		}
		return cfg, &UsageError{Message: err.Error()}
	}

	switch fs.NArg() {
	case 0:
		return cfg, &UsageError{Message: "usage: csvrows [options] <path>: missing <path>"}
	case 1:
	default:
		return cfg, &UsageError{Message: fmt.Sprintf("expected exactly one <path>, got %d", fs.NArg())}
	}

	if *mode != ModeCount && *mode != ModeDone {
		return cfg, &UsageError{Message: fmt.Sprintf("--mode must be %q or %q, got %q", ModeCount, ModeDone, *mode)}
	}
	if *progress < 0 {
		return cfg, &UsageError{Message: "--progress must not be negative"}
	}
	human, err := logging.ParseFormat(*logFormat, stderr)
	if err != nil {
		return cfg, &UsageError{Message: "--log-format: " + err.Error()}
	}

	return config{
		path:      fs.Arg(0),
		hasHeader: !*noHeader,
		mode:      *mode,
		debug:     *debug,
		human:     human,
		progress:  *progress,
	}, nil
}

type result struct {
	rows   int64
	bytes  int64
	format string
}

func count(ctx context.Context, cfg config, env Env) (result, error) {
	if source.IsParquet(cfg.path) {
		var opts source.ParquetOptions
		if env.S3 != nil {
			opts.S3 = env.S3
		}
		rows, size, err := source.CountParquet(ctx, cfg.path, opts)
		if err != nil {
			return result{}, err
		}
		return result{rows: rows, bytes: size, format: "parquet"}, nil
	}

	opts := source.Options{Stdin: env.Stdin}
	if env.S3 != nil {
		opts.S3 = env.S3
	}
	stream, err := source.Open(ctx, cfg.path, opts)
	if err != nil {
		return result{}, err
	}
	defer stream.Close()

	counter := rowcount.NewCounter(rowcount.Options{HasHeader: cfg.hasHeader})

	g, gctx := errgroup.WithContext(ctx)
	progressCtx, stopProgress := context.WithCancel(gctx)
	defer stopProgress()

	var rows int64
	g.Go(func() error {
		defer stopProgress()
		n, err := counter.Consume(gctx, stream)
		if err != nil {
			return err
		}
		rows = n
		return nil
	})
	g.Go(func() error {
		return logging.ReportProgress(progressCtx, logctx.FromContext(ctx), "count", cfg.progress, func() (int64, int64) {
			return stream.BytesRead(), counter.Rows()
		})
	})
	if err := g.Wait(); err != nil {
		return result{}, err
	}

	format := "csv"
	if stream.Compression != source.CompressionNone {
		format = "csv+" + stream.Compression.String()
	}
	return result{rows: rows, bytes: stream.BytesRead(), format: format}, nil
}
