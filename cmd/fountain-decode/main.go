package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/airgapqr/fountain/fountain"
	"github.com/airgapqr/fountain/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

type options struct {
	inputPath  string
	outputPath string
	pendingLen int
	force      bool
	verbose    bool
}

func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("fountain-decode", pflag.ContinueOnError)
	opts := &options{}

	fs.StringVarP(&opts.outputPath, "output", "o", "", "output path (defaults to the anchor's sanitized filename)")
	fs.IntVar(&opts.pendingLen, "pending-queue", fountain.DefaultDecodeOptions().PendingQueueSize, "bounded pre-anchor packet buffer size")
	fs.BoolVarP(&opts.force, "force", "f", false, "overwrite an existing output file")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <frame-source>\n", args[0])
		fmt.Fprintf(os.Stderr, "  <frame-source> is '-' to read base64 frame lines from stdin,\n")
		fmt.Fprintf(os.Stderr, "  or a path to a file of base64 frame lines.\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("must pass exactly one frame source, got %d", fs.NArg())
	}
	opts.inputPath = fs.Arg(0)
	return opts, nil
}

func openSource(path string) (fountain.FrameSource, func() error, error) {
	if path == "-" {
		return fountain.NewLineReaderSource(os.Stdin), func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open frame source: %w", err)
	}
	return fountain.NewLineReaderSource(f), f.Close, nil
}

func run(opts *options, log logger.Logger) error {
	src, closeSrc, err := openSource(opts.inputPath)
	if err != nil {
		return err
	}
	defer closeSrc()

	decOpts := fountain.DefaultDecodeOptions()
	if opts.pendingLen > 0 {
		decOpts.PendingQueueSize = opts.pendingLen
	}
	dec := fountain.NewDecoder(log, decOpts)

	res, err := fountain.Drain(dec, src)
	if err != nil {
		switch {
		case errors.Is(err, fountain.ErrAnchorMissing):
			return fmt.Errorf("stream ended before any anchor was seen: %w", err)
		case errors.Is(err, fountain.ErrIncomplete):
			return fmt.Errorf("stream ended before reconstruction completed (stats=%+v): %w", dec.Stats(), err)
		default:
			return err
		}
	}

	outputPath := opts.outputPath
	if outputPath == "" {
		outputPath = res.Filename
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.force {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(outputPath, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", outputPath, fountain.ErrOutputExists)
		}
		return fmt.Errorf("open output file: %w", err)
	}
	defer out.Close()

	if _, err := out.Write(res.Data); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}

	hash := dec.ResultHash()
	log.Infof("reconstructed %q (%d bytes, blake2b-256 %x)", outputPath, len(res.Data), hash)
	return nil
}

func main() {
	opts, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}

	level := logger.LevelInfo
	if opts.verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level, "(decode) ")

	if err := run(opts, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
