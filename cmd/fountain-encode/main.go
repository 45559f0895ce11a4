package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/airgapqr/fountain/fountain"
	"github.com/airgapqr/fountain/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// options mirrors the teacher's flags.Options pattern: a plain struct
// populated by pflag, passed by pointer rather than threaded through
// globals.
type options struct {
	inputPath    string
	chunkSize    int
	anchorPeriod int
	overhead     float64
	safety       int
	scheme       string
	sink         string
	intervalMs   int
	filename     string
	verbose      bool
}

func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("fountain-encode", pflag.ContinueOnError)
	opts := &options{}

	fs.IntVar(&opts.chunkSize, "chunk-size", 2000, "QR payload size in bytes, including the 5-byte packet header")
	fs.IntVar(&opts.anchorPeriod, "anchor-period", 25, "packets emitted between anchor re-interleavings")
	fs.Float64Var(&opts.overhead, "overhead", 0.05, "fractional overhead above K for a bounded sink's packet budget")
	fs.IntVar(&opts.safety, "safety", 4, "flat extra symbols added on top of overhead for a bounded sink")
	fs.StringVar(&opts.scheme, "scheme", "raptorq", "erasure-coding scheme: raptorq or reed-solomon")
	fs.StringVar(&opts.sink, "sink", "terminal", "output sink: terminal, gif, or image-dir")
	fs.IntVar(&opts.intervalMs, "interval", 200, "milliseconds between frames for unbounded sinks (0 disables pacing)")
	fs.StringVar(&opts.filename, "filename", "", "filename recorded in the anchor (defaults to the input file's basename)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input-file>\n", args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("must pass exactly one input file, got %d", fs.NArg())
	}
	opts.inputPath = fs.Arg(0)
	return opts, nil
}

func schemeFromFlag(s string) (fountain.SchemeTag, error) {
	switch s {
	case "raptorq", "":
		return fountain.SchemeRaptorQ, nil
	case "reed-solomon":
		return fountain.SchemeReedSolomon, nil
	default:
		return 0, fmt.Errorf("unknown scheme %q", s)
	}
}

func run(opts *options, log logger.Logger) error {
	data, err := os.ReadFile(opts.inputPath)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	filename := opts.filename
	if filename == "" {
		filename = fountain.SanitizeFilename(opts.inputPath)
	}

	scheme, err := schemeFromFlag(opts.scheme)
	if err != nil {
		return err
	}

	encOpts := fountain.DefaultEncodeOptions()
	encOpts.ChunkSize = opts.chunkSize
	encOpts.AnchorPeriod = opts.anchorPeriod
	encOpts.Overhead = opts.overhead
	encOpts.Safety = opts.safety
	encOpts.Scheme = scheme
	if opts.intervalMs > 0 {
		encOpts.Interval = rate.Every(msToDuration(opts.intervalMs))
	}

	enc, err := fountain.NewStreamEncoder(filename, data, encOpts)
	if err != nil {
		return fmt.Errorf("build stream encoder: %w", err)
	}

	log.Infof("encoding %q: %d bytes, %d source symbols, scheme %s", filename, len(data), enc.TotalSourceSymbols(), scheme)

	// Frames are written as one base64 line per frame to stdout, the same
	// format fountain.LineReaderSource reads on the decode side. Actually
	// rasterizing a frame into a QR symbol (and, for "gif"/"image-dir",
	// assembling the carousel into a file) is external to this module
	// per spec.md's Non-goals; this CLI only produces the byte stream a
	// rasterizer would consume.
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	switch opts.sink {
	case "gif", "image-dir":
		frames := enc.Bounded()
		for _, f := range frames {
			if err := writeFrameLine(out, f); err != nil {
				return err
			}
		}
		log.Infof("bounded sink %q: wrote %d frames", opts.sink, len(frames))
		return nil
	default:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		for {
			frame, err := enc.NextPaced(ctx)
			if err != nil {
				log.Infof("stopped: %v", err)
				return nil
			}
			if err := writeFrameLine(out, frame); err != nil {
				return err
			}
		}
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func writeFrameLine(w *bufio.Writer, frame []byte) error {
	if _, err := w.WriteString(base64.StdEncoding.EncodeToString(frame)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return w.Flush()
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
	log := logger.New(level, "(encode) ")

	if err := run(opts, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
