// Package convert runs the trace converters over one trace in a single
// traversal and writes their outputs.
package convert

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gtc/internal/chrome"
	"gtc/internal/config"
	"gtc/internal/model"
	"gtc/internal/store"
	"gtc/internal/timeline"
	"gtc/internal/transforms"
	"gtc/internal/traverse"
)

// Suffix returns the file name suffix of a concrete output format.
func Suffix(f config.Format) string {
	switch f {
	case config.FormatChrome:
		return "-chrome.proto"
	case config.FormatTimeline:
		return "-timeline.csv"
	case config.FormatTransforms:
		return "-transform-summary.csv"
	default:
		return ""
	}
}

// Options controls a conversion.
type Options struct {
	// Outputs defaults to every concrete format.
	Outputs   []config.Format
	OutputDir string
	Filter    *traverse.Filter
	Logger    *zap.Logger
}

// Output describes one written file.
type Output struct {
	Format config.Format `json:"format"`
	Path   string        `json:"path"`
	// Items counts packets for the trace-viewer output and rows otherwise.
	Items int   `json:"items"`
	Bytes int64 `json:"bytes"`
}

// Result describes a finished conversion.
type Result struct {
	Stats   traverse.Stats `json:"stats"`
	Outputs []Output       `json:"outputs"`
}

type converter interface {
	traverse.Visitor
	io.WriterTo
	Count() int
}

func newConverter(f config.Format, logger *zap.Logger) (converter, error) {
	switch f {
	case config.FormatChrome:
		return chrome.NewConverter(), nil
	case config.FormatTimeline:
		return timeline.NewConverter(logger.Named("timeline")), nil
	case config.FormatTransforms:
		return transforms.NewConverter(logger.Named("transforms")), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownFormat, f)
	}
}

// Run converts trace, read from input, into every requested output. The
// converters share one traversal and their files are written concurrently.
func Run(ctx context.Context, trace *model.Trace, input string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	formats := opts.Outputs
	if len(formats) == 0 {
		formats = config.Formats
	}

	converters := make([]converter, len(formats))
	visitors := make([]traverse.Visitor, len(formats))
	for i, f := range formats {
		c, err := newConverter(f, logger)
		if err != nil {
			return Result{}, err
		}
		converters[i] = c
		visitors[i] = c
	}

	result := Result{
		Stats:   traverse.Walk(trace, traverse.Multi(visitors...), opts.Filter, logger),
		Outputs: make([]Output, len(formats)),
	}

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return result, fmt.Errorf("create output directory: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := store.OutputPath(input, opts.OutputDir, Suffix(f))
			n, err := writeFile(path, converters[i])
			if err != nil {
				return err
			}
			result.Outputs[i] = Output{Format: f, Path: path, Items: converters[i].Count(), Bytes: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func writeFile(path string, src io.WriterTo) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output file %q: %w", path, err)
	}
	w := bufio.NewWriter(f)
	n, err := src.WriteTo(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write output file %q: %w", path, err)
	}
	return n, nil
}
