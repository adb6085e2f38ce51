package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression extensions recognised by Open.
const (
	ExtGzip = ".gz"
	ExtZstd = ".zst"
)

// Open opens the trace file at path, transparently decompressing gzip and
// zstd inputs. Raw file bytes are copied to progress when it is non-nil.
func Open(path string, progress io.Writer) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	var src io.Reader = file
	if progress != nil {
		src = io.TeeReader(file, progress)
	}

	switch {
	case strings.HasSuffix(path, ExtGzip):
		zr, err := gzip.NewReader(src)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, file.Close}}, nil
	case strings.HasSuffix(path, ExtZstd):
		zr, err := zstd.NewReader(src)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		closeZstd := func() error {
			zr.Close()
			return nil
		}
		return &stackedReader{Reader: zr, closers: []func() error{closeZstd, file.Close}}, nil
	default:
		return &stackedReader{Reader: src, closers: []func() error{file.Close}}, nil
	}
}

// TrimCompression strips a recognised compression extension from name.
func TrimCompression(name string) string {
	for _, ext := range []string{ExtGzip, ExtZstd} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

type stackedReader struct {
	io.Reader
	closers []func() error
}

func (s *stackedReader) Close() error {
	var first error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
