// Package store locates build operation traces on disk and names the
// files converted from them.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gtc/internal/parser"
)

// traceSuffixes are the base name endings recognised as traces, before any
// compression extension.
var traceSuffixes = []string{".jsonl", "-log.txt", "-tree.json"}

// IsTrace reports whether name looks like a build operation trace.
func IsTrace(name string) bool {
	base := parser.TrimCompression(filepath.Base(name))
	for _, suffix := range traceSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// FindResult contains trace paths and non-fatal warnings.
type FindResult struct {
	Paths    []string
	Warnings []error
}

// FindTraces walks root and returns every trace beneath it in lexical
// order. A root that is a regular file is returned as is.
func FindTraces(root string) (FindResult, error) {
	if root == "" {
		return FindResult{}, errors.New("root path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return FindResult{}, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return FindResult{Paths: []string{root}}, nil
	}

	var result FindResult
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("walk %s: %w", path, walkErr))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsTrace(d.Name()) {
			return nil
		}
		result.Paths = append(result.Paths, path)
		return nil
	})
	if err != nil {
		return result, err
	}
	sort.Strings(result.Paths)
	return result, nil
}

// BaseName strips the directory, any compression extension and the file
// extension from a trace path.
func BaseName(input string) string {
	base := parser.TrimCompression(filepath.Base(input))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// OutputPath names the file converted from input. The file lands next to
// the input unless outputDir is set.
func OutputPath(input, outputDir, suffix string) string {
	dir := filepath.Dir(input)
	if outputDir != "" {
		dir = outputDir
	}
	return filepath.Join(dir, BaseName(input)+suffix)
}
