package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
}

func TestFindTraces(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b", "build-log.txt"))
	touch(t, filepath.Join(root, "a", "ops.jsonl.zst"))
	touch(t, filepath.Join(root, "a", "build-tree.json.gz"))
	touch(t, filepath.Join(root, "a", "notes.txt"))
	touch(t, filepath.Join(root, "a", "build-chrome.proto"))

	res, err := FindTraces(root)
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Equal(t, []string{
		filepath.Join(root, "a", "build-tree.json.gz"),
		filepath.Join(root, "a", "ops.jsonl.zst"),
		filepath.Join(root, "b", "build-log.txt"),
	}, res.Paths)
}

func TestFindTracesFixtures(t *testing.T) {
	res, err := FindTraces(filepath.Join("..", "..", "testdata", "traces"))
	require.NoError(t, err)
	require.Len(t, res.Paths, 2)
}

func TestFindTracesSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anything.dat")
	touch(t, path)

	res, err := FindTraces(path)
	require.NoError(t, err)
	require.Equal(t, []string{path}, res.Paths)
}

func TestFindTracesErrors(t *testing.T) {
	_, err := FindTraces("")
	require.Error(t, err)

	_, err = FindTraces(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, dir, suffix, want string
	}{
		{"traces/build-log.txt", "", "-chrome.proto", filepath.Join("traces", "build-log-chrome.proto")},
		{"traces/build-log.txt.gz", "", "-timeline.csv", filepath.Join("traces", "build-log-timeline.csv")},
		{"build.jsonl.zst", "out", "-transform-summary.csv", filepath.Join("out", "build-transform-summary.csv")},
		{"/tmp/noext", "", "-chrome.proto", filepath.Join("/tmp", "noext-chrome.proto")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, OutputPath(filepath.FromSlash(tt.input), tt.dir, tt.suffix))
		})
	}
}

func TestIsTrace(t *testing.T) {
	require.True(t, IsTrace("x-tree.json"))
	require.True(t, IsTrace("dir/x.jsonl.gz"))
	require.False(t, IsTrace("x.json"))
	require.False(t, IsTrace("x-timeline.csv"))
}
