package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gtc/internal/config"
	"gtc/internal/traverse"
	"gtc/internal/view"
)

var tracesDir = filepath.Join("..", "..", "testdata", "traces")

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(io.NopCloser(&bytes.Buffer{}))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConvertCommandDirectory(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "convert", tracesDir, "--output-dir", dir)
	require.NoError(t, err)

	require.Contains(t, out, "Processed 11 build operation records from "+filepath.Join(tracesDir, "sample-log.txt"))
	require.Contains(t, out, "Wrote 2 rows to "+filepath.Join(dir, "sample-log-timeline.csv"))
	require.Contains(t, out, "Wrote 1 transforms to "+filepath.Join(dir, "sample-log-transform-summary.csv"))
	for _, name := range []string{
		"sample-log-chrome.proto",
		"sample-tree-chrome.proto",
		"sample-tree-timeline.csv",
		"sample-tree-transform-summary.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestConvertCommandSingleOutput(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "convert", filepath.Join(tracesDir, "sample-tree.json"), "-o", "timeline", "--output-dir", dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sample-tree-timeline.csv", entries[0].Name())
}

func TestConvertCommandEnvFormat(t *testing.T) {
	t.Setenv("GTC_OUTPUT_FORMAT", "chrome")
	dir := t.TempDir()
	out, _, err := execute(t, "convert", filepath.Join(tracesDir, "sample-log.txt"), "--output-dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "packets to "+filepath.Join(dir, "sample-log-chrome.proto"))
	require.NotContains(t, out, "rows")
}

func TestConvertCommandErrors(t *testing.T) {
	_, _, err := execute(t, "convert", filepath.Join(tracesDir, "sample-log.txt"), "-o", "svg", "--output-dir", t.TempDir())
	require.ErrorIs(t, err, config.ErrUnknownFormat)

	_, _, err = execute(t, "convert", filepath.Join(tracesDir, "sample-log.txt"), "-i", "(", "--output-dir", t.TempDir())
	require.Error(t, err)

	_, _, err = execute(t, "convert", t.TempDir())
	require.EqualError(t, err, "no build operation traces found")
}

func TestTransformsCommandCSV(t *testing.T) {
	out, _, err := execute(t, "transforms", filepath.Join(tracesDir, "sample-log.txt"), "--format", "csv", "--no-header")
	require.NoError(t, err)
	require.Equal(t,
		`c0ffee01,org.example.JarToClassesTransform,com.google.guava:guava:32.1.2-jre,"{artifactType=jar,org.gradle.usage=java-runtime}","{artifactType=classes,org.gradle.usage=java-runtime}",:,:app,org.example.JarToClassesTransform,7,1,1,47`+"\n",
		out)
}

func TestTransformsCommandTable(t *testing.T) {
	out, _, err := execute(t, "transforms", filepath.Join(tracesDir, "sample-log.txt"), "--width", "400", "--color", "never")
	require.NoError(t, err)
	require.Contains(t, out, "c0ffee01")
	require.Contains(t, out, "1 transforms, 1 executions, 00:00:00.047 executing")
}

func TestTransformsCommandFiltered(t *testing.T) {
	out, _, err := execute(t, "transforms", filepath.Join(tracesDir, "sample-log.txt"), "--format", "jsonl", "-e", "Identifying work")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestInfoCommandJSON(t *testing.T) {
	out, _, err := execute(t, "info", filepath.Join(tracesDir, "sample-tree.json"), "--format", "json")
	require.NoError(t, err)

	var payload infoPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.True(t, payload.Nested)
	require.Equal(t, 3, payload.Stats.Records)
	require.Equal(t, 1, payload.Stats.Roots)
	require.Equal(t, int64(200), payload.SpanMillis)
}

func TestInfoCommandText(t *testing.T) {
	out, _, err := execute(t, "info", filepath.Join(tracesDir, "sample-log.txt"), "--color", "never")
	require.NoError(t, err)
	require.Contains(t, out, "Shape             : flat log\n")
	require.Contains(t, out, "Records           : 11\n")
	require.Contains(t, out, "Span              : 00:00:00.200\n")

	_, _, err = execute(t, "info", filepath.Join(tracesDir, "sample-log.txt"), "--format", "yaml")
	require.Error(t, err)
}

func TestRenderInfoTextColor(t *testing.T) {
	var buf bytes.Buffer
	renderInfoText(&buf, infoPayload{Path: "x", Stats: traverse.Stats{Unmatched: 2}}, true)
	out := buf.String()
	require.Contains(t, out, view.Colorize(true, view.AnsiBold, fmt.Sprintf("%-18s", "Trace"))+": x\n")
	require.Contains(t, out, view.Colorize(true, view.AnsiWarning, "2"))
	require.Contains(t, out, view.Colorize(true, view.AnsiOK, "0"))
}

func TestFormatMillis(t *testing.T) {
	require.Equal(t, "00:00:00.000", formatMillis(-5))
	require.Equal(t, "01:01:01.001", formatMillis(3_661_001))
}
