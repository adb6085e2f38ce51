package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"gtc/internal/model"
)

func fixturePath(parts ...string) string {
	elems := append([]string{"..", "..", "testdata", "traces"}, parts...)
	return filepath.Join(elems...)
}

func TestReadFile_FlatLog(t *testing.T) {
	trace, err := ReadFile(fixturePath("sample-log.txt"), nil)
	require.NoError(t, err)
	require.False(t, trace.Nested())
	require.Len(t, trace.Logs, 11)

	start, ok := trace.Logs[1].(*model.Start)
	require.True(t, ok)
	require.Equal(t, model.OperationID(2), start.ID)
	parent, ok := start.Parent()
	require.True(t, ok)
	require.Equal(t, model.OperationID(1), parent)
	require.Equal(t, "org.gradle.api.internal.tasks.execution.ExecuteTaskBuildOperationDetails", start.DetailsKind)
	taskID, ok := start.Details.Int("taskId")
	require.True(t, ok)
	require.Equal(t, int64(11), taskID)

	finish, ok := trace.Logs[2].(*model.Finish)
	require.True(t, ok)
	require.Equal(t, int64(1050), finish.EndTime)
	require.Empty(t, finish.Failure)

	progress, ok := trace.Logs[7].(*model.Progress)
	require.True(t, ok)
	require.Equal(t, model.OperationID(5), progress.ID)
	require.Equal(t, int64(1070), progress.Time)
}

func TestReadFile_NestedRecords(t *testing.T) {
	trace, err := ReadFile(fixturePath("sample-tree.json"), nil)
	require.NoError(t, err)
	require.True(t, trace.Nested())
	require.Len(t, trace.Records, 1)

	root := trace.Records[0]
	require.Nil(t, root.ParentID)
	require.Len(t, root.Children, 2)
	require.Empty(t, root.Children[0].Children)

	jar := root.Children[1]
	require.NotNil(t, jar.WorkerLeaseNumber)
	require.Equal(t, 1, *jar.WorkerLeaseNumber)
	require.Equal(t, "Execution worker Thread 2", jar.ThreadDescription)
	require.Len(t, jar.Progress, 1)
	require.Equal(t, int64(1020), jar.Progress[0].Time)
}

func TestRead_DetailsKindAlias(t *testing.T) {
	input := `{"id":1,"displayName":"a","startTime":5,"detailsKind":"Kind"}
{"id":1,"endTime":6,"resultKind":"Result","failure":{"message":"boom"}}
`
	trace, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, "Kind", trace.Logs[0].(*model.Start).DetailsKind)

	finish := trace.Logs[1].(*model.Finish)
	require.Equal(t, "Result", finish.ResultKind)
	require.Equal(t, `{"message":"boom"}`, finish.Failure)
}

func TestRead_SkipsBlankLines(t *testing.T) {
	input := "\n\n{\"id\":1,\"displayName\":\"a\",\"startTime\":5}\n\n{\"id\":1,\"endTime\":6}\n"
	trace, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, trace.Logs, 2)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		message string
	}{
		{name: "empty", input: "  \n", wantErr: ErrEmptyTrace},
		{name: "empty array", input: "[]", wantErr: ErrEmptyTrace},
		{name: "missing id", input: `{"displayName":"a","startTime":1}`, wantErr: ErrUnknownLog},
		{name: "malformed line", input: "{\"id\":1,\"startTime\":1}\n{oops", message: "line 2"},
		{name: "malformed array", input: `[{"id":1}`, message: "unmarshal records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "unexpected error: %v", err)
			}
			if tt.message != "" {
				require.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestReadFile_WrapsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-log.txt")
	_, err := ReadFile(path, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read build operation trace "+path)
}

func TestReadFile_Compressed(t *testing.T) {
	raw, err := os.ReadFile(fixturePath("sample-log.txt"))
	require.NoError(t, err)
	dir := t.TempDir()

	gzPath := filepath.Join(dir, "sample-log.txt.gz")
	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err = gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(gzPath, gzBuf.Bytes(), 0o644))

	zstPath := filepath.Join(dir, "sample-log.txt.zst")
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(zstPath, enc.EncodeAll(raw, nil), 0o644))
	require.NoError(t, enc.Close())

	for _, path := range []string{gzPath, zstPath} {
		var progress bytes.Buffer
		trace, err := ReadFile(path, &progress)
		require.NoError(t, err, path)
		require.Len(t, trace.Logs, 11, path)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, progress.Len(), path)
		require.LessOrEqual(t, int64(progress.Len()), info.Size(), path)
	}
}

func TestTrimCompression(t *testing.T) {
	require.Equal(t, "a-log.txt", TrimCompression("a-log.txt.gz"))
	require.Equal(t, "a-log.txt", TrimCompression("a-log.txt.zst"))
	require.Equal(t, "a-log.txt", TrimCompression("a-log.txt"))
}
