package transforms

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gtc/internal/buildops"
	"gtc/internal/model"
	"gtc/internal/parser"
	"gtc/internal/traverse"
)

func stepStart(id model.OperationID, nodeID float64, ts int64) *model.Start {
	return &model.Start{
		ID: id, DisplayName: "transform", StartTime: ts,
		DetailsKind: buildops.KindTransformationStep,
		Details: model.Payload{
			"transformType":    "org.example.Unzip",
			"sourceAttributes": map[string]any{"artifactType": "zip"},
			"fromAttributes":   map[string]any{"artifactType": "zip"},
			"toAttributes":     map[string]any{"artifactType": "dir"},
			"transformationIdentity": map[string]any{
				"buildPath":   ":",
				"projectPath": ":app",
				"targetVariant": map[string]any{
					"componentId":  map[string]any{"group": "g", "module": "m", "version": "1"},
					"attributes":   map[string]any{"artifactType": "zip"},
					"capabilities": []any{},
				},
				"artifactName":         "m-1.zip",
				"transformationNodeId": nodeID,
			},
		},
	}
}

func identifyStart(id model.OperationID, parent model.OperationID, ts int64) *model.Start {
	p := parent
	return &model.Start{
		ID: id, ParentID: &p, DisplayName: "Identifying work", StartTime: ts,
		DetailsKind: buildops.KindIdentifyTransform,
		Details: model.Payload{
			"workType":       "org.example.Unzip",
			"componentId":    "g:m:1",
			"fromAttributes": []any{map[string]any{"name": "artifactType", "value": "zip"}},
			"toAttributes":   []any{map[string]any{"name": "artifactType", "value": "dir"}},
		},
	}
}

func identifyFinish(id model.OperationID, ts int64, identity string) *model.Finish {
	return &model.Finish{
		ID: id, EndTime: ts,
		Result: model.Payload{"identity": map[string]any{"uniqueId": identity}},
	}
}

func executeStart(id model.OperationID, ts int64, identity string) *model.Start {
	return &model.Start{
		ID: id, DisplayName: "Executing", StartTime: ts,
		DetailsKind: buildops.KindExecuteWork,
		Details: model.Payload{
			"workType": buildops.WorkTypeMutableTransform,
			"identity": map[string]any{"uniqueId": identity},
		},
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "traces", name)
}

func TestConverter_IdentifiedTwice(t *testing.T) {
	c := NewConverter(nil)
	traverse.VisitLogs([]model.Log{
		stepStart(1, 4, 10),
		identifyStart(2, 1, 11),
		identifyFinish(2, 12, "abc"),
		identifyStart(3, 1, 13),
		identifyFinish(3, 14, "abc"),
		&model.Finish{ID: 1, EndTime: 20},
	}, c, nil, nil)

	infos := c.Transforms()
	require.Len(t, infos, 1)
	info := infos[0]
	require.Equal(t, "abc", info.Identity)
	require.Equal(t, 2, info.InvocationCount)
	require.Zero(t, info.ExecutionCount)
	require.Equal(t, "{artifactType=zip}", info.FromAttributes)
	require.Equal(t, &Context{BuildPath: ":", ProjectPath: ":app", TransformType: "org.example.Unzip", TransformationNodeID: 4}, info.Context)
}

func TestConverter_ContextMismatchWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewConverter(zap.New(core))
	traverse.VisitLogs([]model.Log{
		stepStart(1, 4, 10),
		identifyStart(2, 1, 11),
		identifyFinish(2, 12, "abc"),
		&model.Finish{ID: 1, EndTime: 20},
		stepStart(3, 5, 30),
		identifyStart(4, 3, 31),
		identifyFinish(4, 32, "abc"),
		&model.Finish{ID: 3, EndTime: 40},
	}, c, nil, nil)

	require.Equal(t, 2, c.Transforms()[0].InvocationCount)
	require.Equal(t, int64(4), c.Transforms()[0].Context.TransformationNodeID)
	require.Equal(t, 1, logs.FilterMessage("transform identified in a different transformation step").Len())
}

func TestConverter_Executions(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewConverter(zap.New(core))
	traverse.VisitLogs([]model.Log{
		identifyStart(1, 0, 0),
		identifyFinish(1, 1, "abc"),
		executeStart(2, 10, "abc"),
		&model.Finish{ID: 2, EndTime: 15},
		executeStart(3, 20, "abc"),
		&model.Finish{ID: 3, EndTime: 27},
		executeStart(4, 30, "unknown"),
		&model.Finish{ID: 4, EndTime: 31},
	}, c, nil, nil)

	info := c.Transforms()[0]
	require.Nil(t, info.Context)
	require.Equal(t, 2, info.ExecutionCount)
	require.Equal(t, int64(12), info.ExecutionTimeMillis)
	require.Equal(t, 1, logs.FilterMessage("transform executed more than once").Len())
	require.Equal(t, 1, logs.FilterMessage("no transform identified for executed work").Len())

	row := info.Row()
	require.Equal(t, []string{"", "", "", ""}, row[5:9])
	require.Equal(t, []string{"1", "2", "12"}, row[9:])
}

func TestConverter_IgnoresNonTransformWork(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewConverter(zap.New(core))
	traverse.VisitLogs([]model.Log{
		&model.Start{
			ID: 1, StartTime: 0, DetailsKind: buildops.KindExecuteWork,
			Details: model.Payload{"workType": "org.example.TaskExecution"},
		},
		&model.Finish{ID: 1, EndTime: 5},
	}, c, nil, nil)

	require.Zero(t, c.Count())
	require.Zero(t, logs.Len())
}

func TestConverter_NestedStepsRestoreContext(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewConverter(zap.New(core))
	traverse.VisitLogs([]model.Log{
		stepStart(1, 4, 10),
		stepStart(2, 5, 11),
		&model.Finish{ID: 2, EndTime: 12},
		identifyStart(3, 1, 13),
		identifyFinish(3, 14, "abc"),
		&model.Finish{ID: 1, EndTime: 20},
	}, c, nil, nil)

	require.Equal(t, int64(4), c.Transforms()[0].Context.TransformationNodeID)
	require.Equal(t, 1, logs.FilterMessage("transformation step started inside another one").Len())
}

func TestConverter_FromTraceFile(t *testing.T) {
	want := "identity,workType,componentId,fromAttributes,toAttributes,buildPath,projectPath,transformType,transformationNodeId,invocationCount,executionCount,executionTimeMillis\n" +
		`c0ffee01,org.example.JarToClassesTransform,com.google.guava:guava:32.1.2-jre,"{artifactType=jar,org.gradle.usage=java-runtime}","{artifactType=classes,org.gradle.usage=java-runtime}",:,:app,org.example.JarToClassesTransform,7,1,1,47` + "\n"

	trace, err := parser.ReadFile(fixturePath("sample-log.txt"), nil)
	require.NoError(t, err)
	c := NewConverter(nil)
	traverse.Walk(trace, c, nil, nil)

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.Equal(t, want, buf.String())
}

func TestConverter_Table(t *testing.T) {
	trace, err := parser.ReadFile(fixturePath("sample-log.txt"), nil)
	require.NoError(t, err)
	c := NewConverter(nil)
	traverse.Walk(trace, c, nil, nil)

	tbl := c.Table()
	require.Equal(t, Header, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	require.True(t, tbl.Numeric[11])
}
