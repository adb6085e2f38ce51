package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadInt(t *testing.T) {
	p := Payload{
		"number":  json.Number("42"),
		"float":   json.Number("7.0"),
		"string":  "13",
		"decimal": 3.9,
		"bogus":   "abc",
	}

	tests := []struct {
		key  string
		want int64
		ok   bool
	}{
		{"number", 42, true},
		{"float", 7, true},
		{"string", 13, true},
		{"decimal", 3, true},
		{"bogus", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := p.Int(tt.key)
		require.Equal(t, tt.ok, ok, tt.key)
		require.Equal(t, tt.want, got, tt.key)
	}
}

func TestPayloadNested(t *testing.T) {
	p := Payload{
		"identity": map[string]any{"uniqueId": "abc"},
		"attrs":    map[string]any{"b": "2", "a": json.Number("1"), "c": true},
		"list":     []any{"x"},
	}

	identity, ok := p.Map("identity")
	require.True(t, ok)
	id, ok := identity.String("uniqueId")
	require.True(t, ok)
	require.Equal(t, "abc", id)

	attrs, ok := p.StringMap("attrs")
	require.True(t, ok)
	require.Equal(t, map[string]string{"a": "1", "b": "2", "c": "true"}, attrs)

	list, ok := p.List("list")
	require.True(t, ok)
	require.Len(t, list, 1)

	_, ok = p.Map("list")
	require.False(t, ok)
}

func TestPayloadKeysSorted(t *testing.T) {
	p := Payload{"z": 1, "a": 2, "m": 3}
	require.Equal(t, []string{"a", "m", "z"}, p.Keys())
}

func TestStringify(t *testing.T) {
	require.Equal(t, "null", Stringify(nil))
	require.Equal(t, "1.5", Stringify(1.5))
	require.Equal(t, "12", Stringify(json.Number("12")))
	require.Equal(t, `{"a":"x","b":["y"]}`, Stringify(map[string]any{"b": []any{"y"}, "a": "x"}))
}

func TestRecordStartUsesTreeParent(t *testing.T) {
	own := OperationID(99)
	parent := &Record{ID: 1}
	child := &Record{ID: 2, ParentID: &own, DisplayName: "child", StartTime: 10, EndTime: 20}
	parent.Children = []*Record{child}

	start := child.Start(parent)
	id, ok := start.Parent()
	require.True(t, ok)
	require.Equal(t, OperationID(1), id)

	start = child.Start(nil)
	id, ok = start.Parent()
	require.True(t, ok)
	require.Equal(t, OperationID(99), id)

	require.Equal(t, int64(20), child.Finish().EndTime)
}
