// Package timeline converts task and transform executions into a flat CSV
// timeline.
package timeline

import (
	"io"
	"strconv"

	"go.uber.org/zap"

	"gtc/internal/buildops"
	"gtc/internal/format"
	"gtc/internal/model"
	"gtc/internal/traverse"
)

// NodeType is the kind of work a timeline row describes.
type NodeType string

const (
	NodeTask      NodeType = "TASK"
	NodeTransform NodeType = "TRANSFORM"
)

// Header is the first line of the timeline CSV.
var Header = []string{
	"description",
	"type",
	"inTypeId",
	"workType",
	"buildPath",
	"projectPath",
	"startTime",
	"duration",
}

// Node is one executed task or transform.
type Node struct {
	Description string   `json:"description"`
	Type        NodeType `json:"type"`
	InTypeID    int64    `json:"inTypeId"`
	WorkType    string   `json:"workType"`
	BuildPath   string   `json:"buildPath"`
	ProjectPath string   `json:"projectPath"`
	StartTime   int64    `json:"startTime"`
	Duration    int64    `json:"duration"`
}

// Row returns the CSV cells of n in header order.
func (n Node) Row() []string {
	return []string{
		n.Description,
		string(n.Type),
		strconv.FormatInt(n.InTypeID, 10),
		n.WorkType,
		n.BuildPath,
		n.ProjectPath,
		strconv.FormatInt(n.StartTime, 10),
		strconv.FormatInt(n.Duration, 10),
	}
}

// Converter collects timeline nodes in the order their operations finish.
type Converter struct {
	logger *zap.Logger
	nodes  []Node
}

// NewConverter returns an empty converter. A nil logger discards warnings.
func NewConverter(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{logger: logger}
}

// Visit implements traverse.Visitor.
func (c *Converter) Visit(start *model.Start) traverse.PostVisit {
	switch {
	case buildops.IsExecuteTask(start.DetailsKind):
		return c.onExecuteTask
	case buildops.IsTransformationStep(start.DetailsKind):
		return c.onTransformationStep
	default:
		return nil
	}
}

func (c *Converter) onExecuteTask(start *model.Start, finish *model.Finish) {
	details, err := buildops.DecodeExecuteTask(start.Details)
	if err != nil {
		c.skip(start, err)
		return
	}
	c.nodes = append(c.nodes, Node{
		Description: details.TaskPath,
		Type:        NodeTask,
		InTypeID:    details.TaskID,
		WorkType:    details.TaskClass,
		BuildPath:   details.BuildPath,
		ProjectPath: details.ProjectPath(),
		StartTime:   start.StartTime,
		Duration:    finish.EndTime - start.StartTime,
	})
}

func (c *Converter) onTransformationStep(start *model.Start, finish *model.Finish) {
	details, err := buildops.DecodeTransformationStep(start.Details)
	if err != nil {
		c.skip(start, err)
		return
	}
	c.nodes = append(c.nodes, Node{
		Description: details.Description(),
		Type:        NodeTransform,
		InTypeID:    details.Identity.TransformationNodeID,
		WorkType:    details.TransformType,
		BuildPath:   details.Identity.BuildPath,
		ProjectPath: details.Identity.ProjectPath,
		StartTime:   start.StartTime,
		Duration:    finish.EndTime - start.StartTime,
	})
}

func (c *Converter) skip(start *model.Start, err error) {
	c.logger.Warn("skipping timeline row",
		zap.Int64("id", int64(start.ID)),
		zap.String("name", start.DisplayName),
		zap.Error(err))
}

// Count returns the number of collected nodes.
func (c *Converter) Count() int {
	return len(c.nodes)
}

// Rows returns the CSV cells of every node.
func (c *Converter) Rows() [][]string {
	rows := make([][]string, len(c.nodes))
	for i, n := range c.nodes {
		rows[i] = n.Row()
	}
	return rows
}

// WriteTo writes the timeline CSV.
func (c *Converter) WriteTo(w io.Writer) (int64, error) {
	cw := &format.CountingWriter{W: w}
	err := format.WriteCSV(cw, Header, c.Rows())
	return cw.N, err
}
