// Package transforms correlates transform identifications with their
// executions and summarises them per identity.
package transforms

import (
	"io"
	"strconv"

	"go.uber.org/zap"

	"gtc/internal/buildops"
	"gtc/internal/format"
	"gtc/internal/model"
	"gtc/internal/traverse"
)

// Header is the first line of the transform summary CSV.
var Header = []string{
	"identity",
	"workType",
	"componentId",
	"fromAttributes",
	"toAttributes",
	"buildPath",
	"projectPath",
	"transformType",
	"transformationNodeId",
	"invocationCount",
	"executionCount",
	"executionTimeMillis",
}

// Context is the transformation step a unit of work was identified in.
type Context struct {
	BuildPath            string `json:"buildPath"`
	ProjectPath          string `json:"projectPath"`
	TransformType        string `json:"transformType"`
	TransformationNodeID int64  `json:"transformationNodeId"`
}

// TransformInfo aggregates everything known about one unit of transform
// work.
type TransformInfo struct {
	Identity            string   `json:"identity"`
	WorkType            string   `json:"workType"`
	ComponentID         string   `json:"componentId"`
	FromAttributes      string   `json:"fromAttributes"`
	ToAttributes        string   `json:"toAttributes"`
	Context             *Context `json:"context,omitempty"`
	InvocationCount     int      `json:"invocationCount"`
	ExecutionCount      int      `json:"executionCount"`
	ExecutionTimeMillis int64    `json:"executionTimeMillis"`
}

// Row returns the CSV cells of info in header order. Context columns are
// blank for work identified outside a transformation step.
func (info *TransformInfo) Row() []string {
	var buildPath, projectPath, transformType, nodeID string
	if ctx := info.Context; ctx != nil {
		buildPath = ctx.BuildPath
		projectPath = ctx.ProjectPath
		transformType = ctx.TransformType
		nodeID = strconv.FormatInt(ctx.TransformationNodeID, 10)
	}
	return []string{
		info.Identity,
		info.WorkType,
		info.ComponentID,
		info.FromAttributes,
		info.ToAttributes,
		buildPath,
		projectPath,
		transformType,
		nodeID,
		strconv.Itoa(info.InvocationCount),
		strconv.Itoa(info.ExecutionCount),
		strconv.FormatInt(info.ExecutionTimeMillis, 10),
	}
}

// Converter builds one TransformInfo per identity.
type Converter struct {
	logger     *zap.Logger
	byIdentity map[string]*TransformInfo
	order      []*TransformInfo
	current    *Context
}

// NewConverter returns an empty converter. A nil logger discards warnings.
func NewConverter(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		logger:     logger,
		byIdentity: make(map[string]*TransformInfo),
	}
}

// Visit implements traverse.Visitor.
func (c *Converter) Visit(start *model.Start) traverse.PostVisit {
	switch {
	case buildops.IsTransformationStep(start.DetailsKind):
		return c.enterStep(start)
	case buildops.IsIdentifyTransform(start.DetailsKind):
		return c.onIdentify
	case buildops.IsExecuteWork(start.DetailsKind):
		return c.onExecute
	default:
		return nil
	}
}

func (c *Converter) enterStep(start *model.Start) traverse.PostVisit {
	details, err := buildops.DecodeTransformationStep(start.Details)
	if err != nil {
		c.logger.Warn("cannot decode transformation step",
			zap.Int64("id", int64(start.ID)),
			zap.String("name", start.DisplayName),
			zap.Error(err))
		return nil
	}

	ctx := &Context{
		BuildPath:            details.Identity.BuildPath,
		ProjectPath:          details.Identity.ProjectPath,
		TransformType:        details.TransformType,
		TransformationNodeID: details.Identity.TransformationNodeID,
	}
	previous := c.current
	if previous != nil {
		c.logger.Warn("transformation step started inside another one",
			zap.Int64("id", int64(start.ID)),
			zap.Int64("transformationNodeId", ctx.TransformationNodeID),
			zap.Int64("enclosingNodeId", previous.TransformationNodeID))
	}
	c.current = ctx
	return func(*model.Start, *model.Finish) {
		c.current = previous
	}
}

func (c *Converter) onIdentify(start *model.Start, finish *model.Finish) {
	details, err := buildops.DecodeIdentifyTransform(start.Details)
	if err != nil {
		c.logger.Warn("cannot decode transform identification",
			zap.Int64("id", int64(start.ID)),
			zap.Error(err))
		return
	}
	identity, err := buildops.DecodeIdentity(finish.Result)
	if err != nil {
		c.logger.Warn("transform identification without identity",
			zap.Int64("id", int64(start.ID)),
			zap.Error(err))
		return
	}

	if info, ok := c.byIdentity[identity]; ok {
		info.InvocationCount++
		if !sameContext(info.Context, c.current) {
			c.logger.Warn("transform identified in a different transformation step",
				zap.String("identity", identity),
				zap.String("workType", info.WorkType))
		}
		return
	}

	info := &TransformInfo{
		Identity:        identity,
		WorkType:        details.WorkType,
		ComponentID:     details.ComponentID,
		FromAttributes:  buildops.FormatAttributeList(details.FromAttributes),
		ToAttributes:    buildops.FormatAttributeList(details.ToAttributes),
		Context:         c.current,
		InvocationCount: 1,
	}
	c.byIdentity[identity] = info
	c.order = append(c.order, info)
}

func (c *Converter) onExecute(start *model.Start, finish *model.Finish) {
	details, err := buildops.DecodeExecuteWork(start.Details)
	if err != nil {
		c.logger.Warn("cannot decode work execution",
			zap.Int64("id", int64(start.ID)),
			zap.Error(err))
		return
	}
	if !buildops.IsTransformExecution(details.WorkType) {
		return
	}

	info, ok := c.byIdentity[details.Identity]
	if !ok {
		c.logger.Warn("no transform identified for executed work",
			zap.String("identity", details.Identity))
		return
	}
	if info.ExecutionCount > 0 {
		c.logger.Warn("transform executed more than once",
			zap.String("identity", info.Identity),
			zap.String("workType", info.WorkType),
			zap.Int("executionCount", info.ExecutionCount+1))
	}
	info.ExecutionCount++
	info.ExecutionTimeMillis += finish.EndTime - start.StartTime
}

func sameContext(a, b *Context) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Transforms returns the aggregates in first-identified order.
func (c *Converter) Transforms() []*TransformInfo {
	return c.order
}

// Count returns the number of distinct identities.
func (c *Converter) Count() int {
	return len(c.order)
}

// Rows returns the CSV cells of every aggregate.
func (c *Converter) Rows() [][]string {
	rows := make([][]string, len(c.order))
	for i, info := range c.order {
		rows[i] = info.Row()
	}
	return rows
}

// Table returns the summary as a renderable table.
func (c *Converter) Table() format.Table {
	return format.Table{
		Header:  Header,
		Rows:    c.Rows(),
		Numeric: map[int]bool{8: true, 9: true, 10: true, 11: true},
	}
}

// WriteTo writes the transform summary CSV.
func (c *Converter) WriteTo(w io.Writer) (int64, error) {
	cw := &format.CountingWriter{W: w}
	err := format.WriteCSV(cw, Header, c.Rows())
	return cw.N, err
}
