package traverse

import (
	"go.uber.org/zap"

	"gtc/internal/model"
)

// Stats summarises one traversal.
type Stats struct {
	Records          int   `json:"records"`
	Starts           int   `json:"starts"`
	Finishes         int   `json:"finishes"`
	Progress         int   `json:"progress"`
	Visited          int   `json:"visited"`
	Roots            int   `json:"roots"`
	Filtered         int   `json:"filtered"`
	Unmatched        int   `json:"unmatched"`
	Reopened         int   `json:"reopened"`
	Unfinished       int   `json:"unfinished"`
	InvalidIntervals int   `json:"invalidIntervals"`
	FirstStart       int64 `json:"firstStart"`
	LastEnd          int64 `json:"lastEnd"`
}

// Span returns the wall time covered by the trace in milliseconds.
func (s Stats) Span() int64 {
	if s.Starts == 0 {
		return 0
	}
	return s.LastEnd - s.FirstStart
}

// Walk traverses a trace in whichever shape it was read. A nil visitor only
// gathers statistics.
func Walk(trace *model.Trace, visitor Visitor, filter *Filter, logger *zap.Logger) Stats {
	if trace.Nested() {
		return VisitRecords(trace.Records, visitor, filter, logger)
	}
	return VisitLogs(trace.Logs, visitor, filter, logger)
}

// VisitLogs replays a flat chronological log. Operations rejected by filter
// are skipped along with their finish and progress events.
func VisitLogs(logs []model.Log, visitor Visitor, filter *Filter, logger *zap.Logger) Stats {
	e := newEngine(visitor, filter, logger)
	for _, log := range logs {
		e.stats.Records++
		switch l := log.(type) {
		case *model.Start:
			e.start(l)
		case *model.Finish:
			e.finish(l)
		case *model.Progress:
			e.progress(l)
		}
	}
	e.closeAll()
	return e.stats
}

// VisitRecords traverses an already nested record tree. Each record is
// replayed as its start, its progress entries, its children and its finish,
// so filtering applies the same way as for flat logs.
func VisitRecords(records []*model.Record, visitor Visitor, filter *Filter, logger *zap.Logger) Stats {
	e := newEngine(visitor, filter, logger)
	for _, rec := range records {
		e.replay(rec, nil)
	}
	e.closeAll()
	return e.stats
}

type openOp struct {
	start  *model.Start
	post   PostVisit
	parent *openOp
}

type engine struct {
	visitor  Visitor
	progVis  ProgressVisitor
	filter   *Filter
	logger   *zap.Logger
	open     map[model.OperationID]*openOp
	filtered map[model.OperationID]struct{}
	// stack holds open operations in start order.
	stack []*openOp
	last  int64
	stats Stats
}

func newEngine(visitor Visitor, filter *Filter, logger *zap.Logger) *engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if visitor == nil {
		visitor = multiVisitor(nil)
	}
	pv, _ := visitor.(ProgressVisitor)
	return &engine{
		visitor:  visitor,
		progVis:  pv,
		filter:   filter,
		logger:   logger,
		open:     make(map[model.OperationID]*openOp),
		filtered: make(map[model.OperationID]struct{}),
	}
}

func (e *engine) replay(rec *model.Record, parent *model.Record) {
	e.stats.Records++
	e.start(rec.Start(parent))
	for i := range rec.Progress {
		p := &rec.Progress[i]
		e.progress(&model.Progress{
			ID:          rec.ID,
			Time:        p.Time,
			Details:     p.Details,
			DetailsKind: p.DetailsKind,
		})
	}
	for _, child := range rec.Children {
		e.replay(child, rec)
	}
	e.finish(rec.Finish())
}

func (e *engine) observe(ts int64) {
	if ts > e.last {
		e.last = ts
	}
}

func (e *engine) start(start *model.Start) {
	if e.stats.Starts == 0 || start.StartTime < e.stats.FirstStart {
		e.stats.FirstStart = start.StartTime
	}
	e.stats.Starts++
	e.observe(start.StartTime)

	if prev, ok := e.open[start.ID]; ok {
		e.logger.Warn("operation id reused while still open",
			zap.Int64("id", int64(start.ID)),
			zap.String("name", prev.start.DisplayName),
			zap.String("next", start.DisplayName))
		e.stats.Reopened++
		e.closeTree(prev, &model.Finish{ID: prev.start.ID, EndTime: start.StartTime})
	}
	delete(e.filtered, start.ID)

	var parent *openOp
	if id, ok := start.Parent(); ok {
		parent = e.open[id]
	}
	if !e.filter.Matches(start.DisplayName, parent != nil) {
		e.filtered[start.ID] = struct{}{}
		e.stats.Filtered++
		return
	}

	op := &openOp{start: start, parent: parent}
	op.post = e.visitor.Visit(start)
	e.open[start.ID] = op
	e.stack = append(e.stack, op)
	e.stats.Visited++
	if parent == nil {
		e.stats.Roots++
	}
}

func (e *engine) finish(finish *model.Finish) {
	e.stats.Finishes++
	e.observe(finish.EndTime)
	if finish.EndTime > e.stats.LastEnd {
		e.stats.LastEnd = finish.EndTime
	}

	op, ok := e.open[finish.ID]
	if !ok {
		if _, skipped := e.filtered[finish.ID]; skipped {
			delete(e.filtered, finish.ID)
			e.logger.Debug("finish of filtered operation", zap.Int64("id", int64(finish.ID)))
			return
		}
		e.logger.Warn("finish without matching start", zap.Int64("id", int64(finish.ID)))
		e.stats.Unmatched++
		return
	}

	e.closeTree(op, finish)
}

// closeTree closes op after any of its descendants that are still open.
// Those never finished; they are closed at op's end so visitors keep seeing
// a strictly nested hierarchy.
func (e *engine) closeTree(op *openOp, finish *model.Finish) {
	for i := len(e.stack) - 1; i >= 0 && e.stack[i] != op; i-- {
		child := e.stack[i]
		if !child.descends(op) {
			continue
		}
		e.logger.Warn("operation still open when its parent finished",
			zap.Int64("id", int64(child.start.ID)),
			zap.String("name", child.start.DisplayName),
			zap.Int64("parent", int64(op.start.ID)))
		e.stats.Unfinished++
		e.close(child, &model.Finish{ID: child.start.ID, EndTime: finish.EndTime})
	}
	e.close(op, finish)
}

func (e *engine) progress(progress *model.Progress) {
	e.stats.Progress++
	e.observe(progress.Time)
	if _, ok := e.open[progress.ID]; !ok {
		return
	}
	if e.progVis != nil {
		e.progVis.VisitProgress(progress)
	}
}

// close removes op from the open set and runs its post-visit.
func (e *engine) close(op *openOp, finish *model.Finish) {
	delete(e.open, op.start.ID)
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i] == op {
			e.stack = append(e.stack[:i], e.stack[i+1:]...)
			break
		}
	}
	if finish.EndTime < op.start.StartTime {
		e.logger.Warn("operation finished before it started",
			zap.Int64("id", int64(op.start.ID)),
			zap.String("name", op.start.DisplayName),
			zap.Int64("startTime", op.start.StartTime),
			zap.Int64("endTime", finish.EndTime))
		e.stats.InvalidIntervals++
	}
	if op.post != nil {
		op.post(op.start, finish)
	}
}

// closeAll finishes operations left open at the end of the input, innermost
// first, at the last seen timestamp.
func (e *engine) closeAll() {
	for len(e.stack) > 0 {
		op := e.stack[len(e.stack)-1]
		e.logger.Warn("operation never finished",
			zap.Int64("id", int64(op.start.ID)),
			zap.String("name", op.start.DisplayName))
		e.stats.Unfinished++
		end := e.last
		if end > e.stats.LastEnd {
			e.stats.LastEnd = end
		}
		e.close(op, &model.Finish{ID: op.start.ID, EndTime: end})
	}
}

func (op *openOp) descends(ancestor *openOp) bool {
	for p := op.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
