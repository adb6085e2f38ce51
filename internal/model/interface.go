// Package model provides the build operation records read from a trace.
package model

// OperationID identifies a build operation. IDs are unique among the
// operations that are open at the same time and may be reused afterwards.
type OperationID int64

// Log is one entry of a flat build operation log: a *Start, *Finish or
// *Progress.
type Log interface {
	OperationID() OperationID
	isLog()
}

// Trace holds a build operation trace in one of its two shapes. Exactly one
// of Logs and Records is populated.
type Trace struct {
	// Logs is a chronological stream of start/finish/progress events.
	Logs []Log
	// Records is an already nested record tree.
	Records []*Record
}

// Nested reports whether the trace was read as a record tree.
func (t *Trace) Nested() bool {
	return t.Records != nil
}

