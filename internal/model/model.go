package model

import "fmt"

// Start opens a build operation.
type Start struct {
	ID          OperationID
	ParentID    *OperationID
	DisplayName string
	// StartTime is in milliseconds since the epoch.
	StartTime   int64
	Details     Payload
	DetailsKind string

	// Only present for operations replayed from a record tree.
	WorkerLeaseNumber *int
	ThreadDescription string
	Result            Payload
	ResultKind        string
}

// Finish closes the build operation opened by the Start with the same ID.
type Finish struct {
	ID         OperationID
	EndTime    int64
	Result     Payload
	ResultKind string
	Failure    string
}

// Progress reports an intermediate event of an open build operation.
type Progress struct {
	ID          OperationID
	Time        int64
	Details     Payload
	DetailsKind string
}

func (s *Start) OperationID() OperationID    { return s.ID }
func (f *Finish) OperationID() OperationID   { return f.ID }
func (p *Progress) OperationID() OperationID { return p.ID }

func (*Start) isLog()    {}
func (*Finish) isLog()   {}
func (*Progress) isLog() {}

// Parent returns the parent operation id, if any.
func (s *Start) Parent() (OperationID, bool) {
	if s.ParentID == nil {
		return 0, false
	}
	return *s.ParentID, true
}

func (s *Start) String() string {
	return fmt.Sprintf("Start{%d->%s}", s.ID, s.DisplayName)
}

func (f *Finish) String() string {
	return fmt.Sprintf("Finish{%d}", f.ID)
}

// ProgressEntry is a progress event attached to a Record.
type ProgressEntry struct {
	Time        int64
	Details     Payload
	DetailsKind string
}

// Record is a completed build operation together with its children.
type Record struct {
	ID                OperationID
	ParentID          *OperationID
	DisplayName       string
	StartTime         int64
	EndTime           int64
	WorkerLeaseNumber *int
	ThreadDescription string
	Details           Payload
	DetailsKind       string
	Result            Payload
	ResultKind        string
	Failure           string
	Progress          []ProgressEntry
	Children          []*Record
}

// Start returns the record's opening event. parent overrides the record's
// own ParentID when non-nil.
func (r *Record) Start(parent *Record) *Start {
	parentID := r.ParentID
	if parent != nil {
		id := parent.ID
		parentID = &id
	}
	return &Start{
		ID:                r.ID,
		ParentID:          parentID,
		DisplayName:       r.DisplayName,
		StartTime:         r.StartTime,
		Details:           r.Details,
		DetailsKind:       r.DetailsKind,
		WorkerLeaseNumber: r.WorkerLeaseNumber,
		ThreadDescription: r.ThreadDescription,
		Result:            r.Result,
		ResultKind:        r.ResultKind,
	}
}

// Finish returns the record's closing event.
func (r *Record) Finish() *Finish {
	return &Finish{
		ID:         r.ID,
		EndTime:    r.EndTime,
		Result:     r.Result,
		ResultKind: r.ResultKind,
		Failure:    r.Failure,
	}
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{%d->%s}", r.ID, r.DisplayName)
}
