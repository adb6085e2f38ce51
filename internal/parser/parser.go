// Package parser reads build operation traces into the record model.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gtc/internal/model"
)

// ErrEmptyTrace is returned when a trace holds no build operations.
var ErrEmptyTrace = errors.New("trace contains no build operations")

// ErrUnknownLog is returned for a flat log line that lacks an id.
var ErrUnknownLog = errors.New("build operation log without id")

// ReadFile reads the trace stored at path. Every byte read from disk is also
// written to progress when it is non-nil.
func ReadFile(path string, progress io.Writer) (*model.Trace, error) {
	rc, err := Open(path, progress)
	if err != nil {
		return nil, fmt.Errorf("read build operation trace %s: %w", path, err)
	}
	defer rc.Close()

	trace, err := Read(rc)
	if err != nil {
		return nil, fmt.Errorf("read build operation trace %s: %w", path, err)
	}
	return trace, nil
}

// Read decodes a trace. A stream whose first non-blank byte is '[' is read as
// a JSON array of nested records, anything else as newline-delimited flat
// start/finish/progress logs.
func Read(r io.Reader) (*model.Trace, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTrace
		}
		return nil, fmt.Errorf("peek trace: %w", err)
	}

	if first == '[' {
		records, err := ReadRecords(br)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEmptyTrace
		}
		return &model.Trace{Records: records}, nil
	}

	logs, err := ReadLogs(br)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrEmptyTrace
	}
	return &model.Trace{Logs: logs}, nil
}

// ReadLogs decodes newline-delimited flat logs. Blank lines are skipped.
func ReadLogs(r io.Reader) ([]model.Log, error) {
	scanner := newScanner(r)
	var logs []model.Log
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		log, err := parseLog(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		logs = append(logs, log)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan trace: %w", err)
	}
	return logs, nil
}

// ReadRecords decodes a JSON array of nested records.
func ReadRecords(r io.Reader) ([]*model.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []*rawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}

	records := make([]*model.Record, 0, len(raw))
	for i, rec := range raw {
		if rec == nil {
			return nil, fmt.Errorf("record %d: null record", i)
		}
		records = append(records, rec.toRecord())
	}
	return records, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Details payloads of configuration resolution can be very large.
	const maxCapacity = 64 * 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

type rawLog struct {
	ID               *int64           `json:"id"`
	ParentID         *int64           `json:"parentId"`
	DisplayName      string           `json:"displayName"`
	StartTime        *int64           `json:"startTime"`
	EndTime          *int64           `json:"endTime"`
	Time             int64            `json:"time"`
	Details          map[string]any   `json:"details"`
	DetailsClassName string           `json:"detailsClassName"`
	DetailsKind      string           `json:"detailsKind"`
	Result           map[string]any   `json:"result"`
	ResultClassName  string           `json:"resultClassName"`
	ResultKind       string           `json:"resultKind"`
	Failure          *json.RawMessage `json:"failure"`
}

func parseLog(line []byte) (model.Log, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw rawLog
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}
	if raw.ID == nil {
		return nil, ErrUnknownLog
	}
	id := model.OperationID(*raw.ID)

	switch {
	case raw.StartTime != nil:
		return &model.Start{
			ID:          id,
			ParentID:    operationID(raw.ParentID),
			DisplayName: raw.DisplayName,
			StartTime:   *raw.StartTime,
			Details:     model.Payload(raw.Details),
			DetailsKind: firstNonEmpty(raw.DetailsClassName, raw.DetailsKind),
		}, nil
	case raw.EndTime != nil:
		return &model.Finish{
			ID:         id,
			EndTime:    *raw.EndTime,
			Result:     model.Payload(raw.Result),
			ResultKind: firstNonEmpty(raw.ResultClassName, raw.ResultKind),
			Failure:    failureText(raw.Failure),
		}, nil
	default:
		return &model.Progress{
			ID:          id,
			Time:        raw.Time,
			Details:     model.Payload(raw.Details),
			DetailsKind: firstNonEmpty(raw.DetailsClassName, raw.DetailsKind),
		}, nil
	}
}

type rawProgress struct {
	Time             int64          `json:"time"`
	Details          map[string]any `json:"details"`
	DetailsClassName string         `json:"detailsClassName"`
	DetailsKind      string         `json:"detailsKind"`
}

type rawRecord struct {
	ID                int64            `json:"id"`
	ParentID          *int64           `json:"parentId"`
	DisplayName       string           `json:"displayName"`
	StartTime         int64            `json:"startTime"`
	EndTime           int64            `json:"endTime"`
	WorkerLeaseNumber *int             `json:"workerLeaseNumber"`
	ThreadDescription string           `json:"threadDescription"`
	Details           map[string]any   `json:"details"`
	DetailsClassName  string           `json:"detailsClassName"`
	DetailsKind       string           `json:"detailsKind"`
	Result            map[string]any   `json:"result"`
	ResultClassName   string           `json:"resultClassName"`
	ResultKind        string           `json:"resultKind"`
	Failure           *json.RawMessage `json:"failure"`
	Progress          []rawProgress    `json:"progress"`
	Children          []*rawRecord     `json:"children"`
}

func (r *rawRecord) toRecord() *model.Record {
	rec := &model.Record{
		ID:                model.OperationID(r.ID),
		ParentID:          operationID(r.ParentID),
		DisplayName:       r.DisplayName,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		WorkerLeaseNumber: r.WorkerLeaseNumber,
		ThreadDescription: r.ThreadDescription,
		Details:           model.Payload(r.Details),
		DetailsKind:       firstNonEmpty(r.DetailsClassName, r.DetailsKind),
		Result:            model.Payload(r.Result),
		ResultKind:        firstNonEmpty(r.ResultClassName, r.ResultKind),
		Failure:           failureText(r.Failure),
	}
	for _, p := range r.Progress {
		rec.Progress = append(rec.Progress, model.ProgressEntry{
			Time:        p.Time,
			Details:     model.Payload(p.Details),
			DetailsKind: firstNonEmpty(p.DetailsClassName, p.DetailsKind),
		})
	}
	for _, child := range r.Children {
		if child == nil {
			continue
		}
		rec.Children = append(rec.Children, child.toRecord())
	}
	return rec
}

func operationID(v *int64) *model.OperationID {
	if v == nil {
		return nil
	}
	id := model.OperationID(*v)
	return &id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// failureText accepts a failure given as a plain string or as an arbitrary
// JSON value, which is kept in its compact encoding.
func failureText(raw *json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(*raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(*raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
