// Package chrome converts build operations into a Perfetto trace that can be
// opened in the Perfetto UI or chrome://tracing.
package chrome

import (
	"bufio"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"gtc/internal/model"
	"gtc/internal/traverse"
)

// Converter buffers the trace packets of the visited operations.
type Converter struct {
	packets [][]byte
	tracks  *tracks
	anchor  int64
	cursor  uint64
	started bool
}

// NewConverter returns an empty converter.
func NewConverter() *Converter {
	return &Converter{tracks: newTracks()}
}

func (c *Converter) emit(pkt []byte) {
	c.packets = append(c.packets, pkt)
}

// timestamp converts an absolute time into the build clock, never going
// back before the last emitted timestamp.
func (c *Converter) timestamp(millis int64) uint64 {
	rel := millis - c.anchor
	if rel > 0 && uint64(rel) > c.cursor {
		c.cursor = uint64(rel)
	}
	return c.cursor
}

// Visit implements traverse.Visitor.
func (c *Converter) Visit(start *model.Start) traverse.PostVisit {
	if !c.started {
		c.started = true
		c.anchor = start.StartTime
		c.emit(clockSnapshotPacket(c.anchor))
	}

	track := c.tracks.place(start, c.emit)

	begin := trackEvent{
		typ:         EventSliceBegin,
		track:       track.uuid,
		name:        start.DisplayName,
		categories:  categories(start.DetailsKind, start.ResultKind),
		annotations: [][]byte{debugAnnotation("details", start.Details)},
	}
	if start.Result != nil {
		begin.annotations = append(begin.annotations, debugAnnotation("result", start.Result))
	}
	c.emit(trackEventPacket(c.timestamp(start.StartTime), begin))

	return func(start *model.Start, finish *model.Finish) {
		// Replayed records already carry their result on the begin event.
		var annotations [][]byte
		if start.Result == nil {
			annotations = append(annotations, debugAnnotation("result", finish.Result))
		}
		if finish.Failure != "" {
			annotations = append(annotations, debugAnnotation("failure", finish.Failure))
		}
		c.emit(trackEventPacket(c.timestamp(finish.EndTime), trackEvent{
			typ:         EventSliceEnd,
			track:       track.uuid,
			annotations: annotations,
		}))
		c.tracks.release(start.ID)
	}
}

// VisitProgress implements traverse.ProgressVisitor. Progress events become
// instant events on the track of their operation.
func (c *Converter) VisitProgress(progress *model.Progress) {
	track, ok := c.tracks.placed[progress.ID]
	if !ok {
		return
	}
	name := progress.DetailsKind
	if name == "" {
		name = "progress"
	}
	c.emit(trackEventPacket(c.timestamp(progress.Time), trackEvent{
		typ:         EventInstant,
		track:       track.uuid,
		name:        name,
		categories:  categories(progress.DetailsKind),
		annotations: [][]byte{debugAnnotation("details", progress.Details)},
	}))
}

func categories(kinds ...string) []string {
	var out []string
	for _, k := range kinds {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Count returns the number of buffered packets.
func (c *Converter) Count() int {
	return len(c.packets)
}

// WriteTo writes the buffered packets as a serialized Perfetto Trace message.
func (c *Converter) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	var frame []byte
	for _, pkt := range c.packets {
		frame = protowire.AppendTag(frame[:0], traceFieldPacket, protowire.BytesType)
		frame = protowire.AppendVarint(frame, uint64(len(pkt)))
		n, err := bw.Write(frame)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write packet header: %w", err)
		}
		n, err = bw.Write(pkt)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write packet: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush packets: %w", err)
	}
	return written, nil
}
