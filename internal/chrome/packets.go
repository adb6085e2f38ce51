package chrome

import (
	"google.golang.org/protobuf/encoding/protowire"

	"gtc/internal/model"
)

// Field numbers of the Perfetto trace protos.
const (
	traceFieldPacket protowire.Number = 1

	packetFieldClockSnapshot    protowire.Number = 6
	packetFieldTimestamp        protowire.Number = 8
	packetFieldSequenceID       protowire.Number = 10
	packetFieldTrackEvent       protowire.Number = 11
	packetFieldTimestampClockID protowire.Number = 58
	packetFieldTrackDescriptor  protowire.Number = 60
	clockSnapshotFieldClocks    protowire.Number = 1
	clockFieldID                protowire.Number = 1
	clockFieldTimestamp         protowire.Number = 2
	clockFieldUnitMultiplierNs  protowire.Number = 4
	trackFieldUUID              protowire.Number = 1
	trackFieldName              protowire.Number = 2
	trackFieldProcess           protowire.Number = 3
	trackFieldThread            protowire.Number = 4
	processFieldPid             protowire.Number = 1
	processFieldName            protowire.Number = 6
	threadFieldPid              protowire.Number = 1
	threadFieldTid              protowire.Number = 2
	threadFieldName             protowire.Number = 5
	eventFieldDebugAnnotations  protowire.Number = 4
	eventFieldType              protowire.Number = 9
	eventFieldTrackUUID         protowire.Number = 11
	eventFieldCategories        protowire.Number = 22
	eventFieldName              protowire.Number = 23
	annotationFieldStringValue  protowire.Number = 6
	annotationFieldName         protowire.Number = 10
	annotationFieldDictEntries  protowire.Number = 11
	annotationFieldArrayValues  protowire.Number = 12
)

// TrackEvent types.
const (
	EventSliceBegin = 1
	EventSliceEnd   = 2
	EventInstant    = 3
)

// Clock ids.
const (
	ClockBoottime = 6
	// ClockBuild is the first clock id available to trace writers. It ticks
	// in milliseconds from the start of the first operation.
	ClockBuild = 64

	clockBuildUnitNs = 1_000_000
	sequenceID       = 1
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func clockSnapshotPacket(anchorMillis int64) []byte {
	var build, boot []byte
	build = appendVarint(build, clockFieldID, ClockBuild)
	build = appendVarint(build, clockFieldTimestamp, 0)
	build = appendVarint(build, clockFieldUnitMultiplierNs, clockBuildUnitNs)
	boot = appendVarint(boot, clockFieldID, ClockBoottime)
	boot = appendVarint(boot, clockFieldTimestamp, uint64(anchorMillis)*clockBuildUnitNs)

	var snapshot []byte
	snapshot = appendBytes(snapshot, clockSnapshotFieldClocks, build)
	snapshot = appendBytes(snapshot, clockSnapshotFieldClocks, boot)

	var pkt []byte
	pkt = appendVarint(pkt, packetFieldSequenceID, sequenceID)
	return appendBytes(pkt, packetFieldClockSnapshot, snapshot)
}

func processTrackPacket(uuid uint64, pid int, name string) []byte {
	var proc []byte
	proc = appendVarint(proc, processFieldPid, uint64(pid))
	proc = appendString(proc, processFieldName, name)

	var track []byte
	track = appendVarint(track, trackFieldUUID, uuid)
	track = appendBytes(track, trackFieldProcess, proc)
	return trackDescriptorPacket(track)
}

func threadTrackPacket(uuid uint64, pid, tid int, name string) []byte {
	var thread []byte
	thread = appendVarint(thread, threadFieldPid, uint64(pid))
	thread = appendVarint(thread, threadFieldTid, uint64(tid))
	thread = appendString(thread, threadFieldName, name)

	var track []byte
	track = appendVarint(track, trackFieldUUID, uuid)
	track = appendString(track, trackFieldName, name)
	track = appendBytes(track, trackFieldThread, thread)
	return trackDescriptorPacket(track)
}

func trackDescriptorPacket(track []byte) []byte {
	var pkt []byte
	pkt = appendVarint(pkt, packetFieldSequenceID, sequenceID)
	return appendBytes(pkt, packetFieldTrackDescriptor, track)
}

// trackEvent holds the fields of one TrackEvent.
type trackEvent struct {
	typ         uint64
	track       uint64
	name        string
	categories  []string
	annotations [][]byte
}

func trackEventPacket(ts uint64, ev trackEvent) []byte {
	var body []byte
	for _, a := range ev.annotations {
		body = appendBytes(body, eventFieldDebugAnnotations, a)
	}
	body = appendVarint(body, eventFieldType, ev.typ)
	body = appendVarint(body, eventFieldTrackUUID, ev.track)
	for _, c := range ev.categories {
		body = appendString(body, eventFieldCategories, c)
	}
	if ev.name != "" {
		body = appendString(body, eventFieldName, ev.name)
	}

	var pkt []byte
	pkt = appendVarint(pkt, packetFieldTimestamp, ts)
	pkt = appendVarint(pkt, packetFieldSequenceID, sequenceID)
	pkt = appendBytes(pkt, packetFieldTrackEvent, body)
	return appendVarint(pkt, packetFieldTimestampClockID, ClockBuild)
}

// debugAnnotation encodes a named payload value. Objects become dict entries
// with sorted keys, arrays become array values and any other value is
// rendered as a string.
func debugAnnotation(name string, value any) []byte {
	var b []byte
	if name != "" {
		b = appendString(b, annotationFieldName, name)
	}
	if p, ok := model.ToPayload(value); ok {
		for _, key := range p.Keys() {
			b = appendBytes(b, annotationFieldDictEntries, debugAnnotation(key, p[key]))
		}
		return b
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			b = appendBytes(b, annotationFieldArrayValues, debugAnnotation("", item))
		}
		return b
	}
	return appendString(b, annotationFieldStringValue, model.Stringify(value))
}
