package chrome

import (
	"fmt"

	"gtc/internal/model"
)

// trackKey identifies a thread track. Named threads and slot threads live in
// separate key spaces so they never share a track even when their tids
// coincide.
type trackKey struct {
	pid  int
	name string
	slot int
}

// placement is the track an operation was put on.
type placement struct {
	pid  int
	tid  int
	slot int // 0 when the thread is named
	uuid uint64
}

// tracks assigns operations to synthetic processes and threads.
type tracks struct {
	nextUUID  uint64
	processes map[int]uint64
	threads   map[trackKey]uint64
	names     map[string]int
	// slots holds, per process, the stack of open operations of each slot.
	// Index 0 is unused.
	slots  map[int][][]model.OperationID
	placed map[model.OperationID]placement
}

func newTracks() *tracks {
	return &tracks{
		nextUUID:  1,
		processes: make(map[int]uint64),
		threads:   make(map[trackKey]uint64),
		names:     make(map[string]int),
		slots:     make(map[int][][]model.OperationID),
		placed:    make(map[model.OperationID]placement),
	}
}

func (t *tracks) uuid() uint64 {
	id := t.nextUUID
	t.nextUUID++
	return id
}

// ProcessName returns the display name of a synthetic process.
func ProcessName(pid int) string {
	if pid == 0 {
		return "Build operations"
	}
	return fmt.Sprintf("Worker lease %d", pid-1)
}

// resolvePid returns the worker lease based process id, inherited from the
// open parent when the operation has no lease.
func (t *tracks) resolvePid(start *model.Start) int {
	if start.WorkerLeaseNumber != nil {
		return *start.WorkerLeaseNumber + 1
	}
	if parent, ok := start.Parent(); ok {
		if p, ok := t.placed[parent]; ok {
			return p.pid
		}
	}
	return 0
}

// threadName returns the stable tid of a named thread, numbered from 1 in
// first-seen order.
func (t *tracks) threadName(name string) int {
	if tid, ok := t.names[name]; ok {
		return tid
	}
	tid := len(t.names) + 1
	t.names[name] = tid
	return tid
}

// slot picks the thread slot of an operation: the lowest slot whose
// innermost operation is the parent, else the lowest idle slot, else a new
// one.
func (t *tracks) slot(pid int, start *model.Start) int {
	slots := t.slots[pid]
	if len(slots) == 0 {
		slots = make([][]model.OperationID, 1)
	}
	chosen := 0
	if parent, ok := start.Parent(); ok {
		for i := 1; i < len(slots); i++ {
			if n := len(slots[i]); n > 0 && slots[i][n-1] == parent {
				chosen = i
				break
			}
		}
	}
	if chosen == 0 {
		for i := 1; i < len(slots); i++ {
			if len(slots[i]) == 0 {
				chosen = i
				break
			}
		}
	}
	if chosen == 0 {
		slots = append(slots, nil)
		chosen = len(slots) - 1
	}
	slots[chosen] = append(slots[chosen], start.ID)
	t.slots[pid] = slots
	return chosen
}

// release frees the slot held by a finished operation.
func (t *tracks) release(id model.OperationID) {
	p, ok := t.placed[id]
	if !ok {
		return
	}
	delete(t.placed, id)
	if p.slot == 0 {
		return
	}
	stack := t.slots[p.pid][p.slot]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == id {
			t.slots[p.pid][p.slot] = append(stack[:i], stack[i+1:]...)
			return
		}
	}
}

// place assigns an operation to a track. Descriptor packets of tracks seen
// for the first time are passed to emit.
func (t *tracks) place(start *model.Start, emit func([]byte)) placement {
	pid := t.resolvePid(start)
	if _, ok := t.processes[pid]; !ok {
		uuid := t.uuid()
		t.processes[pid] = uuid
		emit(processTrackPacket(uuid, pid, ProcessName(pid)))
	}

	p := placement{pid: pid}
	key := trackKey{pid: pid}
	var name string
	if start.ThreadDescription != "" {
		p.tid = t.threadName(start.ThreadDescription)
		key.name = start.ThreadDescription
		name = start.ThreadDescription
	} else {
		p.slot = t.slot(pid, start)
		p.tid = p.slot
		key.slot = p.slot
		name = fmt.Sprintf("thread(%d)", p.tid)
	}

	uuid, ok := t.threads[key]
	if !ok {
		uuid = t.uuid()
		t.threads[key] = uuid
		emit(threadTrackPacket(uuid, pid, p.tid, name))
	}
	p.uuid = uuid
	t.placed[start.ID] = p
	return p
}
