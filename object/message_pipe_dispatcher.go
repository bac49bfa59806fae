package object

import (
	"github.com/jixiang52002/magenta/status"
)

// MessagePipeDispatcher is the thin per-end facade spec.md 3
// describes: it owns nothing but an index into the shared MessagePipe
// and forwards every operation to the correct side.
type MessagePipeDispatcher struct {
	base

	pipe *MessagePipe
	side int
}

// CreateMessagePipe returns two endpoint dispatchers sharing one pipe.
// Both start with READABLE and WRITABLE satisfiable, WRITABLE
// satisfied and READABLE not, per spec.md 4.7.
func CreateMessagePipe(arena *HandleArena) (*MessagePipeDispatcher, *MessagePipeDispatcher) {
	pipe := newMessagePipe(arena)

	end0 := &MessagePipeDispatcher{pipe: pipe, side: 0}
	end0.base = newBase(TypeMessagePipe, pipe.sides[0].tracker)

	end1 := &MessagePipeDispatcher{pipe: pipe, side: 1}
	end1.base = newBase(TypeMessagePipe, pipe.sides[1].tracker)

	return end0, end1
}

// OnClose marks this endpoint dead, propagating PEER_CLOSED to the
// other side.
func (d *MessagePipeDispatcher) OnClose() {
	d.pipe.close(d.side)
}

// WriteHandleRef is what the syscall layer resolves each transferred
// handle value down to before calling Write: the live *Handle plus
// which table it currently lives in, so Write can remove-then-attach
// atomically.
type WriteHandleRef struct {
	Handle *Handle
	Table  *ProcessHandleTable
	Value  uint32
}

// Write sends data and the handles named by refs to the peer,
// atomically with respect to handle transfer: on success every handle
// is removed from its source table and attached to the packet; on
// failure none are (spec.md 4.7). A duplicate handle, a handle lacking
// TRANSFER right, or more than one copy of this endpoint's own
// dispatcher anywhere but last fails the whole call.
func (d *MessagePipeDispatcher) Write(data []byte, refs []WriteHandleRef) status.Status {
	// Duplicate detection is by handle value, not dispatcher identity:
	// two distinct handles (e.g. one obtained via handle_duplicate)
	// referencing the same object are a legitimate transfer of two
	// objects, matching syscalls_msgpipe.cpp's RemoveHandle_NoLock,
	// which only rejects a second use of the same handle value.
	seen := make(map[uint32]bool, len(refs))
	for idx, r := range refs {
		if !r.Handle.rights.Has(RightTransfer) {
			return status.ErrAccessDenied
		}
		if seen[r.Value] {
			return status.ErrInvalidArgs
		}
		seen[r.Value] = true

		if r.Handle.dispatcher.Type() == TypeMessagePipe {
			if mp, ok := r.Handle.dispatcher.(*MessagePipeDispatcher); ok && mp.pipe == d.pipe {
				// Reply-pipe self-transfer: this pipe's own other end
				// must be last, per spec.md 9.
				if idx != len(refs)-1 {
					return status.ErrInvalidArgs
				}
			}
		}
	}

	// Remove phase, with an undo log so a partial failure rolls back
	// cleanly (spec.md 4.7 and section 7's propagation policy).
	type removed struct {
		ref WriteHandleRef
	}
	var undo []removed

	fail := func(st status.Status) status.Status {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i].ref.Table.Add(undo[i].ref.Handle)
		}
		return st
	}

	for _, r := range refs {
		h, st := r.Table.Remove(r.Value)
		if !st.Ok() {
			return fail(st)
		}
		if h != r.Handle {
			// The table no longer holds the handle we validated
			// above (e.g. a concurrent close) — restore what we've
			// removed so far and fail.
			r.Table.Add(h)
			return fail(status.ErrBadHandle)
		}
		undo = append(undo, removed{ref: r})
	}

	pkt := &MessagePacket{Data: data}
	for _, r := range refs {
		pkt.Handles = append(pkt.Handles, r.Handle)
	}

	if st := d.pipe.write(d.side, pkt); !st.Ok() {
		return fail(st)
	}
	return status.OK
}

// BeginRead reports the size of (and handle count in) the head
// message without consuming it.
func (d *MessagePipeDispatcher) BeginRead() (dataLen, handleCount int, st status.Status) {
	return d.pipe.beginRead(d.side)
}

// AcceptRead dequeues the head message and re-attaches its in-flight
// handles to table, cancelling each transferred handle's state
// tracker with respect to its old identity first so any wait on the
// sender's process stops firing, per spec.md 4.7.
func (d *MessagePipeDispatcher) AcceptRead(table *ProcessHandleTable) (*MessagePacket, []uint32, status.Status) {
	pkt, st := d.pipe.acceptRead(d.side)
	if !st.Ok() {
		return nil, nil, st
	}

	values := make([]uint32, 0, len(pkt.Handles))
	for i, h := range pkt.Handles {
		if tr := h.dispatcher.StateTracker(); tr != nil {
			tr.Cancel(h)
		}
		v, st := table.Add(h)
		if !st.Ok() {
			// The table refused the handle (its process is dead): the
			// message is already consumed, so this and any remaining
			// untransferred handles are destroyed rather than
			// silently dropped.
			for _, rest := range pkt.Handles[i:] {
				d.pipe.arena.DeleteHandle(rest)
			}
			return pkt, values, st
		}
		values = append(values, v)
	}

	return pkt, values, status.OK
}
