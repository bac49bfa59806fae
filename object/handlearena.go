package object

import (
	"sync"

	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/status"
)

// ArenaCapacity is the default upper bound on live handles in the
// whole system, per spec.md 4.3 ("on the order of 2^15"). cmd/magenta-core
// can override this at boot with a config.Flags capacity, so the arena
// is slice-backed rather than a fixed array.
const ArenaCapacity = 1 << 15

// HandleArena is the single global, fixed-capacity slab every handle
// in the system is allocated from, per spec.md section 3 ("Allocated
// from a process-wide fixed HandleArena so every handle has a stable
// index") and section 5 ("the handle arena... [is a] process-wide
// singleton protected by dedicated mutexes"). Lock order (section 5):
// handle-table before handle-arena.
type HandleArena struct {
	mu       sync.Mutex
	slots    []*Handle
	free     []uint32
	capacity int
}

// NewHandleArena builds an ArenaCapacity-sized arena with every slot
// free.
func NewHandleArena() *HandleArena {
	return NewHandleArenaSized(ArenaCapacity)
}

// NewHandleArenaSized builds an arena with the given capacity, for
// cmd/magenta-core's handle arena size override flag.
func NewHandleArenaSized(capacity int) *HandleArena {
	a := &HandleArena{
		slots:    make([]*Handle, capacity),
		free:     make([]uint32, capacity),
		capacity: capacity,
	}
	for i := range a.free {
		// fill back-to-front so the first allocations hand out low
		// indices, which makes arena behavior deterministic in tests.
		a.free[i] = uint32(capacity - 1 - i)
	}
	return a
}

// NewHandle allocates a slot and constructs a Handle referencing
// dispatcher with the given rights. The handle is not yet owned by any
// process; the caller (ProcessHandleTable.Add) sets ProcessID.
func (a *HandleArena) NewHandle(dispatcher Dispatcher, rights Rights) (*Handle, status.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) == 0 {
		return nil, status.ErrNoMemory
	}

	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	h := &Handle{dispatcher: dispatcher, rights: rights, index: idx}
	a.slots[idx] = h

	return h, status.OK
}

// DeleteHandle runs the dispatcher's cancel hook, drops the handle's
// reference to its dispatcher (running OnClose if that was the last
// reference), zeroes the slot, and returns it to the free list.
// Zeroing is load-bearing: Decode relies on a zero slot being
// detectable as "not currently allocated" (spec.md 4.3).
//
// Per spec.md 9's resolution of the IOMAP special case, every
// dispatcher type goes through exactly this path — there is no
// type-specific branch here.
func (a *HandleArena) DeleteHandle(h *Handle) {
	if st := h.dispatcher.StateTracker(); st != nil {
		st.Cancel(h)
	}

	a.mu.Lock()
	if a.slots[h.index] != h {
		a.mu.Unlock()
		status.Fatal("HandleArena.DeleteHandle", "double free or foreign handle at index ", h.index)
		return
	}
	a.slots[h.index] = nil
	a.free = append(a.free, h.index)
	a.mu.Unlock()

	log.L.Trace("handle-delete", "index", h.index, "koid", h.dispatcher.Koid())

	if h.dispatcher.Release() {
		h.dispatcher.OnClose()
	}

	h.dispatcher = nil
}

// Lookup returns the handle currently occupying index, or nil if the
// slot is free. It performs no ownership check; callers combine this
// with the caller's process id (see ProcessHandleTable).
func (a *HandleArena) Lookup(index uint32) *Handle {
	if int(index) >= a.capacity {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[index]
}

// Len reports the number of currently allocated slots, for tests
// verifying the arena bijection invariant (spec.md section 8).
func (a *HandleArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capacity - len(a.free)
}
