package object

import (
	"sync"

	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/pkg/ilist"
	"github.com/jixiang52002/magenta/status"
)

// BadHandlePolicy governs what a syscall entry point does when it
// sees a handle value that fails to decode or fails the ownership
// check, per spec.md 4.4.
type BadHandlePolicy int

const (
	BadHandlePolicyIgnore BadHandlePolicy = iota
	BadHandlePolicyLog
	BadHandlePolicyExit
)

func (p BadHandlePolicy) String() string {
	switch p {
	case BadHandlePolicyIgnore:
		return "IGNORE"
	case BadHandlePolicyLog:
		return "LOG"
	case BadHandlePolicyExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// ProcessHandleTable is the per-process, randomized handle table
// spec.md section 3 and 4.4 describe: an intrusive doubly-linked list
// of handles protected by one mutex, every member's ProcessID equal to
// the table's own process id, duplicate/replace executing under the
// same lock as add to preserve value uniqueness.
//
// Grounded on evanphx-columbia/kernel.Process's fds []*File slot table
// and its GetFile/CloseFile/Dup2 methods, restructured onto an arena
// + intrusive list instead of a plain slice.
type ProcessHandleTable struct {
	mu sync.Mutex

	arena     *HandleArena
	processID uint64
	secret    uint32

	handles ilist.List
	dead    bool

	policy BadHandlePolicy

	// killFunc is invoked outside the table lock when the bad-handle
	// policy is EXIT; it is the process dispatcher's Kill, wired in by
	// NewProcessHandleTable's caller to avoid an import cycle between
	// object.ProcessHandleTable and object.ProcessDispatcher.
	killFunc func()
}

// NewProcessHandleTable builds an empty table for processID, drawing a
// fresh per-process secret from the CPRNG.
func NewProcessHandleTable(arena *HandleArena, processID uint64) *ProcessHandleTable {
	return &ProcessHandleTable{
		arena:     arena,
		processID: processID,
		secret:    newSecret(),
		policy:    BadHandlePolicyExit,
	}
}

// SetKillFunc wires the callback invoked when the EXIT bad-handle
// policy fires.
func (t *ProcessHandleTable) SetKillFunc(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.killFunc = f
}

// SetPolicy updates the bad-handle policy. policy must be one of the
// three defined constants; anything else is rejected with
// INVALID_ARGS and the existing policy is left unchanged (spec.md
// section 9's resolution of "behavior when policy is out-of-range").
func (t *ProcessHandleTable) SetPolicy(policy BadHandlePolicy) status.Status {
	if policy != BadHandlePolicyIgnore && policy != BadHandlePolicyLog && policy != BadHandlePolicyExit {
		return status.ErrInvalidArgs
	}
	t.mu.Lock()
	t.policy = policy
	t.mu.Unlock()
	return status.OK
}

// Arena returns the handle arena this table allocates from, for
// syscall entry points that need to mint a brand-new handle (e.g.
// msgpipe_create) before there is anywhere else to get one from.
func (t *ProcessHandleTable) Arena() *HandleArena {
	return t.arena
}

func (t *ProcessHandleTable) Policy() BadHandlePolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// badHandle routes a decode/ownership failure through the table's
// policy, per spec.md 4.4's "every system call that sees a bad handle
// routes through this policy".
func (t *ProcessHandleTable) badHandle(context string, value uint32) status.Status {
	policy := t.Policy()
	switch policy {
	case BadHandlePolicyIgnore:
		return status.ErrBadHandle
	case BadHandlePolicyLog:
		log.L.Warn("bad handle", "context", context, "value", value, "process", t.processID)
		return status.ErrBadHandle
	case BadHandlePolicyExit:
		log.L.Warn("bad handle, killing process", "context", context, "value", value, "process", t.processID)
		t.mu.Lock()
		kill := t.killFunc
		t.mu.Unlock()
		if kill != nil {
			kill()
		}
		return status.ErrBadHandle
	default:
		return status.ErrBadHandle
	}
}

// Add inserts h into the table, setting its owning process id and
// pushing it at the front of the list (spec.md 4.4). Returns the
// handle's encoded user-visible value.
func (t *ProcessHandleTable) Add(h *Handle) (uint32, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dead {
		return 0, status.ErrBadState
	}

	h.processID = t.processID
	t.handles.PushFront(h)

	return encodeValue(h.index, t.secret), status.OK
}

// decodeLocked validates value's reserved bits and ownership without taking
// or releasing a lock itself (caller already holds t.mu).
func (t *ProcessHandleTable) decodeLocked(value uint32) (*Handle, status.Status) {
	if value == 0 {
		return nil, status.ErrBadHandle
	}
	if value&0x80000000 != 0 {
		return nil, status.ErrBadHandle
	}
	if value&1 == 0 || value&2 != 0 {
		return nil, status.ErrBadHandle
	}

	index := decodeValue(value, t.secret)
	if index >= ArenaCapacity {
		return nil, status.ErrBadHandle
	}

	h := t.arena.Lookup(index)
	if h == nil {
		return nil, status.ErrBadHandle
	}

	if h.processID != t.processID {
		return nil, status.ErrBadHandle
	}

	return h, status.OK
}

// Lookup decodes value and verifies rights, applying the bad-handle
// policy on any failure.
func (t *ProcessHandleTable) Lookup(value uint32, wantRights Rights) (*Handle, status.Status) {
	t.mu.Lock()
	h, st := t.decodeLocked(value)
	t.mu.Unlock()

	if !st.Ok() {
		return nil, t.badHandle("lookup", value)
	}

	if !h.rights.Has(wantRights) {
		return nil, status.ErrAccessDenied
	}

	return h, status.OK
}

// Remove decodes value, unlinks the handle from the table (clearing
// its owning process id) and returns ownership to the caller, who is
// responsible for eventually destroying it via HandleArena.DeleteHandle.
func (t *ProcessHandleTable) Remove(value uint32) (*Handle, status.Status) {
	t.mu.Lock()
	h, st := t.decodeLocked(value)
	if !st.Ok() {
		t.mu.Unlock()
		return nil, t.badHandle("remove", value)
	}

	t.handles.Remove(h)
	h.processID = 0
	t.mu.Unlock()

	return h, status.OK
}

// Close decodes value, removes it from the table, and destroys it
// (running the dispatcher's cancel/close hooks). This is the
// handle_close syscall's core.
func (t *ProcessHandleTable) Close(value uint32) status.Status {
	h, st := t.Remove(value)
	if !st.Ok() {
		return st
	}
	t.arena.DeleteHandle(h)
	return status.OK
}

// Duplicate creates a second handle referencing the same dispatcher as
// the one named by value. rights == SameRights copies the source's
// rights verbatim; otherwise the requested rights must be a subset of
// the source's (rights monotonicity, spec.md 4.4 and section 8) or
// this fails with INVALID_ARGS and the table is left unchanged.
func (t *ProcessHandleTable) Duplicate(value uint32, rights Rights) (uint32, status.Status) {
	t.mu.Lock()

	src, st := t.decodeLocked(value)
	if !st.Ok() {
		t.mu.Unlock()
		return 0, t.badHandle("duplicate", value)
	}

	if !src.rights.Has(RightDuplicate) {
		t.mu.Unlock()
		return 0, status.ErrAccessDenied
	}

	newRights := rights
	if rights == SameRights {
		newRights = src.rights
	} else if !rights.IsSubsetOf(src.rights) {
		t.mu.Unlock()
		return 0, status.ErrInvalidArgs
	}

	dispatcher := src.dispatcher
	t.mu.Unlock()

	dispatcher.AddRef()

	nh, st := t.arena.NewHandle(dispatcher, newRights)
	if !st.Ok() {
		dispatcher.Release()
		return 0, st
	}

	v, st := t.Add(nh)
	if !st.Ok() {
		t.arena.DeleteHandle(nh)
		return 0, st
	}

	return v, status.OK
}

// Replace is an atomic remove-then-add with new rights: on allocation
// failure the original handle is reinstated (rollback), per spec.md
// 4.4.
func (t *ProcessHandleTable) Replace(value uint32, rights Rights) (uint32, status.Status) {
	t.mu.Lock()

	h, st := t.decodeLocked(value)
	if !st.Ok() {
		t.mu.Unlock()
		return 0, t.badHandle("replace", value)
	}

	newRights := rights
	if rights == SameRights {
		newRights = h.rights
	} else if !rights.IsSubsetOf(h.rights) {
		t.mu.Unlock()
		return 0, status.ErrInvalidArgs
	}

	t.handles.Remove(h)
	h.processID = 0

	dispatcher := h.dispatcher
	oldIndex := h.index

	// The arena slot backing h stays allocated until the replacement
	// has been minted: the new slot is taken first, so on exhaustion h
	// can be reinstated exactly as it was, and only once nh exists is
	// h's slot freed via DeleteHandle.
	t.mu.Unlock()

	// AddRef before minting nh: DeleteHandle(h) below drops a
	// reference via Release, and without a matching AddRef here that
	// would be the last reference, running the dispatcher's OnClose
	// out from under the still-live handle Replace is about to hand
	// back (spec.md 4.4's atomic remove-then-add).
	dispatcher.AddRef()

	nh, st := t.arena.NewHandle(dispatcher, newRights)
	if !st.Ok() {
		dispatcher.Release()
		// Rollback: reinstate the original handle exactly as it was.
		t.mu.Lock()
		h.processID = t.processID
		t.handles.PushFront(h)
		t.mu.Unlock()
		return 0, st
	}

	t.arena.DeleteHandle(h)
	_ = oldIndex

	v, st := t.Add(nh)
	if !st.Ok() {
		t.arena.DeleteHandle(nh)
		return 0, st
	}

	return v, status.OK
}

// Drain empties the table, destroying every handle individually
// outside the table lock, per spec.md 4.4's "each removed handle is
// destroyed individually outside the table lock to avoid holding it
// during dispatcher destruction". Called once, on process death.
func (t *ProcessHandleTable) Drain() {
	t.mu.Lock()
	t.dead = true

	var drained []*Handle
	for it := t.handles.Front(); it != nil; {
		h := it.(*Handle)
		next := it.Next()
		t.handles.Remove(h)
		h.processID = 0
		drained = append(drained, h)
		it = next
	}
	t.mu.Unlock()

	for _, h := range drained {
		t.arena.DeleteHandle(h)
	}
}

// Len reports the number of live handles, for tests.
func (t *ProcessHandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles.Len()
}
