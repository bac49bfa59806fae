package object

import (
	"sync"

	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/pkg/ilist"
	"github.com/jixiang52002/magenta/status"
)

// Observer is one attached wait: a desired signal mask, the handle
// identity it was attached through (for Cancel), and the WaitEvent to
// signal when the mask becomes satisfied or the wait is cancelled.
//
// This is the generalization of evanphx-columbia/pkg/waiter.Event: that
// type carries a single Mask and a Callback; this carries a
// satisfied/satisfiable pair's worth of context plus the handle-cancel
// back-reference spec.md 4.1 and 9 ("Cancel(handle)") require.
type Observer struct {
	ilist.Entry

	desired   Signals
	handleKey interface{}
	event     *WaitEvent
	context   interface{}
}

func (o *Observer) LinkEntry() *ilist.Entry { return &o.Entry }

// StateTracker carries (satisfied, satisfiable) and the list of
// observers attached to it. All mutation happens under mu; observers
// are walked and notified before mu is released, matching spec.md
// 4.1's "All four run under the tracker's lock and, before releasing
// it, walk the observer list".
type StateTracker struct {
	mu sync.Mutex

	satisfied   Signals
	satisfiable Signals

	observers ilist.List

	// userSignalMask is the subset of UserSignalMask this dispatcher
	// type permits UserSignal to touch; bits outside it are rejected
	// with WRONG_TYPE per spec.md 4.1.
	userSignalMask Signals
}

// NewStateTracker builds a tracker with an initial (satisfied,
// satisfiable) pair and the mask of bits this dispatcher type allows
// UserSignal to set.
func NewStateTracker(satisfied, satisfiable, userSignalMask Signals) *StateTracker {
	if satisfied&^satisfiable != 0 {
		status.Fatal("NewStateTracker", "satisfied not subset of satisfiable")
	}
	return &StateTracker{
		satisfied:      satisfied,
		satisfiable:    satisfiable,
		userSignalMask: userSignalMask,
	}
}

// Snapshot returns the current (satisfied, satisfiable) pair.
func (st *StateTracker) Snapshot() (Signals, Signals) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.satisfied, st.satisfiable
}

// AddObserver attaches a new wait for desired signals, associated with
// handleKey (used later by Cancel), signalling event if already
// satisfied or once it becomes so. It returns the Observer so the
// caller can Remove it later (handle close, wait timeout).
func (st *StateTracker) AddObserver(desired Signals, handleKey interface{}, event *WaitEvent, ctx interface{}) *Observer {
	st.mu.Lock()

	obs := &Observer{desired: desired, handleKey: handleKey, event: event, context: ctx}
	st.observers.PushBack(obs)

	already := st.satisfied&desired != 0
	cur := st.satisfied
	st.mu.Unlock()

	if already {
		event.Signal(WaitSatisfied, cur)
	}

	return obs
}

// RemoveObserver detaches obs without treating it as cancelled (used
// when a wait simply times out or the waiter moves on).
func (st *StateTracker) RemoveObserver(obs *Observer) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.observers.Remove(obs)
}

func (st *StateTracker) notifyLocked() {
	for it := st.observers.Front(); it != nil; it = it.Next() {
		obs := it.(*Observer)
		if st.satisfied&obs.desired != 0 {
			log.L.Trace("statetracker-notify", "desired", obs.desired, "satisfied", st.satisfied)
			obs.event.Signal(WaitSatisfied, st.satisfied)
		}
	}
}

// UpdateSatisfied clears then sets bits in satisfied, intersected with
// satisfiable as spec.md 4.1 requires ("Only bits in satisfiable may
// be set in satisfied"), and notifies every observer whose desired
// mask now intersects the result.
func (st *StateTracker) UpdateSatisfied(clear, set Signals) {
	st.mu.Lock()
	st.satisfied = (st.satisfied &^ clear) | set
	st.satisfied &= st.satisfiable
	st.notifyLocked()
	st.mu.Unlock()
}

// UpdateSatisfiable clears then sets bits in satisfiable, and clamps
// satisfied to remain a subset, per the same invariant.
func (st *StateTracker) UpdateSatisfiable(clear, set Signals) {
	st.mu.Lock()
	st.satisfiable = (st.satisfiable &^ clear) | set
	st.satisfied &= st.satisfiable
	st.notifyLocked()
	st.mu.Unlock()
}

// UserSignal sets/clears dispatcher-defined bits, rejecting any bit
// outside this tracker's userSignalMask with WRONG_TYPE.
func (st *StateTracker) UserSignal(clear, set Signals) status.Status {
	if (clear|set)&^st.userSignalMask != 0 {
		return status.ErrWrongType
	}

	st.mu.Lock()
	st.satisfiable |= set
	st.satisfied = (st.satisfied &^ clear) | set
	st.satisfied &= st.satisfiable
	st.notifyLocked()
	st.mu.Unlock()

	return status.OK
}

// Cancel notifies every observer attached with handleKey that its
// wait is cancelled (WaitCancelled), without ever reporting a false
// readiness, and detaches them. Spec.md 4.1: "Cancel(handle) notifies
// every observer that was attached with that handle so that a handle
// close unblocks in-flight waits without false readiness."
func (st *StateTracker) Cancel(handleKey interface{}) {
	st.mu.Lock()

	var toCancel []*Observer
	for it := st.observers.Front(); it != nil; {
		obs := it.(*Observer)
		next := it.Next()
		if obs.handleKey == handleKey {
			st.observers.Remove(obs)
			toCancel = append(toCancel, obs)
		}
		it = next
	}

	st.mu.Unlock()

	for _, obs := range toCancel {
		obs.event.Signal(WaitCancelled, obs.context)
	}
}

// CancelAll unconditionally cancels every attached observer,
// regardless of handle identity; used when the dispatcher itself is
// being destroyed (last reference released) rather than a single
// handle closing.
func (st *StateTracker) CancelAll() {
	st.mu.Lock()
	var all []*Observer
	for it := st.observers.Front(); it != nil; {
		obs := it.(*Observer)
		next := it.Next()
		st.observers.Remove(obs)
		all = append(all, obs)
		it = next
	}
	st.mu.Unlock()

	for _, obs := range all {
		obs.event.Signal(WaitCancelled, obs.context)
	}
}
