package object

import (
	"context"
	"sync"
	"time"

	"github.com/jixiang52002/magenta/status"
)

// WaitSetResult reports one entry's satisfied signals as observed by a
// single WaitSetDispatcher.Wait call.
type WaitSetResult struct {
	Cookie    uint64
	Satisfied Signals
	Status    status.Status
}

type wsEntry struct {
	cookie   uint64
	tracker  *StateTracker
	desired  Signals
	observer *Observer
	stopped  bool
}

// WaitSetDispatcher multiplexes many (dispatcher, signal-mask) pairs
// behind one blocking wait, per spec.md 4.10. Grounded directly on
// evanphx-columbia/kernel.ProcessGroup's ReapAny: that method registers
// a channel against a waiter.Waiter, loops rescanning state, and blocks
// on the channel between scans. Here the "state" is the union of every
// entry's StateTracker, and entries re-arm their own observer after
// each fire (the ioport.go IoPortClient pump pattern) so the same
// WaitSet can be waited on repeatedly.
type WaitSetDispatcher struct {
	base

	mu      sync.Mutex
	entries map[uint64]*wsEntry
	changed chan struct{}
}

// CreateWaitSet returns an empty wait set.
func CreateWaitSet() *WaitSetDispatcher {
	ws := &WaitSetDispatcher{
		entries: make(map[uint64]*wsEntry),
		changed: make(chan struct{}, 1),
	}
	ws.base = newBase(TypeWaitSet, nil)
	return ws
}

func (ws *WaitSetDispatcher) OnClose() {
	ws.mu.Lock()
	entries := ws.entries
	ws.entries = nil
	ws.mu.Unlock()

	for _, e := range entries {
		ws.stopEntry(e)
	}
}

// Add attaches source's state tracker to the set under cookie, waiting
// on desired signals. Re-adding an existing cookie fails with
// ALREADY_BOUND, per spec.md 4.10's "cookie identifies the entry
// uniquely within the set".
func (ws *WaitSetDispatcher) Add(cookie uint64, source Dispatcher, desired Signals) status.Status {
	tracker := source.StateTracker()
	if tracker == nil {
		return status.ErrNotSupported
	}

	ws.mu.Lock()
	if ws.entries == nil {
		ws.mu.Unlock()
		return status.ErrBadState
	}
	if _, exists := ws.entries[cookie]; exists {
		ws.mu.Unlock()
		return status.ErrAlreadyBound
	}

	e := &wsEntry{cookie: cookie, tracker: tracker, desired: desired}
	ws.entries[cookie] = e
	ws.mu.Unlock()

	ws.arm(e)
	return status.OK
}

// Remove detaches cookie's entry, cancelling its in-flight observer.
func (ws *WaitSetDispatcher) Remove(cookie uint64) status.Status {
	ws.mu.Lock()
	if ws.entries == nil {
		ws.mu.Unlock()
		return status.ErrBadState
	}
	e, ok := ws.entries[cookie]
	if !ok {
		ws.mu.Unlock()
		return status.ErrNotFound
	}
	delete(ws.entries, cookie)
	ws.mu.Unlock()

	ws.stopEntry(e)
	return status.OK
}

func (ws *WaitSetDispatcher) stopEntry(e *wsEntry) {
	ws.mu.Lock()
	e.stopped = true
	ws.mu.Unlock()
	e.tracker.Cancel(e)
}

func (ws *WaitSetDispatcher) arm(e *wsEntry) {
	event := NewWaitEvent()
	obs := e.tracker.AddObserver(e.desired, e, event, nil)

	ws.mu.Lock()
	e.observer = obs
	stopped := e.stopped
	ws.mu.Unlock()

	if stopped {
		e.tracker.RemoveObserver(obs)
		return
	}

	go ws.pump(e, event)
}

func (ws *WaitSetDispatcher) pump(e *wsEntry, event *WaitEvent) {
	result, _ := event.Wait(context.Background(), -1)

	ws.mu.Lock()
	stopped := e.stopped
	ws.mu.Unlock()

	if stopped || result != WaitSatisfied {
		return
	}

	select {
	case ws.changed <- struct{}{}:
	default:
	}

	ws.arm(e)
}

// Wait blocks until at least one entry is satisfied, ctx is cancelled,
// or timeout elapses, returning up to len(results) satisfied entries
// and reporting how many were left out, per this repo's wait-set
// truncation diagnostic supplement.
func (ws *WaitSetDispatcher) Wait(ctx context.Context, timeout time.Duration, results []WaitSetResult) (n int, truncated int, st status.Status) {
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		n, truncated = ws.scan(results)
		if n > 0 {
			return n, truncated, status.OK
		}

		if timeout == 0 {
			return 0, 0, status.ErrTimedOut
		}

		select {
		case <-ws.changed:
			continue
		case <-ctx.Done():
			return 0, 0, status.ErrInterrupted
		case <-timerC:
			return 0, 0, status.ErrTimedOut
		}
	}
}

func (ws *WaitSetDispatcher) scan(results []WaitSetResult) (n int, truncated int) {
	ws.mu.Lock()
	entries := make([]*wsEntry, 0, len(ws.entries))
	for _, e := range ws.entries {
		entries = append(entries, e)
	}
	ws.mu.Unlock()

	for _, e := range entries {
		satisfied, _ := e.tracker.Snapshot()
		if satisfied&e.desired == 0 {
			continue
		}
		if n < len(results) {
			results[n] = WaitSetResult{Cookie: e.cookie, Satisfied: satisfied, Status: status.OK}
			n++
		} else {
			truncated++
		}
	}
	return n, truncated
}
