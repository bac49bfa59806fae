// Package futex implements the kernel-level futex wait queues backing
// spec.md 4.11: per-address FIFO wait lists, compare-and-park waits,
// bounded wakes, and requeueing between addresses.
//
// Grounded directly on original_source/kernel/lib/magenta/futex_context.cpp:
// FutexWait's atomic check-then-park under one lock, FutexWake's
// erase-head-N-then-reinsert-remainder, and FutexRequeue's
// erase/wake-some/requeue-rest/reinsert-remainder sequencing are all
// carried over verbatim in control flow, replacing the C++
// intrusive-list-of-threads with Go's ilist.List of waiter nodes and a
// channel close in place of FutexNode::WakeThreads' scheduler wakeup.
package futex

import (
	"context"
	"sync"
	"time"

	"github.com/jixiang52002/magenta/pkg/ilist"
	"github.com/jixiang52002/magenta/status"
)

// Key identifies a futex by the address of the watched word. The
// syscall layer derives it from a (process, user address) pair so two
// processes never collide on the same raw pointer value.
type Key uintptr

type waiter struct {
	ilist.Entry

	key  Key
	done chan struct{}
}

func (w *waiter) LinkEntry() *ilist.Entry { return &w.Entry }

// Context is one process's (or one kernel's, if addresses are already
// globally unique) futex table: a map from key to its FIFO of parked
// waiters. A blank Context is ready to use.
type Context struct {
	mu    sync.Mutex
	table map[Key]*ilist.List
}

// NewContext returns an empty futex context.
func NewContext() *Context {
	return &Context{table: make(map[Key]*ilist.List)}
}

// Wait parks the calling goroutine on key, first re-checking under the
// same lock used to enqueue that the watched word still holds
// expected (via check) -- the same atomicity futex_context.cpp's
// comment insists on, to avoid missing a wakeup that lands between the
// check and the park. If check reports the value has already changed,
// Wait returns ALREADY_BOUND without blocking, per spec.md 4.11.
//
// ctx cancellation and timeout both behave like a spurious-looking
// wake: per futex_context.cpp's own comment on its race between
// FutexWake and a timing-out FutexWait, if the waiter has already been
// removed from the table (someone woke it) by the time the timeout
// fires, Wait still reports success -- losing that race would be a
// missed wakeup in anything built on top of futexes, like a mutex.
func (c *Context) Wait(ctx context.Context, key Key, check func() bool, timeout time.Duration) status.Status {
	c.mu.Lock()
	if !check() {
		c.mu.Unlock()
		return status.ErrAlreadyBound
	}

	w := &waiter{key: key, done: make(chan struct{})}
	c.enqueueLocked(key, w)
	c.mu.Unlock()

	if timeout == 0 {
		return c.finishTimedOut(key, w)
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-w.done:
		return status.OK
	case <-ctx.Done():
		return c.finishInterrupted(key, w)
	case <-timerC:
		return c.finishTimedOut(key, w)
	}
}

// finishTimedOut and finishInterrupted both implement the same
// "remove myself, but if I'm not there anymore I actually got woken"
// logic futex_context.cpp's FutexWait performs after BlockThread
// returns non-NO_ERROR. A waiter moved by Requeue is looked for under
// the key it was moved to.
func (c *Context) finishTimedOut(key Key, w *waiter) status.Status {
	if c.removeIfPresent(key, w) {
		return status.ErrTimedOut
	}
	<-w.done
	return status.OK
}

func (c *Context) finishInterrupted(key Key, w *waiter) status.Status {
	if c.removeIfPresent(key, w) {
		return status.ErrInterrupted
	}
	<-w.done
	return status.OK
}

func (c *Context) removeIfPresent(key Key, w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key = w.key
	list, ok := c.table[key]
	if !ok {
		return false
	}
	for it := list.Front(); it != nil; it = it.Next() {
		if it.(*waiter) == w {
			list.Remove(w)
			if list.Empty() {
				delete(c.table, key)
			}
			return true
		}
	}
	return false
}

func (c *Context) enqueueLocked(key Key, w *waiter) {
	list, ok := c.table[key]
	if !ok {
		list = &ilist.List{}
		c.table[key] = list
	}
	list.PushBack(w)
}

// Wake releases up to count waiters parked on key, oldest first, and
// reports how many were actually woken.
func (c *Context) Wake(key Key, count int) int {
	if count == 0 {
		return 0
	}

	c.mu.Lock()
	woken := c.popLocked(key, count)
	c.mu.Unlock()

	for _, w := range woken {
		close(w.done)
	}
	return len(woken)
}

// Requeue atomically re-checks the word at wakeKey against
// expectedValue, wakes up to wakeCount waiters parked there, and moves
// up to requeueCount of the remaining waiters from wakeKey's list onto
// requeueKey's list -- the three-way split futex_context.cpp's
// FutexRequeue performs in one critical section so that a concurrent
// FutexWake can never observe the wakeKey list in a half-moved state.
func (c *Context) Requeue(wakeKey Key, wakeCount int, check func() bool, requeueKey Key, requeueCount int) status.Status {
	if wakeKey == requeueKey {
		return status.ErrInvalidArgs
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !check() {
		return status.ErrAlreadyBound
	}

	woken := c.popLocked(wakeKey, wakeCount)

	if requeueCount > 0 {
		moved := c.popLocked(wakeKey, requeueCount)
		for _, w := range moved {
			w.key = requeueKey
			c.enqueueLocked(requeueKey, w)
		}
	}

	for _, w := range woken {
		close(w.done)
	}

	return status.OK
}

// popLocked removes and returns up to count waiters from the front of
// key's list, deleting the table entry if it empties. Caller must hold
// c.mu.
func (c *Context) popLocked(key Key, count int) []*waiter {
	list, ok := c.table[key]
	if !ok {
		return nil
	}

	var out []*waiter
	for len(out) < count {
		front := list.Front()
		if front == nil {
			break
		}
		w := front.(*waiter)
		list.Remove(w)
		out = append(out, w)
	}

	if list.Empty() {
		delete(c.table, key)
	}

	return out
}

// WaitingCount returns how many waiters are currently parked on key,
// for diagnostics and tests.
func (c *Context) WaitingCount(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.table[key]
	if !ok {
		return 0
	}
	return list.Len()
}
