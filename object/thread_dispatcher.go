package object

import (
	"sync"

	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/pkg/ilist"
	"github.com/jixiang52002/magenta/status"
)

// ThreadState mirrors ProcessState's shape but for one thread:
// INITIAL until Start, RUNNING while live, DYING once Kill/Exit has
// been requested but the thread hasn't unwound yet, DEAD once it has.
// Grounded on original_source/kernel/lib/magenta/thread_dispatcher.h's
// thin wrapper over UserThread, fused with
// evanphx-columbia/kernel.Task's cooperative interrupt-on-exit
// pattern (SetInterrupt/Interrupt) for how a DYING thread actually
// notices it should stop.
type ThreadState int

const (
	ThreadInitial ThreadState = iota
	ThreadRunning
	ThreadDying
	ThreadDead
)

func (s ThreadState) String() string {
	switch s {
	case ThreadInitial:
		return "initial"
	case ThreadRunning:
		return "running"
	case ThreadDying:
		return "dying"
	case ThreadDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ThreadDispatcher is one schedulable unit inside a ProcessDispatcher.
// It carries its own interrupt function, the same cooperative-kill
// mechanism evanphx-columbia/kernel.Process/Task uses
// (SetInterrupt/Interrupt) generalized from "the guest VM's one
// thread" to "however many threads a process has".
type ThreadDispatcher struct {
	base

	ilist.Entry

	mu    sync.Mutex
	state ThreadState
	name  string

	process *ProcessDispatcher

	entry, stack uint64

	interruptFunc func()
	onExit        func()

	excMu         sync.Mutex
	exceptionPort *exception.Port
}

func (t *ThreadDispatcher) LinkEntry() *ilist.Entry { return &t.Entry }

// NewThreadDispatcher allocates a thread in the INITIAL state, not yet
// attached to any process (ProcessDispatcher.AddThread/Start does
// that).
func NewThreadDispatcher(name string) *ThreadDispatcher {
	t := &ThreadDispatcher{name: name}
	t.base = newBase(TypeThread, NewStateTracker(SignalNone, SignalSignaled, SignalNone))
	return t
}

func (t *ThreadDispatcher) OnClose() {}

func (t *ThreadDispatcher) Name() string               { return t.name }
func (t *ThreadDispatcher) Process() *ProcessDispatcher { return t.process }

func (t *ThreadDispatcher) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetInterrupt installs the function a DYING transition calls to make
// this thread notice it should unwind; the scheduler/runtime glue that
// would actually suspend a goroutine mid-syscall is out of scope here,
// same as evanphx-columbia's own SetInterrupt, which just records a
// callback for whatever loop is willing to poll Interrupted().
func (t *ThreadDispatcher) SetInterrupt(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interruptFunc = f
}

// SetOnExit installs a callback run once, after Exit has applied its
// own state transition, so a caller outside this package (the kernel
// object directory, in particular) can retire bookkeeping keyed by
// this thread's koid without this package needing to know it exists.
func (t *ThreadDispatcher) SetOnExit(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExit = f
}

// SetExceptionPort installs pipe/key as this thread's exception port,
// per spec.md 4.6: a thread "may install its own exception port",
// checked before the process's and the system's on a fault.
func (t *ThreadDispatcher) SetExceptionPort(pipe *MessagePipeDispatcher, key uint64) status.Status {
	t.excMu.Lock()
	defer t.excMu.Unlock()

	if t.exceptionPort != nil {
		return status.ErrAlreadyBound
	}
	t.exceptionPort = newBoundPort(pipe, key)
	return status.OK
}

// ExceptionPort returns the thread's bound exception port, or nil if
// none is set.
func (t *ThreadDispatcher) ExceptionPort() *exception.Port {
	t.excMu.Lock()
	defer t.excMu.Unlock()
	return t.exceptionPort
}

// ClearExceptionPort unbinds the thread's exception port, resolving
// any report currently in flight to it as NOT_HANDLED.
func (t *ThreadDispatcher) ClearExceptionPort() status.Status {
	t.excMu.Lock()
	port := t.exceptionPort
	t.exceptionPort = nil
	t.excMu.Unlock()

	if port == nil {
		return status.ErrBadState
	}
	port.Unbind()
	return status.OK
}

func (t *ThreadDispatcher) start(entry, stack uint64) {
	t.mu.Lock()
	t.entry = entry
	t.stack = stack
	t.state = ThreadRunning
	t.mu.Unlock()
}

// Start begins a non-main thread; callers reach this through
// process_dispatcher's AddThread followed by Start, never directly on
// a brand-new process's first thread (that's ProcessDispatcher.Start).
func (t *ThreadDispatcher) Start(entry, stack uint64) status.Status {
	t.mu.Lock()
	if t.state != ThreadInitial {
		t.mu.Unlock()
		return status.ErrBadState
	}
	t.mu.Unlock()

	t.start(entry, stack)
	return status.OK
}

// Kill marks the thread DYING and fires its interrupt callback, if
// any is currently installed.
func (t *ThreadDispatcher) Kill() {
	t.mu.Lock()
	if t.state == ThreadDead {
		t.mu.Unlock()
		return
	}
	t.state = ThreadDying
	f := t.interruptFunc
	t.mu.Unlock()

	if f != nil {
		f()
	}
}

// Exit marks the thread DEAD, sets SIGNALED, and detaches it from its
// process -- the process transitions to DEAD itself once its last
// thread does this.
func (t *ThreadDispatcher) Exit() {
	t.mu.Lock()
	if t.state == ThreadDead {
		t.mu.Unlock()
		return
	}
	t.state = ThreadDead
	proc := t.process
	onExit := t.onExit
	t.mu.Unlock()

	t.StateTracker().UpdateSatisfied(0, SignalSignaled)

	if ep := t.ExceptionPort(); ep != nil {
		report := exception.Report{Type: exception.TypeGone, ThreadID: t.koid}
		if proc != nil {
			report.ProcessID = proc.Koid()
		}
		ep.Notify(report)
	}

	if proc != nil {
		proc.RemoveThread(t)
	}

	if onExit != nil {
		onExit()
	}
}
