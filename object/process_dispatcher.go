package object

import (
	"sync"

	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/futex"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/pkg/ilist"
	"github.com/jixiang52002/magenta/status"
)

// ProcessState is the lifecycle a ProcessDispatcher moves through.
// Grounded directly on
// original_source/kernel/lib/magenta/process_dispatcher.cpp's
// ProcessDispatcher::State: INITIAL -> RUNNING on Start, RUNNING ->
// DYING on Exit/Kill, DYING -> DEAD once the last thread leaves. DEAD
// is terminal; setStateLocked panics on any attempted transition out of it,
// matching the C++ DEBUG_ASSERT.
type ProcessState int

const (
	ProcessInitial ProcessState = iota
	ProcessRunning
	ProcessDying
	ProcessDead
)

func (s ProcessState) String() string {
	switch s {
	case ProcessInitial:
		return "initial"
	case ProcessRunning:
		return "running"
	case ProcessDying:
		return "dying"
	case ProcessDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ProcessDispatcher is the kernel-side half of a user process:
// a handle table, an address space, a futex context, and the set of
// threads running inside it. Grounded on
// evanphx-columbia/kernel.Process (the Pid/Mem/fds/mu shape) fused
// with original_source/kernel/lib/magenta/process_dispatcher.cpp's
// state machine, since evanphx-columbia's Process never models a
// dying/dead distinction -- it just calls Exit and is reaped.
type ProcessDispatcher struct {
	base

	mu    sync.Mutex
	state ProcessState

	name    string
	retcode int

	handles *ProcessHandleTable
	address *AddressSpace
	futexes *futex.Context

	threads     ilist.List
	mainThread  *ThreadDispatcher
	threadCount int

	onDead func()

	excMu         sync.Mutex
	exceptionPort *exception.Port
}

// NewProcessDispatcher allocates a process with a fresh handle table
// (backed by arena) and address space, in the INITIAL state. Its
// StateTracker carries only SIGNALED, set once the process reaches
// DEAD, per original_source's
// `state_tracker_(true, mx_signals_state_t{0u, MX_SIGNAL_SIGNALED})`.
func NewProcessDispatcher(arena *HandleArena, name string) *ProcessDispatcher {
	p := &ProcessDispatcher{
		name:    name,
		futexes: futex.NewContext(),
		address: NewAddressSpace(0x1000000),
	}
	p.base = newBase(TypeProcess, NewStateTracker(SignalNone, SignalSignaled, SignalNone))
	p.handles = NewProcessHandleTable(arena, p.koid)
	p.handles.SetKillFunc(func() { p.Kill() })
	return p
}

func (p *ProcessDispatcher) OnClose() {}

func (p *ProcessDispatcher) Name() string               { return p.name }
func (p *ProcessDispatcher) Handles() *ProcessHandleTable { return p.handles }
func (p *ProcessDispatcher) Address() *AddressSpace      { return p.address }
func (p *ProcessDispatcher) Futexes() *futex.Context      { return p.futexes }

// SetOnDead installs a callback run once, after the handle table has
// been drained, when the process reaches DEAD -- used by
// kernel.ProcessManager to wake anything reaping dead processes
// without this package needing to know that manager exists.
func (p *ProcessDispatcher) SetOnDead(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDead = f
}

// SetExceptionPort installs pipe/key as this process's exception port,
// per spec.md 4.5's "at most one per process; replacing requires first
// clearing" -- a second SetExceptionPort before ClearExceptionPort
// fails ALREADY_BOUND rather than silently replacing the old port.
func (p *ProcessDispatcher) SetExceptionPort(pipe *MessagePipeDispatcher, key uint64) status.Status {
	p.excMu.Lock()
	defer p.excMu.Unlock()

	if p.exceptionPort != nil {
		return status.ErrAlreadyBound
	}
	p.exceptionPort = newBoundPort(pipe, key)
	return status.OK
}

// ExceptionPort returns the process's bound exception port, or nil if
// none is set.
func (p *ProcessDispatcher) ExceptionPort() *exception.Port {
	p.excMu.Lock()
	defer p.excMu.Unlock()
	return p.exceptionPort
}

// ClearExceptionPort unbinds the process's exception port, resolving
// any report currently in flight to it as NOT_HANDLED.
func (p *ProcessDispatcher) ClearExceptionPort() status.Status {
	p.excMu.Lock()
	port := p.exceptionPort
	p.exceptionPort = nil
	p.excMu.Unlock()

	if port == nil {
		return status.ErrBadState
	}
	port.Unbind()
	return status.OK
}

func (p *ProcessDispatcher) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start transitions INITIAL -> RUNNING and starts thread as the
// process's main thread.
func (p *ProcessDispatcher) Start(thread *ThreadDispatcher, entry, stack uint64) status.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != ProcessInitial {
		return status.ErrBadState
	}

	if st := p.addThreadLocked(thread); !st.Ok() {
		return st
	}
	p.mainThread = thread

	thread.start(entry, stack)
	p.setStateLocked(ProcessRunning)
	return status.OK
}

// AddThread registers an already-constructed thread with the process,
// rejecting it once the process is DYING or DEAD.
func (p *ProcessDispatcher) AddThread(thread *ThreadDispatcher) status.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addThreadLocked(thread)
}

func (p *ProcessDispatcher) addThreadLocked(thread *ThreadDispatcher) status.Status {
	if p.state == ProcessDying || p.state == ProcessDead {
		return status.ErrBadState
	}
	p.threads.PushBack(thread)
	p.threadCount++
	thread.process = p
	return status.OK
}

// RemoveThread unregisters thread, entering DEAD if it was the last
// one left.
func (p *ProcessDispatcher) RemoveThread(thread *ThreadDispatcher) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.threads.Remove(thread)
	p.threadCount--
	if thread == p.mainThread {
		p.mainThread = nil
	}

	if p.threadCount == 0 {
		log.L.Trace("process-last-thread-exited", "pid", p.koid)
		p.setStateLocked(ProcessDead)
	}
}

// Exit is called by a thread running inside p to begin its own exit:
// DYING immediately (which kills every other thread), then the
// calling thread finishes exiting on its own.
func (p *ProcessDispatcher) Exit(retcode int) {
	p.mu.Lock()
	if p.state != ProcessRunning {
		p.mu.Unlock()
		return
	}
	p.retcode = retcode
	p.setStateLocked(ProcessDying)
	p.mu.Unlock()
}

// Kill forcibly terminates the process from the outside (a bad handle
// policy, a debugger, process_kill). If it has no threads yet it goes
// directly to DEAD; otherwise DYING, and the last thread to exit
// finishes the transition.
func (p *ProcessDispatcher) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == ProcessDead {
		return
	}

	if p.state != ProcessDying && p.retcode == 0 {
		p.retcode = -1
	}

	if p.threadCount == 0 {
		p.setStateLocked(ProcessDead)
	} else {
		p.setStateLocked(ProcessDying)
	}
}

// ExitCode returns the process's final return code; only meaningful
// once State() reports DEAD.
func (p *ProcessDispatcher) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retcode
}

// ThreadKoids returns the koid of every thread currently attached,
// backing object_get_info's PROCESS_THREADS topic.
func (p *ProcessDispatcher) ThreadKoids() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	koids := make([]uint64, 0, p.threadCount)
	for it := p.threads.Front(); it != nil; it = it.Next() {
		koids = append(koids, it.(*ThreadDispatcher).Koid())
	}
	return koids
}

// setStateLocked applies s's side effects: DYING kills every thread
// and wakes every futex this process's threads might be parked on
// (original_source's comment: "This is issued after all threads are
// marked as DYING so there is no chance of a thread calling
// FutexWait" -- not literally reproducible with cooperative goroutine
// scheduling, but the ordering -- mark first, wake after -- is kept);
// DEAD drains the handle table, destroys the address space and marks
// SIGNALED.
func (p *ProcessDispatcher) setStateLocked(s ProcessState) {
	if p.state == ProcessDead && s != ProcessDead {
		status.Fatal("ProcessDispatcher.setState", "invalid transition from dead", "to", s)
	}
	if s == p.state {
		return
	}
	p.state = s

	switch s {
	case ProcessDying:
		for it := p.threads.Front(); it != nil; it = it.Next() {
			it.(*ThreadDispatcher).Kill()
		}
	case ProcessDead:
		p.handles.Drain()
		p.address.Destroy()
		p.StateTracker().UpdateSatisfied(0, SignalSignaled)
		if ep := p.ExceptionPort(); ep != nil {
			ep.Notify(exception.Report{Type: exception.TypeGone, ProcessID: p.koid})
		}
		if p.onDead != nil {
			p.onDead()
		}
	}
}
