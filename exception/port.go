package exception

import (
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/status"
)

// Port is one bound exception port: a handler attaches by reading
// reports and replying with Resolve, and the faulting thread's call
// into Exchange blocks until that reply arrives.
//
// evanphx-columbia has no message-pipe-backed RPC of this shape to
// adapt, so Exchange/Resolve are built directly from
// exception.cpp's ExceptionHandlerExchange contract (block the
// faulting thread, wake it with the handler's disposition) using a
// plain channel handshake instead of modeling the handler's read side
// as a MessagePipeDispatcher consumer -- delivery to the handler
// process still goes out over a bound object.MessagePipeDispatcher at
// the syscalls layer; Port only owns the kernel-side wait.
type Port struct {
	mu      sync.Mutex
	pending map[uint64]*exchange
	deliver func(Report)
	bound   bool
}

type exchange struct {
	done        chan struct{}
	disposition ResumeDisposition
}

// NewPort returns a bound port. deliver is called once per
// Exchange to hand the report to whatever transport the syscalls layer
// wired up (typically writing it onto a bound message pipe).
func NewPort(deliver func(Report)) *Port {
	return &Port{pending: make(map[uint64]*exchange), deliver: deliver, bound: true}
}

// Bound reports whether a handler is currently attached.
func (p *Port) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}

// Unbind detaches the handler, resolving every in-flight exchange as
// NOT_HANDLED so no faulting thread blocks forever on a port nobody
// is listening to anymore.
func (p *Port) Unbind() {
	p.mu.Lock()
	p.bound = false
	pending := p.pending
	p.pending = make(map[uint64]*exchange)
	p.mu.Unlock()

	for _, ex := range pending {
		ex.disposition = NotHandled
		close(ex.done)
	}
}

// Exchange hands report to this port's handler and blocks the calling
// (faulting) thread until Resolve is called for report.ThreadID, or
// the port is unbound.
func (p *Port) Exchange(report Report) ResumeDisposition {
	p.mu.Lock()
	if !p.bound {
		p.mu.Unlock()
		return NotHandled
	}

	ex := &exchange{done: make(chan struct{})}
	p.pending[report.ThreadID] = ex
	p.mu.Unlock()

	if log.L.IsTrace() {
		log.L.Trace("exception-exchange", "report", spew.Sdump(report))
	}
	p.deliver(report)

	<-ex.done
	return ex.disposition
}

// Notify hands report to this port's handler without blocking anything,
// for the "gone" notifications excp_port.cpp's OnThreadExit/OnProcessExit
// send (SendReport's one-way queue, no ExceptionHandlerExchange). A
// notification to an unbound port is simply dropped.
func (p *Port) Notify(report Report) {
	p.mu.Lock()
	bound := p.bound
	p.mu.Unlock()

	if !bound {
		return
	}

	if log.L.IsTrace() {
		log.L.Trace("exception-notify", "report", spew.Sdump(report))
	}
	p.deliver(report)
}

// Resolve delivers the handler's reply for tid's in-flight exchange.
func (p *Port) Resolve(tid uint64, disposition ResumeDisposition) status.Status {
	p.mu.Lock()
	ex, ok := p.pending[tid]
	if ok {
		delete(p.pending, tid)
	}
	p.mu.Unlock()

	if !ok {
		return status.ErrNotFound
	}

	ex.disposition = disposition
	close(ex.done)
	return status.OK
}

// Table holds the thread/process/system exception ports a single
// report escalates through, mirroring exception.cpp's
// try_thread_exception_handler / try_process_exception_handler /
// try_system_exception_handler sequence.
type Table struct {
	mu      sync.Mutex
	thread  map[uint64]*Port
	process map[uint64]*Port
	system  *Port

	// active tracks, per thread id, whichever port currently has that
	// thread's report in flight, so Resolve (the task_resume syscall's
	// kernel-side landing spot) can find the right port without its
	// caller needing to have kept one around.
	active map[uint64]*Port
}

// NewTable returns an empty escalation table.
func NewTable() *Table {
	return &Table{
		thread:  make(map[uint64]*Port),
		process: make(map[uint64]*Port),
		active:  make(map[uint64]*Port),
	}
}

func (t *Table) BindThread(tid uint64, p *Port) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.thread[tid] = p
}

func (t *Table) UnbindThread(tid uint64) {
	t.mu.Lock()
	p := t.thread[tid]
	delete(t.thread, tid)
	t.mu.Unlock()
	if p != nil {
		p.Unbind()
	}
}

func (t *Table) BindProcess(pid uint64, p *Port) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.process[pid] = p
}

func (t *Table) UnbindProcess(pid uint64) {
	t.mu.Lock()
	p := t.process[pid]
	delete(t.process, pid)
	t.mu.Unlock()
	if p != nil {
		p.Unbind()
	}
}

func (t *Table) BindSystem(p *Port) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.system = p
}

// System returns the kernel-wide system exception port, or nil if
// none is bound.
func (t *Table) System() *Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.system
}

func (t *Table) UnbindSystem() {
	t.mu.Lock()
	p := t.system
	t.system = nil
	t.mu.Unlock()
	if p != nil {
		p.Unbind()
	}
}

// Resolve delivers disposition to whichever port currently holds an
// in-flight exchange for tid, the table-level counterpart of Port.Resolve
// for a caller (the task_resume syscall) that only has a thread id, not
// a reference to the specific port the fault escalated to.
func (t *Table) Resolve(tid uint64, disposition ResumeDisposition) status.Status {
	t.mu.Lock()
	p := t.active[tid]
	t.mu.Unlock()

	if p == nil {
		return status.ErrNotFound
	}
	return p.Resolve(tid, disposition)
}

// Dispatch offers report to the thread port, then the process port,
// then the system port, in that order, returning the first RESUME or
// NOT_HANDLED-from-the-last-port disposition it gets, and whether any
// port actually claimed it (processed, matching exception.cpp's
// `processed` out-param used only for the "should I print to the
// console" decision, kept here for the caller's log-vs-silent choice).
func (t *Table) Dispatch(report Report) (disposition ResumeDisposition, processed bool) {
	t.mu.Lock()
	thread := t.thread[report.ThreadID]
	process := t.process[report.ProcessID]
	system := t.system
	t.mu.Unlock()

	for _, p := range []*Port{thread, process, system} {
		if p == nil || !p.Bound() {
			continue
		}
		processed = true

		t.mu.Lock()
		t.active[report.ThreadID] = p
		t.mu.Unlock()

		d := p.Exchange(report)

		t.mu.Lock()
		delete(t.active, report.ThreadID)
		t.mu.Unlock()

		if d == Resume {
			return Resume, true
		}
		// ResumeTryNext and NotHandled both fall through to the next
		// port in the chain.
	}

	return NotHandled, processed
}
