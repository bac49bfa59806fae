package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

// Option bits for SysTaskResume's args.Options, the generalization of
// original_source/kernel/lib/syscalls/syscalls_exceptions.cpp's
// MX_RESUME_EXCEPTION/MX_RESUME_NOT_HANDLED: this core models no plain
// suspend/resume, only the exception-resume path spec.md 4.12
// describes, so ResumeException is required and ResumeNotHandled
// selects NOT_HANDLED over RESUME.
const (
	ResumeException  uint32 = 1 << 0
	ResumeNotHandled uint32 = 1 << 1
)

// sysObjectBindExceptionPort implements spec.md 4.5/4.6's
// set_exception_port and its unbind, generalized from
// sys_object_bind_exception_port(obj_handle, eport_handle, key, options):
// args.Handle names the target (a process or thread handle, or 0 for
// the kernel-wide system port), args.Handle2 names the message-pipe
// end reports are queued to, and args.Handle2 == 0 unbinds whatever is
// currently set instead of binding a new port.
func sysObjectBindExceptionPort(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	if args.Handle2 == 0 {
		return Result{Status: unbindExceptionPort(inv, proc, args.Handle)}
	}

	eh, st := proc.Handles().Lookup(args.Handle2, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	pipe, ok := eh.Dispatcher().(*object.MessagePipeDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	if args.Handle == 0 {
		return Result{Status: bindSystemExceptionPort(inv, pipe, args.Key)}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}

	switch target := h.Dispatcher().(type) {
	case *object.ProcessDispatcher:
		st := target.SetExceptionPort(pipe, args.Key)
		if st.Ok() {
			inv.Kernel.Exceptions().BindProcess(target.Koid(), target.ExceptionPort())
		}
		return Result{Status: st}
	case *object.ThreadDispatcher:
		st := target.SetExceptionPort(pipe, args.Key)
		if st.Ok() {
			inv.Kernel.Exceptions().BindThread(target.Koid(), target.ExceptionPort())
		}
		return Result{Status: st}
	default:
		return Result{Status: status.ErrWrongType}
	}
}

// bindSystemExceptionPort handles the obj_handle == 0 case: the
// kernel-wide port every fault escalates to last, per spec.md 4.12's
// thread -> process -> system order. There is no handle to look up a
// dispatcher on, so the table's own Port bookkeeping is the sole
// source of truth -- Port.Bound is checked here for ALREADY_BOUND, the
// way SetExceptionPort checks its own slot for process and thread
// ports.
func bindSystemExceptionPort(inv *Invoker, pipe *object.MessagePipeDispatcher, key uint64) status.Status {
	t := inv.Kernel.Exceptions()
	if p := t.System(); p != nil && p.Bound() {
		return status.ErrAlreadyBound
	}
	t.BindSystem(object.BindSystemPort(pipe, key))
	return status.OK
}

// unbindExceptionPort clears the exception port at obj_handle's scope
// (0 for system), resolving any in-flight report at that port as
// NOT_HANDLED so nothing blocks forever on a handler going away.
func unbindExceptionPort(inv *Invoker, proc *object.ProcessDispatcher, objHandle uint32) status.Status {
	if objHandle == 0 {
		inv.Kernel.Exceptions().UnbindSystem()
		return status.OK
	}

	h, st := proc.Handles().Lookup(objHandle, object.RightWrite)
	if !st.Ok() {
		return st
	}

	switch target := h.Dispatcher().(type) {
	case *object.ProcessDispatcher:
		st := target.ClearExceptionPort()
		inv.Kernel.Exceptions().UnbindProcess(target.Koid())
		return st
	case *object.ThreadDispatcher:
		st := target.ClearExceptionPort()
		inv.Kernel.Exceptions().UnbindThread(target.Koid())
		return st
	default:
		return status.ErrWrongType
	}
}

// sysTaskResume implements spec.md 8 scenario 5's `resume(thread,
// NOT_HANDLED)`: it resolves the named thread's in-flight exception
// exchange with the disposition args.Options selects, generalized from
// sys_task_resume(handle, options).
func sysTaskResume(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	thread, ok := h.Dispatcher().(*object.ThreadDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	if args.Options&ResumeException == 0 {
		return Result{Status: status.ErrNotSupported}
	}

	disposition := exception.Resume
	if args.Options&ResumeNotHandled != 0 {
		disposition = exception.NotHandled
	}

	return Result{Status: inv.Kernel.Exceptions().Resolve(thread.Koid(), disposition)}
}

func init() {
	Table[SysObjectBindExceptionPort] = sysObjectBindExceptionPort
	Table[SysTaskResume] = sysTaskResume
}
