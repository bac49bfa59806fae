package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/kernel"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

// sysProcessCreate spawns a new, not-yet-started process and hands the
// caller a handle to it, registering it with the kernel's process
// manager so it can later be pid-looked-up and reaped.
func sysProcessCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	child := inv.Kernel.CreateProcess(args.Name)

	h, st := proc.Handles().Arena().NewHandle(child, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

// sysProcessStart starts args.Handle's process with thread
// args.Handle2 as its main thread, per spec.md 4.5.
func sysProcessStart(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	ph, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	target, ok := ph.Dispatcher().(*object.ProcessDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	th, st := proc.Handles().Lookup(args.Handle2, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	thread, ok := th.Dispatcher().(*object.ThreadDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	return Result{Status: target.Start(thread, args.Entry, args.Stack)}
}

// sysThreadCreate allocates a thread inside args.Handle's process and
// hands the caller a handle to it.
func sysThreadCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	ph, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	target, ok := ph.Dispatcher().(*object.ProcessDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	thread := object.NewThreadDispatcher(args.Name)
	if st := target.AddThread(thread); !st.Ok() {
		return Result{Status: st}
	}
	inv.Kernel.Directory.Register(thread, args.Name)
	thread.SetOnExit(func() { inv.Kernel.Directory.Unregister(thread.Koid()) })

	h, st := proc.Handles().Arena().NewHandle(thread, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysThreadStart(ctx context.Context, inv *Invoker, args Args) Result {
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
	return Result{Status: thread.Start(args.Entry, args.Stack)}
}

// sysThreadExit ends the calling thread, identified by context.go's
// WithThread rather than a handle argument -- a thread can only exit
// itself, per spec.md 4.6.
func sysThreadExit(ctx context.Context, inv *Invoker, args Args) Result {
	thread, ok := kernel.CurrentThread(ctx)
	if !ok {
		return Result{Status: status.ErrBadState}
	}
	thread.Exit()
	return Result{Status: status.OK}
}

// sysTaskKill kills the process or thread named by args.Handle.
func sysTaskKill(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}

	switch target := h.Dispatcher().(type) {
	case *object.ProcessDispatcher:
		target.Kill()
	case *object.ThreadDispatcher:
		target.Kill()
	default:
		return Result{Status: status.ErrWrongType}
	}
	return Result{Status: status.OK}
}

func init() {
	Table[SysProcessCreate] = sysProcessCreate
	Table[SysProcessStart] = sysProcessStart
	Table[SysThreadCreate] = sysThreadCreate
	Table[SysThreadStart] = sysThreadStart
	Table[SysThreadExit] = sysThreadExit
	Table[SysTaskKill] = sysTaskKill
}
