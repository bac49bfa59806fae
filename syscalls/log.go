package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

// sysLogCreate hands the caller a handle to the kernel debug log.
func sysLogCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	l := object.CreateLog()
	h, st := proc.Handles().Arena().NewHandle(l, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysLogWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	l, ok := h.Dispatcher().(*object.LogDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	return Result{Status: l.Write(args.Data)}
}

func sysLogRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	l, ok := h.Dispatcher().(*object.LogDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	data, st := l.Read()
	if !st.Ok() {
		return Result{Status: st}
	}
	return Result{Status: status.OK, Data: data, N: len(data)}
}

func init() {
	Table[SysLogCreate] = sysLogCreate
	Table[SysLogWrite] = sysLogWrite
	Table[SysLogRead] = sysLogRead
}
