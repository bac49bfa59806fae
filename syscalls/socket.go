package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysSocketCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	a, b := object.CreateSocket()

	ha, st := proc.Handles().Arena().NewHandle(a, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	va, st := proc.Handles().Add(ha)
	if !st.Ok() {
		return Result{Status: st}
	}

	hb, st := proc.Handles().Arena().NewHandle(b, object.RightAll)
	if !st.Ok() {
		proc.Handles().Close(va)
		return Result{Status: st}
	}
	vb, st := proc.Handles().Add(hb)
	if !st.Ok() {
		proc.Handles().Close(va)
		return Result{Status: st}
	}

	return Result{Status: status.OK, Handle: va, Handle2: vb}
}

func sysSocketWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	sock, ok := h.Dispatcher().(*object.SocketDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	n, st := sock.Write(args.Data, args.OOB)
	return Result{Status: st, N: n}
}

func sysSocketRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	sock, ok := h.Dispatcher().(*object.SocketDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	buf := make([]byte, args.Size)
	n, st := sock.Read(buf, args.OOB)
	return Result{Status: st, Data: buf[:n], N: n}
}

func init() {
	Table[SysSocketCreate] = sysSocketCreate
	Table[SysSocketWrite] = sysSocketWrite
	Table[SysSocketRead] = sysSocketRead
}
