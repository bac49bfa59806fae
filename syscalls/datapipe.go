package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysDatapipeCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	prod, cons := object.CreateDataPipe(args.ElemSize, args.Capacity)

	hp, st := proc.Handles().Arena().NewHandle(prod, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	vp, st := proc.Handles().Add(hp)
	if !st.Ok() {
		return Result{Status: st}
	}

	hc, st := proc.Handles().Arena().NewHandle(cons, object.RightAll)
	if !st.Ok() {
		proc.Handles().Close(vp)
		return Result{Status: st}
	}
	vc, st := proc.Handles().Add(hc)
	if !st.Ok() {
		proc.Handles().Close(vp)
		return Result{Status: st}
	}

	return Result{Status: status.OK, Handle: vp, Handle2: vc}
}

func sysDatapipeWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	prod, ok := h.Dispatcher().(*object.DataPipeProducerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	n := len(args.Data)
	st = prod.Write(args.Data, &n, false)
	return Result{Status: st, N: n}
}

func sysDatapipeRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	cons, ok := h.Dispatcher().(*object.DataPipeConsumerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	buf := make([]byte, args.Size)
	n := args.Size
	st = cons.Read(buf, &n, false, false, false)
	return Result{Status: st, Data: buf[:n], N: n}
}

func sysDatapipeBeginWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	prod, ok := h.Dispatcher().(*object.DataPipeProducerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	buf, st := prod.BeginWrite()
	return Result{Status: st, Data: buf}
}

func sysDatapipeEndWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	prod, ok := h.Dispatcher().(*object.DataPipeProducerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	return Result{Status: prod.EndWrite(args.Size)}
}

func sysDatapipeBeginRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	cons, ok := h.Dispatcher().(*object.DataPipeConsumerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	buf, st := cons.BeginRead()
	return Result{Status: st, Data: buf}
}

func sysDatapipeEndRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	cons, ok := h.Dispatcher().(*object.DataPipeConsumerDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	return Result{Status: cons.EndRead(args.Size)}
}

func init() {
	Table[SysDatapipeCreate] = sysDatapipeCreate
	Table[SysDatapipeWrite] = sysDatapipeWrite
	Table[SysDatapipeRead] = sysDatapipeRead
	Table[SysDatapipeBeginWrite] = sysDatapipeBeginWrite
	Table[SysDatapipeEndWrite] = sysDatapipeEndWrite
	Table[SysDatapipeBeginRead] = sysDatapipeBeginRead
	Table[SysDatapipeEndRead] = sysDatapipeEndRead
}
