package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysVmoCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	vmo := object.NewVmObject(uint64(args.Size))
	h, st := proc.Handles().Arena().NewHandle(vmo, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysVmoRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	buf := make([]byte, args.Size)
	n, err := vmo.Read(buf, args.Offset)
	if err != nil {
		return Result{Status: status.ErrOutOfRange}
	}
	return Result{Status: status.OK, Data: buf[:n], N: n}
}

func sysVmoWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	n, err := vmo.Write(args.Data, args.Offset)
	if err != nil {
		return Result{Status: status.ErrOutOfRange}
	}
	return Result{Status: status.OK, N: n}
}

func sysVmoGetSize(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightNone)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	return Result{Status: status.OK, Size: vmo.Size()}
}

func sysVmoSetSize(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	vmo.SetSize(uint64(args.Size))
	return Result{Status: status.OK}
}

func sysVmoOpRange(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightNone)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}
	if err := vmo.OpRange(object.VmoOp(args.Count), args.Offset, args.Length); err != nil {
		return Result{Status: status.ErrOutOfRange}
	}
	return Result{Status: status.OK}
}

func sysProcessMapVm(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightMap)
	if !st.Ok() {
		return Result{Status: st}
	}
	vmo, ok := h.Dispatcher().(*object.VmObjectDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	addr, err := proc.Address().Map(vmo, args.Prot, args.Offset, args.Length, args.MapAddr)
	if err != nil {
		return Result{Status: status.ErrInvalidArgs}
	}
	return Result{Status: status.OK, MapAddr: addr}
}

func sysProcessUnmapVm(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	if err := proc.Address().Unmap(args.MapAddr, args.Length); err != nil {
		return Result{Status: status.ErrInvalidArgs}
	}
	return Result{Status: status.OK}
}

func sysProcessProtectVm(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	if err := proc.Address().Protect(args.MapAddr, args.Length, args.Prot); err != nil {
		return Result{Status: status.ErrInvalidArgs}
	}
	return Result{Status: status.OK}
}

func init() {
	Table[SysVmoCreate] = sysVmoCreate
	Table[SysVmoRead] = sysVmoRead
	Table[SysVmoWrite] = sysVmoWrite
	Table[SysVmoGetSize] = sysVmoGetSize
	Table[SysVmoSetSize] = sysVmoSetSize
	Table[SysVmoOpRange] = sysVmoOpRange
	Table[SysProcessMapVm] = sysProcessMapVm
	Table[SysProcessUnmapVm] = sysProcessUnmapVm
	Table[SysProcessProtectVm] = sysProcessProtectVm
}
