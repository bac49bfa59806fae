package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysEventCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	ev := object.CreateEvent()
	h, st := proc.Handles().Arena().NewHandle(ev, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysEventpairCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	a, b := object.CreateEventPair()

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

func init() {
	Table[SysEventCreate] = sysEventCreate
	Table[SysEventpairCreate] = sysEventpairCreate
}
