package syscalls

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/jixiang52002/magenta/config"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysWaitsetCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	ws := object.CreateWaitSet()
	h, st := proc.Handles().Arena().NewHandle(ws, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysWaitsetAdd(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	ws, ok := h.Dispatcher().(*object.WaitSetDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	source, st := proc.Handles().Lookup(args.Handle2, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}

	return Result{Status: ws.Add(args.Cookie, source.Dispatcher(), args.DesiredSignals)}
}

func sysWaitsetRemove(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	ws, ok := h.Dispatcher().(*object.WaitSetDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	return Result{Status: ws.Remove(args.Cookie)}
}

func sysWaitsetWait(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	ws, ok := h.Dispatcher().(*object.WaitSetDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	limit := args.Size
	if limit <= 0 || limit > config.MaxWaitsetResults {
		limit = config.MaxWaitsetResults
	}
	results := make([]object.WaitSetResult, limit)
	n, truncated, st := ws.Wait(ctx, args.Timeout, results)
	if !st.Ok() {
		return Result{Status: st}
	}

	satisfied := make([]object.Signals, n)
	for i := 0; i < n; i++ {
		satisfied[i] = results[i].Satisfied
	}

	if log.L.IsTrace() {
		log.L.Trace("waitset-wait-results", "results", spew.Sdump(results[:n]), "truncated", truncated)
	}

	return Result{Status: status.OK, N: n, Truncated: truncated, Satisfied: satisfied}
}

func init() {
	Table[SysWaitsetCreate] = sysWaitsetCreate
	Table[SysWaitsetAdd] = sysWaitsetAdd
	Table[SysWaitsetRemove] = sysWaitsetRemove
	Table[SysWaitsetWait] = sysWaitsetWait
}
