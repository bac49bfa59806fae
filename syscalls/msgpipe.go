package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysMsgpipeCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	end0, end1 := object.CreateMessagePipe(proc.Handles().Arena())

	h0, st := proc.Handles().Arena().NewHandle(end0, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v0, st := proc.Handles().Add(h0)
	if !st.Ok() {
		return Result{Status: st}
	}

	h1, st := proc.Handles().Arena().NewHandle(end1, object.RightAll)
	if !st.Ok() {
		proc.Handles().Close(v0)
		return Result{Status: st}
	}
	v1, st := proc.Handles().Add(h1)
	if !st.Ok() {
		proc.Handles().Close(v0)
		return Result{Status: st}
	}

	return Result{Status: status.OK, Handle: v0, Handle2: v1}
}

// sysMsgpipeWrite resolves each handle argument to a live *object.Handle
// under TRANSFER right and hands the batch to MessagePipeDispatcher.Write,
// which performs the remove-then-attach atomically (spec.md 4.7).
func sysMsgpipeWrite(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	mp, ok := h.Dispatcher().(*object.MessagePipeDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	refs := make([]object.WriteHandleRef, 0, len(args.Handles))
	for _, v := range args.Handles {
		hh, st := proc.Handles().Lookup(v, object.RightTransfer)
		if !st.Ok() {
			return Result{Status: st}
		}
		refs = append(refs, object.WriteHandleRef{Handle: hh, Table: proc.Handles(), Value: v})
	}

	return Result{Status: mp.Write(args.Data, refs)}
}

func sysMsgpipeRead(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	mp, ok := h.Dispatcher().(*object.MessagePipeDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	dataLen, _, st := mp.BeginRead()
	if st == status.ErrBadState {
		// BeginRead reports an empty queue as BAD_STATE.
		st = status.ErrShouldWait
	}
	if !st.Ok() {
		return Result{Status: st}
	}
	if dataLen > args.Size {
		return Result{Status: status.ErrBufferTooSmall}
	}

	pkt, handles, st := mp.AcceptRead(proc.Handles())
	if !st.Ok() {
		return Result{Status: st}
	}

	return Result{Status: status.OK, Data: pkt.Data, Handles: handles}
}

func init() {
	Table[SysMsgpipeCreate] = sysMsgpipeCreate
	Table[SysMsgpipeWrite] = sysMsgpipeWrite
	Table[SysMsgpipeRead] = sysMsgpipeRead
}
