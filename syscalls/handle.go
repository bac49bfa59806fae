package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/config"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysHandleClose(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	return Result{Status: proc.Handles().Close(args.Handle)}
}

func sysHandleDuplicate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Duplicate(args.Handle, args.Rights)
	return Result{Status: st, Handle: v}
}

func sysHandleReplace(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Replace(args.Handle, args.Rights)
	return Result{Status: st, Handle: v}
}

// sysHandleWaitOne is grounded directly on
// original_source/kernel/lib/syscalls/syscalls_handle_wait.cpp's
// sys_handle_wait_one: look up the handle under RightRead, attach one
// observer, block on a single WaitEvent, always detach before
// returning.
func sysHandleWaitOne(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}

	tracker := h.Dispatcher().StateTracker()
	if tracker == nil {
		return Result{Status: status.ErrNotSupported}
	}

	event := object.NewWaitEvent()
	obs := tracker.AddObserver(args.DesiredSignals, h, event, nil)

	result, ctxv := event.Wait(ctx, args.Timeout)
	tracker.RemoveObserver(obs)

	satisfied, _ := tracker.Snapshot()
	if result == object.WaitSatisfied {
		if sig, ok := ctxv.(object.Signals); ok {
			satisfied = sig
		}
	}

	return Result{Status: waitResultStatus(result), Satisfied: []object.Signals{satisfied}}
}

// sysHandleWaitMany shares one WaitEvent across every handle's
// observer (spec.md 4.2's "a single wait event is shared across all
// observers of a multi-wait"), mirroring
// syscalls_handle_wait.cpp's sys_handle_wait_many's WaitStateObserver
// array plus its single shared WaitEvent. The reported index is the
// first handle whose state, snapshotted after the wait, meets its
// requested signals.
func sysHandleWaitMany(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	count := len(args.Handles)
	if count == 0 {
		return Result{Status: status.ErrTimedOut}
	}
	if count > config.MaxWaitHandleCount || len(args.WaitSignals) != count {
		return Result{Status: status.ErrInvalidArgs}
	}

	type attached struct {
		tracker *object.StateTracker
		obs     *object.Observer
	}

	event := object.NewWaitEvent()
	entries := make([]attached, 0, count)

	for i := 0; i < count; i++ {
		h, st := proc.Handles().Lookup(args.Handles[i], object.RightRead)
		if !st.Ok() {
			for _, e := range entries {
				e.tracker.RemoveObserver(e.obs)
			}
			return Result{Status: st}
		}
		tracker := h.Dispatcher().StateTracker()
		if tracker == nil {
			for _, e := range entries {
				e.tracker.RemoveObserver(e.obs)
			}
			return Result{Status: status.ErrNotSupported}
		}
		obs := tracker.AddObserver(args.WaitSignals[i], h, event, i)
		entries = append(entries, attached{tracker: tracker, obs: obs})
	}

	result, _ := event.Wait(ctx, args.Timeout)

	states := make([]object.Signals, count)
	for i, e := range entries {
		states[i], _ = e.tracker.Snapshot()
		e.tracker.RemoveObserver(e.obs)
	}

	index := -1
	if result == object.WaitSatisfied {
		for i := range states {
			if states[i]&args.WaitSignals[i] != 0 {
				index = i
				break
			}
		}
	}

	return Result{Status: waitResultStatus(result), Index: index, Satisfied: states}
}

func waitResultStatus(r object.WaitResult) status.Status {
	switch r {
	case object.WaitSatisfied:
		return status.OK
	case object.WaitTimedOut:
		return status.ErrTimedOut
	case object.WaitCancelled:
		return status.ErrCancelled
	case object.WaitInterrupted:
		return status.ErrInterrupted
	default:
		return status.ErrBadState
	}
}

func init() {
	Table[SysHandleClose] = sysHandleClose
	Table[SysHandleDuplicate] = sysHandleDuplicate
	Table[SysHandleReplace] = sysHandleReplace
	Table[SysHandleWaitOne] = sysHandleWaitOne
	Table[SysHandleWaitMany] = sysHandleWaitMany
}
