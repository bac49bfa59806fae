package syscalls

import (
	"context"
	"encoding/binary"

	"github.com/jixiang52002/magenta/futex"
	"github.com/jixiang52002/magenta/status"
)

func init() {
	Table[SysFutexWait] = sysFutexWait
	Table[SysFutexWake] = sysFutexWake
	Table[SysFutexRequeue] = sysFutexRequeue
}

// sysFutexWait reads the live four bytes backing args.Addr directly
// rather than through copyIn, since the check function must observe
// the same memory a concurrent futex_wake writer just updated -- the
// atomicity original_source/kernel/lib/magenta/futex_context.cpp gets
// from comparing directly against the user page under its lock,
// matched here by letting Project's live slice alias the VMO storage
// instead of snapshotting it.
func sysFutexWait(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	live, err := proc.Address().Project(args.Addr, 4)
	if err != nil {
		return Result{Status: status.ErrInvalidArgs}
	}

	check := func() bool {
		return binary.LittleEndian.Uint32(live) == args.Expected
	}

	return Result{Status: proc.Futexes().Wait(ctx, futex.Key(args.Addr), check, args.Timeout)}
}

func sysFutexWake(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	n := proc.Futexes().Wake(futex.Key(args.Addr), args.Count)
	return Result{Status: status.OK, N: n}
}

func sysFutexRequeue(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	live, err := proc.Address().Project(args.Addr, 4)
	if err != nil {
		return Result{Status: status.ErrInvalidArgs}
	}
	check := func() bool {
		return binary.LittleEndian.Uint32(live) == args.Expected
	}

	st = proc.Futexes().Requeue(futex.Key(args.Addr), args.Count, check, futex.Key(args.Addr2), args.Count2)
	return Result{Status: st}
}
