package syscalls

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/jixiang52002/magenta/status"
)

// bootTime anchors SysCurrentTime's monotonic clock, mirroring
// evanphx-columbia/clock.go's start var but split from wall-clock
// time since this core exposes only a monotonic clock rather than
// evanphx-columbia's CLOCK_MONOTONIC/CLOCK_REALTIME pair.
var bootTime = time.Now()

// sysNanosleep blocks the calling thread for args.Timeout, returning
// early with INTERRUPTED if the thread is killed mid-sleep.
func sysNanosleep(ctx context.Context, inv *Invoker, args Args) Result {
	if args.Timeout <= 0 {
		return Result{Status: status.OK}
	}

	t := time.NewTimer(args.Timeout)
	defer t.Stop()

	select {
	case <-t.C:
		return Result{Status: status.OK}
	case <-ctx.Done():
		return Result{Status: status.ErrInterrupted}
	}
}

// sysCurrentTime reports elapsed time since the kernel booted, the
// monotonic clock evanphx-columbia's CLOCK_MONOTONIC case reads.
func sysCurrentTime(ctx context.Context, inv *Invoker, args Args) Result {
	return Result{Status: status.OK, Time: time.Since(bootTime)}
}

// sysCprngDraw fills args.Size bytes from the kernel's entropy source.
// Grounded on object/handle.go's newSecret(), which already reaches
// for crypto/rand rather than math/rand for handle-secret generation,
// the same reasoning that applies to a syscall whose whole purpose is
// supplying entropy to userspace.
func sysCprngDraw(ctx context.Context, inv *Invoker, args Args) Result {
	if args.Size <= 0 {
		return Result{Status: status.ErrInvalidArgs}
	}
	buf := make([]byte, args.Size)
	if _, err := rand.Read(buf); err != nil {
		return Result{Status: status.ErrBadState}
	}
	return Result{Status: status.OK, Data: buf, N: len(buf)}
}

// sysCprngAddEntropy accepts caller-supplied entropy. crypto/rand's
// CSPRNG has no mixing API to feed bytes into, so this reports success
// without doing anything with args.Data.
func sysCprngAddEntropy(ctx context.Context, inv *Invoker, args Args) Result {
	return Result{Status: status.OK}
}

func init() {
	Table[SysNanosleep] = sysNanosleep
	Table[SysCurrentTime] = sysCurrentTime
	Table[SysCprngDraw] = sysCprngDraw
	Table[SysCprngAddEntropy] = sysCprngAddEntropy
}
