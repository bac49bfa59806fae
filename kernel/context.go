package kernel

import (
	"context"

	"github.com/jixiang52002/magenta/object"
)

// processKey/threadKey are the context.Value keys a syscall entry
// point uses to recover which process and thread it is running on
// behalf of, grounded directly on
// evanphx-columbia/kernel.GetTask/SetTask's prockey pattern, split in
// two here since, unlike evanphx-columbia's one-thread-per-Task model,
// a process here hosts many threads.
type processKey struct{}
type threadKey struct{}

// WithProcess returns a context carrying proc, for CurrentProcess to
// recover inside a syscall entry point.
func WithProcess(ctx context.Context, proc *object.ProcessDispatcher) context.Context {
	return context.WithValue(ctx, processKey{}, proc)
}

// CurrentProcess recovers the process a syscall is executing on behalf
// of.
func CurrentProcess(ctx context.Context) (*object.ProcessDispatcher, bool) {
	if v := ctx.Value(processKey{}); v != nil {
		return v.(*object.ProcessDispatcher), true
	}
	return nil, false
}

// WithThread returns a context carrying thread, for CurrentThread to
// recover inside a syscall entry point.
func WithThread(ctx context.Context, thread *object.ThreadDispatcher) context.Context {
	return context.WithValue(ctx, threadKey{}, thread)
}

// CurrentThread recovers the thread a syscall is executing on behalf
// of.
func CurrentThread(ctx context.Context) (*object.ThreadDispatcher, bool) {
	if v := ctx.Value(threadKey{}); v != nil {
		return v.(*object.ThreadDispatcher), true
	}
	return nil, false
}
