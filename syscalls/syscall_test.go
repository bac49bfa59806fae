package syscalls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/kernel"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func newTestInvoker(t *testing.T) (*Invoker, *object.ProcessDispatcher, context.Context) {
	t.Helper()
	k := kernel.NewKernel()
	proc := k.CreateProcess("test")
	thread := object.NewThreadDispatcher("test-main")
	require.True(t, proc.AddThread(thread).Ok())

	ctx := kernel.WithProcess(context.Background(), proc)
	ctx = kernel.WithThread(ctx, thread)

	return &Invoker{Kernel: k}, proc, ctx
}

func TestHandleCloseDuplicateReplace(t *testing.T) {
	n := neko.Modern(t)

	n.It("duplicates a handle and closes both copies independently", func(t *testing.T) {
		inv, proc, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, created.Status.Ok())

		dup := inv.InvokeSyscall(ctx, SysHandleDuplicate, Args{Handle: created.Handle, Rights: object.RightAll})
		require.True(t, dup.Status.Ok())
		require.NotEqual(t, created.Handle, dup.Handle)

		closed := inv.InvokeSyscall(ctx, SysHandleClose, Args{Handle: created.Handle})
		require.Equal(t, status.OK, closed.Status)

		stillOpen := inv.InvokeSyscall(ctx, SysHandleClose, Args{Handle: dup.Handle})
		require.Equal(t, status.OK, stillOpen.Status)

		_ = proc
	})

	n.It("reports BAD_HANDLE closing an already-closed handle", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, created.Status.Ok())

		require.Equal(t, status.OK, inv.InvokeSyscall(ctx, SysHandleClose, Args{Handle: created.Handle}).Status)
		require.Equal(t, status.ErrBadHandle, inv.InvokeSyscall(ctx, SysHandleClose, Args{Handle: created.Handle}).Status)
	})

	n.Meow()
}

func TestMsgpipeRoundTrip(t *testing.T) {
	n := neko.Modern(t)

	n.It("writes on one end and reads the same bytes off the other", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysMsgpipeCreate, Args{})
		require.True(t, created.Status.Ok())

		wrote := inv.InvokeSyscall(ctx, SysMsgpipeWrite, Args{
			Handle: created.Handle,
			Data:   []byte("hello pipe"),
		})
		require.Equal(t, status.OK, wrote.Status)

		read := inv.InvokeSyscall(ctx, SysMsgpipeRead, Args{
			Handle: created.Handle2,
			Size:   64,
		})
		require.Equal(t, status.OK, read.Status)
		require.Equal(t, []byte("hello pipe"), read.Data)
	})

	n.It("reports SHOULD_WAIT reading an empty pipe", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysMsgpipeCreate, Args{})
		require.True(t, created.Status.Ok())

		read := inv.InvokeSyscall(ctx, SysMsgpipeRead, Args{Handle: created.Handle2, Size: 64})
		require.Equal(t, status.ErrShouldWait, read.Status)
	})

	n.Meow()
}

func TestHandleWaitOneAndMany(t *testing.T) {
	n := neko.Modern(t)

	n.It("wait_one reports the signal an object_signal call just set", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, created.Status.Ok())

		go func() {
			time.Sleep(5 * time.Millisecond)
			inv.InvokeSyscall(ctx, SysObjectSignal, Args{
				Handle:     created.Handle,
				SetSignals: object.SignalSignaled,
			})
		}()

		res := inv.InvokeSyscall(ctx, SysHandleWaitOne, Args{
			Handle:         created.Handle,
			DesiredSignals: object.SignalSignaled,
			Timeout:        time.Second,
		})
		require.Equal(t, status.OK, res.Status)
		require.Len(t, res.Satisfied, 1)
		require.True(t, res.Satisfied[0]&object.SignalSignaled != 0)
	})

	n.It("wait_many reports the index of whichever handle fired", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		a := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		b := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, a.Status.Ok())
		require.True(t, b.Status.Ok())

		go func() {
			time.Sleep(5 * time.Millisecond)
			inv.InvokeSyscall(ctx, SysObjectSignal, Args{Handle: b.Handle, SetSignals: object.SignalSignaled})
		}()

		res := inv.InvokeSyscall(ctx, SysHandleWaitMany, Args{
			Handles:     []uint32{a.Handle, b.Handle},
			WaitSignals: []object.Signals{object.SignalSignaled, object.SignalSignaled},
			Timeout:     time.Second,
		})
		require.Equal(t, status.OK, res.Status)
		require.Equal(t, 1, res.Index)
	})

	n.It("times out when nothing signals before the deadline", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, created.Status.Ok())

		res := inv.InvokeSyscall(ctx, SysHandleWaitOne, Args{
			Handle:         created.Handle,
			DesiredSignals: object.SignalSignaled,
			Timeout:        10 * time.Millisecond,
		})
		require.Equal(t, status.ErrTimedOut, res.Status)
	})

	n.Meow()
}

func TestFutexWaitWake(t *testing.T) {
	n := neko.Modern(t)

	n.It("wakes a waiter blocked through the syscall layer", func(t *testing.T) {
		inv, proc, ctx := newTestInvoker(t)

		vmo := inv.InvokeSyscall(ctx, SysVmoCreate, Args{Size: 4096})
		require.True(t, vmo.Status.Ok())

		mapped := inv.InvokeSyscall(ctx, SysProcessMapVm, Args{
			Handle: vmo.Handle,
			Length: 4096,
			Prot:   object.ProtRead | object.ProtWrite,
		})
		require.True(t, mapped.Status.Ok())

		addr := mapped.MapAddr
		_ = proc

		done := make(chan status.Status, 1)
		go func() {
			res := inv.InvokeSyscall(ctx, SysFutexWait, Args{
				Addr:     addr,
				Expected: 0,
				Timeout:  time.Second,
			})
			done <- res.Status
		}()

		time.Sleep(5 * time.Millisecond)
		woke := inv.InvokeSyscall(ctx, SysFutexWake, Args{Addr: addr, Count: 1})
		require.Equal(t, status.OK, woke.Status)
		require.Equal(t, 1, woke.N)

		require.Equal(t, status.OK, <-done)
	})

	n.Meow()
}

func TestObjectGetInfoTopics(t *testing.T) {
	n := neko.Modern(t)

	n.It("HANDLE_BASIC reports the koid, type, and rights of one handle", func(t *testing.T) {
		inv, proc, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysEventCreate, Args{})
		require.True(t, created.Status.Ok())

		res := inv.InvokeSyscall(ctx, SysObjectGetInfo, Args{Handle: created.Handle, Topic: 0, Size: 16})
		require.True(t, res.Status.Ok())
		require.Len(t, res.Data, 16)

		_ = proc
	})

	n.It("OBJECT_DIRECTORY lists the calling process itself", func(t *testing.T) {
		inv, proc, ctx := newTestInvoker(t)

		res := inv.InvokeSyscall(ctx, SysObjectGetInfo, Args{Topic: 1, Size: 4096})
		require.True(t, res.Status.Ok())

		found := false
		for i := 0; i+14 <= len(res.Data); {
			koid := uint64(0)
			for b := 0; b < 8; b++ {
				koid |= uint64(res.Data[i+b]) << (8 * b)
			}
			nameLen := int(res.Data[i+12]) | int(res.Data[i+13])<<8
			if koid == proc.Koid() {
				found = true
			}
			i += 14 + nameLen
		}
		require.True(t, found, "the calling process should appear in its own directory snapshot")
	})

	n.It("PROCESS_THREADS reports the calling process's own thread koid", func(t *testing.T) {
		inv, proc, ctx := newTestInvoker(t)

		thread, ok := kernel.CurrentThread(ctx)
		require.True(t, ok)

		h, st := proc.Handles().Arena().NewHandle(proc, object.RightAll)
		require.True(t, st.Ok())
		selfHandle, st := proc.Handles().Add(h)
		require.True(t, st.Ok())

		res := inv.InvokeSyscall(ctx, SysObjectGetInfo, Args{Handle: selfHandle, Topic: 2, Size: 4096})
		require.True(t, res.Status.Ok())
		require.Len(t, res.Data, 8, "exactly one thread should be attached")

		koid := uint64(0)
		for b := 0; b < 8; b++ {
			koid |= uint64(res.Data[b]) << (8 * b)
		}
		require.Equal(t, thread.Koid(), koid)
	})

	n.Meow()
}

func TestLogCreateWriteRead(t *testing.T) {
	n := neko.Modern(t)

	n.It("reads back a record written through the syscall layer", func(t *testing.T) {
		inv, _, ctx := newTestInvoker(t)

		created := inv.InvokeSyscall(ctx, SysLogCreate, Args{})
		require.True(t, created.Status.Ok())

		wrote := inv.InvokeSyscall(ctx, SysLogWrite, Args{Handle: created.Handle, Data: []byte("boot")})
		require.Equal(t, status.OK, wrote.Status)

		read := inv.InvokeSyscall(ctx, SysLogRead, Args{Handle: created.Handle})
		require.Equal(t, status.OK, read.Status)
		require.Equal(t, []byte("boot"), read.Data)
	})

	n.Meow()
}
