package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestThreadDispatcherLifecycle(t *testing.T) {
	n := neko.Modern(t)

	n.It("starts INITIAL and moves to RUNNING on Start", func(t *testing.T) {
		th := NewThreadDispatcher("worker")
		require.Equal(t, ThreadInitial, th.State())

		require.Equal(t, status.OK, th.Start(0x1000, 0x2000))
		require.Equal(t, ThreadRunning, th.State())
	})

	n.It("rejects a second Start", func(t *testing.T) {
		th := NewThreadDispatcher("worker")
		require.Equal(t, status.OK, th.Start(0x1000, 0x2000))
		require.Equal(t, status.ErrBadState, th.Start(0x1000, 0x2000))
	})

	n.It("Kill fires the installed interrupt callback and moves to DYING", func(t *testing.T) {
		th := NewThreadDispatcher("worker")
		th.Start(0x1000, 0x2000)

		fired := false
		th.SetInterrupt(func() { fired = true })

		th.Kill()
		require.True(t, fired)
		require.Equal(t, ThreadDying, th.State())
	})

	n.It("Exit sets SIGNALED and removes the thread from its process", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "parent")
		th := NewThreadDispatcher("worker")
		require.Equal(t, status.OK, proc.AddThread(th))

		th.Exit()
		require.Equal(t, ThreadDead, th.State())
		require.Equal(t, ProcessDead, proc.State(), "the last thread leaving kills the process")

		satisfied, _ := th.StateTracker().Snapshot()
		require.True(t, satisfied&SignalSignaled != 0)
	})

	n.It("Exit is idempotent", func(t *testing.T) {
		th := NewThreadDispatcher("worker")
		th.Exit()
		require.NotPanics(t, func() { th.Exit() })
	})

	n.Meow()
}
