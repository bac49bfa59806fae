package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestProcessDispatcherLifecycle(t *testing.T) {
	n := neko.Modern(t)

	n.It("Start moves INITIAL to RUNNING and installs the main thread", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")
		th := NewThreadDispatcher("main")

		require.Equal(t, status.OK, proc.Start(th, 0x1000, 0x2000))
		require.Equal(t, ProcessRunning, proc.State())
		require.Equal(t, ThreadRunning, th.State())
	})

	n.It("rejects AddThread once the process is DYING", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")
		main := NewThreadDispatcher("main")
		require.Equal(t, status.OK, proc.Start(main, 0x1000, 0x2000))

		proc.Exit(0)
		require.Equal(t, ProcessDying, proc.State())

		late := NewThreadDispatcher("late")
		require.Equal(t, status.ErrBadState, proc.AddThread(late))
	})

	n.It("DYING kills every other thread immediately", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")
		main := NewThreadDispatcher("main")
		other := NewThreadDispatcher("other")
		require.Equal(t, status.OK, proc.Start(main, 0x1000, 0x2000))
		require.Equal(t, status.OK, proc.AddThread(other))

		proc.Exit(7)
		require.Equal(t, ThreadDying, other.State())
	})

	n.It("reaches DEAD and sets SIGNALED once its last thread exits", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")
		main := NewThreadDispatcher("main")
		require.Equal(t, status.OK, proc.Start(main, 0x1000, 0x2000))

		main.Exit()
		require.Equal(t, ProcessDead, proc.State())

		satisfied, _ := proc.StateTracker().Snapshot()
		require.True(t, satisfied&SignalSignaled != 0)
	})

	n.It("Kill with no threads yet goes straight to DEAD", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")
		proc.Kill()
		require.Equal(t, ProcessDead, proc.State())
		require.Equal(t, -1, proc.ExitCode())
	})

	n.It("drains the handle table once DEAD", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")

		ev := CreateEvent()
		h, st := arena.NewHandle(ev, RightAll)
		require.True(t, st.Ok())
		value, st := proc.Handles().Add(h)
		require.True(t, st.Ok())

		proc.Kill()

		_, st = proc.Handles().Lookup(value, RightAll)
		require.False(t, st.Ok(), "a drained table should no longer resolve any handle value")
	})

	n.It("runs the onDead callback exactly once", func(t *testing.T) {
		arena := NewHandleArena()
		proc := NewProcessDispatcher(arena, "init")

		calls := 0
		proc.SetOnDead(func() { calls++ })

		proc.Kill()
		require.Equal(t, 1, calls)
	})

	n.Meow()
}
