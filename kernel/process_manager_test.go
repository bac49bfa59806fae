package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/object"
)

func TestProcessManagerReap(t *testing.T) {
	n := neko.Modern(t)

	n.It("detects a process has already exited", func(t *testing.T) {
		k := NewKernel()

		proc := k.CreateProcess("child")
		proc.Kill()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		reaped, err := k.Processes().ReapDead(ctx, true)
		require.NoError(t, err)
		require.Equal(t, proc.Koid(), reaped.Koid())
		require.Equal(t, object.ProcessDead, reaped.State())
	})

	n.It("blocks until a process exits", func(t *testing.T) {
		k := NewKernel()

		proc := k.CreateProcess("child")

		go func() {
			time.Sleep(100 * time.Millisecond)
			proc.Kill()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		reaped, err := k.Processes().ReapDead(ctx, true)
		require.NoError(t, err)
		require.Equal(t, proc.Koid(), reaped.Koid())
	})

	n.It("reassigns the lowest free pid once a process is removed", func(t *testing.T) {
		pm := NewProcessManager()
		arena := object.NewHandleArena()

		a := object.NewProcessDispatcher(arena, "a")
		pidA := pm.Add(a)

		b := object.NewProcessDispatcher(arena, "b")
		pidB := pm.Add(b)
		require.Equal(t, pidA+1, pidB)

		pm.Remove(pidA)

		c := object.NewProcessDispatcher(arena, "c")
		pidC := pm.Add(c)
		require.Equal(t, pidA, pidC)
	})

	n.Meow()
}
