package object

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestWaitSetDispatcherAddRemoveWait(t *testing.T) {
	n := neko.Modern(t)

	n.It("wakes once a bound source's desired signal is satisfied", func(t *testing.T) {
		ws := CreateWaitSet()
		ev := CreateEvent()

		require.Equal(t, status.OK, ws.Add(1, ev, SignalSignaled))

		go func() {
			time.Sleep(5 * time.Millisecond)
			ev.StateTracker().UpdateSatisfied(0, SignalSignaled)
		}()

		results := make([]WaitSetResult, 4)
		n, truncated, st := ws.Wait(context.Background(), time.Second, results)
		require.True(t, st.Ok())
		require.Equal(t, 1, n)
		require.Equal(t, 0, truncated)
		require.Equal(t, uint64(1), results[0].Cookie)
		require.True(t, results[0].Satisfied&SignalSignaled != 0)
	})

	n.It("rejects a second Add under the same cookie", func(t *testing.T) {
		ws := CreateWaitSet()
		ev := CreateEvent()

		require.Equal(t, status.OK, ws.Add(1, ev, SignalSignaled))
		require.Equal(t, status.ErrAlreadyBound, ws.Add(1, ev, SignalSignaled))
	})

	n.It("times out when nothing ever satisfies", func(t *testing.T) {
		ws := CreateWaitSet()
		ev := CreateEvent()
		require.Equal(t, status.OK, ws.Add(1, ev, SignalSignaled))

		results := make([]WaitSetResult, 4)
		_, _, st := ws.Wait(context.Background(), 10*time.Millisecond, results)
		require.Equal(t, status.ErrTimedOut, st)
	})

	n.It("truncates results once the output slice is smaller than the satisfied count", func(t *testing.T) {
		ws := CreateWaitSet()
		a, b := CreateEvent(), CreateEvent()
		require.Equal(t, status.OK, ws.Add(1, a, SignalSignaled))
		require.Equal(t, status.OK, ws.Add(2, b, SignalSignaled))

		a.StateTracker().UpdateSatisfied(0, SignalSignaled)
		b.StateTracker().UpdateSatisfied(0, SignalSignaled)

		results := make([]WaitSetResult, 1)
		n, truncated, st := ws.Wait(context.Background(), time.Second, results)
		require.True(t, st.Ok())
		require.Equal(t, 1, n)
		require.Equal(t, 1, truncated)
	})

	n.It("Remove detaches a cookie so it no longer contributes to Wait", func(t *testing.T) {
		ws := CreateWaitSet()
		ev := CreateEvent()
		require.Equal(t, status.OK, ws.Add(1, ev, SignalSignaled))
		require.Equal(t, status.OK, ws.Remove(1))
		require.Equal(t, status.ErrNotFound, ws.Remove(1))
	})

	n.Meow()
}
