package object

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestStateTrackerWaitAndCancel(t *testing.T) {
	n := neko.Modern(t)

	n.It("wakes a waiter once the desired signal becomes satisfied", func(t *testing.T) {
		st := NewStateTracker(SignalNone, SignalReadable|SignalWritable, SignalNone)
		event := NewWaitEvent()
		st.AddObserver(SignalReadable, "key", event, nil)

		result, _ := event.Wait(context.Background(), 10*time.Millisecond)
		require.Equal(t, WaitTimedOut, result)

		event2 := NewWaitEvent()
		st.AddObserver(SignalReadable, "key", event2, nil)
		st.UpdateSatisfied(0, SignalReadable)

		result, ctxv := event2.Wait(context.Background(), time.Second)
		require.Equal(t, WaitSatisfied, result)
		require.Equal(t, SignalReadable, ctxv)
	})

	n.It("cancels every observer attached under a given handle key", func(t *testing.T) {
		st := NewStateTracker(SignalNone, SignalReadable, SignalNone)
		event := NewWaitEvent()
		st.AddObserver(SignalReadable, "handle-a", event, nil)

		st.Cancel("handle-a")

		result, _ := event.Wait(context.Background(), time.Second)
		require.Equal(t, WaitCancelled, result)
	})

	n.It("rejects a user signal outside the permitted mask", func(t *testing.T) {
		st := NewStateTracker(SignalNone, SignalSignaled, SignalNone)

		require.Equal(t, status.ErrWrongType, st.UserSignal(0, SignalUserBase))
	})

	n.Meow()
}

func TestWaitEventSignalIsIdempotent(t *testing.T) {
	n := neko.Modern(t)

	n.It("only the first Signal call sticks", func(t *testing.T) {
		w := NewWaitEvent()
		w.Signal(WaitSatisfied, 1)
		w.Signal(WaitSatisfied, 2)

		result, ctxv := w.Wait(context.Background(), time.Second)
		require.Equal(t, WaitSatisfied, result)
		require.Equal(t, 1, ctxv)
	})

	n.It("returns immediately with TimedOut for a zero timeout when unsignalled", func(t *testing.T) {
		w := NewWaitEvent()
		result, _ := w.Wait(context.Background(), 0)
		require.Equal(t, WaitTimedOut, result)
	})

	n.Meow()
}
