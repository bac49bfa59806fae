package futex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestContextWaitWake(t *testing.T) {
	n := neko.Modern(t)

	n.It("returns ALREADY_BOUND without blocking when check already fails", func(t *testing.T) {
		c := NewContext()
		st := c.Wait(context.Background(), Key(1), func() bool { return false }, time.Second)
		require.Equal(t, status.ErrAlreadyBound, st)
	})

	n.It("times out when nothing wakes it", func(t *testing.T) {
		c := NewContext()
		st := c.Wait(context.Background(), Key(1), func() bool { return true }, 10*time.Millisecond)
		require.Equal(t, status.ErrTimedOut, st)
		require.Equal(t, 0, c.WaitingCount(Key(1)))
	})

	n.It("wakes waiters one at a time as Wake is called", func(t *testing.T) {
		c := NewContext()

		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func() {
				defer wg.Done()
				st := c.Wait(context.Background(), Key(1), func() bool { return true }, time.Second)
				require.True(t, st.Ok())
			}()
		}

		for c.WaitingCount(Key(1)) < 2 {
			time.Sleep(time.Millisecond)
		}

		require.Equal(t, 1, c.Wake(Key(1), 1))
		require.Equal(t, 1, c.WaitingCount(Key(1)))

		require.Equal(t, 1, c.Wake(Key(1), 1))
		require.Equal(t, 0, c.WaitingCount(Key(1)))
		wg.Wait()
	})

	n.It("reports success instead of timed-out if Wake races the deadline", func(t *testing.T) {
		c := NewContext()
		result := make(chan status.Status, 1)

		go func() {
			result <- c.Wait(context.Background(), Key(1), func() bool { return true }, 5*time.Millisecond)
		}()

		for c.WaitingCount(Key(1)) == 0 {
			time.Sleep(time.Millisecond)
		}

		woken := c.Wake(Key(1), 1)
		require.Equal(t, 1, woken)

		st := <-result
		require.True(t, st.Ok(), "a waiter woken right at the deadline must not see TIMED_OUT")
	})

	n.It("unblocks with INTERRUPTED when the context is cancelled", func(t *testing.T) {
		c := NewContext()
		ctx, cancel := context.WithCancel(context.Background())

		result := make(chan status.Status, 1)
		go func() {
			result <- c.Wait(ctx, Key(1), func() bool { return true }, time.Second)
		}()

		for c.WaitingCount(Key(1)) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()

		st := <-result
		require.Equal(t, status.ErrInterrupted, st)
	})

	n.Meow()
}

func TestContextRequeue(t *testing.T) {
	n := neko.Modern(t)

	n.It("rejects requeueing a key onto itself", func(t *testing.T) {
		c := NewContext()
		st := c.Requeue(Key(1), 1, func() bool { return true }, Key(1), 1)
		require.Equal(t, status.ErrInvalidArgs, st)
	})

	n.It("wakes wakeCount and moves the rest onto requeueKey", func(t *testing.T) {
		c := NewContext()

		var wg sync.WaitGroup
		wg.Add(3)
		done := make([]chan status.Status, 3)
		for i := range done {
			done[i] = make(chan status.Status, 1)
		}
		for i := 0; i < 3; i++ {
			i := i
			go func() {
				defer wg.Done()
				done[i] <- c.Wait(context.Background(), Key(1), func() bool { return true }, 2*time.Second)
			}()
			// Park the waiters one at a time so done[0] is the oldest.
			for c.WaitingCount(Key(1)) < i+1 {
				time.Sleep(time.Millisecond)
			}
		}

		for c.WaitingCount(Key(1)) < 3 {
			time.Sleep(time.Millisecond)
		}

		st := c.Requeue(Key(1), 1, func() bool { return true }, Key(2), 10)
		require.True(t, st.Ok())

		require.Equal(t, 0, c.WaitingCount(Key(1)))
		require.Equal(t, 2, c.WaitingCount(Key(2)))

		woken := 0
		select {
		case s := <-done[0]:
			require.True(t, s.Ok())
			woken++
		case <-time.After(200 * time.Millisecond):
		}
		require.Equal(t, 1, woken)

		require.Equal(t, 2, c.Wake(Key(2), 10))
		wg.Wait()
	})

	n.Meow()
}
