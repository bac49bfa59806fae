package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestLogDispatcherWriteRead(t *testing.T) {
	n := neko.Modern(t)

	n.It("reads back records in write order", func(t *testing.T) {
		l := CreateLog()
		require.Equal(t, status.OK, l.Write([]byte("first")))
		require.Equal(t, status.OK, l.Write([]byte("second")))

		rec, st := l.Read()
		require.True(t, st.Ok())
		require.Equal(t, []byte("first"), rec)

		rec, st = l.Read()
		require.True(t, st.Ok())
		require.Equal(t, []byte("second"), rec)
	})

	n.It("reports SHOULD_WAIT once every written record is consumed", func(t *testing.T) {
		l := CreateLog()
		require.Equal(t, status.OK, l.Write([]byte("only")))

		_, st := l.Read()
		require.True(t, st.Ok())

		_, st = l.Read()
		require.Equal(t, status.ErrShouldWait, st)
	})

	n.It("sets READABLE once a record is unread, clears it once drained", func(t *testing.T) {
		l := CreateLog()
		satisfied, _ := l.StateTracker().Snapshot()
		require.Equal(t, Signals(0), satisfied&SignalReadable)

		l.Write([]byte("x"))
		satisfied, _ = l.StateTracker().Snapshot()
		require.True(t, satisfied&SignalReadable != 0)

		l.Read()
		satisfied, _ = l.StateTracker().Snapshot()
		require.Equal(t, Signals(0), satisfied&SignalReadable)
	})

	n.It("evicts the oldest record once the ring fills", func(t *testing.T) {
		l := CreateLog()
		for i := 0; i < logRingSize+1; i++ {
			l.Write([]byte{byte(i)})
		}

		rec, st := l.Read()
		require.True(t, st.Ok())
		require.Equal(t, []byte{1}, rec, "the very first write should have been evicted")
	})

	n.Meow()
}
