package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestHandleValueEncoding(t *testing.T) {
	n := neko.Modern(t)

	n.It("round-trips through encode/decode for every secret's reserved bits", func(t *testing.T) {
		for _, secret := range []uint32{0, 0x12340000, 0x7ffffffc} {
			for _, index := range []uint32{0, 1, 7, 1<<15 - 1} {
				value := encodeValue(index, secret)
				require.Equal(t, uint32(1), value&1, "low reserved bit must survive the xor")
				require.Equal(t, uint32(0), value&2, "second reserved bit must survive the xor")
				require.Equal(t, index, decodeValue(value, secret))
			}
		}
	})

	n.It("draws a secret with the top and bottom two bits cleared", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			s := newSecret()
			require.Zero(t, s&0x80000000)
			require.Zero(t, s&0x3)
		}
	})

	n.Meow()
}

func TestHandleArenaLifecycle(t *testing.T) {
	n := neko.Modern(t)

	n.It("reuses the lowest free slot after a delete", func(t *testing.T) {
		arena := NewHandleArena()

		ev := CreateEvent()
		h1, st := arena.NewHandle(ev, RightAll)
		require.True(t, st.Ok())

		idx1 := h1.Index()
		arena.DeleteHandle(h1)

		ev2 := CreateEvent()
		h2, st := arena.NewHandle(ev2, RightAll)
		require.True(t, st.Ok())
		require.Equal(t, idx1, h2.Index())
	})

	n.It("only reports the last reference released", func(t *testing.T) {
		ev := CreateEvent()

		ev.AddRef()
		require.False(t, ev.Release())
		require.True(t, ev.Release())
	})

	n.It("two handles to one dispatcher each destroy independently", func(t *testing.T) {
		arena := NewHandleArena()
		ev := CreateEvent()

		h1, _ := arena.NewHandle(ev, RightAll)
		ev.AddRef()
		h2, _ := arena.NewHandle(ev, RightAll)

		arena.DeleteHandle(h1)
		require.Nil(t, arena.Lookup(h1.Index()))

		arena.DeleteHandle(h2)
	})

	n.Meow()
}

func TestProcessHandleTableDuplicateAndReplace(t *testing.T) {
	n := neko.Modern(t)

	n.It("rejects duplicate without the duplicate right", func(t *testing.T) {
		arena := NewHandleArena()
		table := NewProcessHandleTable(arena, 1)

		ev := CreateEvent()
		h, _ := arena.NewHandle(ev, RightRead)
		value, st := table.Add(h)
		require.True(t, st.Ok())

		_, st = table.Duplicate(value, RightAll)
		require.Equal(t, status.ErrAccessDenied, st)
	})

	n.It("replace swaps rights atomically and invalidates the old value", func(t *testing.T) {
		arena := NewHandleArena()
		table := NewProcessHandleTable(arena, 1)

		ev := CreateEvent()
		h, _ := arena.NewHandle(ev, RightRead|RightDuplicate)
		value, _ := table.Add(h)

		newValue, st := table.Replace(value, RightRead)
		require.True(t, st.Ok())

		looked, st := table.Lookup(newValue, RightRead)
		require.True(t, st.Ok())
		require.Equal(t, RightRead, looked.Rights())

		_, st = table.Lookup(value, RightRead)
		require.False(t, st.Ok())
	})

	n.It("replace leaves the dispatcher alive, not torn down by the old handle's release", func(t *testing.T) {
		arena := NewHandleArena()
		table := NewProcessHandleTable(arena, 1)

		end0, end1 := CreateMessagePipe(arena)
		h, _ := arena.NewHandle(end0, RightRead|RightWrite|RightDuplicate)
		value, _ := table.Add(h)

		newValue, st := table.Replace(value, RightRead|RightWrite)
		require.True(t, st.Ok())

		looked, st := table.Lookup(newValue, RightWrite)
		require.True(t, st.Ok())
		endAfterReplace := looked.Dispatcher().(*MessagePipeDispatcher)

		require.True(t, endAfterReplace.Write([]byte("hi"), nil).Ok())

		satisfied, _ := end1.StateTracker().Snapshot()
		require.Zero(t, satisfied&SignalPeerClosed, "Replace must not have run end0's OnClose")
	})

	n.Meow()
}
