package object

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestIoPortDispatcherQueueWait(t *testing.T) {
	n := neko.Modern(t)

	n.It("returns a queued packet in FIFO order", func(t *testing.T) {
		port := CreateIoPort(4)

		require.Equal(t, status.OK, port.Queue(IoPortPacket{Key: 1, Len: 1}))
		require.Equal(t, status.OK, port.Queue(IoPortPacket{Key: 2, Len: 1}))

		first, st := port.Wait(context.Background(), 0)
		require.True(t, st.Ok())
		require.Equal(t, uint64(1), first.Key)

		second, st := port.Wait(context.Background(), 0)
		require.True(t, st.Ok())
		require.Equal(t, uint64(2), second.Key)
	})

	n.It("rejects a packet whose payload exceeds the fixed bound", func(t *testing.T) {
		port := CreateIoPort(4)
		require.Equal(t, status.ErrInvalidArgs, port.Queue(IoPortPacket{Len: MaxPacketPayload + 1}))
	})

	n.It("reports NO_MEMORY once the FIFO is full", func(t *testing.T) {
		port := CreateIoPort(1)
		require.Equal(t, status.OK, port.Queue(IoPortPacket{Key: 1}))
		require.Equal(t, status.ErrNoMemory, port.Queue(IoPortPacket{Key: 2}))
	})

	n.It("reports TIMED_OUT polling an empty port with a zero timeout", func(t *testing.T) {
		port := CreateIoPort(1)
		_, st := port.Wait(context.Background(), 0)
		require.Equal(t, status.ErrTimedOut, st)
	})

	n.Meow()
}

func TestIoPortClientAutoEnqueue(t *testing.T) {
	n := neko.Modern(t)

	n.It("enqueues a packet once the bound source becomes satisfied", func(t *testing.T) {
		port := CreateIoPort(4)
		ev := CreateEvent()

		_, st := BindIoPort(port, ev, 42, SignalSignaled)
		require.True(t, st.Ok())

		ev.StateTracker().UpdateSatisfied(0, SignalSignaled)

		pkt, st := port.Wait(context.Background(), time.Second)
		require.True(t, st.Ok())
		require.Equal(t, uint64(42), pkt.Key)
		require.Equal(t, PacketTypeIO, pkt.Type)
	})

	n.It("rejects binding a source with no state tracker", func(t *testing.T) {
		port := CreateIoPort(4)
		ws := CreateWaitSet()
		_, st := BindIoPort(port, ws, 1, SignalReadable)
		require.Equal(t, status.ErrNotSupported, st)
	})

	n.Meow()
}
