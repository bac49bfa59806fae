package object

import (
	"context"
	"time"

	"github.com/jixiang52002/magenta/status"
)

// MaxPacketPayload bounds an IoPortPacket's per-type payload, per
// spec.md 4.9's "every packet carries... per-type payload" and
// "queue rejects oversize packets".
const MaxPacketPayload = 32

// PacketType distinguishes a user-queued packet from one synthesized
// by an IoPortClient binding.
type PacketType uint32

const (
	PacketTypeUser PacketType = 0
	PacketTypeIO   PacketType = 1
)

// IoPortPacket is one FIFO entry: a 64-bit key, a type, and a fixed
// payload.
type IoPortPacket struct {
	Key     uint64
	Type    PacketType
	Payload [MaxPacketPayload]byte
	Len     int
}

// IoPortDispatcher holds a bounded FIFO of packets. Grounded on
// evanphx-columbia/kernel.ProcessGroup.ReapAny's channel-based
// blocking pattern (register-channel/select), used directly here
// since a buffered channel already gives
// FIFO order, a capacity bound, and select-based timeout/cancel for
// free.
type IoPortDispatcher struct {
	base
	queue chan IoPortPacket
}

// CreateIoPort builds a port whose FIFO holds up to capacity packets.
func CreateIoPort(capacity int) *IoPortDispatcher {
	p := &IoPortDispatcher{queue: make(chan IoPortPacket, capacity)}
	p.base = newBase(TypeIoPort, nil)
	return p
}

func (p *IoPortDispatcher) OnClose() {}

// Queue enqueues pkt, rejecting it outright if its payload exceeds
// MaxPacketPayload or if the FIFO is already full.
func (p *IoPortDispatcher) Queue(pkt IoPortPacket) status.Status {
	if pkt.Len > MaxPacketPayload {
		return status.ErrInvalidArgs
	}

	select {
	case p.queue <- pkt:
		return status.OK
	default:
		return status.ErrNoMemory
	}
}

// Wait blocks until a packet is available, timeout elapses, or ctx is
// cancelled.
func (p *IoPortDispatcher) Wait(ctx context.Context, timeout time.Duration) (IoPortPacket, status.Status) {
	select {
	case pkt := <-p.queue:
		return pkt, status.OK
	default:
	}

	if timeout == 0 {
		return IoPortPacket{}, status.ErrTimedOut
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case pkt := <-p.queue:
		return pkt, status.OK
	case <-ctx.Done():
		return IoPortPacket{}, status.ErrInterrupted
	case <-timerC:
		return IoPortPacket{}, status.ErrTimedOut
	}
}

// IoPortClient binds a source dispatcher's state tracker to a port:
// whenever any bound signal becomes satisfied, an I/O packet is
// enqueued automatically, per spec.md 4.9. Grounded on
// evanphx-columbia/pkg/waiter.Event's Callback field, repurposed here
// so the "callback" is always "enqueue a packet" rather than an
// arbitrary closure.
type IoPortClient struct {
	port     *IoPortDispatcher
	key      uint64
	mask     Signals
	observer *Observer
	tracker  *StateTracker
}

// BindIoPort attaches client to source's state tracker with the given
// key and signal mask.
func BindIoPort(port *IoPortDispatcher, source Dispatcher, key uint64, mask Signals) (*IoPortClient, status.Status) {
	tracker := source.StateTracker()
	if tracker == nil {
		return nil, status.ErrNotSupported
	}

	client := &IoPortClient{port: port, key: key, mask: mask, tracker: tracker}

	// A dedicated WaitEvent per binding lets us reuse
	// StateTracker.AddObserver's existing notify path instead of
	// inventing a second one; each time it's signalled, re-arm it and
	// enqueue a packet.
	client.arm()

	source.BindPortClient(client)
	return client, status.OK
}

func (c *IoPortClient) arm() {
	event := NewWaitEvent()
	obs := c.tracker.AddObserver(c.mask, c, event, nil)
	c.observer = obs

	go c.pump(event)
}

func (c *IoPortClient) pump(event *WaitEvent) {
	for {
		result, _ := event.Wait(context.Background(), -1)
		if result != WaitSatisfied {
			return
		}

		satisfied, _ := c.tracker.Snapshot()
		var pkt IoPortPacket
		pkt.Key = c.key
		pkt.Type = PacketTypeIO
		pkt.Len = 4
		pkt.Payload[0] = byte(satisfied)
		pkt.Payload[1] = byte(satisfied >> 8)
		pkt.Payload[2] = byte(satisfied >> 16)
		pkt.Payload[3] = byte(satisfied >> 24)

		c.port.Queue(pkt)

		c.tracker.RemoveObserver(c.observer)
		c.arm()
		return
	}
}

// Unbind detaches the client from its source tracker.
func (c *IoPortClient) Unbind() {
	c.tracker.RemoveObserver(c.observer)
}
