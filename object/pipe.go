package object

import (
	"sync"

	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/status"
)

// MessagePacket is one queued message: a byte payload plus the
// handles in transit with it. Spec.md 3: "handles in transit have
// owning-process id 0 and appear in no handle table... destroying an
// unread packet destroys its handles."
type MessagePacket struct {
	Data    []byte
	Handles []*Handle
}

// pipeSide is the state private to one endpoint of a MessagePipe:
// its inbound queue and whether its peer is still alive. Grounded on
// evanphx-columbia/kernel.Process.CreatePipe's io.Pipe-backed File
// pair, generalized from a byte stream to a packet queue per spec.md
// 3's MessagePipe description.
type pipeSide struct {
	mu        sync.Mutex
	queue     []*MessagePacket
	peerAlive bool
	tracker   *StateTracker
}

// MessagePipe is the shared object backing two MessagePipeDispatcher
// endpoints (spec.md 3: "A shared Pipe object holds the queues and
// state for both ends; each end's dispatcher is a thin facade that
// forwards to the correct side.").
type MessagePipe struct {
	sides [2]*pipeSide
	arena *HandleArena
}

func newMessagePipe(arena *HandleArena) *MessagePipe {
	p := &MessagePipe{arena: arena}
	for i := range p.sides {
		tracker := NewStateTracker(SignalWritable, SignalReadable|SignalWritable|SignalPeerClosed, 0)
		p.sides[i] = &pipeSide{peerAlive: true, tracker: tracker}
	}
	return p
}

// other returns the index of the endpoint opposite i.
func other(i int) int { return 1 - i }

// write enqueues a packet onto the peer's (1-i) queue, on behalf of
// endpoint i.
func (p *MessagePipe) write(i int, pkt *MessagePacket) status.Status {
	peer := p.sides[other(i)]

	peer.mu.Lock()
	if !peer.peerAlive {
		peer.mu.Unlock()
		return status.ErrChannelClosed
	}
	peer.queue = append(peer.queue, pkt)
	peer.mu.Unlock()

	peer.tracker.UpdateSatisfied(0, SignalReadable)
	log.L.Trace("msgpipe-write", "len", len(pkt.Data), "handles", len(pkt.Handles))
	return status.OK
}

// beginRead reports the size of (and handle count in) the head
// message on endpoint i's queue without consuming it.
func (p *MessagePipe) beginRead(i int) (dataLen, handleCount int, st status.Status) {
	side := p.sides[i]
	side.mu.Lock()
	defer side.mu.Unlock()

	if len(side.queue) == 0 {
		return 0, 0, status.ErrBadState
	}

	head := side.queue[0]
	return len(head.Data), len(head.Handles), status.OK
}

// acceptRead atomically dequeues the head message on endpoint i's
// queue. Per spec.md 4.7 and 9: if two threads race BeginRead/AcceptRead
// against the same single message, the loser's AcceptRead sees
// BAD_STATE because by the time it runs the queue is already empty (or
// its new head is a different message than what it peeked — this
// implementation does not attempt to detect the latter case
// specially; whether that race is a bug is left undecided.
func (p *MessagePipe) acceptRead(i int) (*MessagePacket, status.Status) {
	side := p.sides[i]
	side.mu.Lock()

	if len(side.queue) == 0 {
		side.mu.Unlock()
		return nil, status.ErrBadState
	}

	pkt := side.queue[0]
	side.queue = side.queue[1:]
	empty := len(side.queue) == 0
	peerAlive := side.peerAlive
	side.mu.Unlock()

	if empty {
		if peerAlive {
			side.tracker.UpdateSatisfied(SignalReadable, 0)
		} else {
			// Peer already closed and queue just drained: READABLE
			// can never become satisfied again.
			side.tracker.UpdateSatisfiable(SignalReadable, 0)
		}
	}

	return pkt, status.OK
}

// close marks endpoint i dead: its peer sees PEER_CLOSED and loses
// WRITABLE: READABLE stays satisfiable until the peer's queue (now
// orphaned) drains, per spec.md 4.7.
func (p *MessagePipe) close(i int) {
	side := p.sides[i]
	side.mu.Lock()
	side.peerAlive = false
	unread := side.queue
	side.queue = nil
	side.mu.Unlock()

	for _, pkt := range unread {
		for _, h := range pkt.Handles {
			p.arena.DeleteHandle(h)
		}
	}

	peer := p.sides[other(i)]
	peer.mu.Lock()
	peer.peerAlive = false
	stillHasMail := len(peer.queue) > 0
	peer.mu.Unlock()

	if stillHasMail {
		peer.tracker.UpdateSatisfied(SignalWritable, SignalPeerClosed)
	} else {
		peer.tracker.UpdateSatisfied(SignalWritable, SignalPeerClosed)
		peer.tracker.UpdateSatisfiable(SignalReadable, 0)
	}
}
