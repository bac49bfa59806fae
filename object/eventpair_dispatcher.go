package object

// EventPairDispatcher is an Event with a peer, one of spec.md 3's
// "paired" dispatcher kinds. Each side has its own state tracker whose
// SIGNALED and user bits are set through that side's own handle; the
// peer's bits cannot be set from this side. Closing one side raises
// PEER_CLOSED on the other and makes its SIGNALED and user bits
// unsatisfiable.
type EventPairDispatcher struct {
	base
	peer *EventPairDispatcher
}

// CreateEventPair returns two linked event-pair dispatchers.
func CreateEventPair() (*EventPairDispatcher, *EventPairDispatcher) {
	a := &EventPairDispatcher{}
	b := &EventPairDispatcher{}

	a.base = newBase(TypeEventPair, NewStateTracker(SignalNone, SignalSignaled|SignalPeerClosed|UserSignalMask, SignalSignaled|UserSignalMask))
	b.base = newBase(TypeEventPair, NewStateTracker(SignalNone, SignalSignaled|SignalPeerClosed|UserSignalMask, SignalSignaled|UserSignalMask))

	a.peer = b
	b.peer = a

	return a, b
}

func (e *EventPairDispatcher) OnClose() {
	if e.peer == nil {
		return
	}
	peer := e.peer
	e.peer = nil
	peer.peer = nil
	peer.StateTracker().UpdateSatisfied(0, SignalPeerClosed)
	peer.StateTracker().UpdateSatisfiable(SignalSignaled|UserSignalMask, 0)
}
