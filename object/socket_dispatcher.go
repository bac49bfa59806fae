package object

import "github.com/jixiang52002/magenta/status"

// socketBufferSize and socketOOBSize are the fixed ring capacities
// backing every socket; spec.md does not name a socket_create size
// parameter the way datapipe_create does, so these are fixed.
const (
	socketBufferSize    = 64 * 1024
	socketOOBBufferSize = 4 * 1024
)

// SocketDispatcher is a bidirectional byte stream with an optional
// out-of-band channel, per spec.md 3. It is built from two DataPipe
// rings per direction (one for the main stream, one for OOB) rather
// than a new primitive: a socket end's "write" is the other end's
// "read", exactly like DataPipe's producer/consumer split, just
// instantiated twice (main + OOB) and exposed through one dispatcher
// per side instead of two.
type SocketDispatcher struct {
	base

	// out is this end's write path (its DataPipe producer side); in
	// is this end's read path (the peer's corresponding producer,
	// i.e. this end's consumer side).
	out    *DataPipe
	in     *DataPipe
	outOOB *DataPipe
	inOOB  *DataPipe
}

// CreateSocket returns the two ends of a bidirectional socket.
func CreateSocket() (*SocketDispatcher, *SocketDispatcher) {
	ab := newDataPipe(1, socketBufferSize)
	ba := newDataPipe(1, socketBufferSize)
	abOOB := newDataPipe(1, socketOOBBufferSize)
	baOOB := newDataPipe(1, socketOOBBufferSize)

	a := &SocketDispatcher{out: ab, in: ba, outOOB: abOOB, inOOB: baOOB}
	b := &SocketDispatcher{out: ba, in: ab, outOOB: baOOB, inOOB: abOOB}

	// Each end's signals are those of its main inbound pipe's
	// consumer side: READABLE tracks main-stream data only (pending
	// OOB data does not raise it), and WRITABLE is not reported.
	a.base = newBase(TypeSocket, a.in.consumerTracker)
	b.base = newBase(TypeSocket, b.in.consumerTracker)

	return a, b
}

func (s *SocketDispatcher) OnClose() {
	s.out.closeProducer()
	s.outOOB.closeProducer()
	s.in.closeConsumer()
	s.inOOB.closeConsumer()
}

// Write sends len(buf) bytes (or, if oob, to the out-of-band channel).
func (s *SocketDispatcher) Write(buf []byte, oob bool) (int, status.Status) {
	n := len(buf)
	pipe := s.out
	if oob {
		pipe = s.outOOB
	}
	st := pipe.Write(buf, &n, false)
	return n, st
}

// Read receives into buf (or, if oob, from the out-of-band channel).
func (s *SocketDispatcher) Read(buf []byte, oob bool) (int, status.Status) {
	n := len(buf)
	pipe := s.in
	if oob {
		pipe = s.inOOB
	}
	st := pipe.Read(buf, &n, false, false, false)
	return n, st
}
