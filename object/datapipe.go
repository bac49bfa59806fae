package object

import (
	"sync"

	"github.com/jixiang52002/magenta/status"
)

// DataPipe is the fixed-capacity element ring spec.md 3 and 4.8
// describe: a unidirectional byte (or fixed-size-element) stream with
// a producer and a consumer side, two-phase direct-mapped I/O, and
// read/write thresholds exposed as signals.
//
// Grounded on evanphx-columbia/memory.Region's contiguous []byte with
// a Project window (the two-phase path reuses that shape: a
// contiguous slice of the ring handed to the caller, advanced once
// the caller reports how much it consumed) and on
// other_examples/bloomberg-chromium.bb__handle.go's
// ConsumerHandle/ProducerHandle split for the dispatcher shape.
type DataPipe struct {
	mu sync.Mutex

	elemSize int
	capacity int // in elements

	buf                 []byte
	readPos, writePos   int // in elements
	count               int // in elements, always < capacity+1

	producerAlive bool
	consumerAlive bool

	writeThreshold int // in elements; WRITABLE satisfied while free >= this
	readThreshold  int // in elements; READABLE satisfied while available >= this

	writeMapped bool
	readMapped  bool

	producerTracker *StateTracker
	consumerTracker *StateTracker
}

func newDataPipe(elemSize, capacity int) *DataPipe {
	dp := &DataPipe{
		elemSize:       elemSize,
		capacity:       capacity,
		buf:            make([]byte, capacity*elemSize),
		producerAlive:  true,
		consumerAlive:  true,
		writeThreshold: 1,
		readThreshold:  1,
	}
	dp.producerTracker = NewStateTracker(SignalWritable, SignalWritable|SignalPeerClosed, 0)
	dp.consumerTracker = NewStateTracker(SignalNone, SignalReadable|SignalPeerClosed, 0)
	return dp
}

func (dp *DataPipe) free() int     { return dp.capacity - dp.count }
func (dp *DataPipe) available() int { return dp.count }

// signalDeltas computes, from the current count/free and alive flags,
// which bits to clear and set on each tracker. Called with dp.mu held;
// it touches no tracker itself. applySignals applies the deltas only
// after releasing dp.mu, respecting spec.md 5's "no operation holds two
// state-tracker locks simultaneously" by never nesting here.
func (dp *DataPipe) signalDeltas() (prodClear, prodSet, consClear, consSet Signals) {
	if dp.producerAlive && dp.free() >= dp.writeThreshold {
		prodSet |= SignalWritable
	} else {
		prodClear |= SignalWritable
	}

	if dp.available() >= dp.readThreshold {
		consSet |= SignalReadable
	} else {
		consClear |= SignalReadable
	}

	if !dp.producerAlive {
		consSet |= SignalPeerClosed
	}
	if !dp.consumerAlive {
		prodSet |= SignalPeerClosed
	}

	return
}

func (dp *DataPipe) applySignals() {
	dp.mu.Lock()
	pc, ps, cc, cs := dp.signalDeltas()
	producerGone := !dp.producerAlive
	consumerGone := !dp.consumerAlive
	available := dp.available()
	dp.mu.Unlock()

	dp.producerTracker.UpdateSatisfied(pc, ps)
	dp.consumerTracker.UpdateSatisfied(cc, cs)

	if producerGone && available == 0 {
		// Once drained past a dead producer, READABLE can never be
		// satisfied again.
		dp.consumerTracker.UpdateSatisfiable(SignalReadable, 0)
	}
	if consumerGone {
		dp.producerTracker.UpdateSatisfiable(SignalWritable, 0)
	}
}

// Write copies up to *n bytes from buf. If allOrNone and fewer than
// *n bytes currently fit, returns SHOULD_WAIT without copying
// anything, per spec.md 4.8.
func (dp *DataPipe) Write(buf []byte, n *int, allOrNone bool) status.Status {
	dp.mu.Lock()

	if !dp.consumerAlive {
		dp.mu.Unlock()
		return status.ErrChannelClosed
	}
	if dp.writeMapped {
		dp.mu.Unlock()
		return status.ErrBadState
	}

	want := *n
	if want > len(buf) {
		want = len(buf)
	}
	freeElems := dp.free()

	if allOrNone && want > freeElems*dp.elemSize {
		dp.mu.Unlock()
		return status.ErrShouldWait
	}

	take := want
	if take > freeElems*dp.elemSize {
		take = freeElems * dp.elemSize
	}

	written := 0
	for written < take {
		chunk := take - written
		tailElems := dp.capacity - dp.writePos
		tailBytes := tailElems * dp.elemSize
		if chunk > tailBytes {
			chunk = tailBytes
		}
		start := dp.writePos * dp.elemSize
		copy(dp.buf[start:start+chunk], buf[written:written+chunk])
		dp.writePos = (dp.writePos + chunk/dp.elemSize) % dp.capacity
		written += chunk
	}
	dp.count += written / dp.elemSize

	dp.mu.Unlock()

	*n = written
	dp.applySignals()

	if written == 0 && take == 0 && want > 0 {
		return status.ErrShouldWait
	}
	return status.OK
}

// Read copies up to *n bytes into buf (or, if discard, consumes
// without copying; if peek, copies without consuming). Symmetric with
// Write per spec.md 4.8. There is no query-only mode: a zero-length
// buf without discard copies and consumes nothing and sets *n to 0
// (SHOULD_WAIT or CHANNEL_CLOSED if the ring is empty); the available
// byte count is not reported.
func (dp *DataPipe) Read(buf []byte, n *int, allOrNone, discard, peek bool) status.Status {
	dp.mu.Lock()

	if dp.readMapped {
		dp.mu.Unlock()
		return status.ErrBadState
	}

	availElems := dp.available()
	availBytes := availElems * dp.elemSize

	if availBytes == 0 {
		dp.mu.Unlock()
		if !dp.producerAlive {
			*n = 0
			return status.ErrChannelClosed
		}
		return status.ErrShouldWait
	}

	want := *n
	if !discard && want > len(buf) {
		want = len(buf)
	}
	if allOrNone && want > availBytes {
		dp.mu.Unlock()
		return status.ErrShouldWait
	}

	take := want
	if take > availBytes {
		take = availBytes
	}

	readPos := dp.readPos
	read := 0
	for read < take {
		chunk := take - read
		tailElems := dp.capacity - readPos
		tailBytes := tailElems * dp.elemSize
		if chunk > tailBytes {
			chunk = tailBytes
		}
		start := readPos * dp.elemSize
		if !discard {
			copy(buf[read:read+chunk], dp.buf[start:start+chunk])
		}
		readPos = (readPos + chunk/dp.elemSize) % dp.capacity
		read += chunk
	}

	if !peek {
		dp.readPos = readPos
		dp.count -= read / dp.elemSize
	}

	dp.mu.Unlock()

	*n = read
	if !peek {
		dp.applySignals()
	}
	return status.OK
}

// BeginWrite maps a contiguous writable subrange of the ring (up to
// the tail of the buffer, to keep the mapping contiguous) for direct
// producer access.
func (dp *DataPipe) BeginWrite() ([]byte, status.Status) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if !dp.consumerAlive {
		return nil, status.ErrChannelClosed
	}
	if dp.writeMapped {
		return nil, status.ErrBadState
	}

	freeElems := dp.free()
	if freeElems == 0 {
		return nil, status.ErrShouldWait
	}

	tailElems := dp.capacity - dp.writePos
	if tailElems > freeElems {
		tailElems = freeElems
	}

	dp.writeMapped = true
	start := dp.writePos * dp.elemSize
	return dp.buf[start : start+tailElems*dp.elemSize], status.OK
}

// EndWrite advances the write cursor by consumed bytes and releases
// the mapping. EndWrite(0) releases without advancing, per spec.md
// 4.8.
func (dp *DataPipe) EndWrite(consumed int) status.Status {
	dp.mu.Lock()
	if !dp.writeMapped {
		dp.mu.Unlock()
		return status.ErrBadState
	}
	dp.writeMapped = false

	if consumed > 0 {
		dp.writePos = (dp.writePos + consumed/dp.elemSize) % dp.capacity
		dp.count += consumed / dp.elemSize
	}
	dp.mu.Unlock()

	dp.applySignals()
	return status.OK
}

// BeginRead is the consumer-side symmetric two-phase mapping.
func (dp *DataPipe) BeginRead() ([]byte, status.Status) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.readMapped {
		return nil, status.ErrBadState
	}

	availElems := dp.available()
	if availElems == 0 {
		if !dp.producerAlive {
			return nil, status.ErrChannelClosed
		}
		return nil, status.ErrShouldWait
	}

	tailElems := dp.capacity - dp.readPos
	if tailElems > availElems {
		tailElems = availElems
	}

	dp.readMapped = true
	start := dp.readPos * dp.elemSize
	return dp.buf[start : start+tailElems*dp.elemSize], status.OK
}

func (dp *DataPipe) EndRead(consumed int) status.Status {
	dp.mu.Lock()
	if !dp.readMapped {
		dp.mu.Unlock()
		return status.ErrBadState
	}
	dp.readMapped = false

	if consumed > 0 {
		dp.readPos = (dp.readPos + consumed/dp.elemSize) % dp.capacity
		dp.count -= consumed / dp.elemSize
	}
	dp.mu.Unlock()

	dp.applySignals()
	return status.OK
}

func (dp *DataPipe) closeProducer() {
	dp.mu.Lock()
	dp.producerAlive = false
	dp.mu.Unlock()
	dp.applySignals()
}

func (dp *DataPipe) closeConsumer() {
	dp.mu.Lock()
	dp.consumerAlive = false
	dp.mu.Unlock()
	dp.applySignals()
}
