package object

import (
	"sync"

	"github.com/jixiang52002/magenta/status"
)

// logRingSize bounds the kernel debug log's backing ring, per spec.md
// 3's "bounded ring buffer of log records" description.
const logRingSize = 256

// logRecord is one write; spec.md does not prescribe a wire format for
// log_read, so each record is kept as the raw bytes handed to
// log_write plus a sequence number.
type logRecord struct {
	seq  uint64
	data []byte
}

// LogDispatcher is a kernel debug log: a ring buffer shared by every
// handle to this dispatcher, readable in sequence order. There is
// no evanphx-columbia analog; built directly from spec.md 3 and the
// evanphx-columbia/log package's hclog-backed style, just applied to
// an in-kernel ring instead of an external sink.
type LogDispatcher struct {
	base

	mu      sync.Mutex
	records [logRingSize]logRecord
	head    int
	count   int
	nextSeq uint64
	readSeq uint64
}

// CreateLog returns a new debug-log dispatcher backed by a fresh ring.
// The kernel keeps no shared instance: each log_create call gets its
// own log.
func CreateLog() *LogDispatcher {
	l := &LogDispatcher{}
	l.base = newBase(TypeLog, NewStateTracker(SignalNone, SignalReadable, SignalNone))
	return l
}

func (l *LogDispatcher) OnClose() {}

// Write appends data as one record, evicting the oldest record once
// the ring is full.
func (l *LogDispatcher) Write(data []byte) status.Status {
	cp := make([]byte, len(data))
	copy(cp, data)

	l.mu.Lock()
	idx := (l.head + l.count) % logRingSize
	if l.count == logRingSize {
		l.head = (l.head + 1) % logRingSize
	} else {
		l.count++
	}
	l.records[idx] = logRecord{seq: l.nextSeq, data: cp}
	l.nextSeq++
	l.mu.Unlock()

	l.StateTracker().UpdateSatisfied(0, SignalReadable)
	return status.OK
}

// Read returns the oldest record this dispatcher hasn't yet consumed,
// or SHOULD_WAIT if none are available. The read cursor lives on the
// dispatcher, not the caller, matching log_dispatcher.cpp's
// dlog_reader_ field: a fresh log_create mints a fresh reader, but two
// handles sharing one dispatcher (e.g. via duplicate) share its
// cursor too.
func (l *LogDispatcher) Read() ([]byte, status.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < l.count; i++ {
		idx := (l.head + i) % logRingSize
		rec := l.records[idx]
		if rec.seq >= l.readSeq {
			l.readSeq = rec.seq + 1
			if i == l.count-1 {
				l.clearReadableLocked()
			}
			return rec.data, status.OK
		}
	}

	l.clearReadableLocked()
	return nil, status.ErrShouldWait
}

func (l *LogDispatcher) clearReadableLocked() {
	l.StateTracker().UpdateSatisfied(SignalReadable, 0)
}
