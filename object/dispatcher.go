package object

import (
	"sync"
	"sync/atomic"
)

// Type tags every dispatcher kind spec.md section 3 names. Polymorphism
// over kinds follows spec.md 9's "tagged enumeration... plus a
// trait-style capability set" design note rather than interface
// inheritance: callers switch on Type() once at an entry point and
// then use the concrete dispatcher's typed methods.
type Type int

const (
	TypeProcess Type = iota
	TypeThread
	TypeVmObject
	TypeMessagePipe
	TypeEvent
	TypeEventPair
	TypeIoPort
	TypeDataPipeProducer
	TypeDataPipeConsumer
	TypeInterrupt
	TypeIoMapping
	TypePciDevice
	TypePciInterrupt
	TypeLog
	TypeWaitSet
	TypeSocket
	TypeResource
)

func (t Type) String() string {
	switch t {
	case TypeProcess:
		return "process"
	case TypeThread:
		return "thread"
	case TypeVmObject:
		return "vm-object"
	case TypeMessagePipe:
		return "message-pipe"
	case TypeEvent:
		return "event"
	case TypeEventPair:
		return "event-pair"
	case TypeIoPort:
		return "io-port"
	case TypeDataPipeProducer:
		return "data-pipe-producer"
	case TypeDataPipeConsumer:
		return "data-pipe-consumer"
	case TypeInterrupt:
		return "interrupt"
	case TypeIoMapping:
		return "io-mapping"
	case TypePciDevice:
		return "pci-device"
	case TypePciInterrupt:
		return "pci-interrupt"
	case TypeLog:
		return "log"
	case TypeWaitSet:
		return "wait-set"
	case TypeSocket:
		return "socket"
	case TypeResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Dispatcher is the common shape of every polymorphic kernel object
// spec.md section 3 describes: a frozen koid, a frozen type tag, an
// optional state tracker, and a single on-closed hook run exactly once
// when the last shared reference is released (spec.md 9's resolution
// of the IOMAP special case: every dispatcher gets the same hook, no
// type is special-cased).
type Dispatcher interface {
	Koid() uint64
	Type() Type
	StateTracker() *StateTracker
	OnClose()

	// AddRef/Release implement the shared-ownership contract: every
	// handle to a dispatcher holds one reference. Release reports
	// whether this was the last reference; HandleArena.DeleteHandle
	// calls OnClose only then, per spec.md 3's "destruction runs the
	// type-specific closed hook before releasing shared resources".
	AddRef()
	Release() bool

	// BindPortClient attaches (or replaces) the I/O-port client bound
	// to this dispatcher.
	BindPortClient(c *IoPortClient)
}

// base is embedded by every concrete dispatcher. It is not itself a
// complete Dispatcher (OnClose is left to the embedder) but supplies
// the frozen koid/type/tracker fields, the shared-ownership refcount,
// and the optional bound I/O-port client spec.md section 3 lists as a
// dispatcher attribute.
type base struct {
	koid    uint64
	typ     Type
	tracker *StateTracker

	refs int32

	mu         sync.Mutex
	portClient *IoPortClient
	properties map[uint32][]byte
}

func newBase(typ Type, tracker *StateTracker) base {
	return base{koid: NewKoid(), typ: typ, tracker: tracker, refs: 1}
}

func (b *base) Koid() uint64                { return b.koid }
func (b *base) Type() Type                  { return b.typ }
func (b *base) StateTracker() *StateTracker { return b.tracker }

func (b *base) AddRef() {
	atomic.AddInt32(&b.refs, 1)
}

func (b *base) Release() bool {
	return atomic.AddInt32(&b.refs, -1) == 0
}

// BindPortClient attaches (or replaces) the I/O-port client bound to
// this dispatcher. Binding is exclusive: a second Bind implicitly
// drops the first.
func (b *base) BindPortClient(c *IoPortClient) {
	b.mu.Lock()
	old := b.portClient
	b.portClient = c
	b.mu.Unlock()

	if old != nil && old != c {
		old.Unbind()
	}
}

func (b *base) PortClient() *IoPortClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portClient
}

// SetProperty and GetProperty back object_get_property/set_property
// (spec.md 6) for every dispatcher uniformly, per spec.md 9's same
// "no type is special-cased" resolution already applied to OnClose:
// rather than letting each concrete type define its own ad hoc
// name/property fields, every dispatcher gets one small property
// store keyed by the property id the syscall layer passes through.
func (b *base) SetProperty(id uint32, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.properties == nil {
		b.properties = make(map[uint32][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.properties[id] = cp
}

func (b *base) GetProperty(id uint32) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.properties[id]
	return v, ok
}
