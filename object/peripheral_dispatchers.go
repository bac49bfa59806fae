package object

import "github.com/jixiang52002/magenta/status"

// This file holds the peripheral dispatcher kinds spec.md section 3
// names in its type-tag enumeration but does not otherwise detail:
// Interrupt, IoMapping, PciDevice, PciInterrupt, and Resource. None of them have
// an evanphx-columbia analog (it runs WASM guests over a syscall
// emulation layer with no notion of physical devices), so each is
// built minimally but completely from spec.md 3's one-line
// description of what it holds, using the same base/StateTracker
// machinery as every other dispatcher rather than inventing a
// second lifecycle convention.

// InterruptDispatcher represents a bound hardware interrupt line. Its
// SIGNALED bit fires each time the (simulated) line asserts; Ack
// clears it so the next assertion can be observed.
type InterruptDispatcher struct {
	base
	vector uint32
}

// CreateInterrupt binds a new interrupt dispatcher to vector.
func CreateInterrupt(vector uint32) *InterruptDispatcher {
	i := &InterruptDispatcher{vector: vector}
	i.base = newBase(TypeInterrupt, NewStateTracker(SignalNone, SignalSignaled, SignalNone))
	return i
}

func (i *InterruptDispatcher) OnClose() {}

func (i *InterruptDispatcher) Vector() uint32 { return i.vector }

// Assert marks the interrupt pending.
func (i *InterruptDispatcher) Assert() {
	i.StateTracker().UpdateSatisfied(0, SignalSignaled)
}

// Ack clears the pending signal after the handler has serviced it.
func (i *InterruptDispatcher) Ack() status.Status {
	i.StateTracker().UpdateSatisfied(SignalSignaled, 0)
	return status.OK
}

// IoMappingDispatcher is a handle onto a fixed-size range of
// device/physical memory, without backing storage. process_map_vm
// does not accept it: that call maps only VmObjectDispatchers.
type IoMappingDispatcher struct {
	base
	base_ uint64
	size  uint64
}

// CreateIoMapping wraps a device memory range starting at physBase.
func CreateIoMapping(physBase, size uint64) *IoMappingDispatcher {
	m := &IoMappingDispatcher{base_: physBase, size: size}
	m.base = newBase(TypeIoMapping, nil)
	return m
}

func (m *IoMappingDispatcher) OnClose() {}

func (m *IoMappingDispatcher) PhysBase() uint64 { return m.base_ }
func (m *IoMappingDispatcher) Size() uint64      { return m.size }

// PciDeviceDispatcher names one PCI function by its bus/device/function
// address triple.
type PciDeviceDispatcher struct {
	base
	bus, device, function uint8
}

// CreatePciDevice returns a dispatcher for the device at bus:device.function.
func CreatePciDevice(bus, device, function uint8) *PciDeviceDispatcher {
	d := &PciDeviceDispatcher{bus: bus, device: device, function: function}
	d.base = newBase(TypePciDevice, nil)
	return d
}

func (d *PciDeviceDispatcher) OnClose() {}

func (d *PciDeviceDispatcher) Address() (bus, device, function uint8) {
	return d.bus, d.device, d.function
}

// PciInterruptDispatcher is the interrupt line associated with a PCI
// device's MSI/MSI-X or legacy INTx vector; it behaves exactly like
// InterruptDispatcher but stays a distinct type tag so callers can
// tell PCI interrupts from board-level ones without an extra field.
type PciInterruptDispatcher struct {
	InterruptDispatcher
}

// CreatePciInterrupt binds a PCI interrupt dispatcher to vector.
func CreatePciInterrupt(vector uint32) *PciInterruptDispatcher {
	p := &PciInterruptDispatcher{}
	p.base = newBase(TypePciInterrupt, NewStateTracker(SignalNone, SignalSignaled, SignalNone))
	p.vector = vector
	return p
}

// ResourceDispatcher grants the holder permission to create the
// peripheral dispatchers above within a named range (e.g. an MMIO
// window or IRQ range), per spec.md 3's "carves out a sub-range of
// kernel-controlled resources that the holder may then bind". It
// carries no signals of its own.
type ResourceDispatcher struct {
	base
	kind  string
	low   uint64
	high  uint64
}

// CreateResource returns a resource dispatcher covering [low, high] of
// the named kind ("mmio", "irq", "ioport", ...).
func CreateResource(kind string, low, high uint64) *ResourceDispatcher {
	r := &ResourceDispatcher{kind: kind, low: low, high: high}
	r.base = newBase(TypeResource, nil)
	return r
}

func (r *ResourceDispatcher) OnClose() {}

// Contains reports whether [lo, hi] falls entirely within this
// resource's range.
func (r *ResourceDispatcher) Contains(lo, hi uint64) bool {
	return lo >= r.low && hi <= r.high
}

func (r *ResourceDispatcher) Kind() string { return r.kind }
