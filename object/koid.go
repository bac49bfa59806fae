package object

import "sync/atomic"

// koid allocation is a single global monotonic counter shared by every
// dispatcher type: ids are never reused and never zero (spec.md
// glossary "Koid"). Starting at 1 keeps 0 reserved as "no object".
var nextKoid uint64 = 0

// NewKoid returns the next globally unique kernel-object id.
func NewKoid() uint64 {
	return atomic.AddUint64(&nextKoid, 1)
}
