package object

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/jixiang52002/magenta/pkg/ilist"
)

// Handle is a per-process capability: a shared reference to a
// dispatcher plus a rights mask, exclusively owned by exactly one
// ProcessHandleTable at a time (or in flight inside a message packet,
// in which case ProcessID is 0 and it sits in no table — spec.md 3's
// MessagePipe invariant).
//
// This generalizes evanphx-columbia/kernel.Process's fds []*File slot
// table: there each slot held a ref-counted *File indexed by a plain
// int fd; here each slot holds a Handle indexed by an arena slot whose
// user-visible value is obfuscated per spec.md 4.3.
type Handle struct {
	ilist.Entry

	dispatcher Dispatcher
	rights     Rights
	processID  uint64

	index uint32
}

func (h *Handle) LinkEntry() *ilist.Entry { return &h.Entry }

func (h *Handle) Dispatcher() Dispatcher { return h.dispatcher }
func (h *Handle) Rights() Rights         { return h.rights }
func (h *Handle) ProcessID() uint64      { return h.processID }
func (h *Handle) Index() uint32          { return h.index }

// encodeValue implements spec.md 4.3's map_handle_to_value:
// ((index << 2) | 1) ^ secret. secret's bottom two bits are always
// zero (see newSecret), so the low bit stays set and the second-lowest
// bit stays clear regardless of the XOR — those are the "two reserved
// bits checked on lookup".
func encodeValue(index uint32, secret uint32) uint32 {
	return ((index << 2) | 1) ^ secret
}

// decodeValue is the inverse: XOR then right-shift by 2. It does not
// itself validate the reserved bits; callers check those before
// trusting the result (see ProcessHandleTable.decodeLocked).
func decodeValue(value uint32, secret uint32) uint32 {
	return (value ^ secret) >> 2
}

// newSecret draws a per-process secret from the CPRNG with the top bit
// forced to zero (non-negative handle values, spec.md 4.3) and the
// bottom two bits forced to zero, so the reserved low-bit pattern
// survives the XOR unchanged and can be checked on lookup without
// needing the secret first -- matching
// original_source/kernel/lib/magenta/process_dispatcher.cpp's
// ProcessDispatcher constructor exactly ("Generate handle XOR mask
// with top bit and bottom two bits cleared"; there it's
// `(secret << 2) & INT_MAX`, a shift instead of a mask, same result).
// crypto/rand is used directly: no ecosystem CPRNG wrapper appears
// anywhere in the retrieval pack, and a kernel's own entropy source is
// exactly the narrow boundary case the standard library is for.
func newSecret() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail in
		// practice; treat a failure as a fatal misconfiguration of
		// the host rather than something a caller can recover from.
		panic("object: crypto/rand unavailable: " + err.Error())
	}
	secret := binary.LittleEndian.Uint32(buf[:])
	secret &^= 0x80000000
	secret &^= 0x3
	return secret
}
