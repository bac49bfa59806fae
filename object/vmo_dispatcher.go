package object

import (
	"sync"

	"github.com/pkg/errors"
)

// VmObjectDispatcher is the VMO abstraction spec.md 3 and 4.5
// describe: a fixed-size backing store a process can map, read, and
// write. Grounded on evanphx-columbia/memory.VirtualMemory's
// lazily-grown linear buffer, generalized from WASM guest memory
// (int32 addresses, page size fixed at the wasm page size) to a
// standalone byte store addressed by a VMO-relative offset.
type VmObjectDispatcher struct {
	base

	mu   sync.Mutex
	data []byte
}

// NewVmObject creates a zero-filled VMO of the given size. VMOs have
// no state tracker: spec.md does not list VMO signals, and none of
// the scenarios in section 8 wait on one.
func NewVmObject(size uint64) *VmObjectDispatcher {
	return &VmObjectDispatcher{
		base: newBase(TypeVmObject, nil),
		data: make([]byte, size),
	}
}

func (v *VmObjectDispatcher) OnClose() {}

func (v *VmObjectDispatcher) Size() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return uint64(len(v.data))
}

// SetSize grows or shrinks the backing store. Shrinking below a
// currently mapped region is allowed by this type (mappings simply
// start reading short); the address-space layer is responsible for
// rejecting new maps that would exceed the new size.
func (v *VmObjectDispatcher) SetSize(size uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if uint64(len(v.data)) == size {
		return
	}
	n := make([]byte, size)
	copy(n, v.data)
	v.data = n
}

var ErrVmoRange = errors.New("vmo range out of bounds")

// Read copies len(buf) bytes starting at offset into buf.
func (v *VmObjectDispatcher) Read(buf []byte, offset uint64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if offset > uint64(len(v.data)) {
		return 0, errors.Wrapf(ErrVmoRange, "read offset=%d size=%d", offset, len(v.data))
	}

	n := copy(buf, v.data[offset:])
	return n, nil
}

// Write copies buf into the backing store starting at offset.
func (v *VmObjectDispatcher) Write(buf []byte, offset uint64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if offset+uint64(len(buf)) > uint64(len(v.data)) {
		return 0, errors.Wrapf(ErrVmoRange, "write offset=%d len=%d size=%d", offset, len(buf), len(v.data))
	}

	n := copy(v.data[offset:], buf)
	return n, nil
}

// VmoOp is the operation requested by vmo_op_range.
type VmoOp int

const (
	VmoOpCommit VmoOp = iota
	VmoOpDecommit
	VmoOpCache
)

// OpRange performs a range operation; commit/decommit are no-ops over
// a Go slice (there's no lazily-backed page set to fault in), but
// range validation still applies so callers get the same error
// surface a real lazily-populated VMO would give.
func (v *VmObjectDispatcher) OpRange(op VmoOp, offset, size uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if offset+size > uint64(len(v.data)) {
		return errors.Wrapf(ErrVmoRange, "op_range offset=%d size=%d vmo_size=%d", offset, size, len(v.data))
	}
	return nil
}

// project returns the live slice for [offset, offset+size), used by
// AddressSpace.Project for a mapped region.
func (v *VmObjectDispatcher) project(offset, size uint64) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if offset+size > uint64(len(v.data)) {
		return nil, errors.Wrapf(ErrVmoRange, "project offset=%d size=%d vmo_size=%d", offset, size, len(v.data))
	}

	return v.data[offset : offset+size], nil
}
