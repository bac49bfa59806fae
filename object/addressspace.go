package object

import (
	"sync"

	"github.com/pkg/errors"
)

// MapProt is the protection requested by Map/Protect. Spec.md 4.5:
// "protect supports READ, READ|WRITE, READ|EXECUTE combinations.
// Write-only is rejected."
type MapProt uint32

const (
	ProtRead    MapProt = 1 << 0
	ProtWrite   MapProt = 1 << 1
	ProtExecute MapProt = 1 << 2
)

func (p MapProt) valid() bool {
	if p&ProtWrite != 0 && p&ProtRead == 0 {
		return false // write-only is rejected
	}
	return true
}

// region is one mapping of a VMO's backing bytes into the address
// space, at [Start, Start+Size). Grounded on
// evanphx-columbia/memory.Region: there a Region held a WASM-guest
// linear-memory window with a lazily grown []byte; here it holds a
// window directly backed by a VmObjectDispatcher's storage, the
// mapping a process's AddressSpace.Map call describes.
type region struct {
	start, size uint64
	prot        MapProt
	vmo         *VmObjectDispatcher
	vmoOffset   uint64
}

func (r *region) contains(addr uint64) bool {
	return addr >= r.start && addr < r.start+r.size
}

// AddressSpace is one process's set of VMO mappings, per spec.md 4.5's
// map/unmap/protect trio. Grounded on
// evanphx-columbia/memory.VirtualMemory (region list + linear Project
// helper), adapted from WASM's int32 guest addresses and growable
// linear memory to a VMO-backed mapping table.
type AddressSpace struct {
	mu      sync.Mutex
	regions []*region
	next    uint64
}

var ErrNoRegion = errors.New("address not mapped")
var ErrOverlap = errors.New("requested mapping overlaps an existing region")

// NewAddressSpace builds an empty address space. base is the first
// address handed out when Map is asked to pick one (addr == ^uint64(0)).
func NewAddressSpace(base uint64) *AddressSpace {
	return &AddressSpace{next: base}
}

func (a *AddressSpace) findLocked(addr uint64) (*region, bool) {
	for _, r := range a.regions {
		if r.contains(addr) {
			return r, true
		}
	}
	return nil, false
}

func (a *AddressSpace) overlapsLocked(start, size uint64) bool {
	end := start + size
	for _, r := range a.regions {
		if start < r.start+r.size && end > r.start {
			return true
		}
	}
	return false
}

// AutoAddr is the sentinel a caller passes to Map when it doesn't name
// an explicit address, meaning "kernel picks".
const AutoAddr = ^uint64(0)

// Map binds [offset, offset+len) of vmo's backing storage into the
// address space with the given protection, at addr if addr != AutoAddr
// (and the region there is free), or at a kernel-chosen address
// otherwise. Returns the address actually used.
func (a *AddressSpace) Map(vmo *VmObjectDispatcher, prot MapProt, offset, length, addr uint64) (uint64, error) {
	if !prot.valid() {
		return 0, errors.New("write-only mapping rejected")
	}

	if offset+length > vmo.Size() {
		return 0, errors.Wrapf(ErrNoRegion, "map range [%d,%d) exceeds vmo size %d", offset, offset+length, vmo.Size())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if addr == AutoAddr {
		addr = a.next
		a.next += pageRound(length)
	} else if a.overlapsLocked(addr, length) {
		return 0, errors.Wrapf(ErrOverlap, "addr=%x len=%d", addr, length)
	}

	r := &region{start: addr, size: length, prot: prot, vmo: vmo, vmoOffset: offset}
	a.regions = append(a.regions, r)
	vmo.AddRef()

	return addr, nil
}

// Unmap removes the mapping covering [addr, addr+length). It requires
// an exact match against a previously returned region, mirroring
// evanphx-columbia's region-granular (not partial-unmap) model.
func (a *AddressSpace) Unmap(addr, length uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.regions {
		if r.start == addr && r.size == length {
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
			releaseVmo(r.vmo)
			return nil
		}
	}

	return errors.Wrapf(ErrNoRegion, "unmap addr=%x len=%d", addr, length)
}

// Protect changes the protection of the region covering [addr,
// addr+length).
func (a *AddressSpace) Protect(addr, length uint64, prot MapProt) error {
	if !prot.valid() {
		return errors.New("write-only protection rejected")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if r.start == addr && r.size == length {
			r.prot = prot
			return nil
		}
	}

	return errors.Wrapf(ErrNoRegion, "protect addr=%x len=%d", addr, length)
}

// Project returns the live byte slice backing [addr, addr+size) if it
// falls entirely within one mapped, readable region, for use by
// syscall-layer user-pointer copies.
func (a *AddressSpace) Project(addr, size uint64) ([]byte, error) {
	a.mu.Lock()
	r, ok := a.findLocked(addr)
	readable := ok && r.prot&ProtRead != 0
	a.mu.Unlock()

	if !readable || addr+size > r.start+r.size {
		return nil, errors.Wrapf(ErrNoRegion, "project addr=%x size=%d", addr, size)
	}

	return r.vmo.project(r.vmoOffset+(addr-r.start), size)
}

// Destroy unmaps every region, releasing each VMO's reference. Called
// once from ProcessDispatcher's DYING->DEAD transition.
func (a *AddressSpace) Destroy() {
	a.mu.Lock()
	regions := a.regions
	a.regions = nil
	a.mu.Unlock()

	for _, r := range regions {
		releaseVmo(r.vmo)
	}
}

func releaseVmo(vmo *VmObjectDispatcher) {
	if vmo.Release() {
		vmo.OnClose()
	}
}

const pageSize = 4096

func pageRound(sz uint64) uint64 {
	if sz == 0 {
		return pageSize
	}
	rem := sz % pageSize
	if rem == 0 {
		return sz
	}
	return sz + (pageSize - rem)
}
