package object

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Info is the diagnostic record object_get_info(OBJECT_DIRECTORY)
// returns for one live dispatcher: just enough to list and identify
// it without handing out a handle.
type Info struct {
	Koid uint64
	Type Type
	Name string
}

const directoryCacheSize = 4096

// Directory is the kernel-wide koid -> Info cache backing
// object_get_info's OBJECT_DIRECTORY and PROCESS_THREADS topics, per
// this repo's supplemented introspection support. It is an ARC cache
// (github.com/hashicorp/golang-lru, the package evanphx-columbia's
// fs.MountNamespace leans on for its dirent cache) rather than an
// unbounded map: a long-lived kernel accumulates koids faster than any
// single snapshot needs to enumerate, so eviction keeps the directory
// itself from becoming the next leak.
type Directory struct {
	mu    sync.Mutex
	cache *lru.ARCCache
}

// NewDirectory builds an empty directory.
func NewDirectory() *Directory {
	cache, err := lru.NewARC(directoryCacheSize)
	if err != nil {
		panic(err)
	}
	return &Directory{cache: cache}
}

// Register records d's diagnostic info, called once a dispatcher is
// created and reachable from some handle table.
func (dir *Directory) Register(d Dispatcher, name string) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	dir.cache.Add(d.Koid(), Info{Koid: d.Koid(), Type: d.Type(), Name: name})
}

// Unregister drops d's entry; called by whoever registered it once the
// object is gone (kernel.Kernel.ReapProcess for processes, a thread's
// on-exit hook for threads) so a destroyed object doesn't linger in directory listings (the ARC eviction policy
// bounds memory but not correctness -- a live koid must not appear
// stale).
func (dir *Directory) Unregister(koid uint64) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	dir.cache.Remove(koid)
}

// Lookup returns the Info for koid, if still present.
func (dir *Directory) Lookup(koid uint64) (Info, bool) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	v, ok := dir.cache.Get(koid)
	if !ok {
		return Info{}, false
	}
	return v.(Info), true
}

// Snapshot returns every entry currently cached, in no particular
// order; object_get_info(OBJECT_DIRECTORY) callers are expected to
// sort or filter client-side.
func (dir *Directory) Snapshot() []Info {
	dir.mu.Lock()
	defer dir.mu.Unlock()

	keys := dir.cache.Keys()
	out := make([]Info, 0, len(keys))
	for _, k := range keys {
		if v, ok := dir.cache.Peek(k); ok {
			out = append(out, v.(Info))
		}
	}
	return out
}
