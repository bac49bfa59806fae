package kernel

import (
	"context"
	"sync"

	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/object"
)

// ProcessManager assigns pids and answers pid/koid lookups for every
// live process, and lets a caller block waiting for the next process
// to reach DEAD. Grounded directly on
// evanphx-columbia/kernel.ProcessManager's AssignPid (reuse the lowest
// free slot below the high-water mark before growing it) fused with
// kernel.ProcessGroup's ReapAny (register a channel, loop rescanning,
// block between scans) for the reap-by-koid half, since reaping here
// is koid-keyed rather than following evanphx-columbia's parent/child
// pgrp model.
type ProcessManager struct {
	mu        sync.RWMutex
	highWater int
	byPid     map[int]*object.ProcessDispatcher
	byKoid    map[uint64]*object.ProcessDispatcher

	changed chan struct{}
}

// NewProcessManager returns an empty manager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		byPid:   make(map[int]*object.ProcessDispatcher),
		byKoid:  make(map[uint64]*object.ProcessDispatcher),
		changed: make(chan struct{}, 1),
	}
}

// Add assigns p a pid, indexes it by pid and koid, and arranges for
// its DEAD transition to wake ReapDead.
func (m *ProcessManager) Add(p *object.ProcessDispatcher) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pid := m.assignPidLocked()
	m.byPid[pid] = p
	m.byKoid[p.Koid()] = p

	p.SetOnDead(func() {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	})

	return pid
}

func (m *ProcessManager) assignPidLocked() int {
	for i := 1; i <= m.highWater; i++ {
		if _, ok := m.byPid[i]; !ok {
			return i
		}
	}
	m.highWater++
	return m.highWater
}

// Remove drops a dead process from the tables once its caller has
// reaped it.
func (m *ProcessManager) Remove(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byPid[pid]
	if !ok {
		return
	}
	delete(m.byPid, pid)
	delete(m.byKoid, p.Koid())
}

// RemoveByKoid is Remove keyed by koid instead of pid, used by
// Kernel.ReapProcess once it already has the dead *ProcessDispatcher
// in hand rather than its pid.
func (m *ProcessManager) RemoveByKoid(koid uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byKoid[koid]
	if !ok {
		return
	}
	delete(m.byKoid, koid)
	for pid, candidate := range m.byPid {
		if candidate == p {
			delete(m.byPid, pid)
			break
		}
	}
}

// Lookup returns the process registered under pid.
func (m *ProcessManager) Lookup(pid int) (*object.ProcessDispatcher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byPid[pid]
	return p, ok
}

// LookupKoid returns the process whose koid matches.
func (m *ProcessManager) LookupKoid(koid uint64) (*object.ProcessDispatcher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byKoid[koid]
	return p, ok
}

// ReapDead blocks (if block is true) until some managed process is
// DEAD, then returns it without removing it from the tables -- the
// caller is expected to read its exit code and then call Remove.
func (m *ProcessManager) ReapDead(ctx context.Context, block bool) (*object.ProcessDispatcher, error) {
	if !block {
		return m.scanDead(), nil
	}

	for {
		if p := m.scanDead(); p != nil {
			return p, nil
		}

		log.L.Trace("process-manager-waiting-reap")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.changed:
		}
	}
}

func (m *ProcessManager) scanDead() *object.ProcessDispatcher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.byPid {
		if p.State() == object.ProcessDead {
			return p
		}
	}
	return nil
}
