// Package kernel holds the one process-independent piece of global
// state a capability kernel still needs: the handle arena every
// process's handle table allocates out of, the koid directory, and
// the system-wide exception port. Everything else -- address spaces,
// futex contexts, handle tables -- belongs to a single
// object.ProcessDispatcher and is reached through it, not through
// this package.
package kernel

import (
	"context"

	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/object"
)

// Kernel is the process-independent singleton. evanphx-columbia's own
// Kernel (evanphx-columbia/kernel.Kernel) is a thin wrapper around a
// *wasm.Module plus a *ProcessManager; this keeps the same "one
// struct, a handful of shared subsystems" shape but swaps the WASM
// module reference for the handle arena and object directory this
// core actually needs.
type Kernel struct {
	Arena     *object.HandleArena
	Directory *object.Directory

	processes *ProcessManager

	exceptions *exception.Table
}

// NewKernel allocates the arena, directory, and process manager and
// returns a ready-to-use kernel singleton.
func NewKernel() *Kernel {
	return NewKernelSized(object.ArenaCapacity)
}

// NewKernelSized is NewKernel with a caller-chosen handle arena
// capacity, for cmd/magenta-core's --arena-capacity override.
func NewKernelSized(arenaCapacity int) *Kernel {
	log.L.Info("kernel-init", "arena-capacity", arenaCapacity)

	return &Kernel{
		Arena:      object.NewHandleArenaSized(arenaCapacity),
		Directory:  object.NewDirectory(),
		processes:  NewProcessManager(),
		exceptions: exception.NewTable(),
	}
}

// Processes returns the kernel's process manager (koid/pid bookkeeping
// across every live process).
func (k *Kernel) Processes() *ProcessManager {
	return k.processes
}

// Exceptions returns the kernel's exception-port escalation table.
func (k *Kernel) Exceptions() *exception.Table {
	return k.exceptions
}

// CreateProcess allocates a new ProcessDispatcher sharing this
// kernel's handle arena, registers it with both the process manager
// and the object directory, and returns it.
func (k *Kernel) CreateProcess(name string) *object.ProcessDispatcher {
	p := object.NewProcessDispatcher(k.Arena, name)
	k.processes.Add(p)
	k.Directory.Register(p, name)
	return p
}

// ReapProcess waits for (or, with block false, polls once for) a dead
// process, then retires its bookkeeping: dropped from the process
// manager's pid/koid tables and unregistered from the object
// directory, so neither lingers past the process it described.
func (k *Kernel) ReapProcess(ctx context.Context, block bool) (*object.ProcessDispatcher, error) {
	p, err := k.processes.ReapDead(ctx, block)
	if err != nil || p == nil {
		return p, err
	}

	k.processes.RemoveByKoid(p.Koid())
	k.Directory.Unregister(p.Koid())
	return p, nil
}
