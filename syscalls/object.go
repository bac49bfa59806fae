package syscalls

import (
	"context"
	"encoding/binary"

	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

// propertyHolder is the subset of object.base's promoted methods
// every concrete dispatcher carries; asserted against rather than
// added to object.Dispatcher itself so that interface stays the
// minimal shape spec.md 3 describes.
type propertyHolder interface {
	SetProperty(id uint32, data []byte)
	GetProperty(id uint32) ([]byte, bool)
}

// object_get_info topics. HandleBasic is the only one spec.md section
// 6 names; ObjectDirectory and ProcessThreads are the introspection
// topics this repo supplements from the retrieved gVisor task
// bookkeeping and Mojo handle-state excerpts (see DESIGN.md).
const (
	topicHandleBasic     = 0
	topicObjectDirectory = 1
	topicProcessThreads  = 2
)

func sysObjectGetInfo(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	switch args.Topic {
	case topicHandleBasic:
		return objectGetInfoHandleBasic(proc, args)
	case topicObjectDirectory:
		return objectGetInfoDirectory(inv, args)
	case topicProcessThreads:
		return objectGetInfoProcessThreads(proc, args)
	default:
		return Result{Status: status.ErrNotSupported}
	}
}

// objectGetInfoHandleBasic answers HANDLE_BASIC: koid, type tag, and
// rights for the single handle named by args.Handle, the only fields
// every dispatcher kind can report regardless of concrete type.
func objectGetInfoHandleBasic(proc *object.ProcessDispatcher, args Args) Result {
	h, st := proc.Handles().Lookup(args.Handle, object.RightNone)
	if !st.Ok() {
		return Result{Status: st}
	}

	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], h.Dispatcher().Koid())
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Dispatcher().Type()))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.Rights()))

	if len(buf) > args.Size {
		return Result{Status: status.ErrBufferTooSmall}
	}
	return Result{Status: status.OK, Data: buf}
}

// objectGetInfoDirectory answers OBJECT_DIRECTORY: every entry
// currently cached in the kernel-wide koid directory, each encoded as
// koid(8) + type(4) + name-length(2) + name. The directory is
// process-independent, so args.Handle goes unused for this topic.
func objectGetInfoDirectory(inv *Invoker, args Args) Result {
	entries := inv.Kernel.Directory.Snapshot()

	buf := make([]byte, 0, len(entries)*24)
	for _, e := range entries {
		name := e.Name
		if len(name) > 0xffff {
			name = name[:0xffff]
		}
		rec := make([]byte, 14+len(name))
		binary.LittleEndian.PutUint64(rec[0:8], e.Koid)
		binary.LittleEndian.PutUint32(rec[8:12], uint32(e.Type))
		binary.LittleEndian.PutUint16(rec[12:14], uint16(len(name)))
		copy(rec[14:], name)
		buf = append(buf, rec...)
	}

	if len(buf) > args.Size {
		return Result{Status: status.ErrBufferTooSmall}
	}
	return Result{Status: status.OK, Data: buf}
}

// objectGetInfoProcessThreads answers PROCESS_THREADS for the process
// named by args.Handle: the koid of every thread currently attached,
// encoded as a flat array of 8-byte little-endian koids.
func objectGetInfoProcessThreads(proc *object.ProcessDispatcher, args Args) Result {
	h, st := proc.Handles().Lookup(args.Handle, object.RightNone)
	if !st.Ok() {
		return Result{Status: st}
	}

	target, ok := h.Dispatcher().(*object.ProcessDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	koids := target.ThreadKoids()
	buf := make([]byte, len(koids)*8)
	for i, koid := range koids {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], koid)
	}

	if len(buf) > args.Size {
		return Result{Status: status.ErrBufferTooSmall}
	}
	return Result{Status: status.OK, Data: buf}
}

func sysObjectGetProperty(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightGetProperty)
	if !st.Ok() {
		return Result{Status: st}
	}

	ph, ok := h.Dispatcher().(propertyHolder)
	if !ok {
		return Result{Status: status.ErrNotSupported}
	}
	v, ok := ph.GetProperty(args.PropID)
	if !ok {
		return Result{Status: status.ErrNotFound}
	}
	if len(v) > args.Size {
		return Result{Status: status.ErrBufferTooSmall}
	}
	return Result{Status: status.OK, Data: v}
}

func sysObjectSetProperty(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightSetProperty)
	if !st.Ok() {
		return Result{Status: st}
	}

	ph, ok := h.Dispatcher().(propertyHolder)
	if !ok {
		return Result{Status: status.ErrNotSupported}
	}
	ph.SetProperty(args.PropID, args.Data)
	return Result{Status: status.OK}
}

// sysObjectSignal drives object_signal: any handle with WRITE right
// may toggle the dispatcher's user-settable signal bits, rejected by
// StateTracker.UserSignal itself with WRONG_TYPE if any requested bit
// falls outside that dispatcher's declared user-signal mask.
func sysObjectSignal(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}

	tracker := h.Dispatcher().StateTracker()
	if tracker == nil {
		return Result{Status: status.ErrNotSupported}
	}

	return Result{Status: tracker.UserSignal(args.ClearSignals, args.SetSignals)}
}

func init() {
	Table[SysObjectGetInfo] = sysObjectGetInfo
	Table[SysObjectGetProperty] = sysObjectGetProperty
	Table[SysObjectSetProperty] = sysObjectSetProperty
	Table[SysObjectSignal] = sysObjectSignal
}
