package syscalls

import (
	"context"

	"github.com/jixiang52002/magenta/config"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/status"
)

func sysPortCreate(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}

	port := object.CreateIoPort(config.PortQueueCapacity)
	h, st := proc.Handles().Arena().NewHandle(port, object.RightAll)
	if !st.Ok() {
		return Result{Status: st}
	}
	v, st := proc.Handles().Add(h)
	return Result{Status: st, Handle: v}
}

func sysPortQueue(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	port, ok := h.Dispatcher().(*object.IoPortDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	var pkt object.IoPortPacket
	pkt.Key = args.Key
	pkt.Type = object.PacketTypeUser
	pkt.Len = len(args.Data)
	if pkt.Len > object.MaxPacketPayload {
		return Result{Status: status.ErrInvalidArgs}
	}
	copy(pkt.Payload[:], args.Data)

	return Result{Status: port.Queue(pkt)}
}

func sysPortWait(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	h, st := proc.Handles().Lookup(args.Handle, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}
	port, ok := h.Dispatcher().(*object.IoPortDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	pkt, st := port.Wait(ctx, args.Timeout)
	if !st.Ok() {
		return Result{Status: st}
	}
	return Result{Status: status.OK, Key: pkt.Key, Data: append([]byte(nil), pkt.Payload[:pkt.Len]...)}
}

// sysPortBind attaches the handle named by args.Handle2 (the source
// object) to the port named by args.Handle, per spec.md 6's
// port_bind(port, key, source, signals).
func sysPortBind(ctx context.Context, inv *Invoker, args Args) Result {
	proc, st := currentProcess(ctx)
	if !st.Ok() {
		return Result{Status: st}
	}
	portHandle, st := proc.Handles().Lookup(args.Handle, object.RightWrite)
	if !st.Ok() {
		return Result{Status: st}
	}
	port, ok := portHandle.Dispatcher().(*object.IoPortDispatcher)
	if !ok {
		return Result{Status: status.ErrWrongType}
	}

	sourceHandle, st := proc.Handles().Lookup(args.Handle2, object.RightRead)
	if !st.Ok() {
		return Result{Status: st}
	}

	_, st = object.BindIoPort(port, sourceHandle.Dispatcher(), args.Key, args.DesiredSignals)
	return Result{Status: st}
}

func init() {
	Table[SysPortCreate] = sysPortCreate
	Table[SysPortQueue] = sysPortQueue
	Table[SysPortWait] = sysPortWait
	Table[SysPortBind] = sysPortBind
}
