package object

import (
	"encoding/binary"

	"github.com/jixiang52002/magenta/exception"
)

// newBoundPort returns an exception.Port whose deliver callback
// encodes each report per spec.md 6's wire format and writes it onto
// pipe as an ordinary message -- no handles travel with it. Shared by
// ProcessDispatcher.SetExceptionPort and ThreadDispatcher.SetExceptionPort
// since both scopes bind the same way, per spec.md 4.5/4.6.
func newBoundPort(pipe *MessagePipeDispatcher, key uint64) *exception.Port {
	return exception.NewPort(func(r exception.Report) {
		pipe.Write(encodeExceptionReport(r, key), nil)
	})
}

// BindSystemPort is newBoundPort exported for the syscalls layer's
// sys_object_bind_exception_port(0, ...) case, the kernel-wide system
// scope spec.md 4.12 escalates to last -- unlike the process/thread
// scopes, it has no dispatcher of its own to hang SetExceptionPort off
// of, so the syscalls layer builds the Port directly and hands it to
// exception.Table.BindSystem.
func BindSystemPort(pipe *MessagePipeDispatcher, key uint64) *exception.Port {
	return newBoundPort(pipe, key)
}

// exceptionReportSize is the fixed wire size of one encoded report:
// size(4) + type(4) + key(8) + pid(8) + tid(8) + pc(8) + faultAddr(8).
const exceptionReportSize = 48

// encodeExceptionReport renders r per spec.md 6's "header (size, type)
// followed by an exception context (arch-id, pid, tid, subtype, pc,
// arch-register-file)" -- arch-id and the register file are dropped
// here since this core targets no specific instruction set (spec.md
// 1's non-goal); key takes the header's place held for the bound
// port's handler-chosen cookie.
func encodeExceptionReport(r exception.Report, key uint64) []byte {
	buf := make([]byte, exceptionReportSize)
	binary.LittleEndian.PutUint32(buf[0:4], exceptionReportSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Type))
	binary.LittleEndian.PutUint64(buf[8:16], key)
	binary.LittleEndian.PutUint64(buf[16:24], r.ProcessID)
	binary.LittleEndian.PutUint64(buf[24:32], r.ThreadID)
	binary.LittleEndian.PutUint64(buf[32:40], r.PC)
	binary.LittleEndian.PutUint64(buf[40:48], r.FaultAddr)
	return buf
}
