package kernel

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/object"
)

// TestRaiseExceptionScenario implements spec.md 8's scenario 5 almost
// literally: start process P, install exception port E, cause a fault
// in P's only thread; a report with pid=P.id, tid=T.id, subtype=
// page-fault appears on E; after resume(thread, NOT_HANDLED) with no
// system port installed, the fault propagates nowhere else, the thread
// exits and P transitions DYING->DEAD and raises SIGNALED.
func TestRaiseExceptionScenario(t *testing.T) {
	n := neko.Modern(t)

	n.It("delivers the report, then kills the process once NOT_HANDLED escalation runs out of ports", func(t *testing.T) {
		k := NewKernel()
		proc := k.CreateProcess("faulter")
		thread := object.NewThreadDispatcher("main")
		require.True(t, proc.Start(thread, 0x1000, 0x2000).Ok())

		reportEnd, handlerEnd := object.CreateMessagePipe(k.Arena)
		require.True(t, proc.SetExceptionPort(reportEnd, 99).Ok())
		k.Exceptions().BindProcess(proc.Koid(), proc.ExceptionPort())

		result := make(chan exception.ResumeDisposition, 1)
		go func() {
			result <- k.RaiseException(thread, exception.TypePageFault, 0x1000, 0x9000)
		}()

		require.Eventually(t, func() bool {
			_, _, st := handlerEnd.BeginRead()
			return st.Ok()
		}, time.Second, time.Millisecond)

		pkt, _, st := handlerEnd.AcceptRead(proc.Handles())
		require.True(t, st.Ok())
		require.Equal(t, uint32(exception.TypePageFault), binary.LittleEndian.Uint32(pkt.Data[4:8]))
		require.Equal(t, proc.Koid(), binary.LittleEndian.Uint64(pkt.Data[16:24]))
		require.Equal(t, thread.Koid(), binary.LittleEndian.Uint64(pkt.Data[24:32]))

		st = k.Exceptions().Resolve(thread.Koid(), exception.NotHandled)
		require.True(t, st.Ok())

		disposition := <-result
		require.Equal(t, exception.NotHandled, disposition)

		require.Eventually(t, func() bool {
			return proc.State() == object.ProcessDead
		}, time.Second, time.Millisecond)

		satisfied, _ := proc.StateTracker().Snapshot()
		require.NotZero(t, satisfied&object.SignalSignaled)
	})

	n.It("escalates past a declining process port to the system port", func(t *testing.T) {
		k := NewKernel()
		proc := k.CreateProcess("faulter")
		thread := object.NewThreadDispatcher("main")
		require.True(t, proc.Start(thread, 0x1000, 0x2000).Ok())

		procReportEnd, procHandlerEnd := object.CreateMessagePipe(k.Arena)
		require.True(t, proc.SetExceptionPort(procReportEnd, 1).Ok())
		k.Exceptions().BindProcess(proc.Koid(), proc.ExceptionPort())

		sysReportEnd, sysHandlerEnd := object.CreateMessagePipe(k.Arena)
		k.Exceptions().BindSystem(object.BindSystemPort(sysReportEnd, 2))

		result := make(chan exception.ResumeDisposition, 1)
		go func() {
			result <- k.RaiseException(thread, exception.TypeGeneral, 0x4000, 0)
		}()

		require.Eventually(t, func() bool {
			_, _, st := procHandlerEnd.BeginRead()
			return st.Ok()
		}, time.Second, time.Millisecond)
		_, _, st := procHandlerEnd.AcceptRead(proc.Handles())
		require.True(t, st.Ok())

		require.True(t, k.Exceptions().Resolve(thread.Koid(), exception.ResumeTryNext).Ok())

		require.Eventually(t, func() bool {
			_, _, st := sysHandlerEnd.BeginRead()
			return st.Ok()
		}, time.Second, time.Millisecond)
		_, _, st = sysHandlerEnd.AcceptRead(proc.Handles())
		require.True(t, st.Ok())

		require.True(t, k.Exceptions().Resolve(thread.Koid(), exception.Resume).Ok())

		require.Equal(t, exception.Resume, <-result)
		require.Equal(t, object.ProcessRunning, proc.State())
	})

	n.Meow()
}
