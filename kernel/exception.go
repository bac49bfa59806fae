package kernel

import (
	"github.com/jixiang52002/magenta/exception"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/object"
)

// RaiseException is the call-in seam arch-specific fault glue (spec.md
// 4.12's "architecture-specific fault glue synthesizes a context")
// would use once it exists; this core has none (spec.md 1's non-goal
// on "any particular instruction set"), so test code is the only
// present-day caller, using it to drive a thread/process fault through
// the escalation table the way a real trap handler would.
// syscalls/exception.go's sysTaskResume does not raise faults; it
// resolves an in-flight exchange through Table.Resolve.
//
// Grounded on original_source/kernel/lib/magenta/exception.cpp's
// magenta_exception_handler: escalate thread -> process -> system via
// the table, and if nothing resumes the fault, kill the process and
// exit the thread exactly as the C++ fallback does.
func (k *Kernel) RaiseException(thread *object.ThreadDispatcher, excType exception.Type, pc, faultAddr uint64) exception.ResumeDisposition {
	proc := thread.Process()

	report := exception.Report{
		Type:      excType,
		ThreadID:  thread.Koid(),
		PC:        pc,
		FaultAddr: faultAddr,
	}
	if proc != nil {
		report.ProcessID = proc.Koid()
	}

	disposition, processed := k.exceptions.Dispatch(report)

	if disposition != exception.Resume {
		log.L.Trace("exception-fallback", "thread", thread.Koid(), "type", excType, "processed", processed)
		if proc != nil {
			proc.Kill()
		}
		thread.Exit()
	}

	return disposition
}
