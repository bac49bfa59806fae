// Package exception implements spec.md 4.12's exception ports: a
// fault occurring in a thread is offered, in order, to that thread's
// bound port, then its process's, then the system's, each exchange
// blocking the faulting thread until the handler replies or the port
// is unbound.
//
// Grounded on original_source/kernel/lib/magenta/exception.cpp's
// magenta_exception_handler: the thread/process/system escalation
// order and the "first handler to claim it wins, no handler at all
// means kill the process" fallback are carried over directly. Fault
// context shape borrows from other_examples/iansmith-mazarin__exceptions.go's
// ExceptionInfo (arch register snapshot fields), simplified to the
// fields spec.md 4.12 actually names.
package exception

// Type distinguishes the fault kinds spec.md 4.12 lists.
type Type int

const (
	TypePageFault Type = iota
	TypeUndefinedInstruction
	TypeGeneral
	TypeSoftwareBreakpoint
	TypeHardwareBreakpoint
	TypeUnaligned
	TypePolicyError
	// TypeGone is not a fault: it is the one-way notification a bound
	// port receives when the thread or process it watches exits,
	// matching excp_port.cpp's BuildThreadGoneReport/BuildProcessGoneReport.
	TypeGone
)

func (t Type) String() string {
	switch t {
	case TypePageFault:
		return "page-fault"
	case TypeUndefinedInstruction:
		return "undefined-instruction"
	case TypeGeneral:
		return "general"
	case TypeSoftwareBreakpoint:
		return "software-breakpoint"
	case TypeHardwareBreakpoint:
		return "hardware-breakpoint"
	case TypeUnaligned:
		return "unaligned-access"
	case TypePolicyError:
		return "policy-error"
	case TypeGone:
		return "gone"
	default:
		return "unknown"
	}
}

// Report is the fault record handed to a bound exception port,
// matching exception.cpp's mx_exception_report_t: identity of the
// faulting thread/process plus an architecture context, trimmed here
// to PC and fault address since this repo targets no specific
// instruction set (spec.md section 1's non-goal).
type Report struct {
	Type      Type
	ProcessID uint64
	ThreadID  uint64
	PC        uint64
	FaultAddr uint64
}

// ResumeDisposition is a handler's reply to an exchanged report. Per
// this repo's supplemented exception-handling detail, three
// dispositions exist rather than a single NotHandled/Handled bit:
// RESUME lets the faulting thread continue, RESUME_TRY_NEXT declines
// and lets the next port in the escalation order see the report, and
// NOT_HANDLED behaves like RESUME_TRY_NEXT at the last port (process
// gets killed).
type ResumeDisposition int

const (
	ResumeTryNext ResumeDisposition = iota
	Resume
	NotHandled
)
