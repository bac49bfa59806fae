// Package status defines the fixed vocabulary of result codes returned
// across the syscall boundary, in place of bare Go errors.
package status

// Status is the result code every object/handle operation ultimately
// reduces to at the syscall boundary. Internal packages may still
// propagate ordinary Go errors (wrapped with github.com/pkg/errors) up
// to the point where they're translated into one of these.
type Status int32

const (
	OK Status = 0

	ErrInvalidArgs Status = -1
	ErrBadHandle   Status = -2
	ErrWrongType   Status = -3
	ErrAccessDenied Status = -4
	ErrNoMemory    Status = -5
	ErrBadState    Status = -6
	ErrTimedOut    Status = -7
	ErrBufferTooSmall Status = -8
	ErrOutOfRange  Status = -9
	ErrNotFound    Status = -10
	ErrNotSupported Status = -11
	ErrAlreadyBound Status = -12
	ErrChannelClosed Status = -13
	ErrShouldWait  Status = -14
	ErrCancelled   Status = -15
	ErrInterrupted Status = -16
	ErrBusy        Status = -17
)

var names = map[Status]string{
	OK:                "NO_ERROR",
	ErrInvalidArgs:    "INVALID_ARGS",
	ErrBadHandle:      "BAD_HANDLE",
	ErrWrongType:      "WRONG_TYPE",
	ErrAccessDenied:   "ACCESS_DENIED",
	ErrNoMemory:       "NO_MEMORY",
	ErrBadState:       "BAD_STATE",
	ErrTimedOut:       "TIMED_OUT",
	ErrBufferTooSmall: "BUFFER_TOO_SMALL",
	ErrOutOfRange:     "OUT_OF_RANGE",
	ErrNotFound:       "NOT_FOUND",
	ErrNotSupported:   "NOT_SUPPORTED",
	ErrAlreadyBound:   "ALREADY_BOUND",
	ErrChannelClosed:  "CHANNEL_CLOSED",
	ErrShouldWait:     "SHOULD_WAIT",
	ErrCancelled:      "CANCELLED",
	ErrInterrupted:    "INTERRUPTED",
	ErrBusy:           "BUSY",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "UNKNOWN_STATUS"
}

func (s Status) Error() string {
	return s.String()
}

// Ok reports whether s is the success status.
func (s Status) Ok() bool {
	return s == OK
}
