package status

import (
	"fmt"
	"os"

	"github.com/jixiang52002/magenta/log"
)

// Fatal reports an internal invariant violation: something the kernel
// itself guaranteed cannot happen, as opposed to a user error. Per
// spec section 7, these halt the system rather than return a status.
func Fatal(where string, args ...interface{}) {
	log.L.Error("fatal kernel invariant violation", "where", where, "detail", fmt.Sprint(args...))
	panic(fmt.Sprintf("kpanic: %s: %s", where, fmt.Sprint(args...)))
}

// FatalDump is Fatal plus a stack dump to stderr, for a violation
// where a plain message isn't enough to debug it later. Nothing in
// this repository calls it; the arena's double-free check uses Fatal.
func FatalDump(where string, stack []byte, args ...interface{}) {
	log.L.Error("fatal kernel invariant violation", "where", where, "detail", fmt.Sprint(args...))
	fmt.Fprintf(os.Stderr, "--- register/stack dump (%s) ---\n%s\n", where, stack)
	panic(fmt.Sprintf("kpanic: %s: %s", where, fmt.Sprint(args...)))
}
