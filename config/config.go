// Package config collects the kernel's compile-time-ish tunables in
// one place, the generalization of evanphx-columbia/cmd/columbia's
// inline pflag declarations to a handful of knobs cmd/magenta-core
// parses at boot: log level, a handle arena size override, and a
// deterministic PRNG seed for reproducible tests.
package config

import "github.com/jixiang52002/magenta/object"

// Flags holds the parsed values of cmd/magenta-core's command-line
// knobs, filled in by main before NewKernel runs.
type Flags struct {
	LogLevel      string
	ArenaCapacity int
	PRNGSeed      int64
}

// DefaultFlags returns the values the kernel boots with when no
// override is given: log level "info" and the default handle arena
// capacity; PRNGSeed is left zero.
func DefaultFlags() Flags {
	return Flags{
		LogLevel:      "info",
		ArenaCapacity: object.ArenaCapacity,
	}
}

// PortQueueCapacity bounds every new I/O port's packet FIFO depth.
const PortQueueCapacity = 1024

// MaxWaitsetResults bounds how many satisfied entries one
// waitset_wait call reports per invocation.
const MaxWaitsetResults = 256

// MaxWaitHandleCount bounds handle_wait_many's count argument.
const MaxWaitHandleCount = 256
