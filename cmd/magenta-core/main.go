package main

import (
	"context"
	"fmt"
	stdlog "log"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"github.com/jixiang52002/magenta/config"
	"github.com/jixiang52002/magenta/kernel"
	"github.com/jixiang52002/magenta/log"
	"github.com/jixiang52002/magenta/object"
	"github.com/jixiang52002/magenta/syscalls"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

var (
	fLogLevel = pflag.StringP("log-level", "l", "info", "log level: trace, debug, info, warn, error")
	fArena    = pflag.IntP("arena-capacity", "a", object.ArenaCapacity, "handle arena capacity override")
	fSeed     = pflag.Int64P("prng-seed", "s", 0, "seed for the deterministic PRNG (0 picks a random seed)")
	fName     = pflag.StringP("name", "n", "init", "name of the bootstrap process")
)

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			stdlog.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			stdlog.Fatal("could not start CPU profile: ", err)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	pflag.Parse()

	flags := config.DefaultFlags()
	flags.LogLevel = *fLogLevel
	flags.ArenaCapacity = *fArena

	seed := *fSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	flags.PRNGSeed = seed
	rand.Seed(seed)

	log.L.SetLevel(hclog.LevelFromString(flags.LogLevel))
	log.L.Info("boot", "arena-capacity", flags.ArenaCapacity, "prng-seed", flags.PRNGSeed)

	ctx := context.Background()

	k := kernel.NewKernelSized(flags.ArenaCapacity)
	inv := &syscalls.Invoker{Kernel: k}

	proc := k.CreateProcess(*fName)
	thread := object.NewThreadDispatcher(*fName + "-main")
	if st := proc.AddThread(thread); !st.Ok() {
		stdlog.Fatal("could not create bootstrap thread: ", st)
	}
	k.Directory.Register(thread, thread.Name())
	thread.SetOnExit(func() { k.Directory.Unregister(thread.Koid()) })

	ctx = kernel.WithProcess(ctx, proc)
	ctx = kernel.WithThread(ctx, thread)

	res := inv.InvokeSyscall(ctx, syscalls.SysLogCreate, syscalls.Args{})
	if res.Status.Ok() {
		inv.InvokeSyscall(ctx, syscalls.SysLogWrite, syscalls.Args{
			Handle: res.Handle,
			Data:   []byte("magenta-core: bootstrap process " + *fName + " up"),
		})
	}

	log.L.Info("bootstrap-process-created", "koid", proc.Koid(), "name", *fName)

	if _, err := k.ReapProcess(ctx, false); err != nil {
		log.L.Warn("reap-dead", "error", err)
	}

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}
}
