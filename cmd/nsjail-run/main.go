// Command nsjail-run clones, contains and execs a single program under the
// supervisor's cgroup v2 (or legacy v1) resource limits, blocking until it
// exits and reporting its outcome on stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SageSeekerSociety/nsjail/bootstrap"
	"github.com/SageSeekerSociety/nsjail/collab"
	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/logging"
	"github.com/SageSeekerSociety/nsjail/pkg/cgroup"
	"github.com/SageSeekerSociety/nsjail/pkg/rlimit"
	"github.com/SageSeekerSociety/nsjail/supervisor"
	"golang.org/x/sys/unix"
)

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] -- <program> [args...]\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	var (
		cgroupMount             string
		memoryLimitMB           uint64
		pidsMax                 uint64
		cpuMsPerSec             uint64
		timeLimitSec            uint64
		cpuRlimitSec            uint64
		hostname                string
		keepEnv                 bool
		newUserNS, newMountNS   bool
		newPIDNS, newNetNS      bool
		newUTSNS                bool
		standalone              bool
	)

	flag.Usage = printUsage
	flag.StringVar(&cgroupMount, "cgroup-mount", "/sys/fs/cgroup", "cgroup v2 mount point")
	flag.Uint64Var(&memoryLimitMB, "ml", 0, "Memory limit in MB (0 = unlimited)")
	flag.Uint64Var(&pidsMax, "pids-max", 0, "Max number of tasks in the child's cgroup (0 = unlimited)")
	flag.Uint64Var(&cpuMsPerSec, "cpu-ms", 0, "CPU quota in ms of CPU time per wall-clock second (0 = unlimited)")
	flag.Uint64Var(&timeLimitSec, "tl", 0, "Wall-clock time limit in seconds (0 = unlimited)")
	flag.Uint64Var(&cpuRlimitSec, "cpu-rlimit", 0, "RLIMIT_CPU soft limit in seconds (0 = unset)")
	flag.StringVar(&hostname, "hostname", "", "Hostname to set inside a new UTS namespace")
	flag.BoolVar(&keepEnv, "keep-env", false, "Preserve the caller's environment instead of clearing it")
	flag.BoolVar(&newUserNS, "userns", false, "Create a new user namespace")
	flag.BoolVar(&newMountNS, "mountns", true, "Create a new mount namespace")
	flag.BoolVar(&newPIDNS, "pidns", true, "Create a new PID namespace")
	flag.BoolVar(&newNetNS, "netns", false, "Create a new network namespace")
	flag.BoolVar(&newUTSNS, "utsns", true, "Create a new UTS namespace")
	flag.BoolVar(&standalone, "standalone", false, "Unshare and exec in place instead of cloning a tracked child; no supervisor loop runs afterward")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
	}

	cfg := config.NewSandboxConfig()
	cfg.Args = args
	cfg.ExecPath = args[0]
	cfg.KeepEnv = keepEnv
	cfg.HostName = hostname
	cfg.MemoryMax = memoryLimitMB * 1024 * 1024
	cfg.PidsMax = pidsMax
	cfg.CPUMsPerSec = cpuMsPerSec
	cfg.TimeLimitSec = timeLimitSec
	cfg.Rlimits = rlimit.RLimits{CPU: cpuRlimitSec}
	cfg.StdinFD, cfg.StdoutFD, cfg.StderrFD = 0, 1, 2

	cfg.CloneFlags = 0
	if newUserNS {
		cfg.CloneFlags |= unix.CLONE_NEWUSER
	}
	if newMountNS {
		cfg.CloneFlags |= unix.CLONE_NEWNS
	}
	if newPIDNS {
		cfg.CloneFlags |= unix.CLONE_NEWPID
	}
	if newNetNS {
		cfg.CloneFlags |= unix.CLONE_NEWNET
	}
	if newUTSNS {
		cfg.CloneFlags |= unix.CLONE_NEWUTS
	}

	if err := cfg.Validate(); err != nil {
		logging.Fatalf(logging.CategorySpawn, "invalid configuration: %v", err)
	}
	cfg.UseCgroupV2 = cgroup.Detect(cgroupMount)
	cfg.CgroupV2Mount = cgroupMount

	driver := cgroup.New(cgroupMount)

	if standalone {
		cfg.Mode = config.ModeStandaloneExecve
		if err := driver.Setup(cfg); err != nil {
			logging.Fatalf(logging.CategoryCgroup, "cgroup setup failed: %v", err)
		}
		if err := bootstrap.RunStandalone(cfg, driver, nil, nil); err != nil {
			logging.Fatalf(logging.CategorySpawn, "standalone run failed: %v", err)
		}
		return
	}

	sup := supervisor.New(driver)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Warnf(logging.CategorySpawn, "received shutdown signal, force-killing all children")
		sup.ForceKillAll(unix.SIGKILL)
		os.Exit(130)
	}()

	pid, err := sup.Spawn(cfg, collab.Policy{}, nil)
	if err != nil {
		logging.Fatalf(logging.CategorySpawn, "spawn failed: %v", err)
	}
	logging.Infof(logging.CategorySpawn, "pid %d: running %v", pid, args)

	for {
		reports := sup.Drain()
		found := false
		for _, r := range reports {
			if r.PID != pid {
				continue
			}
			found = true
			fmt.Printf("exit_code=%d\n", r.ExitCode)
		}
		if found {
			break
		}
		sup.SweepTimeouts(cfg)
		// The supervisor's own suspension points are only the handshake
		// read/write and waitpid inside force-kill-all; Drain itself is
		// WNOHANG by design for a multi-child daemon. A single-shot CLI
		// has nothing else to do between polls, so it sleeps briefly
		// rather than busy-spinning on waitid.
		time.Sleep(10 * time.Millisecond)
	}
}
