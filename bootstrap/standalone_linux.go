package bootstrap

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/SageSeekerSociety/nsjail/collab"
	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/pkg/cgroup"
	"golang.org/x/sys/unix"
)

// RunStandalone implements spec.md §4.D step 3's first clause: "if
// bootstrap is running in unshared-only mode (no parent handshake
// present), perform user/cgroup namespace self-init". Unlike Clone/
// runChild, this path never forks: unshare(2) changes the namespaces of
// the calling process in place, the process does its own containment
// setup (there is no privileged parent left to do it from outside), and
// execve replaces the same process image. Because nothing here crosses a
// clone boundary, it runs as ordinary allocating Go code, not the
// async-signal-safe raw-syscall sequence runChild needs.
//
// Used for single-shot invocations where there is no supervisor loop to
// return to and hand a tracked pid back from (config.ModeStandaloneExecve).
func RunStandalone(c *config.SandboxConfig, driver cgroup.Driver, seccomp *unix.SockFprog, idmap *UIDGIDMap) error {
	if c.Mode != config.ModeStandaloneExecve {
		return fmt.Errorf("bootstrap: RunStandalone called with Mode=%v", c.Mode)
	}
	if len(c.Args) == 0 {
		return fmt.Errorf("bootstrap: config has no Args")
	}
	if err := collab.SetupFD(c.StdinFD, c.StdoutFD, c.StderrFD); err != nil {
		return fmt.Errorf("bootstrap: self fd setup: %w", err)
	}

	if c.CloneFlags != 0 {
		if err := unix.Unshare(int(c.CloneFlags)); err != nil {
			return fmt.Errorf("bootstrap: unshare: %w", err)
		}
	}

	if err := collab.ContainProc(os.Getpid(), c.CloneFlags&unix.CLONE_NEWNS != 0); err != nil {
		return fmt.Errorf("bootstrap: self containment: %w", err)
	}

	// Self-init: no parent process is left to write uid/gid maps or place
	// us in a cgroup from outside, so we do both to ourselves before
	// dropping anything a later step might need.
	if c.CloneFlags&unix.CLONE_NEWUSER != 0 {
		var uidMap, gidMap []collab.IDMap
		enableSetgroups := false
		if idmap != nil {
			uidMap, gidMap, enableSetgroups = idmap.UID, idmap.GID, idmap.EnableSetgroups
		}
		if err := collab.InitNsSelf(uidMap, gidMap, enableSetgroups); err != nil {
			return fmt.Errorf("bootstrap: self uid/gid map: %w", err)
		}
	}

	if driver != nil && (c.NeedMemoryController() || c.NeedPidsController() || c.NeedCPUController()) {
		if err := driver.InitChild(os.Getpid(), c); err != nil {
			return fmt.Errorf("bootstrap: self cgroup init: %w", err)
		}
	}

	for i, rl := range c.Rlimits.Prepare() {
		if err := unix.Setrlimit(int(rl.Res), &unix.Rlimit{Cur: rl.Rlim.Cur, Max: rl.Rlim.Max}); err != nil {
			return fmt.Errorf("bootstrap: self rlimit[%d]: %w", i, err)
		}
	}

	if c.HostName != "" {
		if err := unix.Sethostname([]byte(c.HostName)); err != nil {
			return fmt.Errorf("bootstrap: self sethostname: %w", err)
		}
	}
	if c.DomainName != "" {
		if err := unix.Setdomainname([]byte(c.DomainName)); err != nil {
			return fmt.Errorf("bootstrap: self setdomainname: %w", err)
		}
	}

	env := c.Env
	if c.KeepEnv {
		env = append(append([]string{}, c.Env...), os.Environ()...)
	}

	// Seccomp install is last, same ordering invariant as runChild: some
	// filters forbid the exec syscalls themselves, so nothing may need a
	// syscall the filter doesn't allow except execve.
	if seccomp != nil {
		if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("bootstrap: self no_new_privs: %w", err)
		}
		if _, _, errno := unix.RawSyscall(unix.SYS_SECCOMP, forkexecSeccompSetModeFilter, 0, uintptr(unsafe.Pointer(seccomp))); errno != 0 {
			return fmt.Errorf("bootstrap: self seccomp install: %w", errno)
		}
	}

	if c.UseExecveAt {
		if err := unix.Fexecve(int(c.ExecFD), c.Args, env); err != nil {
			return fmt.Errorf("bootstrap: self execveat: %w", err)
		}
	} else {
		if err := syscall.Exec(c.ExecPath, c.Args, env); err != nil {
			return fmt.Errorf("bootstrap: self execve: %w", err)
		}
	}
	panic("bootstrap: unreachable: exec returned without error")
}

// UIDGIDMap mirrors supervisor.UIDGIDMap; duplicated here rather than
// imported to avoid a bootstrap<->supervisor import cycle (supervisor
// already imports bootstrap for ChildSpec/Clone).
type UIDGIDMap struct {
	UID, GID        []collab.IDMap
	EnableSetgroups bool
}
