// Package supervisor drives the single-threaded spawn/reap loop: gluing
// the cgroup driver, clone engine, handshake channel and process registry
// together for Spawn, and peeking/reaping exited children with timeout
// enforcement for Drain. There is no internal parallelism here by
// design (see the concurrency model this mirrors): one goroutine calls
// Spawn and Drain serially, the same way the reference daemon's
// connection loop drives one runner at a time per connection.
package supervisor

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/SageSeekerSociety/nsjail/bootstrap"
	"github.com/SageSeekerSociety/nsjail/collab"
	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/errs"
	"github.com/SageSeekerSociety/nsjail/logging"
	"github.com/SageSeekerSociety/nsjail/pkg/cgroup"
	"github.com/SageSeekerSociety/nsjail/pkg/handshake"
	"github.com/SageSeekerSociety/nsjail/pkg/seccomp"
	"github.com/SageSeekerSociety/nsjail/registry"
	"golang.org/x/sys/unix"
)

// Supervisor owns the one cgroup driver and process registry live for
// the lifetime of the process.
type Supervisor struct {
	Driver   cgroup.Driver
	Registry *registry.Registry
}

// New returns a Supervisor bound to driver. Driver is normally the
// result of cgroup.New(mount) against the configured hierarchy.
func New(driver cgroup.Driver) *Supervisor {
	return &Supervisor{Driver: driver, Registry: registry.New()}
}

// UIDGIDMap optionally carries explicit uid/gid mappings for a
// CLONE_NEWUSER spawn; nil means "map id 0 inside the namespace to the
// caller's own euid/egid", matching collab.InitNsFromParent's default.
type UIDGIDMap struct {
	UID, GID        []collab.IDMap
	EnableSetgroups bool
}

// Spawn runs the full clone->handshake->containment->exec pipeline for
// one child: validates cfg, ensures the cgroup controllers it needs are
// enabled, clones, writes uid/gid maps if requested, initializes the
// child's cgroup, inserts its registry record, and only then releases it
// past its handshake wait. It blocks until the child has either execve'd
// successfully or reported failure.
func (s *Supervisor) Spawn(cfg *config.SandboxConfig, policy collab.Policy, idmap *UIDGIDMap) (pid int, err error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrConfigInvalid, err)
	}
	if err := s.Driver.Setup(cfg); err != nil {
		return 0, err
	}
	if err := collab.SetupFD(cfg.StdinFD, cfg.StdoutFD, cfg.StderrFD); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrConfigInvalid, err)
	}

	var filter seccomp.Filter
	if len(policy.Rules) > 0 || policy.Default != 0 {
		filter, err = collab.ApplyPolicy(policy)
		if err != nil {
			return 0, fmt.Errorf("%w: building seccomp filter: %v", errs.ErrConfigInvalid, err)
		}
	}

	parentFD, childFD, err := handshake.NewPair()
	if err != nil {
		return 0, err
	}

	spec, err := bootstrap.BuildChildSpec(cfg, filter.SockFprog(), childFD)
	if err != nil {
		unix.Close(parentFD)
		unix.Close(childFD)
		return 0, err
	}

	runtime.LockOSThread()
	pidU, cloneErr := bootstrap.Clone(cfg.CloneFlags, spec)
	runtime.UnlockOSThread()

	unix.Close(childFD)
	if cloneErr != nil {
		unix.Close(parentFD)
		return 0, fmt.Errorf("%w: %v", errs.ErrKernelRefused, cloneErr)
	}
	pid = int(pidU)
	ch := handshake.New(parentFD)

	abort := func(cause error) (int, error) {
		ch.Send(handshake.TokenError)
		ch.Close()
		killAndReap(pid)
		return 0, cause
	}

	if err := collab.NetInitNsFromParent(cfg, pid); err != nil {
		return abort(err)
	}

	if cfg.CloneFlags&unix.CLONE_NEWUSER != 0 {
		var uidMap, gidMap []collab.IDMap
		enableSetgroups := false
		if idmap != nil {
			uidMap, gidMap, enableSetgroups = idmap.UID, idmap.GID, idmap.EnableSetgroups
		}
		if err := collab.InitNsFromParent(pid, uidMap, gidMap, enableSetgroups); err != nil {
			return abort(err)
		}
	}

	if err := s.Driver.InitChild(pid, cfg); err != nil {
		return abort(err)
	}

	if err := collab.ContainProc(pid, cfg.CloneFlags&unix.CLONE_NEWNS != 0); err != nil {
		return abort(err)
	}

	var cpuSoft, cpuHard uint64
	for _, rl := range cfg.Rlimits.Prepare() {
		if rl.Res == unix.RLIMIT_CPU {
			cpuSoft, cpuHard = rl.Rlim.Cur, rl.Rlim.Max
		}
	}
	rec := &registry.Record{
		PID:             pid,
		StartedAt:       time.Now(),
		AccountingFD:    openSyscallAccountingFD(pid),
		CPUSoftLimitSec: cpuSoft,
		CPUHardLimitSec: cpuHard,
	}
	s.Registry.Add(rec)

	if err := ch.Send(handshake.TokenDone); err != nil {
		s.Registry.Remove(pid)
		return abort(err)
	}

	tok, recvErr := ch.Recv()
	switch {
	case errors.Is(recvErr, handshake.ErrPeerLost):
		// The child closed its end by execve'ing successfully: the fd is
		// close-on-exec, so EOF here means "running the target program
		// now", not failure.
		ch.Close()
		return pid, nil
	case recvErr != nil:
		ch.Close()
		logging.Warnf(logging.CategoryHandoff, "pid %d: handshake read failed after DONE: %v", pid, recvErr)
		return pid, nil
	case tok == handshake.TokenError:
		var ce bootstrap.ChildError
		readChildErrorLinux(parentFD, &ce)
		ch.Close()
		s.Registry.Remove(pid)
		killAndReap(pid)
		return 0, fmt.Errorf("%w: %v", errs.ErrChildAborted, ce)
	default:
		ch.Close()
		return pid, nil
	}
}

func openSyscallAccountingFD(pid int) int {
	fd, err := unix.Open(fmt.Sprintf("/proc/%d/syscall", pid), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		logging.Debugf(logging.CategoryReap, "pid %d: could not open /proc/%d/syscall for accounting: %v", pid, pid, err)
		return -1
	}
	return fd
}

func killAndReap(pid int) {
	unix.Kill(pid, unix.SIGKILL)
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err != unix.EINTR {
			return
		}
	}
}
