package bootstrap

import (
	"syscall"
	"unsafe"

	"github.com/SageSeekerSociety/nsjail/pkg/forkexec"
	"github.com/SageSeekerSociety/nsjail/pkg/handshake"
	"golang.org/x/sys/unix"
)

// resetSignals are the signal numbers the child's sigaction is reset to
// SIG_DFL for, undoing whatever handlers the supervisor process installed
// before forking. SIGKILL and SIGSTOP are skipped since sigaction on them
// always fails with EINVAL.
var resetSignals = [...]uintptr{
	1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31,
}

// Clone runs clone(2)/clone3(2) via forkexec.RawClone and, in the child,
// the full bootstrap sequence described in ChildSpec: stdio redirection,
// signal reset, a blocking wait for the supervisor's handshake token,
// rlimit application, seccomp filter install, then execve. In the
// parent it returns the child's pid so the supervisor can continue with
// the ordinary, allocating half of spawn (cgroup init, registry insert,
// sending the handshake token).
//
// The runtime OS thread calling Clone must be locked (runtime.LockOSThread)
// for the duration, matching the reference clone engine's contract: the
// fork lock and runtime fork hooks assume no other goroutine is scheduled
// onto the same thread mid-clone.
//
func Clone(flags uintptr, spec *ChildSpec) (pid uintptr, err error) {
	forkexec.Lock()
	forkexec.BeforeFork()

	r1, errno, loc := forkexec.RawClone(flags)

	if errno != 0 {
		// Still in the one original process: the clone syscall itself
		// never split us in two.
		forkexec.AfterFork()
		forkexec.Unlock()
		return 0, &forkexecCloneError{loc: loc, errno: errno}
	}

	if r1 != 0 {
		// Parent.
		forkexec.AfterFork()
		forkexec.Unlock()
		return r1, nil
	}

	// Child. No more calls into the allocating Go runtime from this
	// point until execve replaces the image.
	forkexec.AfterForkInChild()
	runChild(spec)
	// runChild never returns: it either execve's or calls childExit.
	return 0, nil
}

type forkexecCloneError struct {
	loc   forkexec.ErrorLocation
	errno syscall.Errno
}

func (e *forkexecCloneError) Error() string {
	return (&forkexec.CloneError{Location: e.loc, Err: e.errno}).Error()
}

//go:norace
func runChild(spec *ChildSpec) {
	var err1 syscall.Errno

	// Step 1: stdio redirection.
	for i, fd := range [3]uintptr{spec.StdinFD, spec.StdoutFD, spec.StderrFD} {
		if fd == uintptr(i) {
			_, _, err1 = syscall.RawSyscall(syscall.SYS_FCNTL, fd, syscall.F_SETFD, 0)
			if err1 != 0 {
				childExit(spec, LocFcntl, i, err1)
			}
			continue
		}
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, fd, uintptr(i), 0)
		if err1 != 0 {
			childExit(spec, LocDup3, i, err1)
		}
	}

	// Step 2: reset signal dispositions to SIG_DFL so the child never
	// runs with a handler the supervisor happened to have installed.
	var sa unix.Sigaction
	for i, sig := range resetSignals {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_RT_SIGACTION, sig,
			uintptr(unsafe.Pointer(&sa)), 0, unsafe.Sizeof(unix.Sigset_t{}), 0, 0)
		if err1 != 0 && err1 != syscall.EINVAL {
			childExit(spec, LocSigAction, i, err1)
		}
	}

	// Step 3: wait for the supervisor's DONE token. The supervisor sends
	// it only after the child's registry entry and cgroup exist, so
	// nothing below this point can race cgroup/registry setup.
	tok := handshake.ChildRecv(spec.HandshakeFD)
	if tok != handshake.TokenDone {
		childExit(spec, LocHandshakeWait, 0, syscall.ECONNABORTED)
	}

	// Step 4: containment. uid/gid mapping and cgroup membership are
	// applied by the supervisor from outside between clone and the DONE
	// token above; the only containment left for the child itself is its
	// own resource limits.
	for i, rl := range spec.RLimits {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRLIMIT64, 0, uintptr(rl.Res),
			uintptr(unsafe.Pointer(&rl.Rlim)), 0, 0, 0)
		if err1 != 0 {
			childExit(spec, LocSetRlimit, i, err1)
		}
	}

	if spec.HostName != nil {
		syscall.RawSyscall(syscall.SYS_SETHOSTNAME, uintptr(unsafe.Pointer(spec.HostName)), uintptr(spec.hostNameLen), 0)
	}
	if spec.DomainName != nil {
		syscall.RawSyscall(syscall.SYS_SETDOMAINNAME, uintptr(unsafe.Pointer(spec.DomainName)), uintptr(spec.domainNameLen), 0)
	}

	// Step 5: env was already cleared/applied when spec.Env was built
	// before clone; there is nothing left to do here.

	// Step 6: seccomp filter install, last step before execve per the
	// containment ordering invariant: nothing after this point may need a
	// syscall the filter doesn't allow except execve itself.
	if spec.Seccomp != nil {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0)
		if err1 != 0 {
			childExit(spec, LocNoNewPrivs, 0, err1)
		}
		_, _, err1 = syscall.RawSyscall(unix.SYS_SECCOMP, forkexecSeccompSetModeFilter, 0, uintptr(unsafe.Pointer(spec.Seccomp)))
		if err1 != 0 {
			childExit(spec, LocSeccomp, 0, err1)
		}
	}

	// Step 7: execveat(AT_EMPTY_PATH) or execve.
	if spec.UseExecveAt {
		_, _, err1 = syscall.RawSyscall6(unix.SYS_EXECVEAT, spec.ExecFD,
			uintptr(unsafe.Pointer(&emptyCString[0])), uintptr(unsafe.Pointer(&spec.Argv[0])),
			uintptr(unsafe.Pointer(&spec.Env[0])), unix.AT_EMPTY_PATH, 0)
	} else {
		_, _, err1 = syscall.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(spec.Argv0)),
			uintptr(unsafe.Pointer(&spec.Argv[0])), uintptr(unsafe.Pointer(&spec.Env[0])))
	}

	// Step 8: execve failed. Report and terminate.
	childExit(spec, LocExecve, 0, err1)
}

var emptyCString = [1]byte{0}

const forkexecSeccompSetModeFilter = 1

//go:nosplit
func childExit(spec *ChildSpec, loc ErrorLocation, idx int, errno syscall.Errno) {
	handshake.ChildSend(spec.HandshakeFD, handshake.TokenError)
	ce := ChildError{Location: loc, Index: int32(idx), Err: errno}
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(spec.HandshakeFD), uintptr(unsafe.Pointer(&ce)), unsafe.Sizeof(ce))
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, uintptr(errno), 0, 0)
	}
}
