package forkexec

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// clearSigHand is CLONE_CLEAR_SIGHAND (added in Linux 5.5), not yet
// exposed by every golang.org/x/sys/unix release the module pins against,
// so it is defined locally the way the reference runner's consts.go fills
// in syscall-package gaps.
const clearSigHand = 0x100000000

// newTime is CLONE_NEWTIME, only ever honored by clone3: passing it to
// the legacy clone(2) syscall is rejected by the kernel with EINVAL, so
// the policy below refuses to even attempt the legacy path when it's set.
const newTime = 0x00000080

// clone3Unsupported is sticky per-process: once clone3 has returned
// ENOSYS there is no point paying for the syscall again on every spawn.
var clone3Unsupported bool

// RawClone performs the clone(2)/clone3(2) syscall chosen by policy and
// returns immediately in both parent and child, exactly like
// syscall.RawSyscall6(SYS_CLONE, ...): in the parent, r1 is the child's
// pid; in the child, r1 is 0. Callers must not allocate between calling
// RawClone and checking r1, since the child is returning from this call
// with a forked, unscheduled runtime.
//
// flags must already have passed config.SandboxConfig.Validate (no
// CLONE_VM). Policy: prefer clone3 with CLONE_CLEAR_SIGHAND so the child
// never races a handler installed by the supervisor before bootstrap
// resets signals; retry once without that flag if the running kernel
// rejects it; fall back to legacy clone(2) if clone3 itself is absent,
// refusing the fallback outright when CLONE_NEWTIME was requested since
// legacy clone cannot honor it.
//
//go:norace
func RawClone(flags uintptr) (pid uintptr, err1 syscall.Errno, loc ErrorLocation) {
	if !clone3Unsupported {
		pid, err1 = doClone3(flags | clearSigHand)
		if err1 == 0 {
			return pid, 0, LocUnknown
		}
		if err1 == unix.EINVAL {
			pid, err1 = doClone3(flags)
			if err1 == 0 {
				return pid, 0, LocUnknown
			}
			if err1 != unix.ENOSYS {
				return 0, err1, LocClone3Retry
			}
		} else if err1 != unix.ENOSYS {
			return 0, err1, LocClone3
		}
		clone3Unsupported = true
	}

	if flags&newTime != 0 {
		return 0, syscall.ENOSYS, LocCloneLegacy
	}

	pid, _, err1 = syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD)|flags, 0, 0, 0, 0, 0)
	if err1 != 0 {
		return 0, err1, LocCloneLegacy
	}
	return pid, 0, LocUnknown
}

//go:norace
func doClone3(flags uintptr) (pid uintptr, err1 syscall.Errno) {
	args := cloneArgs{
		flags:      uint64(flags),
		exitSignal: uint64(syscall.SIGCHLD),
	}
	pid, _, err1 = syscall.RawSyscall(unix.SYS_CLONE3, uintptr(unsafe.Pointer(&args)), unsafe.Sizeof(args), 0)
	return pid, err1
}
