package auxexec

import (
	"syscall"
	"unsafe"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// rawForkExec forks with plain SYS_CLONE(SIGCHLD) (no namespace flags:
// the helper runs in the caller's own namespaces) and execve's argv0 in
// the child. On execve failure the child writes a single sentinel byte
// to sentinelFD before exiting; on success the close-on-exec fd is
// simply gone once the image is replaced.
//
//go:norace
func rawForkExec(argv0 *byte, argv, envp []*byte, sentinelFD int) (pid uintptr, errno syscall.Errno) {
	beforeFork()
	r1, _, err1 := syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD), 0, 0, 0, 0, 0)

	if err1 != 0 {
		afterFork()
		return 0, err1
	}

	if r1 != 0 {
		afterFork()
		return r1, 0
	}

	afterForkInChild()
	_, _, execErr := syscall.RawSyscall(syscall.SYS_EXECVE, uintptr(unsafe.Pointer(argv0)),
		uintptr(unsafe.Pointer(&argv[0])), uintptr(unsafe.Pointer(&envp[0])))
	sentinel := [1]byte{byte(execErr)}
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(sentinelFD), uintptr(unsafe.Pointer(&sentinel[0])), 1)
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, 1, 0, 0)
	}
}
