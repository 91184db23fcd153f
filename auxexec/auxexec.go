// Package auxexec implements the synchronous "run an external helper
// and capture its outcome" primitive used for optional hook programs
// (e.g. a mount-namespace setup script run before a sandbox starts).
// Unlike the clone engine, it never needs the handshake/bootstrap
// machinery: the helper is trusted, run outside any new namespace, and
// the caller only cares about one of four outcomes.
package auxexec

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Result is the outcome of Run.
type Result int

const (
	// ResultForkOrExecFailed covers both fork(2) failing and the child
	// reporting execve(2) failure over the sentinel pipe; the caller
	// cannot tell these apart from Result alone, only from the error
	// Run also returns.
	ResultForkOrExecFailed Result = -1
	ResultExitZero         Result = 0
	ResultExitNonZero      Result = 1
	ResultSignaled         Result = 2
)

// Run forks, execs argv[0] with argv and env in the child, and blocks
// for its outcome. The child's own execve failure is detected through a
// close-on-exec pipe: if execve replaces the image, the pipe's write end
// closes with nothing written and the parent's read returns EOF; if
// execve fails, the child writes one sentinel byte before exiting.
func Run(argv []string, env []string) (Result, error) {
	if len(argv) == 0 {
		return ResultForkOrExecFailed, syscall.EINVAL
	}

	r, w, err := pipe2CloseOnExec()
	if err != nil {
		return ResultForkOrExecFailed, err
	}

	argv0, err := syscall.BytePtrFromString(argv[0])
	if err != nil {
		unix.Close(r)
		unix.Close(w)
		return ResultForkOrExecFailed, err
	}
	argvp, err := syscall.SlicePtrFromStrings(argv)
	if err != nil {
		unix.Close(r)
		unix.Close(w)
		return ResultForkOrExecFailed, err
	}
	envp, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		unix.Close(r)
		unix.Close(w)
		return ResultForkOrExecFailed, err
	}

	syscall.ForkLock.Lock()
	pid, errno := rawForkExec(argv0, argvp, envp, w)
	syscall.ForkLock.Unlock()
	unix.Close(w)

	if errno != 0 {
		unix.Close(r)
		return ResultForkOrExecFailed, errno
	}

	execFailed := readSentinel(r)
	unix.Close(r)

	code, sig, waitErr := waitFor(int(pid))
	if waitErr != nil {
		return ResultForkOrExecFailed, waitErr
	}
	if sig {
		return ResultSignaled, nil
	}
	if execFailed {
		return ResultForkOrExecFailed, nil
	}
	if code == 0 {
		return ResultExitZero, nil
	}
	return ResultExitNonZero, nil
}

func pipe2CloseOnExec() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func readSentinel(fd int) bool {
	var buf [1]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err == nil && n > 0
	}
}

func waitFor(pid int) (exitCode int, signaled bool, err error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		break
	}
	if ws.Signaled() {
		return 0, true, nil
	}
	return ws.ExitStatus(), false, nil
}
