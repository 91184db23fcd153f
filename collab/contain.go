package collab

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetupFD checks that stdin/stdout/stderr are open, usable descriptors
// before the child ever forks: a closed or invalid fd here is much
// easier to diagnose from the supervisor than from inside the
// async-signal-safe bootstrap trampoline, which has no way to report
// anything more specific than the dup3 errno.
func SetupFD(stdin, stdout, stderr uintptr) error {
	for _, fd := range []uintptr{stdin, stdout, stderr} {
		if fd <= 2 {
			continue // 0/1/2 are the supervisor's own stdio, always valid
		}
		if _, err := unix.FcntlInt(fd, unix.F_GETFD, 0); err != nil {
			return fmt.Errorf("collab: fd %d is not open: %w", fd, err)
		}
	}
	return nil
}

// ContainProc checks that pid's mount namespace handle, /proc/<pid>/ns/mnt,
// can be opened before the supervisor releases it past its handshake wait.
// It does not compare that namespace with the supervisor's own, so it does
// not confirm the namespace is a private one. Real pivot_root / bind-mount
// construction is intentionally out of scope here (see Non-goals); this
// only covers the one step that runs from the supervisor side rather than
// inside the child's own async-signal-safe trampoline.
func ContainProc(pid int, newMountNS bool) error {
	if !newMountNS {
		return nil
	}
	fd, err := unix.Open(fmt.Sprintf("/proc/%d/ns/mnt", pid), unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("collab: opening mnt ns for pid %d: %w", pid, err)
	}
	unix.Close(fd)
	return nil
}
