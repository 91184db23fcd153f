package supervisor

import (
	"syscall"
	"testing"
	"unsafe"

	"github.com/SageSeekerSociety/nsjail/bootstrap"
	"golang.org/x/sys/unix"
)

func TestReadChildErrorLinuxRoundTrip(t *testing.T) {
	var fds [2]int
	if err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0, fds[:]); err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	want := bootstrap.ChildError{Location: bootstrap.LocExecve, Index: 2, Err: syscall.ENOENT}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&want)), int(unsafe.Sizeof(want)))
	if _, err := unix.Write(fds[1], buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got bootstrap.ChildError
	readChildErrorLinux(fds[0], &got)

	if got != want {
		t.Errorf("readChildErrorLinux: got %+v, want %+v", got, want)
	}
}

func TestReadChildErrorLinuxClosedFDLeavesZero(t *testing.T) {
	var fds [2]int
	if err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0, fds[:]); err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	unix.Close(fds[1])
	unix.Close(fds[0])

	var got bootstrap.ChildError
	readChildErrorLinux(fds[0], &got)
	if got != (bootstrap.ChildError{}) {
		t.Errorf("expected zero value after reading a closed fd, got %+v", got)
	}
}
