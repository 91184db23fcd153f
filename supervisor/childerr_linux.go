package supervisor

import (
	"unsafe"

	"github.com/SageSeekerSociety/nsjail/bootstrap"
	"golang.org/x/sys/unix"
)

// readChildErrorLinux reads the raw bootstrap.ChildError the child wrote
// right after its TokenError byte (see childExit in the bootstrap
// package). The struct crosses the socket as raw bytes, not as an
// encoded message, since the child side can only call
// async-signal-safe raw syscalls; this is its exact mirror image on the
// allocating parent side.
func readChildErrorLinux(fd int, ce *bootstrap.ChildError) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(ce)), int(unsafe.Sizeof(*ce)))
	for off := 0; off < len(buf); {
		n, err := unix.Read(fd, buf[off:])
		if err == unix.EINTR {
			continue
		}
		if n <= 0 {
			return
		}
		off += n
	}
}
