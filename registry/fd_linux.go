package registry

import "golang.org/x/sys/unix"

func closeAccountingFD(fd int) {
	unix.Close(fd)
}
