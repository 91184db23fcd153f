// Package seccomp holds the generated seccomp-bpf program format handed
// from the parent (where it is built) to the child bootstrap (where it is
// installed with a single raw seccomp(2) syscall).
package seccomp

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Filter is a raw kernel seccomp-bpf program, as exported by
// ScmpFilter.ExportBPF.
type Filter []byte

// SockFprog packages Filter as the struct sock_fprog the seccomp(2) and
// prctl(2) syscalls expect. The returned pointer aliases f's backing
// array, so f must outlive any use of the result.
func (f Filter) SockFprog() *unix.SockFprog {
	if len(f) == 0 {
		return nil
	}
	return &unix.SockFprog{
		Len:    uint16(len(f) / 8),
		Filter: (*unix.SockFilter)(unsafe.Pointer(&f[0])),
	}
}
