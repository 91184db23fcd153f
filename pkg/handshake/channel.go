// Package handshake implements the single-byte token protocol a cloned
// child and its supervisor use to hand off control around execve: the
// parent sends DONE once the child's cgroup and registry entry exist, and
// the child blocks for that token before proceeding past its
// wait-for-parent step. The child sends ERROR if it aborts before execve;
// the parent sends ERROR when it abandons a spawn.
//
// The channel is a close-on-exec socketpair: the child side's read/write
// are issued with syscall.RawSyscall so it stays async-signal-safe after
// clone and before execve.
package handshake

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Token is a single byte sent over the channel.
type Token byte

const (
	// TokenDone is sent by the parent once the child's cgroup/registry
	// entry exist, releasing the child to proceed to execve.
	TokenDone Token = 'D'
	// TokenError signals that the sender aborted and the receiver should
	// tear the child down rather than proceed.
	TokenError Token = 'E'
)

// ErrPeerLost is returned when a read observes EOF or a short read: the
// peer closed its end (crashed, was killed, or exited) without sending a
// token, so no payload can follow.
var ErrPeerLost = errors.New("handshake: peer closed channel without sending a token")

// NewPair creates a close-on-exec, non-CLONE_VM-shared socketpair: fds[0]
// is conventionally kept by the parent, fds[1] passed to the child across
// clone (the child's copy survives clone because the fd table, unlike the
// address space, is duplicated rather than shared when CLONE_VM is unset).
func NewPair() (parent, child int, err error) {
	fds, err := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("handshake: socketpair: %w", err)
	}
	return fds[0], fds[1], nil
}

// Channel is the parent-side, non-async-signal-safe half of the protocol:
// ordinary blocking read/write through the fd, safe to use from regular
// Go code after the clone has returned in the parent.
type Channel struct {
	fd int
}

// New wraps an already-open fd (one end of a NewPair socketpair) for use
// from ordinary Go code.
func New(fd int) *Channel {
	return &Channel{fd: fd}
}

// Send writes a single token.
func (c *Channel) Send(t Token) error {
	buf := [1]byte{byte(t)}
	for {
		n, err := unix.Write(c.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("handshake: write: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("handshake: short write (%d bytes)", n)
		}
		return nil
	}
}

// Recv blocks for a single token. EOF or a short read is reported as
// ErrPeerLost rather than a generic I/O error, since that is the one
// condition the caller (the supervisor's Spawn, after sending DONE) needs
// to branch on specifically: the other side is gone, not merely slow.
func (c *Channel) Recv() (Token, error) {
	var buf [1]byte
	for {
		n, err := unix.Read(c.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("handshake: read: %w", err)
		}
		if n == 0 {
			return 0, ErrPeerLost
		}
		if n != 1 {
			return 0, ErrPeerLost
		}
		return Token(buf[0]), nil
	}
}

// Close releases the fd. Safe to call once; a second call returns the
// underlying close(2) error, which callers generally ignore.
func (c *Channel) Close() error {
	return unix.Close(c.fd)
}

// ChildSend is the async-signal-safe twin of Channel.Send, usable in the
// window between clone() returning in the child and execve: it must not
// allocate or call into anything beyond raw syscalls, so it takes a bare
// fd rather than a *Channel.
//
//go:norace
func ChildSend(fd int, t Token) {
	buf := [1]byte{byte(t)}
	for {
		_, _, errno := syscall.RawSyscall(syscall.SYS_WRITE, uintptr(fd), uintptr(unsafe.Pointer(&buf[0])), 1)
		if errno == syscall.EINTR {
			continue
		}
		return
	}
}

// ChildRecv is the async-signal-safe twin of Channel.Recv, blocking the
// child until the parent sends a token or closes its end. A lost peer
// (n != 1) is reported as TokenError: the child has no logging available
// at this point, and aborting is the only safe reaction.
//
//go:norace
func ChildRecv(fd int) Token {
	var buf [1]byte
	for {
		n, _, errno := syscall.RawSyscall(syscall.SYS_READ, uintptr(fd), uintptr(unsafe.Pointer(&buf[0])), 1)
		if errno == syscall.EINTR {
			continue
		}
		if n != 1 {
			return TokenError
		}
		return Token(buf[0])
	}
}
