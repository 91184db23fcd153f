// Package errs defines the error kinds shared across the supervisor, the
// cgroup driver and the child bootstrap path. Call sites wrap these with
// fmt.Errorf("%w: ...") so errors.Is still matches the kind.
package errs

import "errors"

var (
	// ErrConfigInvalid marks a parsing or validation failure on cgroup file
	// contents or on SandboxConfig itself.
	ErrConfigInvalid = errors.New("nsjail: invalid configuration")

	// ErrKernelRefused marks a syscall that returned an error the caller
	// cannot work around (clone, statfs, mount, prctl, ...).
	ErrKernelRefused = errors.New("nsjail: kernel refused request")

	// ErrPeerLost marks a short or failed read/write on the handshake
	// channel, meaning the peer died before completing the protocol.
	ErrPeerLost = errors.New("nsjail: handshake peer lost")

	// ErrAccountingUnavailable marks an expected cgroup accounting file
	// that could not be read. Callers log this and record -1, they never
	// treat it as fatal.
	ErrAccountingUnavailable = errors.New("nsjail: cgroup accounting unavailable")

	// ErrChildAborted marks a child that reported ERROR on the handshake
	// channel before reaching execve.
	ErrChildAborted = errors.New("nsjail: child aborted before exec")
)
