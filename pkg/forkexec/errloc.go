// Package forkexec implements the clone policy described for the clone
// engine: deciding between clone3 and the legacy clone syscall, rejecting
// configurations clone3 cannot safely honor, and retrying once when the
// kernel refuses a flag combination it doesn't support.
//
// The actual child-side trampoline that runs between clone returning in
// the child and execve lives in the bootstrap package, since it shares
// the async-signal-safe constraints with the containment steps bootstrap
// is responsible for; forkexec only owns getting the clone syscall itself
// right.
package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation pinpoints which step of the clone attempt failed, so a
// caller logging a clone failure can say where without needing the
// syscall errno to be self-explanatory.
type ErrorLocation int

const (
	LocUnknown ErrorLocation = iota
	LocClone3
	LocClone3Retry
	LocCloneLegacy
	LocSocketpair
)

var locNames = [...]string{
	"unknown",
	"clone3",
	"clone3_retry_without_clear_sighand",
	"clone_legacy",
	"socketpair",
}

func (l ErrorLocation) String() string {
	if int(l) < len(locNames) {
		return locNames[l]
	}
	return "unknown"
}

// CloneError reports which clone location failed and with what errno.
type CloneError struct {
	Location ErrorLocation
	Err      syscall.Errno
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("forkexec: %s: %s", e.Location, e.Err.Error())
}

func (e *CloneError) Unwrap() error {
	return e.Err
}
