package bootstrap

import (
	"fmt"
	"syscall"
)

// ErrorLocation pinpoints which bootstrap step failed in the child,
// exactly the purpose forkexec.ErrorLocation serves for the clone step
// itself; kept as a separate, bootstrap-scoped enum since the two
// packages fail at different points in the child's lifetime.
type ErrorLocation int

const (
	LocUnknown ErrorLocation = iota
	LocDup3
	LocFcntl
	LocSigAction
	LocHandshakeWait
	LocSetRlimit
	LocNoNewPrivs
	LocSeccomp
	LocSetHostName
	LocSetDomainName
	LocExecve
)

var locNames = [...]string{
	"unknown",
	"dup3",
	"fcntl",
	"sigaction",
	"handshake_wait",
	"set_rlimit",
	"set_no_new_privs",
	"seccomp",
	"set_hostname",
	"set_domainname",
	"execve",
}

func (l ErrorLocation) String() string {
	if int(l) < len(locNames) {
		return locNames[l]
	}
	return "unknown"
}

// ChildError is written to the handshake channel (after the TokenError
// byte) when a bootstrap step fails in the child; the supervisor decodes
// it to log precisely where containment broke down instead of just
// "child exited".
type ChildError struct {
	Location ErrorLocation
	Index    int32
	Err      syscall.Errno
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("bootstrap: %s(%d): %s", e.Location, e.Index, e.Err.Error())
	}
	return fmt.Sprintf("bootstrap: %s: %s", e.Location, e.Err.Error())
}
