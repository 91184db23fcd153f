// Package bootstrap implements the child bootstrap sequence: the steps a
// newly cloned child runs, in order, between clone() returning and
// execve() replacing its image. Every step after clone and before execve
// runs with no Go runtime available to the child but the one it forked
// with mid-stride, so the whole sequence is written as a single
// async-signal-safe function using only raw syscalls, the same
// constraint and idiom the reference clone engine's trampoline follows.
package bootstrap

import (
	"fmt"
	"os"
	"syscall"

	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/pkg/rlimit"
	"golang.org/x/sys/unix"
)

// ChildSpec is everything the trampoline needs, pre-built by BuildChildSpec
// from a config.SandboxConfig and a collab.sandbox filter while the caller
// is still ordinary, allocating Go code. None of its fields may be
// mutated once the clone happens: the child only reads them.
type ChildSpec struct {
	Argv0 *byte
	Argv  []*byte
	Env   []*byte

	ExecFD      uintptr
	UseExecveAt bool

	RLimits []rlimit.RLimit

	Seccomp *unix.SockFprog

	StdinFD, StdoutFD, StderrFD uintptr

	HostName, DomainName *byte
	hostNameLen, domainNameLen int

	// HandshakeFD is the child's end of the handshake socketpair. The
	// trampoline blocks on it for TokenDone before proceeding past
	// containment, and writes TokenError plus a ChildError payload to it
	// on any failure.
	HandshakeFD int
}

// BuildChildSpec prepares argv/envp/hostname byte pointers and the rlimit
// list from c, the only work in the whole bootstrap sequence still
// allowed to allocate, since it all happens before clone.
func BuildChildSpec(c *config.SandboxConfig, seccomp *unix.SockFprog, handshakeFD int) (*ChildSpec, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("bootstrap: config has no Args")
	}
	argv0, err := syscall.BytePtrFromString(c.Args[0])
	if err != nil {
		return nil, fmt.Errorf("bootstrap: argv0: %w", err)
	}
	argv, err := syscall.SlicePtrFromStrings(c.Args)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: argv: %w", err)
	}
	env := c.Env
	if c.KeepEnv {
		env = append(append([]string{}, c.Env...), os.Environ()...)
	}
	envp, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: envp: %w", err)
	}

	spec := &ChildSpec{
		Argv0:       argv0,
		Argv:        argv,
		Env:         envp,
		ExecFD:      c.ExecFD,
		UseExecveAt: c.UseExecveAt,
		RLimits:     c.Rlimits.Prepare(),
		Seccomp:     seccomp,
		StdinFD:     c.StdinFD,
		StdoutFD:    c.StdoutFD,
		StderrFD:    c.StderrFD,
		HandshakeFD: handshakeFD,
	}
	if c.HostName != "" {
		spec.HostName, err = syscall.BytePtrFromString(c.HostName)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: hostname: %w", err)
		}
		spec.hostNameLen = len(c.HostName)
	}
	if c.DomainName != "" {
		spec.DomainName, err = syscall.BytePtrFromString(c.DomainName)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: domainname: %w", err)
		}
		spec.domainNameLen = len(c.DomainName)
	}
	return spec, nil
}
