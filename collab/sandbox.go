package collab

import (
	"fmt"
	"io"
	"os"

	"github.com/SageSeekerSociety/nsjail/pkg/seccomp"
	libseccomp "github.com/seccomp/libseccomp-golang"
)

// Policy is a minimal description of the seccomp program a sandboxed
// child should run under: a default action for anything not explicitly
// ruled on, plus a rule list applied in order.
type Policy struct {
	Default Action
	Rules   []Rule
}

// Action mirrors seccomp.Action at the collab boundary so callers don't
// need to import the low-level package just to build a Policy.
type Action = seccomp.Action

const (
	ActionAllow       = seccomp.ActionAllow
	ActionErrno       = seccomp.ActionErrno
	ActionTrace       = seccomp.ActionTrace
	ActionKillProcess = seccomp.ActionKillProcess
)

// Rule mirrors seccomp.Rule.
type Rule = seccomp.Rule

func toScmpAction(a Action, errno int16) libseccomp.ScmpAction {
	switch a {
	case ActionAllow:
		return libseccomp.ActAllow
	case ActionErrno:
		return libseccomp.ActErrno.SetReturnCode(errno)
	case ActionTrace:
		return libseccomp.ActTrace
	default:
		return libseccomp.ActKillProcess
	}
}

func toScmpDefault(a Action) libseccomp.ScmpAction {
	switch a {
	case ActionAllow:
		return libseccomp.ActAllow
	case ActionErrno:
		return libseccomp.ActErrno
	case ActionTrace:
		return libseccomp.ActTrace
	default:
		return libseccomp.ActKillProcess
	}
}

// ApplyPolicy compiles p into a raw seccomp-bpf program using
// libseccomp's filter builder and BPF exporter. It must run before the
// child is cloned: the resulting Filter is installed in the child with a
// single raw seccomp(2) syscall, which cannot itself call into
// libseccomp's allocating, cgo-backed API.
func ApplyPolicy(p Policy) (seccomp.Filter, error) {
	filter, err := libseccomp.NewFilter(toScmpDefault(p.Default))
	if err != nil {
		return nil, fmt.Errorf("collab: NewFilter: %w", err)
	}
	defer filter.Release()

	for _, r := range p.Rules {
		syscallID, err := libseccomp.GetSyscallFromName(r.Syscall)
		if err != nil {
			return nil, fmt.Errorf("collab: unknown syscall %q: %w", r.Syscall, err)
		}
		if err := filter.AddRule(syscallID, toScmpAction(r.Action, r.Errno)); err != nil {
			return nil, fmt.Errorf("collab: AddRule(%q): %w", r.Syscall, err)
		}
	}

	return exportBPF(filter)
}

func exportBPF(filter *libseccomp.ScmpFilter) (seccomp.Filter, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("collab: pipe: %w", err)
	}
	defer r.Close()

	exportErr := make(chan error, 1)
	go func() {
		exportErr <- filter.ExportBPF(w)
		w.Close()
	}()

	bin, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("collab: reading exported BPF: %w", err)
	}
	if err := <-exportErr; err != nil {
		return nil, fmt.Errorf("collab: ExportBPF: %w", err)
	}
	return seccomp.Filter(bin), nil
}
