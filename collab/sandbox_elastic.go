package collab

import (
	"fmt"
	"unsafe"

	"github.com/SageSeekerSociety/nsjail/pkg/seccomp"
	elastic "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/sys/unix"
)

// toElasticAction converts a Policy action to the pure-Go assembler's
// Action type, mirroring the reference builder's ToSeccompAction: the
// low 16 bits of a seccomp return value carry SECCOMP_RET_DATA, used
// here to pass through the configured errno for ActionErrno.
func toElasticAction(a Action, errno int16) elastic.Action {
	var action elastic.Action
	switch a {
	case ActionAllow:
		action = elastic.ActionAllow
	case ActionErrno:
		action = elastic.ActionErrno
	case ActionTrace:
		action = elastic.ActionTrace
	default:
		action = elastic.ActionKillProcess
	}
	return action.WithReturnData(int(errno))
}

func toElasticDefault(a Action) elastic.Action {
	switch a {
	case ActionAllow:
		return elastic.ActionAllow
	case ActionErrno:
		return elastic.ActionErrno
	case ActionTrace:
		return elastic.ActionTrace
	default:
		return elastic.ActionKillProcess
	}
}

// ApplyPolicyPureGo is the cgo-free alternate to ApplyPolicy: it compiles
// p with go-seccomp-bpf's own BPF assembler instead of linking against
// libseccomp. Used on build configurations where libseccomp's C library
// is unavailable (static binaries, minimal containers) but a seccomp
// filter is still required.
func ApplyPolicyPureGo(p Policy) (seccomp.Filter, error) {
	policy := &elastic.Policy{
		DefaultAction: toElasticDefault(p.Default),
	}
	for _, r := range p.Rules {
		policy.Syscalls = append(policy.Syscalls, elastic.SyscallGroup{
			Action: toElasticAction(r.Action, r.Errno),
			Names:  []string{r.Syscall},
		})
	}

	insns, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("collab: go-seccomp-bpf assemble: %w", err)
	}
	return rawInstructionsToFilter(insns), nil
}

// rawInstructionsToFilter re-packs the assembled BPF program as the flat
// byte form pkg/seccomp.Filter expects: each unix.SockFilter is 8 bytes
// on the wire (code uint16, jt/jf uint8, k uint32), the same layout
// Filter.SockFprog aliases in the other direction.
func rawInstructionsToFilter(insns []unix.SockFilter) seccomp.Filter {
	if len(insns) == 0 {
		return nil
	}
	out := make([]byte, len(insns)*int(unsafe.Sizeof(unix.SockFilter{})))
	for i, insn := range insns {
		*(*unix.SockFilter)(unsafe.Pointer(&out[i*int(unsafe.Sizeof(unix.SockFilter{}))])) = insn
	}
	return seccomp.Filter(out)
}
