// Package rlimit builds the setrlimit(2) argument list applied to a
// sandboxed child right before execve. Only limits that are non-zero (or,
// for DisableCore, explicitly requested) are included, so callers that
// don't care about a given resource never touch its rlimit at all.
package rlimit

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/SageSeekerSociety/nsjail/pkg/runnersize"
)

// RLimits is the resource budget requested for a child. CPU is in seconds
// (soft limit, typically delivering SIGXCPU); CPUHard is the seconds limit
// enforced with SIGKILL. The hard value Prepare applies (CPUHard raised to
// at least CPU) is also what the reaper compares consumed CPU time against
// when classifying a SIGKILL post-mortem.
type RLimits struct {
	CPU         uint64 // soft limit, seconds
	CPUHard     uint64 // hard limit, seconds
	Data        uint64 // bytes
	FileSize    uint64 // bytes
	Stack       uint64 // bytes
	AddressSpace uint64 // bytes
	OpenFile    uint64 // descriptor count
	DisableCore bool   // force core dump size to 0
}

// RLimit pairs a syscall.RLIMIT_* constant with the value to apply.
type RLimit struct {
	Res  int
	Rlim syscall.Rlimit
}

func limit(cur, max uint64) syscall.Rlimit {
	return syscall.Rlimit{Cur: cur, Max: max}
}

// Prepare builds the []RLimit to feed into the child bootstrap's setrlimit
// loop. CPUHard is raised to at least CPU if both are set, since a soft
// limit above the hard limit is rejected by the kernel.
func (r *RLimits) Prepare() []RLimit {
	var out []RLimit
	if r.CPU > 0 {
		hard := r.CPUHard
		if hard < r.CPU {
			hard = r.CPU
		}
		out = append(out, RLimit{Res: syscall.RLIMIT_CPU, Rlim: limit(r.CPU, hard)})
	}
	if r.Data > 0 {
		out = append(out, RLimit{Res: syscall.RLIMIT_DATA, Rlim: limit(r.Data, r.Data)})
	}
	if r.FileSize > 0 {
		out = append(out, RLimit{Res: syscall.RLIMIT_FSIZE, Rlim: limit(r.FileSize, r.FileSize)})
	}
	if r.Stack > 0 {
		out = append(out, RLimit{Res: syscall.RLIMIT_STACK, Rlim: limit(r.Stack, r.Stack)})
	}
	if r.AddressSpace > 0 {
		out = append(out, RLimit{Res: syscall.RLIMIT_AS, Rlim: limit(r.AddressSpace, r.AddressSpace)})
	}
	if r.OpenFile > 0 {
		out = append(out, RLimit{Res: syscall.RLIMIT_NOFILE, Rlim: limit(r.OpenFile, r.OpenFile)})
	}
	if r.DisableCore {
		out = append(out, RLimit{Res: syscall.RLIMIT_CORE, Rlim: limit(0, 0)})
	}
	return out
}

func (r RLimit) String() string {
	if r.Res == syscall.RLIMIT_CPU {
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	}
	name := ""
	switch r.Res {
	case syscall.RLIMIT_DATA:
		name = "Data"
	case syscall.RLIMIT_FSIZE:
		name = "File"
	case syscall.RLIMIT_STACK:
		name = "Stack"
	case syscall.RLIMIT_AS:
		name = "AddressSpace"
	case syscall.RLIMIT_NOFILE:
		name = "OpenFile"
	case syscall.RLIMIT_CORE:
		name = "Core"
	}
	return fmt.Sprintf("%s[%v:%v]", name, runnersize.Size(r.Rlim.Cur), runnersize.Size(r.Rlim.Max))
}

func (r RLimits) String() string {
	var sb strings.Builder
	sb.WriteString("RLimits[")
	for i, rl := range r.Prepare() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rl.String())
	}
	sb.WriteString("]")
	return sb.String()
}
