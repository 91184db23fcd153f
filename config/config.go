// Package config defines the immutable SandboxConfig that drives a single
// spawn: which namespaces to create, the cgroup v2 resource caps to apply,
// the wall-clock and CPU budgets, and the target executable. It is built
// once by the caller (the out-of-scope CLI/config-file layer) and then
// treated as read-only by the rest of the module.
package config

import (
	"fmt"

	"github.com/SageSeekerSociety/nsjail/pkg/rlimit"
	"golang.org/x/sys/unix"
)

// Mode selects how the child process comes into being.
type Mode int

const (
	// ModeCloned creates the child with clone()/clone3() and the
	// parent/child handshake described in the handshake package.
	ModeCloned Mode = iota
	// ModeStandaloneExecve unshares the current process in place and
	// execs the target without forking a tracked child. Used for
	// single-shot invocations where there is no supervisor loop to
	// return to.
	ModeStandaloneExecve
)

// SandboxConfig is filled in by the caller after NewSandboxConfig and then
// treated as read-only: nothing in the supervisor, the cgroup driver, or
// the bootstrap path mutates it.
type SandboxConfig struct {
	// CloneFlags is the bitmask of CLONE_NEW* namespace flags (plus
	// CLONE_VM etc., which are rejected by the clone engine's policy
	// checks) requested for the child.
	CloneFlags uintptr

	Mode Mode

	// CgroupV2Mount is the mount point of the cgroup v2 hierarchy to use.
	// Ignored if UseCgroupV2 is false.
	CgroupV2Mount string

	// UseCgroupV2 is derived from Detect(CgroupV2Mount), not set directly
	// by callers; kept here so the whole config travels as one value.
	UseCgroupV2 bool

	// MemoryMax is memory.max in bytes. 0 means unset (file not written).
	MemoryMax uint64
	// SwapMax is memory.swap.max in bytes. Negative means unset.
	SwapMax int64
	// MemSwapMax is the combined memory+swap cap in bytes, from which
	// SwapMax is derived as MemSwapMax - MemoryMax when set (>0). It
	// takes precedence over SwapMax when both are specified.
	MemSwapMax uint64

	// PidsMax is pids.max. 0 means unset.
	PidsMax uint64

	// CPUMsPerSec is the CPU quota expressed in milliseconds of CPU time
	// allowed per wall-clock second. 0 means unset.
	CPUMsPerSec uint64

	// TimeLimitSec is the wall-clock budget for the child. 0 means
	// unlimited.
	TimeLimitSec uint64

	// CPURlimit is an RLIMIT_CPU value in seconds. Neither the bootstrap
	// nor the supervisor reads it: the RLIMIT_CPU applied in the child
	// comes from Rlimits.CPU and Rlimits.CPUHard.
	CPURlimit uint64
	// DisableRlimits is not consulted by BuildChildSpec or RunStandalone;
	// the non-zero entries of Rlimits are applied regardless of it.
	DisableRlimits bool
	Rlimits        rlimit.RLimits

	// ExecPath is used for path-based execve.
	ExecPath string
	// ExecFD is used for execveat(fd, "", ..., AT_EMPTY_PATH) when
	// UseExecveAt is set; must be a valid, already-open descriptor to the
	// target binary.
	ExecFD uintptr
	// UseExecveAt selects execveat over execve in the child bootstrap.
	UseExecveAt bool

	Args []string
	Env  []string
	// KeepEnv preserves the caller's environment instead of clearing it
	// before applying Env.
	KeepEnv bool

	// HostName and DomainName are applied after CLONE_NEWUTS, empty
	// strings leave the inherited values untouched.
	HostName, DomainName string

	// StdinFD, StdoutFD, StderrFD are dup2'd onto 0/1/2 in the child.
	// Zero value (0) means "leave the inherited descriptor as-is" only
	// when it is already the standard fd for that slot; callers needing
	// a real fd 0 must pass it explicitly via os.Stdin.Fd().
	StdinFD, StdoutFD, StderrFD uintptr
}

// NewSandboxConfig returns a SandboxConfig with the zero-value defaults
// the rest of the module assumes: in particular SwapMax starts at -1
// (unset) rather than Go's zero value of 0, which would otherwise be
// indistinguishable from "cap swap at 0 bytes". Callers fill in the
// fields they care about and then call Validate.
func NewSandboxConfig() *SandboxConfig {
	return &SandboxConfig{SwapMax: -1}
}

// Validate checks the invariants the rest of the module assumes hold, so
// a caller mistake is reported once at construction instead of surfacing
// as a confusing failure deep in Setup or Spawn.
func (c *SandboxConfig) Validate() error {
	if len(c.Args) == 0 {
		return fmt.Errorf("config: Args must have at least one element (argv[0])")
	}
	if !c.UseExecveAt && c.ExecPath == "" {
		return fmt.Errorf("config: ExecPath is required unless UseExecveAt is set")
	}
	if c.CloneFlags&unix.CLONE_VM != 0 {
		return fmt.Errorf("config: CLONE_VM is rejected, the child must have its own address space")
	}
	if c.MemSwapMax > 0 && c.MemSwapMax < c.MemoryMax {
		return fmt.Errorf("config: MemSwapMax (%d) must not be smaller than MemoryMax (%d)", c.MemSwapMax, c.MemoryMax)
	}
	return nil
}

// NeedMemoryController reports whether the memory controller must be
// enabled in cgroup.subtree_control before this config can be applied.
// It mirrors needMemoryController from the reference cgroup v2 driver: a
// combined mem+swap specification counts even when MemoryMax is zero; in
// that case memory.max is left unwritten and the derived swap value is the
// whole MemSwapMax (see DESIGN.md).
func (c *SandboxConfig) NeedMemoryController() bool {
	swapMax := c.SwapMax
	if c.MemSwapMax > 0 {
		swapMax = int64(c.MemSwapMax) - int64(c.MemoryMax)
	}
	if c.MemoryMax == 0 && swapMax < 0 {
		return false
	}
	return true
}

// NeedPidsController reports whether the pids controller must be enabled.
func (c *SandboxConfig) NeedPidsController() bool {
	return c.PidsMax != 0
}

// NeedCPUController reports whether the cpu controller must be enabled.
func (c *SandboxConfig) NeedCPUController() bool {
	return c.CPUMsPerSec != 0
}

// DerivedSwapMax computes the effective memory.swap.max value and whether
// it should be written at all: a combined MemSwapMax takes precedence over
// SwapMax, and the file is only written when the derived value is
// non-negative.
func (c *SandboxConfig) DerivedSwapMax() (value uint64, write bool) {
	swapMax := c.SwapMax
	if c.MemSwapMax > 0 {
		swapMax = int64(c.MemSwapMax) - int64(c.MemoryMax)
	}
	if swapMax < 0 {
		return 0, false
	}
	return uint64(swapMax), true
}
