// Package cgroup drives the cgroup v2 controller delegation protocol (and,
// as a legacy alternate dispatch target, cgroup v1): detecting the mount,
// enabling the controllers a SandboxConfig needs in cgroup.subtree_control,
// creating and tearing down one directory per sandboxed child, writing its
// resource limits, and reading back accounting on exit.
//
// v1 and v2 are modeled as two implementations of the same Driver
// interface rather than an if/else ladder at every call site (see
// DESIGN.md, "mixed-path dispatch"); the supervisor picks one at startup
// based on Detect and never branches on the type again.
package cgroup

import "github.com/SageSeekerSociety/nsjail/config"

// Accounting is what TeardownChild reports after best-effort reads of the
// cgroup's accounting files. A -1 field means the read failed or the
// content was malformed; it is never a valid account of real usage, so
// callers can distinguish "zero bytes peak" from "couldn't tell".
type Accounting struct {
	MemoryPeakBytes int64
	CPUUsageUsec    int64
}

// Driver is the capability interface a supervisor holds one instance of
// after Detect has run. It must be safe to call InitChild and
// TeardownChild repeatedly, once per child, with no hidden ordering
// requirement other than "init before execve, teardown after reap".
type Driver interface {
	// Setup enables the controllers c needs in the root
	// cgroup.subtree_control, self-migrating the supervisor into a child
	// cgroup if the "no internal processes" rule blocks the first
	// attempt. Idempotent: a second Setup call on the same configuration
	// does not re-write subtree_control. Fatal failures are signaled
	// through the returned error; the caller is expected to treat Setup
	// failure as fatal for the whole process, since no child can ever be
	// contained afterward.
	Setup(c *config.SandboxConfig) error

	// InitChild creates the per-child cgroup, adds pid to it, and writes
	// the limits from c. Must be called before the child is allowed to
	// reach execve. Any failure aborts the spawn.
	InitChild(pid int, c *config.SandboxConfig) error

	// TeardownChild reads accounting from the per-child cgroup, removes
	// the directory, and returns what it could read. Called after the
	// child has been reaped. Missing files are not an error condition
	// for the caller: they show up as -1 fields in Accounting.
	TeardownChild(pid int) Accounting
}

// Detect reports whether mount refers to a live cgroup v2 hierarchy, by
// comparing the statfs filesystem type of mount against the cgroup2 magic
// (see detectCgroupV2).
func Detect(mount string) bool {
	return detectCgroupV2(mount)
}
