package cgroup

import (
	"os"
	"strconv"

	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/logging"
)

// legacyControllerRoots are the per-controller mount points of a classic
// cgroup v1 hierarchy, as mounted by the distributions that still run one
// controller per directory under /sys/fs/cgroup rather than the unified v2
// hierarchy.
var legacyControllerRoots = map[string]string{
	"memory": "/sys/fs/cgroup/memory",
	"pids":   "/sys/fs/cgroup/pids",
	"cpu":    "/sys/fs/cgroup/cpu,cpuacct",
}

// V1Driver is the legacy alternate to V2Driver, speaking the older
// per-controller cgroup v1 protocol: no subtree_control delegation step,
// one directory tree per controller instead of one unified tree, and
// different file names for the same limits (memory.limit_in_bytes instead
// of memory.max, cpu.cfs_quota_us/cpu.cfs_period_us instead of cpu.max).
// Selected by the supervisor only when Detect on the v2 mount fails.
type V1Driver struct{}

// NewV1Driver returns a driver over the host's legacy hierarchy.
func NewV1Driver() *V1Driver {
	return &V1Driver{}
}

// Setup is a no-op for v1: there is no subtree_control delegation step,
// each controller's root directory is already usable by any descendant
// cgroup a process creates under it.
func (d *V1Driver) Setup(c *config.SandboxConfig) error {
	return nil
}

func (d *V1Driver) childDir(controller string, pid int) string {
	return legacyControllerRoots[controller] + "/" + childPrefix + strconv.Itoa(pid)
}

func (d *V1Driver) initController(controller string, pid int, writes map[string]string) error {
	path := d.childDir(controller, pid)
	if err := createCgroupDir(path); err != nil {
		return err
	}
	if err := addPidToProcs(path, pid); err != nil {
		return err
	}
	for name, val := range writes {
		if err := writeControllerFile(path, name, val); err != nil {
			return err
		}
	}
	return nil
}

// InitChild creates NSJAIL.<pid> under each legacy controller root this
// config needs and writes its limit files, mirroring V2Driver.InitChild
// one controller tree at a time instead of in a single unified directory.
func (d *V1Driver) InitChild(pid int, c *config.SandboxConfig) error {
	if c.NeedMemoryController() {
		writes := map[string]string{}
		if c.MemoryMax > 0 {
			writes["memory.limit_in_bytes"] = strconv.FormatUint(c.MemoryMax, 10)
		}
		if swapMax, write := c.DerivedSwapMax(); write && c.MemoryMax > 0 {
			writes["memory.memsw.limit_in_bytes"] = strconv.FormatUint(c.MemoryMax+swapMax, 10)
		}
		if err := d.initController("memory", pid, writes); err != nil {
			return err
		}
	}

	if c.NeedPidsController() {
		writes := map[string]string{"pids.max": strconv.FormatUint(c.PidsMax, 10)}
		if err := d.initController("pids", pid, writes); err != nil {
			return err
		}
	}

	if c.NeedCPUController() {
		const periodUsec = 1000000
		quotaUsec := c.CPUMsPerSec * 1000
		writes := map[string]string{
			"cpu.cfs_period_us": strconv.Itoa(periodUsec),
			"cpu.cfs_quota_us":  strconv.FormatUint(quotaUsec, 10),
		}
		if err := d.initController("cpu", pid, writes); err != nil {
			return err
		}
	}

	return nil
}

// TeardownChild reads memory.max_usage_in_bytes and cpuacct.usage from
// whichever legacy controller trees exist for pid, then removes each of
// them. Unlike v2 there is no single accounting read: cpu time and memory
// peak live under different controller roots entirely.
func (d *V1Driver) TeardownChild(pid int) Accounting {
	acc := Accounting{MemoryPeakBytes: -1, CPUUsageUsec: -1}

	memPath := d.childDir("memory", pid)
	if b, err := os.ReadFile(memPath + "/memory.max_usage_in_bytes"); err == nil {
		if v, perr := ParseNonNegativeDecimal(b); perr == nil {
			acc.MemoryPeakBytes = v
		} else {
			logging.Warnf(logging.CategoryCgroup, "parsing %s/memory.max_usage_in_bytes: %v", memPath, perr)
		}
	}
	if err := os.Remove(memPath); err != nil && !os.IsNotExist(err) {
		logging.Warnf(logging.CategoryCgroup, "rmdir %s: %v", memPath, err)
	}

	cpuPath := d.childDir("cpu", pid)
	cpuAcctPath := legacyControllerRoots["cpu"] + "/" + childPrefix + strconv.Itoa(pid)
	if b, err := os.ReadFile(cpuAcctPath + "/cpuacct.usage"); err == nil {
		if v, perr := ParseNonNegativeDecimal(b); perr == nil {
			acc.CPUUsageUsec = v / 1000 // cpuacct.usage is nanoseconds
		} else {
			logging.Warnf(logging.CategoryCgroup, "parsing %s/cpuacct.usage: %v", cpuAcctPath, perr)
		}
	}
	if err := os.Remove(cpuPath); err != nil && !os.IsNotExist(err) {
		logging.Warnf(logging.CategoryCgroup, "rmdir %s: %v", cpuPath, err)
	}

	pidsPath := d.childDir("pids", pid)
	if err := os.Remove(pidsPath); err != nil && !os.IsNotExist(err) {
		logging.Warnf(logging.CategoryCgroup, "rmdir %s: %v", pidsPath, err)
	}

	return acc
}
