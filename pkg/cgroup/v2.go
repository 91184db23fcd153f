package cgroup

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/errs"
	"github.com/SageSeekerSociety/nsjail/logging"
	"golang.org/x/sys/unix"
)

// CGROUP2_SUPER_MAGIC is linux/magic.h's cgroup2 superblock magic, used by
// detectCgroupV2 to tell a real cgroup2 mount apart from anything else that
// happens to exist at the configured path.
const cgroup2SuperMagic = 0x63677270

// detectCgroupV2 statfs's mount and reports whether it is a live cgroup v2
// hierarchy. A statfs failure (bad path, not mounted) is not fatal here,
// it just means v2 support is absent and the caller falls back to v1 or no
// accounting at all.
func detectCgroupV2(mount string) bool {
	var buf unix.Statfs_t
	if err := unix.Statfs(mount, &buf); err != nil {
		logging.Debugf(logging.CategoryCgroup, "statfs %s failed: %v", mount, err)
		return false
	}
	return int64(buf.Type) == cgroup2SuperMagic
}

// V2Driver drives the cgroup v2 delegation protocol described in
// cgroup2.cc: enabling controllers in the root cgroup.subtree_control
// (self-migrating into NSJAIL_SELF.<pid> if the kernel's "no internal
// processes" rule blocks the first attempt), then creating one
// NSJAIL.<pid> cgroup per child to hold its limits and accounting.
type V2Driver struct {
	mount string

	setupOnce sync.Once
	setupErr  error
}

// NewV2Driver returns a driver bound to mount, which must already have
// been confirmed live via Detect.
func NewV2Driver(mount string) *V2Driver {
	return &V2Driver{mount: mount}
}

func (d *V2Driver) childPath(pid int) string {
	return d.mount + "/" + childPrefix + strconv.Itoa(pid)
}

func (d *V2Driver) selfPath() string {
	return d.mount + "/" + selfPrefix + strconv.Itoa(os.Getpid())
}

func createCgroupDir(path string) error {
	if err := os.Mkdir(path, dirPerm); err != nil && !os.IsExist(err) {
		return fmt.Errorf("%w: mkdir %s: %v", errs.ErrKernelRefused, path, err)
	}
	return nil
}

func addPidToProcs(path string, pid int) error {
	f, err := os.OpenFile(path+"/"+cgroupProcs, os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s/%s: %v", errs.ErrKernelRefused, path, cgroupProcs, err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("%w: write %s/%s: %v", errs.ErrKernelRefused, path, cgroupProcs, err)
	}
	return nil
}

func writeControllerFile(path, name, val string) error {
	f, err := os.OpenFile(path+"/"+name, os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s/%s: %v", errs.ErrKernelRefused, path, name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(val); err != nil {
		return fmt.Errorf("%w: write %s/%s=%s: %w", errs.ErrKernelRefused, path, name, val, err)
	}
	return nil
}

// enableSubtree tries enabling +controller in the root subtree_control
// once, and if that fails with EBUSY (the "no internal processes" rule
// blocking us because the supervisor itself is a member of the root
// cgroup) self-migrates into NSJAIL_SELF.<pid> and retries exactly once
// more. Any other failure, or a second failure after migrating, is fatal.
func (d *V2Driver) enableSubtree(controller string) error {
	val := "+" + controller
	firstErr := writeControllerFile(d.mount, cgroupSubtreeControl, val)
	if firstErr == nil {
		return nil
	}
	if !errors.Is(firstErr, unix.EBUSY) {
		return fmt.Errorf("%w: could not enable +%s in %s/%s: %v",
			errs.ErrKernelRefused, controller, d.mount, cgroupSubtreeControl, firstErr)
	}

	logging.Infof(logging.CategoryCgroup, "enabling +%s busy, migrating self into %s", controller, d.selfPath())
	if err := createCgroupDir(d.selfPath()); err != nil {
		return err
	}
	if err := addPidToProcs(d.selfPath(), 0); err != nil {
		return err
	}
	if err := writeControllerFile(d.mount, cgroupSubtreeControl, val); err != nil {
		return fmt.Errorf("%w: could not enable +%s in %s/%s after self-migration: %v",
			errs.ErrKernelRefused, controller, d.mount, cgroupSubtreeControl, err)
	}
	return nil
}

// Setup enables +memory/+pids/+cpu in the root cgroup.subtree_control for
// whichever controllers c needs, exactly once per driver instance: later
// calls with a different config reuse the first outcome, since the root
// subtree_control is shared mutable kernel state and re-writing it for
// every spawn would just race the children that are already running.
func (d *V2Driver) Setup(c *config.SandboxConfig) error {
	d.setupOnce.Do(func() {
		d.setupErr = d.setupControllers(c)
	})
	return d.setupErr
}

func (d *V2Driver) setupControllers(c *config.SandboxConfig) error {
	if c.NeedMemoryController() {
		if err := d.enableSubtree("memory"); err != nil {
			return err
		}
	}
	if c.NeedPidsController() {
		if err := d.enableSubtree("pids"); err != nil {
			return err
		}
	}
	if c.NeedCPUController() {
		if err := d.enableSubtree("cpu"); err != nil {
			return err
		}
	}
	return nil
}

// InitChild creates NSJAIL.<pid>, adds pid to its cgroup.procs, and writes
// memory.max/memory.swap.max, pids.max and cpu.max as requested. Mirrors
// initNsFromParent: each resource group is independently gated on whether
// it is needed, but they all share the same per-child directory.
func (d *V2Driver) InitChild(pid int, c *config.SandboxConfig) error {
	needMem := c.NeedMemoryController()
	needPids := c.NeedPidsController()
	needCPU := c.NeedCPUController()
	if !needMem && !needPids && !needCPU {
		return nil
	}

	path := d.childPath(pid)
	if err := createCgroupDir(path); err != nil {
		return err
	}
	if err := addPidToProcs(path, pid); err != nil {
		return err
	}

	if needMem {
		if c.MemoryMax > 0 {
			if err := writeControllerFile(path, "memory.max", strconv.FormatUint(c.MemoryMax, 10)); err != nil {
				return err
			}
		}
		if swapMax, write := c.DerivedSwapMax(); write {
			if err := writeControllerFile(path, "memory.swap.max", strconv.FormatUint(swapMax, 10)); err != nil {
				return err
			}
		}
	}

	if needPids {
		if err := writeControllerFile(path, "pids.max", strconv.FormatUint(c.PidsMax, 10)); err != nil {
			return err
		}
	}

	if needCPU {
		quotaUsec := c.CPUMsPerSec * 1000
		val := strconv.FormatUint(quotaUsec, 10) + " 1000000"
		if err := writeControllerFile(path, "cpu.max", val); err != nil {
			return err
		}
	}

	return nil
}

// TeardownChild reads memory.peak and cpu.stat before removing the
// per-child cgroup, matching finishFromParent/removeCgroup's read-then-
// rmdir ordering: the directory must still exist when the accounting
// files are read.
func (d *V2Driver) TeardownChild(pid int) Accounting {
	path := d.childPath(pid)
	acc := Accounting{MemoryPeakBytes: -1, CPUUsageUsec: -1}

	if b, err := os.ReadFile(path + "/memory.peak"); err != nil {
		logging.Warnf(logging.CategoryCgroup, "reading %s/memory.peak: %v", path, err)
	} else if v, perr := ParseNonNegativeDecimal(b); perr != nil {
		logging.Warnf(logging.CategoryCgroup, "parsing %s/memory.peak: %v", path, perr)
	} else {
		acc.MemoryPeakBytes = v
	}

	if b, err := os.ReadFile(path + "/cpu.stat"); err != nil {
		logging.Warnf(logging.CategoryCgroup, "reading %s/cpu.stat: %v", path, err)
	} else if v, perr := ParseCPUStatUsage(b); perr != nil {
		logging.Warnf(logging.CategoryCgroup, "parsing %s/cpu.stat: %v", path, perr)
	} else {
		acc.CPUUsageUsec = v
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warnf(logging.CategoryCgroup, "rmdir %s: %v", path, err)
	}

	return acc
}
