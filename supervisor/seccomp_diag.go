package supervisor

import (
	"strconv"
	"strings"

	"github.com/SageSeekerSociety/nsjail/logging"
	"golang.org/x/sys/unix"
)

// seccompDiagBufSize bounds the read from /proc/<pid>/syscall: the
// kernel's own format (up to nine decimal fields) never approaches this,
// it is just a sane ceiling against a surprising kernel change.
const seccompDiagBufSize = 512

// logSeccompViolation reads the killing syscall's number, six argument
// registers, stack pointer and program counter from the accounting FD
// captured at spawn time. It must run before the consuming wait4:
// /proc/<pid>/syscall stops being readable once the zombie is reaped.
func (s *Supervisor) logSeccompViolation(pid int) {
	rec := s.Registry.Lookup(pid)
	if rec == nil || rec.AccountingFD < 0 {
		logging.Warnf(logging.CategorySeccomp, "pid %d: killed by SIGSYS but no accounting FD available", pid)
		return
	}

	buf := make([]byte, seccompDiagBufSize)
	n, err := unix.Pread(rec.AccountingFD, buf, 0)
	if err != nil || n == 0 {
		logging.Warnf(logging.CategorySeccomp, "pid %d: killed by SIGSYS, /proc/%d/syscall unreadable: %v", pid, pid, err)
		return
	}

	fields := strings.Fields(string(buf[:n]))
	nums := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 0, 64)
		if err != nil {
			break
		}
		nums = append(nums, v)
	}

	switch {
	case len(nums) >= 9:
		logging.Errorf(logging.CategorySeccomp,
			"pid %d: killed by SIGSYS: syscall=%d args=[%d %d %d %d %d %d] sp=%#x pc=%#x",
			pid, nums[0], nums[1], nums[2], nums[3], nums[4], nums[5], nums[6], nums[7], nums[8])
	case len(nums) > 0:
		logging.Errorf(logging.CategorySeccomp, "pid %d: killed by SIGSYS, degraded syscall info: %v", pid, nums)
	default:
		logging.Warnf(logging.CategorySeccomp, "pid %d: killed by SIGSYS, /proc/%d/syscall had no parseable fields", pid, pid)
	}
}
