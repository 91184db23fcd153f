package supervisor

import (
	"time"

	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/logging"
	"github.com/SageSeekerSociety/nsjail/registry"
	"golang.org/x/sys/unix"
)

// ExitReport describes one reaped child.
type ExitReport struct {
	PID      int
	ExitCode int // WIFEXITED status, or 128+signal for WIFSIGNALED.
	Reason   ExitReason
	CPUUsec  int64
}

// ExitReason classifies how a child ended, beyond the raw exit code, for
// operators who want to distinguish "the sandboxed program asked to
// exit with 137" from "we killed it for exceeding its CPU budget".
type ExitReason int

const (
	ReasonExited ExitReason = iota
	ReasonSignaled
	ReasonCPUSoftLimit
	ReasonCPUHardLimit
)

// Drain peeks every child that has exited without consuming its wait
// status (WNOHANG|WNOWAIT), so a SIGSYS child's /proc/<pid>/syscall is
// still readable for diagnostics before the real, status-consuming
// wait4 runs below. It returns one ExitReport per child reaped this
// pass; an empty slice means nothing had exited yet.
func (s *Supervisor) Drain() []ExitReport {
	var reports []ExitReport
	for {
		pid, ws, ok := peekExited()
		if !ok {
			break
		}
		if ws.Signaled() && ws.Signal() == unix.SIGSYS {
			s.logSeccompViolation(pid)
		}
		reports = append(reports, s.reap(pid))
	}
	return reports
}

// peekExited wraps wait4(-1, WNOHANG|WNOWAIT): it reports any child that
// has exited without removing it from the process table, so Drain can
// run diagnostics before the consuming wait4 in reap. ok is false when
// nothing has exited.
func peekExited() (pid int, ws unix.WaitStatus, ok bool) {
	p, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WNOWAIT, nil)
	if err != nil || p <= 0 {
		return 0, ws, false
	}
	return p, ws, true
}

// reap consumes the exit status of pid (which must already be known
// exited, per Drain's peek), classifies it, tears down its cgroup, and
// removes its registry record. Accounting is read strictly before the
// cgroup directory is removed, which happens strictly before the record
// disappears.
func (s *Supervisor) reap(pid int) ExitReport {
	var ws unix.WaitStatus
	var ru unix.Rusage
	for {
		_, err := unix.Wait4(pid, &ws, 0, &ru)
		if err != unix.EINTR {
			break
		}
	}

	cpuUsec := int64(ru.Utime.Sec)*1e6 + int64(ru.Utime.Usec) + int64(ru.Stime.Sec)*1e6 + int64(ru.Stime.Usec)

	report := ExitReport{PID: pid, CPUUsec: cpuUsec}
	switch {
	case ws.Exited():
		report.ExitCode = ws.ExitStatus()
		report.Reason = ReasonExited
	case ws.Signaled():
		sig := ws.Signal()
		report.ExitCode = 128 + int(sig)
		report.Reason = classifySignal(s.Registry.Lookup(pid), sig, cpuUsec)
	}

	accounting := s.Driver.TeardownChild(pid)
	logging.Infof(logging.CategoryReap, "pid %d: reaped (%s), cgroup peak mem=%d cpu_usec=%d",
		pid, reasonString(report.Reason), accounting.MemoryPeakBytes, accounting.CPUUsageUsec)

	s.Registry.Remove(pid)
	return report
}

func classifySignal(rec *registry.Record, sig unix.Signal, cpuUsec int64) ExitReason {
	switch sig {
	case unix.SIGXCPU:
		return ReasonCPUSoftLimit
	case unix.SIGKILL:
		if rec != nil && rec.CPUHardLimitSec > 0 && cpuUsec >= int64(rec.CPUHardLimitSec)*1e6 {
			return ReasonCPUHardLimit
		}
		return ReasonSignaled
	default:
		return ReasonSignaled
	}
}

func reasonString(r ExitReason) string {
	switch r {
	case ReasonExited:
		return "exited"
	case ReasonSignaled:
		return "signaled"
	case ReasonCPUSoftLimit:
		return "CPU soft limit exceeded"
	case ReasonCPUHardLimit:
		return "CPU hard limit exceeded"
	default:
		return "unknown"
	}
}

// SweepTimeouts sends SIGCONT then SIGKILL to every child whose age has
// reached cfg's wall-clock limit. SIGCONT first because a child stopped
// inside its own PID namespace (or simply job-control-stopped) would
// otherwise never act on the SIGKILL that follows.
func (s *Supervisor) SweepTimeouts(cfg *config.SandboxConfig) {
	if cfg.TimeLimitSec == 0 {
		return
	}
	limit := time.Duration(cfg.TimeLimitSec) * time.Second
	now := time.Now()
	for _, rec := range s.Registry.Snapshot() {
		if now.Sub(rec.StartedAt) < limit {
			continue
		}
		logging.Warnf(logging.CategoryTimeout, "pid %d: wall-clock limit (%s) exceeded, killing", rec.PID, limit)
		unix.Kill(rec.PID, unix.SIGCONT)
		unix.Kill(rec.PID, unix.SIGKILL)
	}
}

// ForceKillAll signals every live child with sig and blocking-reaps each
// one, used for supervisor shutdown (SIGINT et al.). A signal failure
// (ESRCH: the process is already gone) just drops the record instead of
// blocking forever on a wait that will never return.
func (s *Supervisor) ForceKillAll(sig unix.Signal) {
	for _, rec := range s.Registry.Snapshot() {
		if err := unix.Kill(rec.PID, sig); err != nil {
			s.Registry.Remove(rec.PID)
			continue
		}
		var ws unix.WaitStatus
		for {
			_, err := unix.Wait4(rec.PID, &ws, 0, nil)
			if err != unix.EINTR {
				break
			}
		}
		s.Driver.TeardownChild(rec.PID)
		s.Registry.Remove(rec.PID)
	}
}
