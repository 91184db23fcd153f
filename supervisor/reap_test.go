package supervisor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/pkg/cgroup"
	"github.com/SageSeekerSociety/nsjail/registry"
	"golang.org/x/sys/unix"
)

// fakeDriver is a cgroup.Driver that never touches the filesystem, for
// exercising the supervisor's reap/drain logic without a real cgroup v2
// mount or root privileges.
type fakeDriver struct {
	teardownCalls []int
}

func (f *fakeDriver) Setup(*config.SandboxConfig) error { return nil }
func (f *fakeDriver) InitChild(int, *config.SandboxConfig) error { return nil }
func (f *fakeDriver) TeardownChild(pid int) cgroup.Accounting {
	f.teardownCalls = append(f.teardownCalls, pid)
	return cgroup.Accounting{MemoryPeakBytes: -1, CPUUsageUsec: -1}
}

func TestClassifySignal(t *testing.T) {
	cases := []struct {
		name    string
		rec     *registry.Record
		sig     unix.Signal
		cpuUsec int64
		want    ExitReason
	}{
		{"sigxcpu always soft limit", &registry.Record{CPUHardLimitSec: 10}, unix.SIGXCPU, 1, ReasonCPUSoftLimit},
		{"sigkill under hard limit is plain signal", &registry.Record{CPUHardLimitSec: 10}, unix.SIGKILL, 5 * 1e6, ReasonSignaled},
		{"sigkill at hard limit is CPU hard limit", &registry.Record{CPUHardLimitSec: 10}, unix.SIGKILL, 10 * 1e6, ReasonCPUHardLimit},
		{"sigkill over hard limit is CPU hard limit", &registry.Record{CPUHardLimitSec: 10}, unix.SIGKILL, 20 * 1e6, ReasonCPUHardLimit},
		{"sigkill with no configured hard limit is plain signal", &registry.Record{CPUHardLimitSec: 0}, unix.SIGKILL, 999 * 1e6, ReasonSignaled},
		{"sigkill with nil record is plain signal", nil, unix.SIGKILL, 999 * 1e6, ReasonSignaled},
		{"other signal is plain signal", &registry.Record{CPUHardLimitSec: 10}, unix.SIGTERM, 0, ReasonSignaled},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classifySignal(c.rec, c.sig, c.cpuUsec)
			if got != c.want {
				t.Errorf("classifySignal(%v, %v, %d) = %v, want %v", c.rec, c.sig, c.cpuUsec, got, c.want)
			}
		})
	}
}

func TestReasonString(t *testing.T) {
	cases := map[ExitReason]string{
		ReasonExited:       "exited",
		ReasonSignaled:     "signaled",
		ReasonCPUSoftLimit: "CPU soft limit exceeded",
		ReasonCPUHardLimit: "CPU hard limit exceeded",
		ExitReason(99):     "unknown",
	}
	for reason, want := range cases {
		if got := reasonString(reason); got != want {
			t.Errorf("reasonString(%v) = %q, want %q", reason, got, want)
		}
	}
}

// TestDrainReapsExitedChild exercises Drain/reap end to end against a
// real child process started with os/exec (not the clone engine, so no
// namespaces or root are required), verifying that the child is reported
// as exited, its cgroup is torn down exactly once, and its registry record
// is removed.
func TestDrainReapsExitedChild(t *testing.T) {
	cmd := exec.Command("/bin/true")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start /bin/true: %v", err)
	}
	pid := cmd.Process.Pid

	driver := &fakeDriver{}
	s := New(driver)
	s.Registry.Add(&registry.Record{PID: pid, AccountingFD: -1})

	var reports []ExitReport
	for i := 0; i < 100 && len(reports) == 0; i++ {
		reports = s.Drain()
	}
	if len(reports) != 1 {
		t.Fatalf("Drain() produced %d reports, want 1 (child may not have exited in time)", len(reports))
	}
	if reports[0].PID != pid {
		t.Errorf("report PID = %d, want %d", reports[0].PID, pid)
	}
	if reports[0].Reason != ReasonExited {
		t.Errorf("report Reason = %v, want ReasonExited", reports[0].Reason)
	}
	if len(driver.teardownCalls) != 1 || driver.teardownCalls[0] != pid {
		t.Errorf("TeardownChild calls = %v, want [%d]", driver.teardownCalls, pid)
	}
	if s.Registry.Lookup(pid) != nil {
		t.Error("registry record still present after reap")
	}
}

func TestForceKillAllDropsDeadRecordsWithoutBlocking(t *testing.T) {
	driver := &fakeDriver{}
	s := New(driver)
	// A PID that is certainly not a live child of this process: signaling
	// it fails with ESRCH, exercising the "drop the record" branch
	// instead of blocking forever on a wait that will never return.
	s.Registry.Add(&registry.Record{PID: 1 << 30, AccountingFD: -1})

	done := make(chan struct{})
	go func() {
		s.ForceKillAll(unix.SIGKILL)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ForceKillAll blocked on a dead PID")
	}
	if s.Registry.Count() != 0 {
		t.Errorf("Registry.Count() = %d, want 0", s.Registry.Count())
	}
}
