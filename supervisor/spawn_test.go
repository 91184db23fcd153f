package supervisor

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/SageSeekerSociety/nsjail/collab"
	"github.com/SageSeekerSociety/nsjail/config"
	"github.com/SageSeekerSociety/nsjail/errs"
	"golang.org/x/sys/unix"
)

func TestSpawnRejectsInvalidConfig(t *testing.T) {
	s := New(&fakeDriver{})
	cfg := config.NewSandboxConfig() // no Args: fails Validate
	_, err := s.Spawn(cfg, collab.Policy{}, nil)
	if !errors.Is(err, errs.ErrConfigInvalid) {
		t.Errorf("Spawn with empty Args: err = %v, want errs.ErrConfigInvalid", err)
	}
}

// setupFailDriver always fails Setup, exercising Spawn's early-return
// path before any clone/handshake resources are allocated.
type setupFailDriver struct{ fakeDriver }

func (d *setupFailDriver) Setup(*config.SandboxConfig) error {
	return errors.New("setup refused")
}

func TestSpawnPropagatesSetupFailure(t *testing.T) {
	s := New(&setupFailDriver{})
	cfg := config.NewSandboxConfig()
	cfg.Args = []string{"/bin/true"}
	cfg.ExecPath = "/bin/true"

	_, err := s.Spawn(cfg, collab.Policy{}, nil)
	if err == nil {
		t.Fatal("Spawn: expected error when Driver.Setup fails")
	}
}

func TestOpenSyscallAccountingFDSelf(t *testing.T) {
	fd := openSyscallAccountingFD(unix.Getpid())
	if fd < 0 {
		t.Fatal("openSyscallAccountingFD(self) returned -1, want a valid fd")
	}
	unix.Close(fd)
}

func TestOpenSyscallAccountingFDNonexistentPID(t *testing.T) {
	fd := openSyscallAccountingFD(1 << 30)
	if fd != -1 {
		unix.Close(fd)
		t.Errorf("openSyscallAccountingFD(nonexistent) = %d, want -1", fd)
	}
}

func TestKillAndReapRealChild(t *testing.T) {
	cmd := exec.Command("/bin/sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start /bin/sleep: %v", err)
	}
	killAndReap(cmd.Process.Pid)
	// A subsequent signal-probe should find the process gone.
	if err := unix.Kill(cmd.Process.Pid, 0); err == nil {
		t.Errorf("pid %d still alive after killAndReap", cmd.Process.Pid)
	}
}
