package bootstrap

import (
	"testing"

	"github.com/SageSeekerSociety/nsjail/config"
)

func TestBuildChildSpecRejectsEmptyArgs(t *testing.T) {
	c := config.NewSandboxConfig()
	_, err := BuildChildSpec(c, nil, 3)
	if err == nil {
		t.Fatal("BuildChildSpec with no Args: want error, got nil")
	}
}

func TestBuildChildSpecPopulatesBasicFields(t *testing.T) {
	c := config.NewSandboxConfig()
	c.Args = []string{"/bin/echo", "hi"}
	c.ExecPath = "/bin/echo"
	c.StdinFD, c.StdoutFD, c.StderrFD = 0, 1, 2

	spec, err := BuildChildSpec(c, nil, 7)
	if err != nil {
		t.Fatalf("BuildChildSpec: %v", err)
	}
	if spec.HandshakeFD != 7 {
		t.Errorf("spec.HandshakeFD = %d, want 7", spec.HandshakeFD)
	}
	if len(spec.Argv) != 3 { // argv[0], "hi", trailing nil terminator
		t.Errorf("len(spec.Argv) = %d, want 3 (argv0 + 1 arg + nil terminator)", len(spec.Argv))
	}
	if spec.Seccomp != nil {
		t.Error("spec.Seccomp should be nil when no filter was supplied")
	}
}

func TestBuildChildSpecKeepEnvAppendsCallerEnviron(t *testing.T) {
	c := config.NewSandboxConfig()
	c.Args = []string{"/bin/true"}
	c.ExecPath = "/bin/true"
	c.KeepEnv = true
	c.Env = []string{"FOO=bar"}

	spec, err := BuildChildSpec(c, nil, 7)
	if err != nil {
		t.Fatalf("BuildChildSpec: %v", err)
	}
	if len(spec.Env) < 2 { // at least FOO=bar + nil terminator, usually more from os.Environ
		t.Errorf("len(spec.Env) = %d, want at least 2 with KeepEnv set", len(spec.Env))
	}
}

func TestBuildChildSpecHostNameLength(t *testing.T) {
	c := config.NewSandboxConfig()
	c.Args = []string{"/bin/true"}
	c.ExecPath = "/bin/true"
	c.HostName = "sandboxhost"

	spec, err := BuildChildSpec(c, nil, 7)
	if err != nil {
		t.Fatalf("BuildChildSpec: %v", err)
	}
	if spec.hostNameLen != len("sandboxhost") {
		t.Errorf("spec.hostNameLen = %d, want %d", spec.hostNameLen, len("sandboxhost"))
	}
}
