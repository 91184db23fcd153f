package cgroup

import (
	"os"
	"testing"

	"github.com/SageSeekerSociety/nsjail/config"
)

func TestV2DriverLifecycle(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("no root privilege")
	}
	const mount = "/sys/fs/cgroup"
	if !Detect(mount) {
		t.Skip("host has no cgroup v2 hierarchy mounted")
	}

	d := NewV2Driver(mount)
	c := config.NewSandboxConfig()
	c.PidsMax = 4

	if err := d.Setup(c); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	pid := os.Getpid()
	if err := d.InitChild(pid, c); err != nil {
		t.Fatalf("InitChild: %v", err)
	}

	acc := d.TeardownChild(pid)
	if acc.MemoryPeakBytes != -1 {
		t.Errorf("expected unknown memory peak since memory controller unused, got %d", acc.MemoryPeakBytes)
	}
}

func TestDetectCgroupV2RejectsBogusPath(t *testing.T) {
	if Detect("/does/not/exist") {
		t.Error("Detect on a missing path should be false")
	}
}
