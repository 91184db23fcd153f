package collab

import (
	"os"
	"testing"
)

func TestSetupFDAllowsStandardDescriptors(t *testing.T) {
	if err := SetupFD(0, 1, 2); err != nil {
		t.Errorf("SetupFD(0,1,2) = %v, want nil", err)
	}
}

func TestSetupFDRejectsClosedDescriptor(t *testing.T) {
	f, err := os.CreateTemp("", "nsjail-setupfd-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	fd := f.Fd()
	name := f.Name()
	f.Close()
	os.Remove(name)

	if err := SetupFD(fd, 1, 2); err == nil {
		t.Error("SetupFD with a closed fd: want error, got nil")
	}
}

func TestContainProcNoNewMountNSIsNoop(t *testing.T) {
	if err := ContainProc(os.Getpid(), false); err != nil {
		t.Errorf("ContainProc(_, false) = %v, want nil", err)
	}
}

func TestContainProcOpensOwnMountNS(t *testing.T) {
	if err := ContainProc(os.Getpid(), true); err != nil {
		t.Errorf("ContainProc(self, true) = %v, want nil (own /proc/<pid>/ns/mnt must be openable)", err)
	}
}
