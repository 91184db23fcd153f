package auxexec

import "testing"

func TestRunExitZero(t *testing.T) {
	res, err := Run([]string{"/bin/true"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != ResultExitZero {
		t.Errorf("Run(/bin/true) = %v, want ResultExitZero", res)
	}
}

func TestRunExitNonZero(t *testing.T) {
	res, err := Run([]string{"/bin/false"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != ResultExitNonZero {
		t.Errorf("Run(/bin/false) = %v, want ResultExitNonZero", res)
	}
}

func TestRunExecFailed(t *testing.T) {
	res, err := Run([]string{"/nonexistent/does-not-exist"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != ResultForkOrExecFailed {
		t.Errorf("Run(missing binary) = %v, want ResultForkOrExecFailed", res)
	}
}

func TestRunEmptyArgv(t *testing.T) {
	if _, err := Run(nil, nil); err == nil {
		t.Error("Run(nil argv) should fail")
	}
}
