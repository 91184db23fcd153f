package bootstrap

import (
	"syscall"
	"testing"
)

func TestErrorLocationStringKnown(t *testing.T) {
	if got := LocExecve.String(); got != "execve" {
		t.Errorf("LocExecve.String() = %q, want %q", got, "execve")
	}
	if got := LocHandshakeWait.String(); got != "handshake_wait" {
		t.Errorf("LocHandshakeWait.String() = %q, want %q", got, "handshake_wait")
	}
}

func TestErrorLocationStringOutOfRange(t *testing.T) {
	if got := ErrorLocation(1000).String(); got != "unknown" {
		t.Errorf("ErrorLocation(1000).String() = %q, want %q", got, "unknown")
	}
}

func TestChildErrorMessageWithIndex(t *testing.T) {
	ce := ChildError{Location: LocSetRlimit, Index: 3, Err: syscall.EPERM}
	got := ce.Error()
	want := "bootstrap: set_rlimit(3): operation not permitted"
	if got != want {
		t.Errorf("ChildError.Error() = %q, want %q", got, want)
	}
}

func TestChildErrorMessageWithoutIndex(t *testing.T) {
	ce := ChildError{Location: LocExecve, Index: 0, Err: syscall.ENOENT}
	got := ce.Error()
	want := "bootstrap: execve: no such file or directory"
	if got != want {
		t.Errorf("ChildError.Error() = %q, want %q", got, want)
	}
}

func TestChildErrorZeroValue(t *testing.T) {
	var ce ChildError
	if ce.Location != LocUnknown {
		t.Errorf("zero ChildError.Location = %v, want LocUnknown", ce.Location)
	}
}
