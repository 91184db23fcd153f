package supervisor

import (
	"os"
	"strings"
	"testing"

	"github.com/SageSeekerSociety/nsjail/logging"
	"github.com/SageSeekerSociety/nsjail/pkg/cgroup"
	"github.com/SageSeekerSociety/nsjail/registry"
)

// captureLog redirects logging's underlying writer for the duration of fn
// and returns everything written, so tests can assert on log content
// without the package exposing a structured sink.
func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	restore := logging.SetOutputForTest(w)
	defer restore()

	fn()
	w.Close()

	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return out.String()
}

func TestLogSeccompViolationNoAccountingFD(t *testing.T) {
	s := New(&fakeDriver{})
	s.Registry.Add(&registry.Record{PID: 4242, AccountingFD: -1})

	out := captureLog(t, func() { s.logSeccompViolation(4242) })
	if !strings.Contains(out, "no accounting FD available") {
		t.Errorf("log output = %q, want mention of missing accounting FD", out)
	}
}

func TestLogSeccompViolationUnknownPID(t *testing.T) {
	s := New(&fakeDriver{})
	out := captureLog(t, func() { s.logSeccompViolation(99999) })
	if !strings.Contains(out, "no accounting FD available") {
		t.Errorf("log output = %q, want mention of missing accounting FD for unregistered pid", out)
	}
}

func TestLogSeccompViolationParsesNineFields(t *testing.T) {
	// A regular file stands in for /proc/<pid>/syscall: logSeccompViolation
	// reads with pread, which a pipe would reject with ESPIPE.
	f, err := os.CreateTemp(t.TempDir(), "syscall")
	if err != nil {
		t.Fatalf("os.CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString("39 0 0 0 0 0 0 0x7ffe00001000 0x400123"); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := New(&fakeDriver{})
	s.Registry.Add(&registry.Record{PID: 77, AccountingFD: int(f.Fd())})

	out := captureLog(t, func() { s.logSeccompViolation(77) })
	if !strings.Contains(out, "syscall=39") {
		t.Errorf("log output = %q, want syscall=39", out)
	}
}

var _ cgroup.Driver = (*fakeDriver)(nil)
