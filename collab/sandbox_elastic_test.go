package collab

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestRawInstructionsToFilterEmpty(t *testing.T) {
	if got := rawInstructionsToFilter(nil); got != nil {
		t.Errorf("rawInstructionsToFilter(nil) = %v, want nil", got)
	}
}

func TestRawInstructionsToFilterRoundTrip(t *testing.T) {
	insns := []unix.SockFilter{
		{Code: 0x06, Jt: 0, Jf: 0, K: 0x7fff0000},
		{Code: 0x15, Jt: 1, Jf: 0, K: 39},
	}
	filter := rawInstructionsToFilter(insns)

	want := len(insns) * int(unsafe.Sizeof(unix.SockFilter{}))
	if len(filter) != want {
		t.Fatalf("len(filter) = %d, want %d", len(filter), want)
	}

	for i, insn := range insns {
		got := *(*unix.SockFilter)(unsafe.Pointer(&filter[i*int(unsafe.Sizeof(unix.SockFilter{}))]))
		if got != insn {
			t.Errorf("instruction %d: got %+v, want %+v", i, got, insn)
		}
	}
}
