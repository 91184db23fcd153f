package registry

import (
	"testing"
	"time"
)

func TestRegistryAddLookupRemove(t *testing.T) {
	r := New()
	rec := &Record{PID: 100, StartedAt: time.Now(), AccountingFD: -1}
	r.Add(rec)

	if got := r.Lookup(100); got != rec {
		t.Fatalf("Lookup(100) = %v, want %v", got, rec)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	r.Remove(100)
	if r.Lookup(100) != nil {
		t.Error("expected nil after Remove")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after Remove", r.Count())
	}
}

func TestRegistryDuplicatePIDPanics(t *testing.T) {
	r := New()
	r.Add(&Record{PID: 7, AccountingFD: -1})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate PID insertion")
		}
	}()
	r.Add(&Record{PID: 7, AccountingFD: -1})
}

func TestRegistrySnapshotSortedByPID(t *testing.T) {
	r := New()
	for _, pid := range []int{30, 10, 20} {
		r.Add(&Record{PID: pid, AccountingFD: -1})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(snap) = %d, want 3", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].PID > snap[i].PID {
			t.Errorf("snapshot not sorted: %v", snap)
		}
	}
}

func TestRegistryRemoveUnknownPIDIsNoop(t *testing.T) {
	r := New()
	r.Remove(999) // must not panic
}
