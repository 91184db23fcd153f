// Package registry is the process registry: a PID-keyed map of every
// live child the supervisor is tracking, written by exactly one
// goroutine (the supervisor's serial spawn/reap loop) and therefore
// requiring no internal locking, the same single-writer assumption the
// reference daemon's own connection table relies on.
package registry

import (
	"fmt"
	"sort"
	"time"
)

// Record is one live child. Everything here is captured at spawn time
// and never mutated afterward except AccountingFD, which is closed
// exactly once at Remove.
type Record struct {
	PID       int
	StartedAt time.Time

	// RemoteAddr/RemoteText describe the peer that requested this spawn
	// when driven by an accepting socket; zero value otherwise.
	RemoteAddr string
	RemoteText string

	// AccountingFD is an already-open, close-on-exec descriptor to
	// /proc/<pid>/syscall, read by the reaper's seccomp diagnostics on
	// SIGSYS. -1 means none was opened.
	AccountingFD int

	// CPUSoftLimitSec/CPUHardLimitSec are the RLIMIT_CPU values applied
	// to this child at spawn, snapshotted here so the reaper can
	// classify a SIGKILL as "CPU hard limit exceeded" without reaching
	// back into the config the child was spawned from.
	CPUSoftLimitSec uint64
	CPUHardLimitSec uint64
}

// Registry is the live PID -> Record map.
type Registry struct {
	records map[int]*Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{records: make(map[int]*Record)}
}

// Add inserts a new record. Per the registry's single invariant, a
// duplicate PID can only mean the supervisor reaped a child and then
// observed its PID reused before removing the old record — impossible
// under Linux's PID allocation guarantees — so it panics rather than
// silently overwriting, the same way the reference daemon treats its own
// invariant violations as programming errors rather than recoverable
// conditions.
func (r *Registry) Add(rec *Record) {
	if _, exists := r.records[rec.PID]; exists {
		panic(fmt.Sprintf("registry: duplicate PID %d: PID reuse before reap, invariant violated", rec.PID))
	}
	r.records[rec.PID] = rec
}

// Lookup returns the record for pid, or nil if none exists.
func (r *Registry) Lookup(pid int) *Record {
	return r.records[pid]
}

// Remove deletes pid's record, closing its accounting FD exactly once.
// A second Remove for the same PID (a caller bug) is a silent no-op.
func (r *Registry) Remove(pid int) {
	rec, ok := r.records[pid]
	if !ok {
		return
	}
	if rec.AccountingFD >= 0 {
		closeAccountingFD(rec.AccountingFD)
	}
	delete(r.records, pid)
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	return len(r.records)
}

// Snapshot returns all current records sorted by PID, for status display
// or the timeout sweep. The slice is a point-in-time copy; mutating the
// registry afterward does not affect it.
func (r *Registry) Snapshot() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
