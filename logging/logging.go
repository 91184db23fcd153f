// Package logging provides the four-severity, category-tagged log lines the
// supervisor emits (spawn, cgroup, reap, timeout, seccomp). It wraps the
// standard log package the same way the rest of the module does: no
// external logging dependency, just a thin layer of formatting on top of
// log.Printf so category and severity show up consistently.
package logging

import (
	"io"
	"log"
)

// Category names the subsystem a log line belongs to, so operators can grep
// a single word instead of matching on free text.
type Category string

const (
	CategorySpawn    Category = "spawn"
	CategoryCgroup   Category = "cgroup"
	CategoryReap     Category = "reap"
	CategoryTimeout  Category = "timeout"
	CategorySeccomp  Category = "seccomp"
	CategoryHandoff  Category = "handshake"
	CategoryGeneral  Category = "general"
)

func Debugf(cat Category, format string, args ...any) {
	log.Printf("D ["+string(cat)+"] "+format, args...)
}

func Infof(cat Category, format string, args ...any) {
	log.Printf("I ["+string(cat)+"] "+format, args...)
}

func Warnf(cat Category, format string, args ...any) {
	log.Printf("W ["+string(cat)+"] "+format, args...)
}

func Errorf(cat Category, format string, args ...any) {
	log.Printf("E ["+string(cat)+"] "+format, args...)
}

// Fatalf logs at error severity and terminates the process. Used only for
// failures that leave the supervisor unable to ever contain a child again
// (e.g. cgroup.subtree_control setup failing for good).
func Fatalf(cat Category, format string, args ...any) {
	log.Fatalf("E ["+string(cat)+"] "+format, args...)
}

// SetOutputForTest redirects the package's log output to w and returns a
// func that restores the previous destination. Exists only so tests can
// assert on emitted log lines without this package exposing a structured
// sink for production callers to depend on.
func SetOutputForTest(w io.Writer) (restore func()) {
	prev := log.Writer()
	log.SetOutput(w)
	return func() { log.SetOutput(prev) }
}
