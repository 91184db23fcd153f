package forkexec

import (
	"syscall"
	_ "unsafe" // required for go:linkname
)

// beforeFork/afterFork/afterForkInChild hook into the runtime's own
// fork bookkeeping (stopping the world and blocking signals around the
// syscall, same as os/exec's ForkExec does) so a clone from deep inside a
// multithreaded Go process doesn't deadlock the child on a lock held by a
// thread that didn't survive the fork.

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// Lock and Unlock wrap syscall.ForkLock, exported so bootstrap's
// trampoline (which must lock it before calling RawClone) doesn't need
// its own copy of the same global.
func Lock()   { syscall.ForkLock.Lock() }
func Unlock() { syscall.ForkLock.Unlock() }

// BeforeFork, AfterFork, AfterForkInChild re-export the linknamed runtime
// hooks for bootstrap to call around RawClone.
func BeforeFork()      { beforeFork() }
func AfterFork()       { afterFork() }
func AfterForkInChild() { afterForkInChild() }
