package forkexec

// cloneArgs mirrors struct clone_args from linux/sched.h, passed to
// clone3(2). Field order and width must match the kernel ABI exactly.
//
// Grounded on the equivalent struct in the reference runner's clone3
// support; only the fields the clone engine actually drives (flags,
// exitSignal) are ever set here, the rest stay zero meaning "not used".
type cloneArgs struct {
	flags      uint64
	pidFD      uint64
	childTID   uint64
	parentTID  uint64
	exitSignal uint64
	stack      uint64
	stackSize  uint64
	tls        uint64
	setTID     uint64
	setTIDSize uint64
	cgroup     uint64
}
