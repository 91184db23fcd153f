package cgroup

const (
	filePerm = 0644
	dirPerm  = 0700

	cgroupProcs          = "cgroup.procs"
	cgroupSubtreeControl = "cgroup.subtree_control"

	// childPrefix/selfPrefix match the reference implementation's
	// directory naming exactly, since operators grep for it.
	childPrefix = "NSJAIL."
	selfPrefix  = "NSJAIL_SELF."
)
