// Package collab holds the small real implementations of the external
// interfaces the supervisor depends on but that the cgroup/clone/reap
// pipeline above treats as collaborators rather than owning directly: uid
// and gid mapping for a user namespace, descriptor/connection setup, and
// the seccomp policy handed to the child bootstrap. Each one is grounded
// on the matching piece of the reference clone engine's parent-side code.
package collab

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// IDMap is one line of /proc/<pid>/uid_map or gid_map: ContainerID is the
// first id inside the namespace the mapping covers, HostID the first id
// outside it, Size how many consecutive ids the mapping spans.
type IDMap struct {
	ContainerID int
	HostID      int
	Size        int
}

var (
	setGroupsDeny  = []byte("deny")
	setGroupsAllow = []byte("allow")
)

// InitNsFromParent writes uid_map, setgroups and gid_map for pid from the
// parent side of a CLONE_NEWUSER child, mirroring writeIDMaps: called
// between clone returning the child's pid and the supervisor sending the
// handshake DONE token, since the kernel only accepts these writes once
// and only before the child's own credentials have changed.
//
// A nil uidMap or gidMap means "map id 0 inside the namespace to the
// caller's own euid/egid", a single-id mapping matching the reference
// default of "0 <euid> 1".
func InitNsFromParent(pid int, uidMap, gidMap []IDMap, enableSetgroups bool) error {
	pidStr := strconv.Itoa(pid)

	uidData := formatIDMaps(uidMap)
	if uidData == nil {
		uidData = []byte("0 " + strconv.Itoa(unix.Geteuid()) + " 1")
	}
	if err := writeProcFile("/proc/"+pidStr+"/uid_map", uidData); err != nil {
		return fmt.Errorf("collab: writing uid_map for pid %d: %w", pid, err)
	}

	setGroups := setGroupsDeny
	if gidMap != nil && enableSetgroups {
		setGroups = setGroupsAllow
	}
	if err := writeProcFile("/proc/"+pidStr+"/setgroups", setGroups); err != nil {
		return fmt.Errorf("collab: writing setgroups for pid %d: %w", pid, err)
	}

	gidData := formatIDMaps(gidMap)
	if gidData == nil {
		gidData = []byte("0 " + strconv.Itoa(unix.Getegid()) + " 1")
	}
	if err := writeProcFile("/proc/"+pidStr+"/gid_map", gidData); err != nil {
		return fmt.Errorf("collab: writing gid_map for pid %d: %w", pid, err)
	}
	return nil
}

// InitNsSelf writes uid_map, setgroups and gid_map for the calling process
// itself, the self-init counterpart of InitNsFromParent used when there is
// no parent process to perform the writes on the child's behalf (standalone
// unshare-in-place mode, see config.ModeStandaloneExecve). The calling
// process must have already unshared CLONE_NEWUSER and must not yet have
// changed its own uid/gid.
func InitNsSelf(uidMap, gidMap []IDMap, enableSetgroups bool) error {
	uidData := formatIDMaps(uidMap)
	if uidData == nil {
		uidData = []byte("0 " + strconv.Itoa(unix.Geteuid()) + " 1")
	}
	if err := writeProcFile("/proc/self/uid_map", uidData); err != nil {
		return fmt.Errorf("collab: writing self uid_map: %w", err)
	}

	setGroups := setGroupsDeny
	if gidMap != nil && enableSetgroups {
		setGroups = setGroupsAllow
	}
	if err := writeProcFile("/proc/self/setgroups", setGroups); err != nil {
		return fmt.Errorf("collab: writing self setgroups: %w", err)
	}

	gidData := formatIDMaps(gidMap)
	if gidData == nil {
		gidData = []byte("0 " + strconv.Itoa(unix.Getegid()) + " 1")
	}
	if err := writeProcFile("/proc/self/gid_map", gidData); err != nil {
		return fmt.Errorf("collab: writing self gid_map: %w", err)
	}
	return nil
}

func formatIDMaps(m []IDMap) []byte {
	if len(m) == 0 {
		return nil
	}
	var data []byte
	for _, im := range m {
		data = append(data, []byte(strconv.Itoa(im.ContainerID)+" "+strconv.Itoa(im.HostID)+" "+strconv.Itoa(im.Size)+"\n")...)
	}
	return data
}

func writeProcFile(path string, content []byte) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	if _, err := unix.Write(fd, content); err != nil {
		return err
	}
	return nil
}
