package collab

import (
	"fmt"
	"net"

	"github.com/SageSeekerSociety/nsjail/config"
	"golang.org/x/sys/unix"
)

// NetInitNsFromParent runs the parent-side network namespace setup for
// pid, mirroring net::initNsFromParent: called unconditionally, before
// cgroup and user init, with the whole spawn aborted if it fails. When
// cfg did not request CLONE_NEWNET this is a documented no-op, since the
// child already has the host's network namespace and there is nothing
// left to configure from here. Building an actual bridge/veth pair for a
// freshly created network namespace is out of scope (see the
// network-listener acceptance non-goal); the ordered step itself is not.
func NetInitNsFromParent(cfg *config.SandboxConfig, pid int) error {
	if cfg == nil || cfg.CloneFlags&unix.CLONE_NEWNET == 0 {
		return nil
	}
	fd, err := unix.Open(fmt.Sprintf("/proc/%d/ns/net", pid), unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("collab: opening net ns for pid %d: %w", pid, err)
	}
	unix.Close(fd)
	return nil
}

// ConnLimiter caps the number of concurrent connections a listener-based
// auxiliary service (the out-of-scope network namespace bridge) may hand
// to the sandbox at once. It is a thin semaphore, not a rate limiter:
// nsjail's own connection-limiting is a hard concurrent cap, not a token
// bucket.
type ConnLimiter struct {
	slots chan struct{}
}

// NewConnLimiter returns a limiter allowing up to max concurrent
// acquisitions. max <= 0 means unlimited.
func NewConnLimiter(max int) *ConnLimiter {
	if max <= 0 {
		return &ConnLimiter{}
	}
	return &ConnLimiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free, or returns immediately if the
// limiter is unlimited.
func (l *ConnLimiter) Acquire() {
	if l.slots == nil {
		return
	}
	l.slots <- struct{}{}
}

// Release frees a slot acquired with Acquire.
func (l *ConnLimiter) Release() {
	if l.slots == nil {
		return
	}
	<-l.slots
}

// ConnToText renders a connection's remote address the way log lines
// identify a client: "tcp://1.2.3.4:5678" rather than net.Addr's default
// String, which omits the network name.
func ConnToText(c net.Conn) string {
	if c == nil {
		return "<nil>"
	}
	addr := c.RemoteAddr()
	return fmt.Sprintf("%s://%s", addr.Network(), addr.String())
}
