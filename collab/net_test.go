package collab

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/SageSeekerSociety/nsjail/config"
)

func TestConnLimiterUnlimited(t *testing.T) {
	l := NewConnLimiter(0)
	// Must never block regardless of how many times Acquire is called.
	for i := 0; i < 100; i++ {
		l.Acquire()
	}
}

func TestConnLimiterBlocksAtCapacity(t *testing.T) {
	l := NewConnLimiter(1)
	l.Acquire()

	acquired := make(chan struct{})
	go func() {
		l.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before Release, limiter did not enforce capacity 1")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never unblocked after Release")
	}
}

func TestNetInitNsFromParentNoopWithoutNewNet(t *testing.T) {
	c := config.NewSandboxConfig()
	if err := NetInitNsFromParent(c, os.Getpid()); err != nil {
		t.Errorf("NetInitNsFromParent without CLONE_NEWNET = %v, want nil", err)
	}
}

func TestNetInitNsFromParentNilConfig(t *testing.T) {
	if err := NetInitNsFromParent(nil, os.Getpid()); err != nil {
		t.Errorf("NetInitNsFromParent(nil, _) = %v, want nil", err)
	}
}

func TestConnToTextNil(t *testing.T) {
	if got := ConnToText(nil); got != "<nil>" {
		t.Errorf("ConnToText(nil) = %q, want %q", got, "<nil>")
	}
}

func TestConnToTextFormatsNetworkAndAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("could not listen on loopback: %v", err)
	}
	defer ln.Close()

	done := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		done <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	server := <-done
	defer server.Close()

	got := ConnToText(server)
	if got == "" || got == "<nil>" {
		t.Errorf("ConnToText(server) = %q, want a non-empty tcp:// address", got)
	}
}
