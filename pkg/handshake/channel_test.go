package handshake

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestChannelSendRecv(t *testing.T) {
	parentFd, childFd, err := NewPair()
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	parent := New(parentFd)
	child := New(childFd)
	defer parent.Close()
	defer child.Close()

	if err := parent.Send(TokenDone); err != nil {
		t.Fatalf("Send: %v", err)
	}
	tok, err := child.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if tok != TokenDone {
		t.Errorf("got token %q, want %q", tok, TokenDone)
	}
}

func TestChannelPeerLost(t *testing.T) {
	parentFd, childFd, err := NewPair()
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	parent := New(parentFd)
	child := New(childFd)
	defer child.Close()

	if err := unix.Close(parentFd); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = parent

	_, err = child.Recv()
	if !errors.Is(err, ErrPeerLost) {
		t.Errorf("Recv after peer close = %v, want ErrPeerLost", err)
	}
}
