package ipc

import (
	"testing"
	"time"

	"corekernel/defs"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	e := NewEndpoint(2)
	msg := Message{Tag: 7, Payload: []byte("hello")}
	if err := e.Send(msg, 0); err != defs.EOK {
		t.Fatalf("Send: %v", err)
	}
	got, err := e.Receive(0)
	if err != defs.EOK {
		t.Fatalf("Receive: %v", err)
	}
	if got.Tag != 7 || string(got.Payload) != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestSendWouldBlockWhenFull(t *testing.T) {
	e := NewEndpoint(1)
	e.Send(Message{Tag: 1}, 0)
	if err := e.Send(Message{Tag: 2}, 0); err != defs.EWouldBlock {
		t.Fatalf("expected WouldBlock, got %v", err)
	}
}

func TestCallReply(t *testing.T) {
	e := NewEndpoint(4)
	done := make(chan Message, 1)
	go func() {
		reply, err := e.Call(Message{Tag: 1}, 2*time.Second)
		if err != defs.EOK {
			t.Error(err)
		}
		done <- reply
	}()

	req, err := e.Receive(2 * time.Second)
	if err != defs.EOK {
		t.Fatalf("Receive: %v", err)
	}
	if err := e.Reply(req.ReplyTo(), Message{Tag: 99}); err != defs.EOK {
		t.Fatalf("Reply: %v", err)
	}
	reply := <-done
	if reply.Tag != 99 {
		t.Fatalf("unexpected reply tag %d", reply.Tag)
	}
}

func TestDisconnectedSendFails(t *testing.T) {
	e := NewEndpoint(1)
	e.Disconnect()
	if err := e.Send(Message{}, 0); err != defs.ENotFound {
		t.Fatalf("expected NotFound after disconnect, got %v", err)
	}
}
