package wire

import (
	"path/filepath"
	"testing"
	"time"
)

func TestServerClientRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "kerneld.sock")

	srv := NewServer(sockPath, func(req Request) Response {
		if req.Type != "get_time" {
			return Response{Status: "error", Message: "unknown type"}
		}
		return Response{Status: "ok", Value: 12345}
	})
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	defer srv.Close()

	time.Sleep(10 * time.Millisecond)

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.Call(Request{Type: "get_time"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Status != "ok" || resp.Value != 12345 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServerRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "kerneld.sock")

	srv := NewServer(sockPath, func(req Request) Response {
		return Response{Status: "ok"}
	})
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	defer srv.Close()
	time.Sleep(10 * time.Millisecond)

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !c.sc.Scan() {
		t.Fatal("expected an error response line")
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "stale.sock")

	first := NewServer(sockPath, func(req Request) Response { return Response{Status: "ok"} })
	if err := first.Listen(); err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	// Simulate a crash: the socket file is left behind without closing cleanly.
	first.ln.Close()

	second := NewServer(sockPath, func(req Request) Response { return Response{Status: "ok"} })
	if err := second.Listen(); err != nil {
		t.Fatalf("second Listen should succeed over stale socket: %v", err)
	}
	second.Close()
}
