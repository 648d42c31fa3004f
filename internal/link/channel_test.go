package link

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/saltytrain2/genradio/internal/protocol"
	"github.com/saltytrain2/genradio/internal/testutil/testlog"
)

func testConfig(addr net.Addr) Config {
	tcp := addr.(*net.TCPAddr)
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = tcp.Port
	cfg.PollTimeout = 50 * time.Millisecond
	return cfg
}

func startListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestDialFailureNotRetried(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	cfg := testConfig(ln.Addr())
	_ = ln.Close()

	start := time.Now()
	_, err := Dial(context.Background(), cfg)
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dial failure took %v, looks like it retried", elapsed)
	}
}

func TestSendReachesPeer(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	got := make(chan protocol.Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		msg, err := protocol.NewDecoder(conn).Decode()
		if err != nil {
			return
		}
		got <- msg
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	want := protocol.AddMessage("aaaaaaaaaaaaaaaaaaaa", 10.0, 20.0)
	if err := ch.Send(want); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case msg := <-got:
		if msg != want {
			t.Fatalf("peer received %+v, want %+v", msg, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("peer never received the message")
	}
}

func TestPollOnceTimeoutIsNotAnError(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without sending anything.
		time.Sleep(time.Second)
		_ = conn.Close()
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	msg, err := ch.PollOnce()
	if err != nil || msg != nil {
		t.Fatalf("idle poll: msg=%v err=%v", msg, err)
	}
	if !ch.Connected() {
		t.Fatalf("channel went stale on idle poll")
	}
}

func TestPollOnceReceivesOneMessage(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		payload, err := protocol.Marshal(protocol.RemoveMessage("bbbbbbbbbbbbbbbbbbbb"))
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		time.Sleep(time.Second)
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		msg, err := ch.PollOnce()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if msg != nil {
			if msg.Action != protocol.ActionRemove || msg.Key != "bbbbbbbbbbbbbbbbbbbb" {
				t.Fatalf("unexpected message: %+v", msg)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("message never arrived")
		}
	}
}

func TestPeerCloseMakesChannelStale(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
		close(closed)
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	<-closed

	// First poll observes the close quietly.
	deadline := time.Now().Add(2 * time.Second)
	for ch.Connected() {
		if _, err := ch.PollOnce(); err != nil {
			t.Fatalf("poll observing close: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("channel never went stale")
		}
	}

	// Later calls surface the failure explicitly.
	if _, err := ch.PollOnce(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("stale poll: %v", err)
	}
	if err := ch.Send(protocol.ClearMessage()); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("stale send: %v", err)
	}
}

func TestMalformedPayloadIsFatal(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// 0xfc is a reserved CBOR initial byte, never valid.
		_, _ = conn.Write([]byte{0xfc})
		time.Sleep(time.Second)
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		msg, err := ch.PollOnce()
		if err != nil {
			if errors.Is(err, ErrClosed) || errors.Is(err, ErrPeerClosed) {
				t.Fatalf("expected a decode error, got %v", err)
			}
			break
		}
		if msg != nil {
			t.Fatalf("decoded a message from garbage: %+v", msg)
		}
		if time.Now().After(deadline) {
			t.Fatalf("malformed payload never surfaced")
		}
	}
	if ch.Connected() {
		t.Fatalf("channel usable after protocol error")
	}
}

func TestCloseIdempotent(t *testing.T) {
	testlog.Start(t)
	ln := startListener(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	ch, err := Dial(context.Background(), testConfig(ln.Addr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := ch.PollOnce(); !errors.Is(err, ErrClosed) {
		t.Fatalf("poll on closed channel: %v", err)
	}
	if err := ch.Send(protocol.ClearMessage()); !errors.Is(err, ErrClosed) {
		t.Fatalf("send on closed channel: %v", err)
	}
}
