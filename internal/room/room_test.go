package room

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) protocol.Inbound {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		in, err := protocol.Decode(b)
		if err != nil {
			t.Fatalf("relayed frame does not decode: %v", err)
		}
		return in
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return protocol.Inbound{} // unreachable
	}
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, but got: %s", within, b)
	case <-time.After(within):
		// good: nothing relayed
	}
}

func recvView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func frame(t *testing.T, user, room string, m protocol.Message) []byte {
	t.Helper()
	b, err := protocol.Encode(user, room, 1, m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRoom(ctx, "ROOM01", nil)
}

func TestRoom_RelaysToOthersOnly(t *testing.T) {
	r := newTestRoom(t)
	alice := make(chan []byte, 4)
	bob := make(chan []byte, 4)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: alice}
	r.Inbox() <- Join{ClientID: "c2", UserID: "bob", Outbox: bob}

	sync := protocol.Sync{Events: []protocol.Op{protocol.StartOp("s1", 0xff0000, 1, 2, 0, 0)}}
	r.Inbox() <- FromClient{ClientID: "c1", Frame: frame(t, "alice", "ROOM01", sync)}

	in := recvFrame(t, bob, 100*time.Millisecond)
	if in.UserID != "alice" || in.Msg.Type() != protocol.TypeSync {
		t.Fatalf("bob got %+v", in)
	}
	recvNoFrame(t, alice, 30*time.Millisecond)

	v := recvView(t, r)
	if v.NumClients != 2 || v.Metrics["frames_relayed"] != int64(1) {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestRoom_DropsMalformedAndSpoofedFrames(t *testing.T) {
	r := newTestRoom(t)
	alice := make(chan []byte, 4)
	bob := make(chan []byte, 4)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: alice}
	r.Inbox() <- Join{ClientID: "c2", UserID: "bob", Outbox: bob}

	r.Inbox() <- FromClient{ClientID: "c1", Frame: []byte(`{"type":"cursor"`)}
	r.Inbox() <- FromClient{ClientID: "c1", Frame: []byte(`{"type":"teleport","userId":"alice","data":{}}`)}
	r.Inbox() <- FromClient{ClientID: "c1", Frame: frame(t, "bob", "ROOM01", protocol.Cursor{X: 1})}
	r.Inbox() <- FromClient{ClientID: "c1", Frame: frame(t, "alice", "OTHER", protocol.Cursor{X: 1})}

	recvNoFrame(t, bob, 30*time.Millisecond)
	m := recvView(t, r).Metrics
	if m["malformed"] != int64(2) || m["spoofed"] != int64(2) || m["frames_relayed"] != int64(0) {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestRoom_SynthesizesLeaveOnDisconnect(t *testing.T) {
	r := newTestRoom(t)
	alice := make(chan []byte, 4)
	bob := make(chan []byte, 4)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: alice}
	r.Inbox() <- Join{ClientID: "c2", UserID: "bob", Outbox: bob}

	r.Inbox() <- Leave{ClientID: "c1"}
	in := recvFrame(t, bob, 100*time.Millisecond)
	if in.UserID != "alice" || in.Msg.Type() != protocol.TypeLeave {
		t.Fatalf("expected synthesized leave for alice, got %+v", in)
	}
	if _, ok := <-alice; ok {
		t.Fatalf("expected alice's outbox to be closed")
	}
}

func TestRoom_NoDuplicateLeave(t *testing.T) {
	r := newTestRoom(t)
	alice := make(chan []byte, 4)
	bob := make(chan []byte, 4)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: alice}
	r.Inbox() <- Join{ClientID: "c2", UserID: "bob", Outbox: bob}

	r.Inbox() <- FromClient{ClientID: "c1", Frame: frame(t, "alice", "ROOM01", protocol.Leave{})}
	r.Inbox() <- Leave{ClientID: "c1"}

	if in := recvFrame(t, bob, 100*time.Millisecond); in.Msg.Type() != protocol.TypeLeave {
		t.Fatalf("expected relayed leave, got %+v", in)
	}
	recvNoFrame(t, bob, 30*time.Millisecond)
	if got := recvView(t, r).Metrics["leaves_synthesized"]; got != int64(0) {
		t.Fatalf("leaves_synthesized = %v", got)
	}
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t)
	alice := make(chan []byte, 4)
	slow := make(chan []byte) // never drained
	carol := make(chan []byte, 4)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: alice}
	r.Inbox() <- Join{ClientID: "c2", UserID: "slowpoke", Outbox: slow}
	r.Inbox() <- Join{ClientID: "c3", UserID: "carol", Outbox: carol}

	r.Inbox() <- FromClient{ClientID: "c1", Frame: frame(t, "alice", "ROOM01", protocol.Cursor{X: 2, Y: 3})}

	if in := recvFrame(t, carol, 100*time.Millisecond); in.Msg.Type() != protocol.TypeCursor {
		t.Fatalf("carol expected cursor, got %+v", in)
	}
	in := recvFrame(t, carol, 100*time.Millisecond)
	if in.UserID != "slowpoke" || in.Msg.Type() != protocol.TypeLeave {
		t.Fatalf("carol expected leave for slowpoke, got %+v", in)
	}
	if in := recvFrame(t, alice, 100*time.Millisecond); in.UserID != "slowpoke" {
		t.Fatalf("alice expected leave for slowpoke, got %+v", in)
	}

	v := recvView(t, r)
	if v.NumClients != 2 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
	}
	if v.Metrics["slow_dropped"] != int64(1) {
		t.Fatalf("slow_dropped = %v", v.Metrics["slow_dropped"])
	}
}

func TestRoom_ShutdownClosesOutboxes(t *testing.T) {
	r := newTestRoom(t)
	out := make(chan []byte, 1)
	r.Inbox() <- Join{ClientID: "c1", UserID: "alice", Outbox: out}
	r.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed on shutdown")
	}
	select {
	case <-r.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("room did not stop")
	}
}
