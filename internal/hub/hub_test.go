package hub

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/whiteboard-sync/internal/room"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)
	reply := make(chan *room.Room, 1)

	h.Inbox() <- CreateRoom{Code: "ZED123", Reply: reply}
	r1 := <-reply

	h.Inbox() <- GetRoom{Code: "ZED123", Reply: reply}
	r2 := <-reply

	if r1 == nil || r2 == nil || r1 != r2 {
		t.Fatalf("expected same room pointer")
	}

	h.Inbox() <- EnsureRoom{Code: "ZED123", Reply: reply}
	if r3 := <-reply; r3 != r1 {
		t.Fatalf("ensure created a second room")
	}
}

func TestHub_GetMissingIsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{Code: "NOPE", Reply: reply}
	if r := <-reply; r != nil {
		t.Fatalf("expected nil room")
	}
}

func TestHub_RemoveShutsRoomDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- EnsureRoom{Code: "AAA111", Reply: reply}
	r := <-reply

	removed := make(chan bool, 1)
	h.Inbox() <- RemoveRoom{Code: "AAA111", Reply: removed}
	if !<-removed {
		t.Fatalf("expected room to be removed")
	}
	select {
	case <-r.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("room still running after removal")
	}

	h.Inbox() <- RemoveRoom{Code: "AAA111", Reply: removed}
	if <-removed {
		t.Fatalf("second removal should report false")
	}
}

func TestHub_ListSortedByCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)
	reply := make(chan *room.Room, 1)
	for _, c := range []string{"CCC", "AAA", "BBB"} {
		h.Inbox() <- CreateRoom{Code: c, Reply: reply}
		<-reply
	}
	list := make(chan []*room.Room, 1)
	h.Inbox() <- ListRooms{Reply: list}
	rooms := <-list
	if len(rooms) != 3 || rooms[0].Code() != "AAA" || rooms[2].Code() != "CCC" {
		t.Fatalf("unexpected listing")
	}
}
