package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

func TestDispatch_OrderAndType(t *testing.T) {
	b := New()
	var got []string

	Subscribe(b, func(in protocol.Inbound, m protocol.Cursor) {
		got = append(got, "cursor-1")
	})
	Subscribe(b, func(in protocol.Inbound, m protocol.Join) {
		got = append(got, "join:"+m.Username+"@"+in.UserID)
	})
	Subscribe(b, func(in protocol.Inbound, m protocol.Cursor) {
		got = append(got, "cursor-2")
	})

	n := b.Dispatch(protocol.Inbound{UserID: "u1", Msg: protocol.Cursor{X: 1}})
	assert.Equal(t, 2, n)
	b.Dispatch(protocol.Inbound{UserID: "u1", Msg: protocol.Join{Username: "ann"}})
	assert.Zero(t, b.Dispatch(protocol.Inbound{UserID: "u1", Msg: protocol.Leave{}}))
	assert.Zero(t, b.Dispatch(protocol.Inbound{UserID: "u1"}))

	assert.Equal(t, []string{"cursor-1", "cursor-2", "join:ann@u1"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	off := b.On(protocol.TypeLeave, func(protocol.Inbound) { calls++ })
	require.Equal(t, 1, b.Count(protocol.TypeLeave))

	b.Dispatch(protocol.Inbound{Msg: protocol.Leave{}})
	off()
	off()
	b.Dispatch(protocol.Inbound{Msg: protocol.Leave{}})

	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Count(protocol.TypeLeave))
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	b := New()
	var got []int
	var off func()
	off = b.On(protocol.TypeCursor, func(protocol.Inbound) {
		got = append(got, 1)
		off()
	})
	b.On(protocol.TypeCursor, func(protocol.Inbound) { got = append(got, 2) })

	b.Dispatch(protocol.Inbound{Msg: protocol.Cursor{}})
	b.Dispatch(protocol.Inbound{Msg: protocol.Cursor{}})
	assert.Equal(t, []int{1, 2, 2}, got)
}
