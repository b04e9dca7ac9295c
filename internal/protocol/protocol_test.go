package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_AllVariants(t *testing.T) {
	msgs := []Message{
		Join{Username: "alice", JoinTime: 42},
		Leave{},
		RequestState{},
		FullState{State: []StrokeData{{ID: "s1", OwnerID: "u1", Color: 0xff0000, Width: 2, Opacity: 1, Points: []float64{0, 0, 1, 1}}}},
		Sync{Events: []Op{StartOp("s1", 0x00ff00, 1, 2, 0, 0), AppendOp("s1", 10, 0), EndOp("s1")}, TS: 7},
		Viewport{Rect: ViewRect{X: 1, Y: 2, W: 3, H: 4}, TS: 9},
		Cursor{X: 5, Y: 6},
	}
	for _, m := range msgs {
		t.Run(string(m.Type()), func(t *testing.T) {
			b, err := Encode("u1", "room", 1000, m)
			require.NoError(t, err)

			in, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, "u1", in.UserID)
			assert.Equal(t, "room", in.RoomID)
			assert.Equal(t, int64(1000), in.Timestamp)
			assert.Equal(t, m, in.Msg)
		})
	}
}

func TestDecode_CompactOpsFromPeer(t *testing.T) {
	raw := `{"type":"whiteboard_sync","userId":"bob","roomId":"r","timestamp":1,
		"data":{"ts":1,"events":[
			{"t":"s","i":"s1","c":0,"o":1,"w":2,"x":0,"y":0},
			{"t":"a","i":"s1","x":10,"y":0},
			{"t":"e","i":"s1"},
			{"t":"f","i":"s2","c":"#ff0000","w":3,"p":[1,2,3,4]}]}}`

	in, err := Decode([]byte(raw))
	require.NoError(t, err)
	sync, ok := in.Msg.(Sync)
	require.True(t, ok)
	require.Len(t, sync.Events, 4)
	assert.Equal(t, StartOp("s1", 0, 1, 2, 0, 0), sync.Events[0])
	assert.Equal(t, AppendOp("s1", 10, 0), sync.Events[1])
	assert.Equal(t, OpEnd, sync.Events[2].Kind)
	assert.Equal(t, Color(0xff0000), sync.Events[3].Color)
	assert.Equal(t, 1.0, sync.Events[3].Opacity, "opacity defaults to 1")
	assert.Equal(t, []float64{1, 2, 3, 4}, sync.Events[3].Points)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing user":     `{"type":"leave","roomId":"r","data":{}}`,
		"unknown type":     `{"type":"dance","userId":"u","data":{}}`,
		"start missing xy": `{"type":"whiteboard_sync","userId":"u","data":{"events":[{"t":"s","i":"s1","c":0,"w":1}]}}`,
		"op without id":    `{"type":"whiteboard_sync","userId":"u","data":{"events":[{"t":"e"}]}}`,
		"bad op kind":      `{"type":"whiteboard_sync","userId":"u","data":{"events":[{"t":"z","i":"s1"}]}}`,
		"odd full points":  `{"type":"whiteboard_sync","userId":"u","data":{"events":[{"t":"f","i":"s1","c":0,"w":1,"p":[1,2,3]}]}}`,
		"bad color":        `{"type":"whiteboard_sync","userId":"u","data":{"events":[{"t":"f","i":"s1","c":"#12","w":1,"p":[]}]}}`,
		"stroke no id":     `{"type":"full_state","userId":"u","data":{"state":[{"points":[]}]}}`,
		"cursor wrong":     `{"type":"cursor","userId":"u","data":{"x":"left"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_EmptyDataForLeave(t *testing.T) {
	in, err := Decode([]byte(`{"type":"leave","userId":"u","roomId":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, Leave{}, in.Msg)
}

func TestOp_MarshalOmitsIrrelevantKeys(t *testing.T) {
	b, err := json.Marshal(AppendOp("s1", 0, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"a","i":"s1","x":0,"y":0}`, string(b))

	b, err = json.Marshal(EndOp("s1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"e","i":"s1"}`, string(b))

	b, err = json.Marshal(StartOp("s1", 0xabcdef, 0.5, 2, 1, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"s","i":"s1","c":"#abcdef","o":0.5,"w":2,"x":1,"y":2}`, string(b))
}

func TestFullOp_QuantizesPoints(t *testing.T) {
	op := FullOp("s1", 0, 1, 2, []float64{1.23456, 9.87654, -0.006, 3})
	assert.Equal(t, []float64{1.23, 9.88, -0.01, 3}, op.Points)
}

func TestIsPresence(t *testing.T) {
	assert.True(t, IsPresence(TypeCursor))
	assert.True(t, IsPresence(TypeViewport))
	assert.False(t, IsPresence(TypeSync))
	assert.False(t, IsPresence(TypeJoin))
}
