package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
)

func closedStroke(t *testing.T, id, owner string, pts ...geom.Point) *Stroke {
	t.Helper()
	st := NewStroke(id, owner, Properties{Color: 0x000000, Width: 2, Opacity: 1})
	for _, p := range pts {
		require.NoError(t, st.Append(p))
	}
	require.NoError(t, st.Close(0.5))
	return st
}

func TestStroke_Lifecycle(t *testing.T) {
	st := NewStroke("s1", "alice", Properties{Width: 2})
	assert.Equal(t, StateOpen, st.State())
	require.NoError(t, st.Append(geom.Pt(0, 0)))
	require.NoError(t, st.Append(geom.Pt(10, 5)))
	require.NoError(t, st.Close(0))

	assert.Equal(t, StateClosed, st.State())
	assert.ErrorIs(t, st.Append(geom.Pt(1, 1)), ErrStrokeNotOpen)
	assert.ErrorIs(t, st.Close(0), ErrStrokeNotOpen)
	assert.Len(t, st.Points(), 2)
	assert.Equal(t, geom.Rect{X: -1, Y: -1, W: 12, H: 7}, st.Bounds())
}

func TestScene_AddRequiresClosedUniqueStroke(t *testing.T) {
	sc := New(DefaultConfig())

	open := NewStroke("open", "alice", Properties{})
	assert.ErrorIs(t, sc.Add(open), ErrStrokeNotClosed)

	st := closedStroke(t, "s1", "alice", geom.Pt(0, 0), geom.Pt(1, 1))
	require.NoError(t, sc.Add(st))
	assert.ErrorIs(t, sc.Add(st), ErrDuplicateStroke)
	assert.Equal(t, 1, sc.Len())
}

func TestScene_RemovedIdsAreNeverReused(t *testing.T) {
	sc := New(DefaultConfig())
	st := closedStroke(t, "s1", "alice", geom.Pt(0, 0), geom.Pt(1, 1))
	require.NoError(t, sc.Add(st))

	assert.True(t, sc.Remove("s1"))
	assert.Equal(t, StateRemoved, st.State())
	assert.False(t, sc.Remove("s1"))
	assert.True(t, sc.Known("s1"))

	again := closedStroke(t, "s1", "alice", geom.Pt(0, 0), geom.Pt(1, 1))
	assert.ErrorIs(t, sc.Add(again), ErrStrokeRemoved)
	assert.Empty(t, sc.Query(geom.Rect{X: -5, Y: -5, W: 10, H: 10}))
}

func TestScene_QueryFiltersAndOrders(t *testing.T) {
	sc := New(DefaultConfig())
	require.NoError(t, sc.Add(closedStroke(t, "a", "u", geom.Pt(0, 0), geom.Pt(10, 10))))
	require.NoError(t, sc.Add(closedStroke(t, "b", "u", geom.Pt(500, 500), geom.Pt(510, 510))))
	require.NoError(t, sc.Add(closedStroke(t, "c", "u", geom.Pt(5, 5), geom.Pt(600, 600))))

	got := sc.Query(geom.Rect{X: 0, Y: 0, W: 20, H: 20})
	var ids []string
	for _, st := range got {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestScene_RemoveOwnedBy(t *testing.T) {
	sc := New(DefaultConfig())
	require.NoError(t, sc.Add(closedStroke(t, "a", "alice", geom.Pt(0, 0), geom.Pt(1, 1))))
	require.NoError(t, sc.Add(closedStroke(t, "b", "bob", geom.Pt(0, 0), geom.Pt(1, 1))))
	require.NoError(t, sc.Add(closedStroke(t, "c", "alice", geom.Pt(0, 0), geom.Pt(1, 1))))

	assert.Equal(t, []string{"a", "c"}, sc.RemoveOwnedBy("alice"))
	require.Equal(t, 1, sc.Len())
	assert.Equal(t, "b", sc.Strokes()[0].ID)
}

func TestScene_ClearTombstonesEverything(t *testing.T) {
	sc := New(DefaultConfig())
	require.NoError(t, sc.Add(closedStroke(t, "a", "alice", geom.Pt(0, 0), geom.Pt(1, 1))))
	sc.Clear()
	assert.Equal(t, 0, sc.Len())
	assert.True(t, sc.Known("a"))
	assert.Empty(t, sc.Query(sc.Config().Bounds))
}

func TestScene_VisiblePicksLevelOfDetail(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LODDistance = 100
	sc := New(cfg)

	var wiggly []geom.Point
	for i := 0; i < 20; i++ {
		wiggly = append(wiggly, geom.Pt(1000+float64(i), float64(i%2)*0.1))
	}
	require.NoError(t, sc.Add(closedStroke(t, "near", "u", geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(20, 0))))
	require.NoError(t, sc.Add(closedStroke(t, "far", "u", wiggly...)))

	vis := sc.Visible(geom.Rect{X: -50, Y: -50, W: 2000, H: 100}, geom.Pt(0, 0))
	require.Len(t, vis, 2)
	assert.Equal(t, DetailFull, vis[0].Detail)
	assert.Len(t, vis[0].Points, 3)
	assert.Equal(t, DetailSimplified, vis[1].Detail)
	assert.Len(t, vis[1].Points, 2)
}
