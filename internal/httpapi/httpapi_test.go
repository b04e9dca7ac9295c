package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/hub"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
	"github.com/DoyleJ11/whiteboard-sync/internal/session"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
	"github.com/DoyleJ11/whiteboard-sync/internal/transport"
	"github.com/DoyleJ11/whiteboard-sync/internal/ws"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, zaptest.NewLogger(t))
	srv := httptest.NewServer(SetupRoutes(h, ws.Options{ClientBuffer: 64, ReadTimeout: 5 * time.Second}, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv
}

func createRoom(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Code, 6)
	return body.Code
}

func joinPeer(t *testing.T, srv *httptest.Server, code, user string) *session.Session {
	t.Helper()
	s := session.New(session.Options{
		RoomID:             code,
		UserID:             user,
		Username:           strings.ToUpper(user),
		Dialer:             transport.WSDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"},
		ReconnectDelay:     10 * time.Millisecond,
		RequestStateOnJoin: true,
		Logger:             zaptest.NewLogger(t),
	})
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(s.Teardown)
	require.NoError(t, s.Connect())
	require.Eventually(t, func() bool { return s.State() == syncproto.StateConnected }, 2*time.Second, 5*time.Millisecond)
	return s
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRooms_CreateGetDelete(t *testing.T) {
	srv := newServer(t)
	code := createRoom(t, srv)

	resp, err := http.Get(srv.URL + "/rooms/" + code)
	require.NoError(t, err)
	var view struct {
		Code       string `json:"code"`
		NumClients int    `json:"numClients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()
	assert.Equal(t, code, view.Code)
	assert.Zero(t, view.NumClients)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/rooms/"+code, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/rooms/" + code)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWS_RejectsBadRequests(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/ws?user=u1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws?room=NOPE&user=u1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTwoPeersShareStrokes(t *testing.T) {
	srv := newServer(t)
	code := createRoom(t, srv)

	alice := joinPeer(t, srv, code, "alice")
	id, err := alice.BeginStroke(scene.Properties{Color: 0x336699, Width: 3, Opacity: 1}, geom.Pt(0, 0))
	require.NoError(t, err)
	require.NoError(t, alice.AddPoint(id, geom.Pt(10, 0)))
	require.NoError(t, alice.EndStroke(id))
	require.NoError(t, alice.Tick())

	// bob arrives later and backfills from alice, the master
	bob := joinPeer(t, srv, code, "bob")
	require.Eventually(t, func() bool {
		strokes, err := bob.Strokes()
		return err == nil && len(strokes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	strokes, err := bob.Strokes()
	require.NoError(t, err)
	assert.Equal(t, id, strokes[0].ID)
	assert.Equal(t, "alice", strokes[0].OwnerID)
	assert.Equal(t, []float64{0, 0, 10, 0}, strokes[0].Points)

	require.Eventually(t, func() bool {
		snap, err := alice.Snapshot()
		return err == nil && len(snap.Participants) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// live strokes flow the other way too
	id2, err := bob.BeginStroke(scene.Properties{Width: 1, Opacity: 1}, geom.Pt(5, 5))
	require.NoError(t, err)
	require.NoError(t, bob.AddPoint(id2, geom.Pt(6, 6)))
	require.NoError(t, bob.EndStroke(id2))
	require.NoError(t, bob.Tick())
	require.Eventually(t, func() bool {
		strokes, err := alice.Strokes()
		return err == nil && len(strokes) == 2
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := alice.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Master)

	// bob vanishing is noticed by alice
	bob.Teardown()
	require.Eventually(t, func() bool {
		snap, err := alice.Snapshot()
		return err == nil && len(snap.Participants) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var metrics struct {
		RoomCount int `json:"room_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	assert.Equal(t, 1, metrics.RoomCount)
}
