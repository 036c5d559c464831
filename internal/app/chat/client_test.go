package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/app/session/sessiontest"
	"chatcoord/internal/pkg/errs"
)

func newWSServer(t *testing.T, m *Manager) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := m.NewClient(ws, r.RemoteAddr)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) sessiontest.Frame {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f sessiontest.Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestClient_RoundTripAndEviction(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	url := newWSServer(t, h.m)

	first := dial(t, url)
	req.NoError(first.WriteJSON(map[string]any{"action": "LOGIN", "params": map[string]any{"username": "alice", "password": "pw"}}))
	req.Equal(protocol.TypeLoginResp, readFrame(t, first).Type)

	// Frames on one connection are answered in order.
	req.NoError(first.WriteJSON(map[string]any{"action": "HEARTBEAT"}))
	req.NoError(first.WriteJSON(map[string]any{"action": "NOPE"}))
	req.Equal(protocol.TypeHeartbeatResp, readFrame(t, first).Type)
	req.Equal(protocol.TypeError, readFrame(t, first).Type)

	second := dial(t, url)
	req.NoError(second.WriteJSON(map[string]any{"action": "LOGIN", "params": map[string]any{"username": "alice", "password": "pw"}}))
	req.Equal(protocol.TypeLoginResp, readFrame(t, second).Type)

	// The displaced connection gets the notice, then a 4001 close.
	notice := readFrame(t, first)
	req.Equal(protocol.TypeSysNotice, notice.Type)
	req.Equal(protocol.NoticeEvicted, notice.Code)

	_, _, err := first.ReadMessage()
	req.True(websocket.IsCloseError(err, session.CloseCodeSessionKicked), "unexpected error: %v", err)

	req.Eventually(func() bool {
		conn, ok := h.m.Sessions.Lookup("alice")
		return ok && conn.IsOpen()
	}, time.Second, 10*time.Millisecond)
}

func TestClient_RejectsBinaryFrames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ws := dial(t, newWSServer(t, h.m))

	req.NoError(ws.WriteMessage(websocket.BinaryMessage, []byte{0x01}))

	f := readFrame(t, ws)
	requireError(t, f, errs.ErrInvalidFrame)
}

func TestClient_DisconnectReleasesSession(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ws := dial(t, newWSServer(t, h.m))

	req.NoError(ws.WriteJSON(map[string]any{"action": "LOGIN", "params": map[string]any{"username": "bob"}}))
	req.Equal(protocol.TypeLoginResp, readFrame(t, ws).Type)
	req.True(h.m.Sessions.IsOnline("bob"))

	req.NoError(ws.Close())

	req.Eventually(func() bool { return !h.m.Sessions.IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_SendAfterClose(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	c := NewClient(nil, h.m.Engine(), 1, "test")

	req.NoError(c.Send([]byte(`{}`)))
	req.ErrorIs(c.Send([]byte(`{}`)), ErrSendQueueFull)

	c.Close(CloseCodeNormal, "bye")
	c.Close(CloseCodeNormal, "again")

	req.False(c.IsOpen())
	req.ErrorIs(c.Send([]byte(`{}`)), ErrClientClosed)
}

func TestClient_LastIdentitySurvivesLogout(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	c := NewClient(nil, h.m.Engine(), 1, "test")

	req.Empty(c.LastIdentity())

	c.SetIdentity("bob")
	c.SetIdentity("")

	req.Empty(c.Identity())
	req.Equal("bob", c.LastIdentity())
}
