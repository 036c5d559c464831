package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session/sessiontest"
	"chatcoord/internal/configs"
	"chatcoord/internal/pkg/errs"
)

type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func()) { task() }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "test",
		JWTSecret:       "test-secret",
		AdminUsername:   "admin",
		BcryptCost:      bcrypt.MinCost,
		RecallWindow:    2 * time.Minute,
		HistoryPageSize: 20,
		MaxContentBytes: 5000,
		SendBufferSize:  16,
		WorkerCount:     1,
		WorkerQueueSize: 1,
	}
}

type harness struct {
	t     *testing.T
	m     *Manager
	clock *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	m := NewManager(testConfig(), WithClock(clock.Now), WithSubmitter(inlineSubmitter{}))
	t.Cleanup(m.Shutdown)

	return &harness{t: t, m: m, clock: clock}
}

// do sends one action on conn and returns the last frame conn received.
func (h *harness) do(conn *sessiontest.FakeConn, action string, params any) sessiontest.Frame {
	h.t.Helper()

	raw, err := json.Marshal(map[string]any{"action": action, "params": params})
	require.NoError(h.t, err)

	h.m.Engine().Handle(conn, raw)

	last, ok := conn.Last()
	require.True(h.t, ok, "expected a frame after %s", action)
	return last
}

// send is do without the reply expectation.
func (h *harness) send(conn *sessiontest.FakeConn, action string, params any) {
	h.t.Helper()

	raw, err := json.Marshal(map[string]any{"action": action, "params": params})
	require.NoError(h.t, err)

	h.m.Engine().Handle(conn, raw)
}

// login opens a fresh connection for username and clears its frames.
func (h *harness) login(username string) *sessiontest.FakeConn {
	h.t.Helper()

	conn := sessiontest.NewFakeConn("conn-" + username)
	resp := h.do(conn, "LOGIN", map[string]any{"username": username, "password": "pw-" + username})
	require.Equal(h.t, protocol.TypeLoginResp, resp.Type, "login of %s failed: %s", username, resp.Msg)

	conn.Reset()
	return conn
}

func requireError(t *testing.T, f sessiontest.Frame, code int) {
	t.Helper()

	require.Equal(t, protocol.TypeError, f.Type)
	data, err := sessiontest.DataAs[protocol.ErrorData](f)
	require.NoError(t, err)
	require.Equal(t, code, data.ErrorCode, "unexpected error: %s", f.Msg)
	require.Equal(t, errs.NewError(code).Kind, data.Kind)
}
