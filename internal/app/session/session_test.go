package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/app/session/sessiontest"
)

type staticProfiles map[string]session.OnlineUser

func (s staticProfiles) OnlineProfile(username string) (session.OnlineUser, bool) {
	u, ok := s[username]
	return u, ok
}

func TestRegister_EvictsPreviousSession(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	// Given alice is online on conn1
	conn1 := sessiontest.NewFakeConn("c1")
	conn1.SetIdentity("alice")
	req.Nil(reg.Register("alice", conn1))

	// When alice logs in again on conn2
	conn2 := sessiontest.NewFakeConn("c2")
	evicted := reg.Register("alice", conn2)

	// Then conn1 is notified, unbound and closed, and conn2 is the entry
	req.Equal(conn1, evicted)
	req.False(conn1.IsOpen())
	req.Equal(session.CloseCodeSessionKicked, conn1.CloseCode())
	req.Equal("", conn1.Identity())

	notices := conn1.OfType(protocol.TypeSysNotice)
	req.Len(notices, 1)
	req.Equal(protocol.NoticeEvicted, notices[0].Code)
	req.Equal(session.ReasonLoggedInElsewhere, notices[0].Msg)

	current, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(conn2, current)
	req.Equal(1, reg.Count())
}

func TestRegister_SameConnIsNoop(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	conn := sessiontest.NewFakeConn("c1")
	reg.Register("alice", conn)
	req.Nil(reg.Register("alice", conn))
	req.True(conn.IsOpen())
}

func TestUnregister_IgnoresStaleHandle(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	oldConn := sessiontest.NewFakeConn("old")
	newConn := sessiontest.NewFakeConn("new")
	reg.Register("alice", oldConn)
	reg.Register("alice", newConn)

	// When the evicted connection's disconnect arrives late
	req.False(reg.Unregister("alice", oldConn))

	// Then the newer session survives
	current, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(newConn, current)

	req.True(reg.Unregister("alice", newConn))
	req.False(reg.IsOnline("alice"))
}

func TestRegister_ConcurrentLoginsLeaveOneWinner(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	const n = 50
	conns := make([]*sessiontest.FakeConn, n)
	for i := range conns {
		conns[i] = sessiontest.NewFakeConn(fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Register("alice", c)
		}()
	}
	wg.Wait()

	winner, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(1, reg.Count())

	open := 0
	for _, c := range conns {
		if c.IsOpen() {
			open++
			req.Equal(winner, session.Conn(c))
		}
	}
	req.Equal(1, open)
}

func TestSnapshotOnline(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	reg.Register("alice", sessiontest.NewFakeConn("a"))
	reg.Register("bob", sessiontest.NewFakeConn("b"))
	reg.Register("ghost", sessiontest.NewFakeConn("g"))

	profiles := staticProfiles{
		"alice": {Username: "alice", Role: "ADMIN"},
		"bob":   {Username: "bob", Role: "USER", IsMuted: true},
	}

	snapshot := reg.SnapshotOnline(profiles)

	req.ElementsMatch([]session.OnlineUser{
		{Username: "alice", Role: "ADMIN"},
		{Username: "bob", Role: "USER", IsMuted: true},
	}, snapshot)
}

func TestHooks(t *testing.T) {
	req := require.New(t)

	var online []int
	evictions := 0
	reg := session.NewRegistry(session.Hooks{
		Online:  func(n int) { online = append(online, n) },
		Evicted: func() { evictions++ },
	})

	c1 := sessiontest.NewFakeConn("1")
	c2 := sessiontest.NewFakeConn("2")
	reg.Register("alice", c1)
	reg.Register("alice", c2)
	reg.Unregister("alice", c2)

	req.Equal([]int{1, 1, 0}, online)
	req.Equal(1, evictions)
}

func TestCloseAll(t *testing.T) {
	req := require.New(t)
	reg := session.NewRegistry(session.Hooks{})

	a := sessiontest.NewFakeConn("a")
	b := sessiontest.NewFakeConn("b")
	reg.Register("alice", a)
	reg.Register("bob", b)

	reg.CloseAll(1001, "server shutting down")

	req.False(a.IsOpen())
	req.False(b.IsOpen())
	req.Equal(0, reg.Count())
}
