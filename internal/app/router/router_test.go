package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chatcoord/internal/app/message"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/app/session/sessiontest"
)

type inlinePool struct{ submitted int }

func (p *inlinePool) Submit(task func()) {
	p.submitted++
	task()
}

type staticGroups map[string][]string

func (g staticGroups) Members(groupID string) ([]string, bool) {
	m, ok := g[groupID]
	return m, ok
}

type fixture struct {
	registry *session.Registry
	pool     *inlinePool
	d        *Dispatcher
	conns    map[string]*sessiontest.FakeConn
}

func newFixture(groups staticGroups, online ...string) *fixture {
	f := &fixture{
		registry: session.NewRegistry(session.Hooks{}),
		pool:     &inlinePool{},
		conns:    map[string]*sessiontest.FakeConn{},
	}
	f.d = New(f.registry, groups, f.pool, Hooks{})

	for _, u := range online {
		c := sessiontest.NewFakeConn(u)
		c.SetIdentity(u)
		f.registry.Register(u, c)
		f.conns[u] = c
	}
	return f
}

func TestDeliverPrivate_OnlineTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(nil, "alice", "bob")

	msg := message.Message{ID: "m1", FromUser: "alice", ToUser: "bob", Content: "hi"}
	f.d.DeliverPrivate(f.conns["alice"], msg)

	req.Equal([]string{protocol.TypeChatMsg}, f.conns["alice"].Types())
	req.Equal([]string{protocol.TypeChatMsg}, f.conns["bob"].Types())

	got, err := sessiontest.DataAs[message.Message](f.conns["bob"].Frames()[0])
	req.NoError(err)
	req.Equal("m1", got.ID)
}

func TestDeliverPrivate_OfflineTargetOnlyAcksSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(nil, "alice")

	f.d.DeliverPrivate(f.conns["alice"], message.Message{ID: "m1", FromUser: "alice", ToUser: "bob"})

	req.Len(f.conns["alice"].Frames(), 1)
}

func TestDeliverPrivate_SelfMessageAckedOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(nil, "alice")

	f.d.DeliverPrivate(f.conns["alice"], message.Message{ID: "m1", FromUser: "alice", ToUser: "alice"})

	req.Len(f.conns["alice"].Frames(), 1)
}

func TestDeliverGroup_SkipsSenderAndOffline(t *testing.T) {
	req := require.New(t)
	groups := staticGroups{"g1": {"alice", "bob", "carol", "dave"}}
	f := newFixture(groups, "alice", "bob", "carol", "eve")

	f.d.DeliverGroup(f.conns["alice"], message.Message{ID: "m1", FromUser: "alice", ToUser: "g1", IsGroup: true})

	req.Len(f.conns["alice"].Frames(), 1, "sender receives only its ack")
	req.Len(f.conns["bob"].Frames(), 1)
	req.Len(f.conns["carol"].Frames(), 1)
	req.Empty(f.conns["eve"].Frames())
	req.Equal(1, f.pool.submitted)
}

func TestMulticast_FailureIsolated(t *testing.T) {
	req := require.New(t)

	failures := 0
	f := newFixture(nil, "alice", "bob", "carol")
	f.d.hooks = Hooks{Failed: func() { failures++ }}

	// bob's connection died without unregistering yet
	f.conns["bob"].Close(1006, "gone")

	delivered := f.d.Multicast([]string{"alice", "bob", "carol", "alice"}, protocol.OK(protocol.TypeTyping, nil))

	req.Equal(2, delivered)
	req.Equal(1, failures)
	req.Len(f.conns["alice"].Frames(), 1)
	req.Len(f.conns["carol"].Frames(), 1)
}

func TestAudience(t *testing.T) {
	req := require.New(t)
	f := newFixture(staticGroups{"g1": {"alice", "bob"}})

	req.ElementsMatch([]string{"alice", "bob"}, f.d.Audience(message.Message{FromUser: "alice", ToUser: "bob"}))
	req.ElementsMatch([]string{"alice", "bob"}, f.d.Audience(message.Message{FromUser: "alice", ToUser: "g1", IsGroup: true}))
	req.Empty(f.d.Audience(message.Message{FromUser: "alice", ToUser: "gone", IsGroup: true}))
}
