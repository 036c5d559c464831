package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"chatcoord/internal/app/group"
	"chatcoord/internal/app/message"
	"chatcoord/internal/app/moderation"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session/sessiontest"
	"chatcoord/internal/pkg/errs"
)

func chatMsg(t *testing.T, f sessiontest.Frame) message.Message {
	t.Helper()
	require.Equal(t, protocol.TypeChatMsg, f.Type, "unexpected frame: %s", f.Msg)
	msg, err := sessiontest.DataAs[message.Message](f)
	require.NoError(t, err)
	return msg
}

func (h *harness) createGroup(owner *sessiontest.FakeConn, name string, members ...string) group.Group {
	h.t.Helper()
	resp := h.do(owner, "CREATE_GROUP", map[string]any{"groupName": name, "initialMembers": members})
	require.Equal(h.t, protocol.TypeGroupCreated, resp.Type, resp.Msg)
	g, err := sessiontest.DataAs[group.Group](resp)
	require.NoError(h.t, err)
	return g
}

func TestSendPrivate_DeliversToBothParties(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")

	ack := chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "  hello  "}))

	req.Equal("alice", ack.FromUser)
	req.Equal("bob", ack.ToUser)
	req.Equal("hello", ack.Content)
	req.False(ack.IsGroup)

	received := bob.OfType(protocol.TypeChatMsg)
	req.Len(received, 1)
	req.Equal(ack.ID, chatMsg(t, received[0]).ID)
	req.Equal(1.0, testutil.ToFloat64(h.m.Metrics.MessagesCreated.WithLabelValues("private")))
}

func TestSendPrivate_OfflineTargetIsStored(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	bob := h.login("bob")
	h.do(bob, "LOGOUT", nil)
	alice := h.login("alice")

	chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "later"}))

	req.Equal(1, h.m.Messages.Count())
}

func TestSendPrivate_Rejections(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")

	requireError(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "ghost", "content": "hi"}), errs.ErrUserNotFound)
	requireError(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob"}), errs.ErrInvalidParams)
	requireError(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": strings.Repeat("x", 5001)}), errs.ErrMessageContentTooLong)

	h.do(bob, "BLOCK_USER", map[string]any{"targetUser": "alice"})
	requireError(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "hi"}), errs.ErrUserBlocked)

	require.Zero(t, h.m.Messages.Count())
}

func TestSendGroup_NonMemberRejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	carol := h.login("carol")
	g := h.createGroup(alice, "team", "bob")
	bob.Reset()

	// When carol, who is not a member, posts to the group
	resp := h.do(carol, "SEND_GROUP", map[string]any{"targetUser": g.ID, "content": "let me in"})

	// Then she gets an error, nothing is stored and nobody else hears about it
	requireError(t, resp, errs.ErrNotGroupMember)
	req.Zero(h.m.Messages.Count())
	req.Empty(bob.Frames())

	requireError(t, h.do(carol, "SEND_GROUP", map[string]any{"targetUser": "grp_missing00", "content": "x"}), errs.ErrGroupNotFound)
}

func TestSendGroup_FansOutToMembers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	carol := h.login("carol")
	g := h.createGroup(alice, "team", "bob", "carol")
	bob.Reset()
	carol.Reset()

	ack := chatMsg(t, h.do(alice, "SEND_GROUP", map[string]any{
		"targetUser": g.ID,
		"content":    "standup",
		"atUsers":    []string{"bob", "outsider", "bob"},
	}))

	req.True(ack.IsGroup)
	req.Equal(g.ID, ack.ToUser)
	req.Equal([]string{"bob"}, ack.AtUsers)

	req.Len(bob.OfType(protocol.TypeChatMsg), 1)
	req.Len(carol.OfType(protocol.TypeChatMsg), 1)
	req.Len(alice.OfType(protocol.TypeChatMsg), 1, "sender only gets its acknowledgement")
}

func TestGetHistory_Pages(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	h.login("bob")

	for i := 0; i < 25; i++ {
		h.clock.Advance(time.Millisecond)
		h.send(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "m"})
	}

	resp := h.do(alice, "GET_HISTORY", nil)
	req.Equal(protocol.TypeHistoryList, resp.Type)
	page, err := sessiontest.DataAs[message.Page](resp)
	req.NoError(err)
	req.Len(page.Messages, 20)
	req.True(page.HasMore)
	req.NotNil(page.NextBeforeTime)
	req.Equal(*page.NextBeforeTime, page.Messages[0].Timestamp)
	req.Less(page.Messages[0].Timestamp, page.Messages[19].Timestamp, "ascending within a page")

	resp = h.do(alice, "GET_HISTORY", map[string]any{"beforeTime": *page.NextBeforeTime})
	older, err := sessiontest.DataAs[message.Page](resp)
	req.NoError(err)
	req.Len(older.Messages, 5)
	req.False(older.HasMore)
}

func TestRecall(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")

	msg := chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "oops"}))
	bob.Reset()

	// A bystander may not recall.
	carol := h.login("carol")
	requireError(t, h.do(carol, "RECALL_MSG", map[string]any{"msgId": msg.ID}), errs.ErrForbidden)

	h.clock.Advance(time.Minute)
	resp := h.do(alice, "RECALL_MSG", map[string]any{"msgId": msg.ID})

	req.Equal(protocol.TypeSuccess, resp.Type)
	recalled := bob.OfType(protocol.TypeMsgRecalled)
	req.Len(recalled, 1)
	event, err := sessiontest.DataAs[moderation.RecallEvent](recalled[0])
	req.NoError(err)
	req.Equal(msg.ID, event.RecalledMsgID)
	req.Equal("alice", event.Operator)

	requireError(t, h.do(alice, "RECALL_MSG", map[string]any{"msgId": msg.ID}), errs.ErrMessageNotFound)
}

func TestRecall_ExpiredAfterWindow(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice")
	h.login("bob")
	msg := chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "old"}))

	h.clock.Advance(3 * time.Minute)

	requireError(t, h.do(alice, "RECALL_MSG", map[string]any{"msgId": msg.ID}), errs.ErrRecallExpired)
	require.Equal(t, 1, h.m.Messages.Count())
}

func TestMarkRead_NotifiesSenderOnce(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	msg := chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "read me"}))
	alice.Reset()

	req.Equal(protocol.TypeSuccess, h.do(bob, "MSG_READ", map[string]any{"msgId": msg.ID}).Type)
	req.Equal(protocol.TypeSuccess, h.do(bob, "MSG_READ", map[string]any{"msgId": msg.ID}).Type)

	reads := alice.OfType(protocol.TypeMsgRead)
	req.Len(reads, 1)
	event, err := sessiontest.DataAs[moderation.ReadEvent](reads[0])
	req.NoError(err)
	req.Equal(moderation.ReadEvent{MsgID: msg.ID, Reader: "bob", ReadCount: 1}, event)

	requireError(t, h.do(bob, "MSG_READ", map[string]any{"msgId": "nope"}), errs.ErrMessageNotFound)
}

func TestReact_TogglesAndBroadcasts(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	msg := chatMsg(t, h.do(alice, "SEND_PRIVATE", map[string]any{"targetUser": "bob", "content": "nice"}))
	alice.Reset()
	bob.Reset()

	h.send(bob, "MSG_REACT", map[string]any{"msgId": msg.ID, "reactType": "like"})

	for _, conn := range []*sessiontest.FakeConn{alice, bob} {
		events := conn.OfType(protocol.TypeMsgReact)
		req.Len(events, 1)
		event, err := sessiontest.DataAs[moderation.ReactEvent](events[0])
		req.NoError(err)
		req.True(event.IsAdd)
		req.Equal(1, event.Count)
	}

	requireError(t, h.do(bob, "MSG_REACT", map[string]any{"msgId": msg.ID, "reactType": "wink"}), errs.ErrInvalidReactType)
}

func TestTyping(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	carol := h.login("carol")
	g := h.createGroup(alice, "team", "bob")
	bob.Reset()

	h.send(alice, "TYPING_START", map[string]any{"targetUser": "bob"})
	h.send(alice, "TYPING_START", map[string]any{"targetUser": g.ID})

	events := bob.OfType(protocol.TypeTyping)
	req.Len(events, 2)
	ev, err := sessiontest.DataAs[typingEvent](events[1])
	req.NoError(err)
	req.Equal(typingEvent{FromUser: "alice", TargetUser: g.ID, IsGroup: true}, ev)
	req.Empty(alice.OfType(protocol.TypeTyping))

	requireError(t, h.do(carol, "TYPING_START", map[string]any{"targetUser": g.ID}), errs.ErrNotGroupMember)
}
