/*
Package router computes delivery audiences and fans events out to live sessions.

Delivery is best-effort and at most once per online recipient: offline recipients are
skipped, and a failed send to one recipient is logged and never affects the others or
the operation that produced the event.
*/
package router

import (
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatcoord/internal/app/message"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/pkg/logx"
)

// Presence resolves usernames to live sessions.
type Presence interface {
	Lookup(username string) (session.Conn, bool)
}

// Membership provides group member snapshots.
type Membership interface {
	Members(groupID string) ([]string, bool)
}

// Submitter runs fan-out work, possibly on another goroutine.
type Submitter interface {
	Submit(task func())
}

// Hooks receives delivery events. Any field may be nil.
type Hooks struct {
	Delivered func()
	Failed    func()
}

// Dispatcher delivers frames to sessions.
type Dispatcher struct {
	presence Presence
	groups   Membership
	pool     Submitter
	hooks    Hooks
	logger   zerolog.Logger
}

// New creates a Dispatcher.
func New(presence Presence, groups Membership, pool Submitter, hooks Hooks) *Dispatcher {
	return &Dispatcher{
		presence: presence,
		groups:   groups,
		pool:     pool,
		hooks:    hooks,
		logger:   logx.Component("Dispatcher"),
	}
}

// Reply sends resp to one connection synchronously.
func (d *Dispatcher) Reply(conn session.Conn, resp protocol.Response) bool {
	frame, err := protocol.Encode(resp)
	if err != nil {
		d.logger.Error().Err(err).Str("type", resp.Type).Msg("Failed to encode frame.")
		return false
	}
	return d.write(conn, frame, resp.Type)
}

func (d *Dispatcher) write(conn session.Conn, frame []byte, typ string) bool {
	if conn == nil || !conn.IsOpen() {
		d.failed()
		return false
	}

	if err := conn.Send(frame); err != nil {
		d.logger.Warn().Err(err).Str("conn_id", conn.ID()).Str("type", typ).Msg("Dropping frame for unreachable connection.")
		d.failed()
		return false
	}

	if d.hooks.Delivered != nil {
		d.hooks.Delivered()
	}
	return true
}

func (d *Dispatcher) failed() {
	if d.hooks.Failed != nil {
		d.hooks.Failed()
	}
}

// SendToUser delivers resp to username's live session, if any.
func (d *Dispatcher) SendToUser(username string, resp protocol.Response) bool {
	conn, ok := d.presence.Lookup(username)
	if !ok {
		return false
	}
	return d.Reply(conn, resp)
}

// Multicast delivers resp synchronously to each distinct online username except
// those in exclude, and returns the number of successful deliveries.
func (d *Dispatcher) Multicast(usernames []string, resp protocol.Response, exclude ...string) int {
	frame, err := protocol.Encode(resp)
	if err != nil {
		d.logger.Error().Err(err).Str("type", resp.Type).Msg("Failed to encode frame.")
		return 0
	}

	delivered := 0
	for _, username := range lo.Without(lo.Uniq(usernames), exclude...) {
		conn, ok := d.presence.Lookup(username)
		if !ok {
			continue
		}
		if d.write(conn, frame, resp.Type) {
			delivered++
		}
	}
	return delivered
}

// Broadcast is Multicast offloaded to the worker pool.
func (d *Dispatcher) Broadcast(usernames []string, resp protocol.Response, exclude ...string) {
	audience := slices.Clone(usernames)
	d.pool.Submit(func() {
		d.Multicast(audience, resp, exclude...)
	})
}

// GroupAudience returns a snapshot of the group's members.
func (d *Dispatcher) GroupAudience(groupID string) []string {
	members, _ := d.groups.Members(groupID)
	return members
}

// Audience returns everyone a message reaches: both parties of a private message or
// every current member of the target group.
func (d *Dispatcher) Audience(msg message.Message) []string {
	if msg.IsGroup {
		return d.GroupAudience(msg.ToUser)
	}
	return lo.Uniq([]string{msg.FromUser, msg.ToUser})
}

// DeliverPrivate acknowledges msg to the sender's connection and delivers it to the
// target when online.
func (d *Dispatcher) DeliverPrivate(sender session.Conn, msg message.Message) {
	resp := protocol.OK(protocol.TypeChatMsg, msg)

	d.Reply(sender, resp)

	if msg.ToUser == msg.FromUser {
		return
	}
	if !d.SendToUser(msg.ToUser, resp) {
		d.logger.Debug().Str("msg_id", msg.ID).Str("target", msg.ToUser).Msg("Private target offline; stored only.")
	}
}

// DeliverGroup acknowledges msg to the sender's connection and fans it out to every
// other online member of the group as of now.
func (d *Dispatcher) DeliverGroup(sender session.Conn, msg message.Message) {
	resp := protocol.OK(protocol.TypeChatMsg, msg)

	d.Reply(sender, resp)

	d.Broadcast(d.GroupAudience(msg.ToUser), resp, msg.FromUser)
}
