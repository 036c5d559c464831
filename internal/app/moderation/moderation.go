/*
Package moderation implements the message moderation rules: recall, reactions and
read receipts.

Each operation validates permissions and timing against snapshots, performs its single
atomic mutation through the message store, and then fans the resulting event out
through the dispatcher. Event delivery is best-effort and never fails the operation.
*/
package moderation

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatcoord/internal/app/message"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
)

// DefaultRecallWindow is how long after sending a message may be recalled.
const DefaultRecallWindow = 120 * time.Second

// Store is the subset of the message store the engine mutates.
type Store interface {
	Get(id string) (message.Message, bool)
	Remove(id string) bool
	ToggleReaction(id, reactor string, t message.ReactType) (bool, int, error)
	MarkRead(id, reader string) (bool, int, error)
}

// Users answers role questions.
type Users interface {
	IsAdmin(username string) bool
}

// Groups answers membership and ownership questions.
type Groups interface {
	IsMember(groupID, username string) bool
	IsOwner(groupID, username string) bool
	Name(groupID string) (string, bool)
}

// Presence answers online questions.
type Presence interface {
	IsOnline(username string) bool
}

// Fanout delivers moderation events.
type Fanout interface {
	Audience(msg message.Message) []string
	Broadcast(usernames []string, resp protocol.Response, exclude ...string)
}

// RecallEvent is the payload of EVENT_MSG_RECALLED.
type RecallEvent struct {
	RecalledMsgID string `json:"recalledMsgId"`
	Operator      string `json:"operator"`
	FromUser      string `json:"fromUser"`
	ToUser        string `json:"toUser"`
	IsGroup       bool   `json:"isGroup"`
	GroupName     string `json:"groupName,omitempty"`
}

// ReactEvent is the payload of EVENT_MSG_REACT.
type ReactEvent struct {
	MsgID     string            `json:"msgId"`
	ReactType message.ReactType `json:"reactType"`
	Operator  string            `json:"operator"`
	IsAdd     bool              `json:"isAdd"`
	Count     int               `json:"count"`
}

// ReadEvent is the payload of EVENT_MSG_READ.
type ReadEvent struct {
	MsgID     string `json:"msgId"`
	Reader    string `json:"reader"`
	ReadCount int    `json:"readCount"`
}

// Hooks receives moderation outcomes. Any field may be nil.
type Hooks struct {
	Recalled func()
	Reacted  func(t message.ReactType, isAdd bool)
	Read     func()
}

// Config tunes the engine.
type Config struct {
	RecallWindow time.Duration
	Now          func() time.Time
	Hooks        Hooks
}

// Engine applies moderation rules.
type Engine struct {
	store    Store
	users    Users
	groups   Groups
	presence Presence
	fanout   Fanout

	window time.Duration
	now    func() time.Time
	hooks  Hooks
	logger zerolog.Logger
}

// New creates an Engine. Zero Config fields take their defaults.
func New(store Store, users Users, groups Groups, presence Presence, fanout Fanout, cfg Config) *Engine {
	if cfg.RecallWindow <= 0 {
		cfg.RecallWindow = DefaultRecallWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		store:    store,
		users:    users,
		groups:   groups,
		presence: presence,
		fanout:   fanout,
		window:   cfg.RecallWindow,
		now:      cfg.Now,
		hooks:    cfg.Hooks,
		logger:   logx.Component("Moderation"),
	}
}

// canRecall: the sender, any ADMIN, or the owner of the target group.
func (e *Engine) canRecall(msg message.Message, operator string) bool {
	if msg.FromUser == operator || e.users.IsAdmin(operator) {
		return true
	}
	return msg.IsGroup && e.groups.IsOwner(msg.ToUser, operator)
}

// isParticipant: a party of a private message, or a current member of the group.
func (e *Engine) isParticipant(msg message.Message, username string) bool {
	if msg.IsGroup {
		return e.groups.IsMember(msg.ToUser, username)
	}
	return msg.VisibleTo(username)
}

// Recall deletes a message within the recall window and notifies its audience,
// except the operator.
func (e *Engine) Recall(id, operator string) (RecallEvent, error) {
	msg, ok := e.store.Get(id)
	if !ok {
		return RecallEvent{}, errs.NewError(errs.ErrMessageNotFound)
	}

	// An expired message reports Expired to everyone, authorized or not.
	if elapsed := e.now().UnixMilli() - msg.Timestamp; elapsed > e.window.Milliseconds() {
		return RecallEvent{}, errs.NewError(errs.ErrRecallExpired)
	}

	if !e.canRecall(msg, operator) {
		return RecallEvent{}, errs.NewError(errs.ErrForbidden)
	}

	audience := e.fanout.Audience(msg)

	if !e.store.Remove(id) {
		return RecallEvent{}, errs.NewError(errs.ErrMessageNotFound)
	}

	event := RecallEvent{
		RecalledMsgID: msg.ID,
		Operator:      operator,
		FromUser:      msg.FromUser,
		ToUser:        msg.ToUser,
		IsGroup:       msg.IsGroup,
	}
	if msg.IsGroup {
		event.GroupName, _ = e.groups.Name(msg.ToUser)
	}

	e.fanout.Broadcast(audience, protocol.OK(protocol.TypeMsgRecalled, event), operator)

	if e.hooks.Recalled != nil {
		e.hooks.Recalled()
	}

	e.logger.Info().
		Str("msg_id", id).
		Str("operator", operator).
		Str("from_user", msg.FromUser).
		Bool("is_group", msg.IsGroup).
		Msg("Message recalled.")

	return event, nil
}

// React toggles reactor's reaction and notifies the reactor, the sender and the
// rest of the message's audience.
func (e *Engine) React(id, reactor, rawType string) (ReactEvent, error) {
	t, err := message.ParseReactType(rawType)
	if err != nil {
		return ReactEvent{}, err
	}

	msg, ok := e.store.Get(id)
	if !ok {
		return ReactEvent{}, errs.NewError(errs.ErrMessageNotFound)
	}

	if !e.presence.IsOnline(reactor) || !e.isParticipant(msg, reactor) {
		return ReactEvent{}, errs.NewError(errs.ErrForbidden)
	}

	isAdd, count, err := e.store.ToggleReaction(id, reactor, t)
	if err != nil {
		return ReactEvent{}, err
	}

	event := ReactEvent{
		MsgID:     id,
		ReactType: t,
		Operator:  reactor,
		IsAdd:     isAdd,
		Count:     count,
	}

	audience := lo.Uniq(append([]string{reactor, msg.FromUser}, e.fanout.Audience(msg)...))
	e.fanout.Broadcast(audience, protocol.OK(protocol.TypeMsgReact, event))

	if e.hooks.Reacted != nil {
		e.hooks.Reacted(t, isAdd)
	}

	return event, nil
}

// MarkRead records that reader has read the message. Only the first read by a
// reader other than the sender notifies the sender. first reports whether this
// call changed the read-by set.
func (e *Engine) MarkRead(id, reader string) (event ReadEvent, first bool, err error) {
	msg, ok := e.store.Get(id)
	if !ok {
		return ReadEvent{}, false, errs.NewError(errs.ErrMessageNotFound)
	}

	if !e.isParticipant(msg, reader) {
		return ReadEvent{}, false, errs.NewError(errs.ErrForbidden)
	}

	added, count, err := e.store.MarkRead(id, reader)
	if err != nil {
		return ReadEvent{}, false, err
	}

	event = ReadEvent{MsgID: id, Reader: reader, ReadCount: count}

	if added {
		if reader != msg.FromUser {
			e.fanout.Broadcast([]string{msg.FromUser}, protocol.OK(protocol.TypeMsgRead, event))
		}
		if e.hooks.Read != nil {
			e.hooks.Read()
		}
	}

	return event, added, nil
}
