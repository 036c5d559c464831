package chat

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/randx"
)

// checkSender rejects muted senders and oversize content, returning the trimmed content.
func (e *Engine) checkSender(username, content string) (string, error) {
	if until, muted := e.m.Users.MutedUntil(username); muted {
		return "", errs.NewError(errs.ErrUserMuted, until.UTC().Format(time.RFC3339))
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", errs.NewError(errs.ErrInvalidParams, "content")
	}
	if len(content) > e.m.config.MaxContentBytes {
		return "", errs.NewError(errs.ErrMessageContentTooLong)
	}
	return content, nil
}

func (e *Engine) sendPrivate(c *call) error {
	p, err := bind[sendParams](c.params)
	if err != nil {
		return err
	}

	content, err := e.checkSender(c.user, p.Content)
	if err != nil {
		return err
	}

	target := strings.TrimSpace(p.TargetUser)
	if !e.m.Users.Exists(target) {
		return errs.NewError(errs.ErrUserNotFound)
	}
	if e.m.Users.IsBlocked(target, c.user) {
		return errs.NewError(errs.ErrUserBlocked)
	}

	msg := e.m.Messages.Create(c.user, target, content, false, cleanNames(p.AtUsers))
	e.m.Metrics.MessagesCreated.WithLabelValues("private").Inc()

	e.m.Dispatcher.DeliverPrivate(c.conn, msg)
	return nil
}

func (e *Engine) sendGroup(c *call) error {
	p, err := bind[sendParams](c.params)
	if err != nil {
		return err
	}

	content, err := e.checkSender(c.user, p.Content)
	if err != nil {
		return err
	}

	groupID := strings.TrimSpace(p.TargetUser)
	if !e.m.Groups.Exists(groupID) {
		return errs.NewError(errs.ErrGroupNotFound)
	}
	if !e.m.Groups.IsMember(groupID, c.user) {
		return errs.NewError(errs.ErrNotGroupMember)
	}

	// Mentions only make sense for people who can read the message.
	atUsers := lo.Filter(cleanNames(p.AtUsers), func(u string, _ int) bool {
		return e.m.Groups.IsMember(groupID, u)
	})

	msg := e.m.Messages.Create(c.user, groupID, content, true, atUsers)
	e.m.Metrics.MessagesCreated.WithLabelValues("group").Inc()

	e.m.Dispatcher.DeliverGroup(c.conn, msg)
	return nil
}

func (e *Engine) recall(c *call) error {
	p, err := bind[msgParams](c.params)
	if err != nil {
		return err
	}

	event, err := e.m.Moderation.Recall(strings.TrimSpace(p.MsgID), c.user)
	if err != nil {
		return err
	}

	e.m.Dispatcher.Reply(c.conn, protocol.Success("recalled", event))
	return nil
}

func (e *Engine) markRead(c *call) error {
	p, err := bind[msgParams](c.params)
	if err != nil {
		return err
	}

	event, _, err := e.m.Moderation.MarkRead(strings.TrimSpace(p.MsgID), c.user)
	if err != nil {
		return err
	}

	e.m.Dispatcher.Reply(c.conn, protocol.Success("read", event))
	return nil
}

// react has no separate acknowledgement: the reactor is part of the event audience.
func (e *Engine) react(c *call) error {
	p, err := bind[reactParams](c.params)
	if err != nil {
		return err
	}

	_, err = e.m.Moderation.React(strings.TrimSpace(p.MsgID), c.user, strings.TrimSpace(p.ReactType))
	return err
}

func (e *Engine) getHistory(c *call) error {
	p, err := bind[historyParams](c.params)
	if err != nil {
		return err
	}

	page, err := e.m.Messages.Page(c.user, p.BeforeTime, e.m.config.HistoryPageSize, e.m.Groups)
	if err != nil {
		return err
	}

	e.m.Dispatcher.Reply(c.conn, protocol.OK(protocol.TypeHistoryList, page))
	return nil
}

// typingEvent is the EVENT_TYPING payload.
type typingEvent struct {
	FromUser   string `json:"fromUser"`
	TargetUser string `json:"targetUser"`
	IsGroup    bool   `json:"isGroup"`
}

// typing is fire-and-forget: the sender gets no acknowledgement.
func (e *Engine) typing(c *call) error {
	p, err := bind[targetParams](c.params)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(p.TargetUser)

	// No username has the group id shape, so the target kind is unambiguous.
	if randx.IsValidGroupID(target) && e.m.Groups.Exists(target) {
		if !e.m.Groups.IsMember(target, c.user) {
			return errs.NewError(errs.ErrNotGroupMember)
		}
		event := protocol.OK(protocol.TypeTyping, typingEvent{FromUser: c.user, TargetUser: target, IsGroup: true})
		e.m.Dispatcher.Broadcast(e.m.Dispatcher.GroupAudience(target), event, c.user)
		return nil
	}

	if !e.m.Users.Exists(target) {
		return errs.NewError(errs.ErrUserNotFound)
	}
	if target != c.user && !e.m.Users.IsBlocked(target, c.user) {
		e.m.Dispatcher.SendToUser(target, protocol.OK(protocol.TypeTyping, typingEvent{FromUser: c.user, TargetUser: target}))
	}
	return nil
}
