package chat

import (
	"strings"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/errs"
)

// Friend event kinds carried in FRIEND_EVENT.
const (
	FriendRequested = "REQUEST"
	FriendAccepted  = "ACCEPT"
	FriendRejected  = "REJECT"
)

type friendEvent struct {
	Kind     string `json:"kind"`
	FromUser string `json:"fromUser"`
}

func (e *Engine) target(c *call) (string, error) {
	p, err := bind[targetParams](c.params)
	if err != nil {
		return "", err
	}

	target := strings.TrimSpace(p.TargetUser)
	if !e.m.Users.Exists(target) {
		return "", errs.NewError(errs.ErrUserNotFound)
	}
	return target, nil
}

// notifyFriend tells target about the change and acknowledges the caller with its fresh profile.
func (e *Engine) notifyFriend(c *call, target, kind, ack string) {
	e.m.Dispatcher.SendToUser(target, protocol.OK(protocol.TypeFriendEvent, friendEvent{Kind: kind, FromUser: c.user}))
	e.replyProfile(c, ack)
}

func (e *Engine) replyProfile(c *call, ack string) {
	profile, _ := e.m.Users.Get(c.user)
	e.m.Dispatcher.Reply(c.conn, protocol.Success(ack, profile))
}

func (e *Engine) friendRequest(c *call) error {
	target, err := e.target(c)
	if err != nil {
		return err
	}

	changed, err := e.m.Users.SendFriendRequest(c.user, target)
	if err != nil {
		return err
	}
	if !changed {
		e.replyProfile(c, "already requested")
		return nil
	}

	e.notifyFriend(c, target, FriendRequested, "friend request sent")
	return nil
}

func (e *Engine) friendAccept(c *call) error {
	target, err := e.target(c)
	if err != nil {
		return err
	}

	if err := e.m.Users.AcceptFriendRequest(c.user, target); err != nil {
		return err
	}

	e.notifyFriend(c, target, FriendAccepted, "friend request accepted")
	return nil
}

func (e *Engine) friendReject(c *call) error {
	target, err := e.target(c)
	if err != nil {
		return err
	}

	if err := e.m.Users.RejectFriendRequest(c.user, target); err != nil {
		return err
	}

	e.notifyFriend(c, target, FriendRejected, "friend request rejected")
	return nil
}

func (e *Engine) blockUser(c *call) error {
	target, err := e.target(c)
	if err != nil {
		return err
	}

	if err := e.m.Users.Block(c.user, target); err != nil {
		return err
	}

	e.replyProfile(c, "blocked")
	return nil
}

func (e *Engine) unblockUser(c *call) error {
	target, err := e.target(c)
	if err != nil {
		return err
	}

	if err := e.m.Users.Unblock(c.user, target); err != nil {
		return err
	}

	e.replyProfile(c, "unblocked")
	return nil
}
