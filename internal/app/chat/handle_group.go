package chat

import (
	"strings"

	"github.com/samber/lo"

	"chatcoord/internal/app/group"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/errs"
)

// announce replies to the operator and broadcasts the same frame to the audience.
func (e *Engine) announce(c *call, resp protocol.Response, audience []string) {
	e.m.Dispatcher.Reply(c.conn, resp)
	e.m.Dispatcher.Broadcast(audience, resp, c.user)
}

func (e *Engine) createGroup(c *call) error {
	p, err := bind[createGroupParams](c.params)
	if err != nil {
		return err
	}

	// Unknown usernames are dropped rather than failing the whole request.
	members := lo.Filter(cleanNames(p.InitialMembers), func(u string, _ int) bool {
		return e.m.Users.Exists(u)
	})

	g, err := e.m.Groups.Create(p.GroupName, c.user, members)
	if err != nil {
		return err
	}

	e.announce(c, protocol.OK(protocol.TypeGroupCreated, g), g.Members)
	return nil
}

func (e *Engine) groupUpdated(c *call, g group.Group, extra ...string) {
	e.announce(c, protocol.OK(protocol.TypeGroupUpdated, g), append(g.Members, extra...))
}

func (e *Engine) groupAddMember(c *call) error {
	p, err := bind[groupMemberParams](c.params)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(p.TargetUser)

	if !e.m.Users.Exists(target) {
		return errs.NewError(errs.ErrUserNotFound)
	}

	g, err := e.m.Groups.AddMember(strings.TrimSpace(p.GroupID), c.user, target)
	if err != nil {
		return err
	}

	e.groupUpdated(c, g)
	return nil
}

// groupRemoveMember also notifies the removed user, who is no longer in the member list.
func (e *Engine) groupRemoveMember(c *call) error {
	p, err := bind[groupMemberParams](c.params)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(p.TargetUser)

	g, err := e.m.Groups.RemoveMember(strings.TrimSpace(p.GroupID), c.user, target)
	if err != nil {
		return err
	}

	e.groupUpdated(c, g, target)
	return nil
}

func (e *Engine) groupSetAdmin(c *call) error {
	p, err := bind[groupMemberParams](c.params)
	if err != nil {
		return err
	}

	g, err := e.m.Groups.SetAdmin(strings.TrimSpace(p.GroupID), c.user, strings.TrimSpace(p.TargetUser))
	if err != nil {
		return err
	}

	e.groupUpdated(c, g)
	return nil
}

func (e *Engine) groupRemoveAdmin(c *call) error {
	p, err := bind[groupMemberParams](c.params)
	if err != nil {
		return err
	}

	g, err := e.m.Groups.RemoveAdmin(strings.TrimSpace(p.GroupID), c.user, strings.TrimSpace(p.TargetUser))
	if err != nil {
		return err
	}

	e.groupUpdated(c, g)
	return nil
}

func (e *Engine) groupRename(c *call) error {
	p, err := bind[groupRenameParams](c.params)
	if err != nil {
		return err
	}

	g, err := e.m.Groups.Rename(strings.TrimSpace(p.GroupID), c.user, p.GroupName)
	if err != nil {
		return err
	}

	e.groupUpdated(c, g)
	return nil
}

func (e *Engine) groupDissolve(c *call) error {
	p, err := bind[groupParams](c.params)
	if err != nil {
		return err
	}

	g, err := e.m.Groups.Dissolve(strings.TrimSpace(p.GroupID), c.user)
	if err != nil {
		return err
	}

	e.announce(c, protocol.OK(protocol.TypeGroupDissolved, g), g.Members)
	return nil
}
