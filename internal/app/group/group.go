/*
Package group contains the group directory: group metadata, membership and the
owner/admin roles that gate group management.

The owner is always a member and can never be removed or demoted. Admins are a
subset of members.
*/
package group

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/randx"
)

// MaxNameLength is the maximum number of characters in a group name.
const MaxNameLength = 64

// Group is an immutable snapshot of a group.
type Group struct {
	ID        string   `json:"groupId"`
	Name      string   `json:"groupName"`
	Owner     string   `json:"owner"`
	Members   []string `json:"members"`
	Admins    []string `json:"admins"`
	CreatedAt int64    `json:"createdAt"`
}

type entry struct {
	id        string
	name      string
	owner     string
	members   map[string]struct{}
	admins    map[string]struct{}
	createdAt int64
}

// Directory is the concurrency-safe group registry.
type Directory struct {
	mu     sync.RWMutex
	groups map[string]*entry

	now    func() time.Time
	newID  func() (string, error)
	logger zerolog.Logger
}

// NewDirectory creates an empty directory. A nil clock defaults to time.Now.
func NewDirectory(now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}

	return &Directory{
		groups: make(map[string]*entry),
		now:    now,
		newID:  randx.GroupID,
		logger: logx.Component("GroupDirectory"),
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", errs.NewError(errs.ErrInvalidParams, "groupName")
	}
	return name, nil
}

// Create registers a new group. Empty and duplicate entries in initialMembers are
// dropped and the owner is always a member.
func (d *Directory) Create(name, owner string, initialMembers []string) (Group, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Group{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Group{}, errs.NewError(errs.ErrInvalidParams, "owner")
	}

	members := lo.Uniq(lo.Compact(lo.Map(initialMembers, func(m string, _ int) string {
		return strings.TrimSpace(m)
	})))

	e := &entry{
		name:      name,
		owner:     owner,
		members:   map[string]struct{}{owner: {}},
		admins:    map[string]struct{}{},
		createdAt: d.now().UnixMilli(),
	}
	for _, m := range members {
		e.members[m] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		id, err := d.newID()
		if err != nil {
			return Group{}, errs.NewError(errs.ErrUnknown, err)
		}
		if _, taken := d.groups[id]; !taken {
			e.id = id
			break
		}
	}
	d.groups[e.id] = e

	d.logger.Info().
		Str("group_id", e.id).
		Str("owner", owner).
		Int("members", len(e.members)).
		Msg("Group created.")

	return e.snapshot(), nil
}

// Get returns a snapshot of the group.
func (d *Directory) Get(groupID string) (Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.groups[groupID]
	if !ok {
		return Group{}, false
	}
	return e.snapshot(), true
}

// Exists reports whether the group exists.
func (d *Directory) Exists(groupID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.groups[groupID]
	return ok
}

// IsMember reports whether username currently belongs to the group.
func (d *Directory) IsMember(groupID, username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.groups[groupID]
	if !ok {
		return false
	}
	_, member := e.members[username]
	return member
}

// IsOwner reports whether username owns the group.
func (d *Directory) IsOwner(groupID, username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.groups[groupID]
	return ok && e.owner == username
}

// Name returns the group's current name.
func (d *Directory) Name(groupID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.groups[groupID]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Members returns a snapshot of the member list.
func (d *Directory) Members(groupID string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.groups[groupID]
	if !ok {
		return nil, false
	}
	return sortedKeys(e.members), true
}

// GroupsOf returns every group username belongs to, ordered by creation time.
func (d *Directory) GroupsOf(username string) []Group {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groups := lo.FilterMap(lo.Values(d.groups), func(e *entry, _ int) (Group, bool) {
		_, member := e.members[username]
		if !member {
			return Group{}, false
		}
		return e.snapshot(), true
	})

	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return groups
}

// SetAdmin promotes a member to group admin. Owner only.
func (d *Directory) SetAdmin(groupID, operator, target string) (Group, error) {
	return d.mutate(groupID, func(e *entry) error {
		if e.owner != operator {
			return errs.NewError(errs.ErrGroupOwnerOnly)
		}
		if target == e.owner {
			return errs.NewError(errs.ErrGroupOwnerImmutable)
		}
		if _, ok := e.members[target]; !ok {
			return errs.NewError(errs.ErrUserNotFound)
		}
		e.admins[target] = struct{}{}
		return nil
	})
}

// RemoveAdmin demotes a group admin back to member. Owner only.
func (d *Directory) RemoveAdmin(groupID, operator, target string) (Group, error) {
	return d.mutate(groupID, func(e *entry) error {
		if e.owner != operator {
			return errs.NewError(errs.ErrGroupOwnerOnly)
		}
		delete(e.admins, target)
		return nil
	})
}

// Rename changes the group name. Owner only.
func (d *Directory) Rename(groupID, operator, name string) (Group, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Group{}, err
	}

	return d.mutate(groupID, func(e *entry) error {
		if e.owner != operator {
			return errs.NewError(errs.ErrGroupOwnerOnly)
		}
		e.name = name
		return nil
	})
}

// AddMember adds target to the group. Owner or group admin only.
func (d *Directory) AddMember(groupID, operator, target string) (Group, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Group{}, errs.NewError(errs.ErrInvalidParams, "targetUser")
	}

	return d.mutate(groupID, func(e *entry) error {
		if !e.canManage(operator) {
			return errs.NewError(errs.ErrForbidden)
		}
		e.members[target] = struct{}{}
		return nil
	})
}

// RemoveMember removes target from the group. The owner and group admins may remove
// plain members, only the owner may remove an admin, and any member may remove itself.
// The owner can never be removed.
func (d *Directory) RemoveMember(groupID, operator, target string) (Group, error) {
	return d.mutate(groupID, func(e *entry) error {
		if target == e.owner {
			return errs.NewError(errs.ErrGroupOwnerImmutable)
		}
		if _, ok := e.members[target]; !ok {
			return errs.NewError(errs.ErrUserNotFound)
		}

		_, targetIsAdmin := e.admins[target]
		switch {
		case operator == target:
			// leaving
		case operator == e.owner:
		case targetIsAdmin:
			return errs.NewError(errs.ErrGroupOwnerOnly)
		case !e.canManage(operator):
			return errs.NewError(errs.ErrForbidden)
		}

		delete(e.members, target)
		delete(e.admins, target)
		return nil
	})
}

// Dissolve removes the group entirely and returns its final snapshot. Owner only.
func (d *Directory) Dissolve(groupID, operator string) (Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.groups[groupID]
	if !ok {
		return Group{}, errs.NewError(errs.ErrGroupNotFound)
	}
	if e.owner != operator {
		return Group{}, errs.NewError(errs.ErrGroupOwnerOnly)
	}

	delete(d.groups, groupID)
	d.logger.Info().Str("group_id", groupID).Str("operator", operator).Msg("Group dissolved.")

	return e.snapshot(), nil
}

func (d *Directory) mutate(groupID string, fn func(e *entry) error) (Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.groups[groupID]
	if !ok {
		return Group{}, errs.NewError(errs.ErrGroupNotFound)
	}
	if err := fn(e); err != nil {
		return Group{}, err
	}
	return e.snapshot(), nil
}

func (e *entry) canManage(username string) bool {
	if username == e.owner {
		return true
	}
	_, admin := e.admins[username]
	return admin
}

func (e *entry) snapshot() Group {
	return Group{
		ID:        e.id,
		Name:      e.name,
		Owner:     e.owner,
		Members:   sortedKeys(e.members),
		Admins:    sortedKeys(e.admins),
		CreatedAt: e.createdAt,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
