/*
Package user contains the user directory: identity, credentials, roles, mute state and
the social graph (friends, blocks, pending friend requests).

Users are created on their first successful login (register-on-login) and are never deleted.
*/
package user

import (
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"chatcoord/internal/app/session"
	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/randx"
)

// Role is the global role of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const (
	// MaxUsernameLength is the maximum number of characters in a username.
	MaxUsernameLength = 32

	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72

	// MaxAvatarLength bounds the avatar reference (usually a URL).
	MaxAvatarLength = 512
)

type set map[string]struct{}

// record is the directory's private, mutable user entry. It is only touched under Directory.mu.
type record struct {
	username     string
	passwordHash []byte
	role         Role
	avatar       string
	muteUntil    int64
	tokenEpoch   uint64
	friends      set
	blocked      set
	pending      set
}

// Profile is an immutable snapshot of a user. It never carries the credential.
type Profile struct {
	Username        string   `json:"username"`
	Role            Role     `json:"role"`
	Avatar          string   `json:"avatar"`
	MuteUntil       int64    `json:"muteUntil"`
	Friends         []string `json:"friends"`
	Blocked         []string `json:"blocked"`
	PendingRequests []string `json:"pendingRequests"`
}

// IsAdmin reports whether the profile has the ADMIN role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Directory is the concurrency-safe user registry.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*record

	adminUsername string
	bcryptCost    int
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the wall clock used for mute checks.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// NewDirectory creates an empty directory. A user registering as adminUsername is granted ADMIN.
func NewDirectory(adminUsername string, bcryptCost int, opts ...Option) *Directory {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	d := &Directory{
		users:         make(map[string]*record),
		adminUsername: adminUsername,
		bcryptCost:    bcryptCost,
		now:           time.Now,
		logger:        logx.Component("UserDirectory"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// NormalizeUsername trims surrounding whitespace and validates the result.
// Names shaped like a group id are reserved so a typing or message target is never ambiguous.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength || randx.IsValidGroupID(username) {
		return "", errs.NewError(errs.ErrInvalidParams, "username")
	}
	return username, nil
}

// Login authenticates username with password, registering the user when unknown.
// created reports whether this call registered a new user.
func (d *Directory) Login(username, password string) (profile Profile, created bool, err error) {
	username, err = NormalizeUsername(username)
	if err != nil {
		return Profile{}, false, err
	}
	if len(password) > MaxPasswordBytes {
		return Profile{}, false, errs.NewError(errs.ErrInvalidParams, "password")
	}

	if hash, ok := d.credential(username); ok {
		return d.verify(username, hash, password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		return Profile{}, false, errs.NewError(errs.ErrUnknown, err)
	}

	d.mu.Lock()
	if existing, ok := d.users[username]; ok {
		// Lost a registration race: the other registration owns the credential.
		existingHash := existing.passwordHash
		d.mu.Unlock()
		return d.verify(username, existingHash, password)
	}

	role := RoleUser
	if d.adminUsername != "" && username == d.adminUsername {
		role = RoleAdmin
	}

	rec := &record{
		username:     username,
		passwordHash: hash,
		role:         role,
		tokenEpoch:   1,
		friends:      set{},
		blocked:      set{},
		pending:      set{},
	}
	d.users[username] = rec
	profile = rec.snapshot()
	d.mu.Unlock()

	d.logger.Info().Str("username", username).Str("role", string(role)).Msg("User registered on first login.")

	return profile, true, nil
}

func (d *Directory) credential(username string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	if !ok {
		return nil, false
	}
	return rec.passwordHash, true
}

func (d *Directory) verify(username string, hash []byte, password string) (Profile, bool, error) {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		d.logger.Warn().Str("username", username).Msg("Credential mismatch on login.")
		return Profile{}, false, errs.NewError(errs.ErrInvalidCredentials)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.users[username]
	if !ok {
		return Profile{}, false, errs.NewError(errs.ErrUserNotFound)
	}
	rec.tokenEpoch++
	return rec.snapshot(), false, nil
}

// TokenEpoch returns the credential epoch of username. Every successful password
// login starts a new epoch, so resume tokens issued before it stop verifying.
func (d *Directory) TokenEpoch(username string) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	if !ok {
		return 0, false
	}
	return rec.tokenEpoch, true
}

// Get returns a snapshot of the named user.
func (d *Directory) Get(username string) (Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	if !ok {
		return Profile{}, false
	}
	return rec.snapshot(), true
}

// Exists reports whether username is registered.
func (d *Directory) Exists(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[username]
	return ok
}

// IsAdmin reports whether username is registered with the ADMIN role.
func (d *Directory) IsAdmin(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	return ok && rec.role == RoleAdmin
}

// Mute silences username until the given instant. A zero or past instant lifts the mute.
func (d *Directory) Mute(username string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.users[username]
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}

	if until.IsZero() {
		rec.muteUntil = 0
	} else {
		rec.muteUntil = until.UnixMilli()
	}
	return nil
}

// MutedUntil returns the mute deadline when username is muted right now.
func (d *Directory) MutedUntil(username string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	if !ok || !rec.mutedAt(d.now()) {
		return time.Time{}, false
	}
	return time.UnixMilli(rec.muteUntil), true
}

// UpdateAvatar replaces the avatar reference of username.
func (d *Directory) UpdateAvatar(username, avatar string) (Profile, error) {
	avatar = strings.TrimSpace(avatar)
	if len(avatar) > MaxAvatarLength {
		return Profile{}, errs.NewError(errs.ErrInvalidParams, "avatar")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.users[username]
	if !ok {
		return Profile{}, errs.NewError(errs.ErrUserNotFound)
	}
	rec.avatar = avatar
	return rec.snapshot(), nil
}

// OnlineProfile implements session.ProfileSource.
func (d *Directory) OnlineProfile(username string) (session.OnlineUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[username]
	if !ok {
		return session.OnlineUser{}, false
	}

	return session.OnlineUser{
		Username: rec.username,
		Role:     string(rec.role),
		Avatar:   rec.avatar,
		IsMuted:  rec.mutedAt(d.now()),
	}, true
}

// SendFriendRequest records a pending request from -> to.
// It returns false when the two are already friends or the request is already pending.
func (d *Directory) SendFriendRequest(from, to string) (bool, error) {
	if from == to {
		return false, errs.NewError(errs.ErrInvalidParams, "targetUser")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sender, target, err := d.pair(from, to)
	if err != nil {
		return false, err
	}

	if _, blocked := target.blocked[from]; blocked {
		return false, errs.NewError(errs.ErrUserBlocked)
	}
	if _, friends := sender.friends[to]; friends {
		return false, nil
	}
	if _, pending := target.pending[from]; pending {
		return false, nil
	}

	// A crossing request is an implicit accept.
	if _, crossing := sender.pending[to]; crossing {
		delete(sender.pending, to)
		sender.friends[to] = struct{}{}
		target.friends[from] = struct{}{}
		return true, nil
	}

	target.pending[from] = struct{}{}
	return true, nil
}

// AcceptFriendRequest turns the pending request requester -> owner into a mutual friendship.
func (d *Directory) AcceptFriendRequest(owner, requester string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	self, other, err := d.pair(owner, requester)
	if err != nil {
		return err
	}

	if _, ok := self.pending[requester]; !ok {
		return errs.NewError(errs.ErrInvalidParams, "targetUser")
	}

	delete(self.pending, requester)
	self.friends[requester] = struct{}{}
	other.friends[owner] = struct{}{}
	return nil
}

// RejectFriendRequest drops the pending request requester -> owner.
func (d *Directory) RejectFriendRequest(owner, requester string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	self, ok := d.users[owner]
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}

	if _, ok := self.pending[requester]; !ok {
		return errs.NewError(errs.ErrInvalidParams, "targetUser")
	}
	delete(self.pending, requester)
	return nil
}

// Block makes owner refuse private messages and friend requests from target.
// Any friendship or pending request between the two is dissolved.
func (d *Directory) Block(owner, target string) error {
	if owner == target {
		return errs.NewError(errs.ErrInvalidParams, "targetUser")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	self, other, err := d.pair(owner, target)
	if err != nil {
		return err
	}

	self.blocked[target] = struct{}{}
	delete(self.friends, target)
	delete(other.friends, owner)
	delete(self.pending, target)
	delete(other.pending, owner)
	return nil
}

// Unblock lifts a block set by owner.
func (d *Directory) Unblock(owner, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	self, ok := d.users[owner]
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}
	delete(self.blocked, target)
	return nil
}

// IsBlocked reports whether owner has blocked target.
func (d *Directory) IsBlocked(owner, target string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.users[owner]
	if !ok {
		return false
	}
	_, blocked := rec.blocked[target]
	return blocked
}

// Count returns the number of registered users.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Directory) pair(a, b string) (*record, *record, error) {
	first, ok := d.users[a]
	if !ok {
		return nil, nil, errs.NewError(errs.ErrUserNotFound)
	}
	second, ok := d.users[b]
	if !ok {
		return nil, nil, errs.NewError(errs.ErrUserNotFound)
	}
	return first, second, nil
}

func (r *record) mutedAt(now time.Time) bool {
	return r.muteUntil > 0 && now.UnixMilli() < r.muteUntil
}

func (r *record) snapshot() Profile {
	return Profile{
		Username:        r.username,
		Role:            r.role,
		Avatar:          r.avatar,
		MuteUntil:       r.muteUntil,
		Friends:         sortedKeys(r.friends),
		Blocked:         sortedKeys(r.blocked),
		PendingRequests: sortedKeys(r.pending),
	}
}

func sortedKeys(s set) []string {
	keys := lo.Keys(s)
	slices.Sort(keys)
	return keys
}
