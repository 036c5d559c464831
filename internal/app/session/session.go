/*
Package session contains the presence registry: the live mapping from username to the
single connection currently authenticated as that user.

Registration for a username is serialized per key, so concurrent logins for one user
always leave exactly one winner registered and every loser closed.
*/
package session

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/logx"
)

const (
	// CloseCodeSessionKicked is the websocket close code (4000-4999 private range)
	// telling the client its session was replaced or removed.
	CloseCodeSessionKicked = 4001

	// ReasonLoggedInElsewhere is the eviction notice text.
	ReasonLoggedInElsewhere = "logged in elsewhere"
)

// Conn is the transport-side handle of one live connection.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string

	// Send queues one outbound frame. Sends on one Conn never interleave.
	Send(frame []byte) error

	// Close terminates the connection with a websocket close code and reason.
	Close(code int, reason string)

	// IsOpen reports whether the connection can still accept frames.
	IsOpen() bool

	// Identity returns the bound username, or "" while unauthenticated.
	Identity() string

	// SetIdentity binds (or with "" unbinds) the username.
	SetIdentity(username string)
}

// OnlineUser is one entry of the online snapshot.
type OnlineUser struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar"`
	IsMuted  bool   `json:"isMuted"`
}

// ProfileSource resolves the profile fields shown in the online snapshot.
type ProfileSource interface {
	OnlineProfile(username string) (OnlineUser, bool)
}

// Hooks receives registry events. Any field may be nil.
type Hooks struct {
	// Online is called with the new session count after every change.
	Online func(count int)

	// Evicted is called each time a live session is displaced.
	Evicted func()
}

// Registry is the concurrency-safe presence map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Conn

	// keyLocks holds one *sync.Mutex per username, serializing register/unregister per key.
	keyLocks sync.Map

	hooks  Hooks
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(hooks Hooks) *Registry {
	return &Registry{
		sessions: make(map[string]Conn),
		hooks:    hooks,
		logger:   logx.Component("SessionRegistry"),
	}
}

func (r *Registry) lockKey(username string) func() {
	m, _ := r.keyLocks.LoadOrStore(username, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Register binds conn as the live session of username. Any other live session for
// username receives a forced-logout notice, is closed, and is returned as evicted.
func (r *Registry) Register(username string, conn Conn) (evicted Conn) {
	unlock := r.lockKey(username)
	defer unlock()

	r.mu.RLock()
	old, exists := r.sessions[username]
	r.mu.RUnlock()

	if exists && old != conn {
		r.logger.Warn().
			Str("username", username).
			Str("old_conn_id", old.ID()).
			Str("new_conn_id", conn.ID()).
			Msg("Username already connected. Evicting old session.")

		Evict(old, protocol.Notice(protocol.NoticeEvicted, ReasonLoggedInElsewhere), ReasonLoggedInElsewhere)
		evicted = old

		if r.hooks.Evicted != nil {
			r.hooks.Evicted()
		}
	}

	r.mu.Lock()
	r.sessions[username] = conn
	count := len(r.sessions)
	r.mu.Unlock()

	r.notifyOnline(count)

	r.logger.Info().Str("username", username).Str("conn_id", conn.ID()).Int("online", count).Msg("Session registered.")

	return evicted
}

// Unregister removes username's entry only if it still points at conn.
func (r *Registry) Unregister(username string, conn Conn) bool {
	if username == "" || conn == nil {
		return false
	}

	unlock := r.lockKey(username)
	defer unlock()

	r.mu.Lock()
	current, ok := r.sessions[username]
	if !ok || current != conn {
		r.mu.Unlock()
		r.logger.Debug().Str("username", username).Str("conn_id", conn.ID()).Msg("Stale unregister ignored.")
		return false
	}
	delete(r.sessions, username)
	count := len(r.sessions)
	r.mu.Unlock()

	r.notifyOnline(count)

	r.logger.Info().Str("username", username).Str("conn_id", conn.ID()).Int("online", count).Msg("Session unregistered.")

	return true
}

// Lookup returns the live session of username.
func (r *Registry) Lookup(username string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.sessions[username]
	return conn, ok
}

// IsOnline reports whether username has a live session.
func (r *Registry) IsOnline(username string) bool {
	_, ok := r.Lookup(username)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Usernames returns the currently online usernames in no particular order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}

// SnapshotOnline returns the online users with their profile fields. The snapshot is
// eventually consistent: users who leave while it is built may still appear.
func (r *Registry) SnapshotOnline(profiles ProfileSource) []OnlineUser {
	return lo.FilterMap(r.Usernames(), func(username string, _ int) (OnlineUser, bool) {
		return profiles.OnlineProfile(username)
	})
}

// CloseAll closes every live session and empties the registry.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	conns := lo.Values(r.sessions)
	r.sessions = make(map[string]Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(code, reason)
	}

	r.notifyOnline(0)
}

func (r *Registry) notifyOnline(count int) {
	if r.hooks.Online != nil {
		r.hooks.Online(count)
	}
}

// Evict delivers notice to conn on a best-effort basis, unbinds its identity and closes it.
func Evict(conn Conn, notice protocol.Response, reason string) {
	if frame, err := protocol.Encode(notice); err == nil {
		_ = conn.Send(frame)
	}
	conn.SetIdentity("")
	conn.Close(CloseCodeSessionKicked, reason)
}
