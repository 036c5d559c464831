/*
Package message contains the message store and history pager.

The store exclusively owns every message's mutable state (reaction sets and read-by
set). Callers only ever receive immutable snapshots; all mutation goes through the
store's per-message atomic operations.
*/
package message

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/randx"
)

// DefaultPageSize is the number of messages returned per history page.
const DefaultPageSize = 20

// Message is an immutable snapshot of a stored message.
type Message struct {
	ID        string              `json:"msgId"`
	FromUser  string              `json:"fromUser"`
	ToUser    string              `json:"toUser"`
	IsGroup   bool                `json:"isGroup"`
	Content   string              `json:"content"`
	Timestamp int64               `json:"timestamp"`
	AtUsers   []string            `json:"atUsers"`
	Reactions map[string][]string `json:"reactions"`
	ReadBy    []string            `json:"readBy"`
}

// VisibleTo reports whether a private message involves username.
func (m Message) VisibleTo(username string) bool {
	return !m.IsGroup && (m.FromUser == username || m.ToUser == username)
}

// MembershipChecker answers group membership questions for visibility filtering.
type MembershipChecker interface {
	IsMember(groupID, username string) bool
}

type entry struct {
	// Immutable after creation.
	id        string
	fromUser  string
	toUser    string
	isGroup   bool
	content   string
	timestamp int64
	atUsers   []string

	mu        sync.Mutex
	reactions map[ReactType]map[string]struct{}
	readBy    map[string]struct{}
	deleted   bool
}

// Store is the concurrency-safe in-memory message store.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*entry

	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewStore creates an empty store. A nil clock defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}

	return &Store{
		messages: make(map[string]*entry),
		now:      now,
		newID:    randx.MessageID,
		logger:   logx.Component("MessageStore"),
	}
}

// Create stores a new message stamped with the current wall-clock time.
func (s *Store) Create(fromUser, target, content string, isGroup bool, atUsers []string) Message {
	e := &entry{
		id:        s.newID(),
		fromUser:  fromUser,
		toUser:    target,
		isGroup:   isGroup,
		content:   content,
		timestamp: s.now().UnixMilli(),
		atUsers:   slices.Clone(atUsers),
		reactions: make(map[ReactType]map[string]struct{}),
		readBy:    make(map[string]struct{}),
	}

	s.mu.Lock()
	s.messages[e.id] = e
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.messages[id]
	return e, ok
}

// Get returns a snapshot of the message.
func (s *Store) Get(id string) (Message, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return Message{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return Message{}, false
	}
	return e.snapshot(), true
}

// Remove deletes the message. Exactly one of any number of concurrent calls for
// the same id returns true.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.messages[id]
	if ok {
		delete(s.messages, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	return true
}

// ToggleReaction flips reactor's reaction of type t on the message. If reactor
// already holds t it is removed; otherwise any other reaction reactor holds is
// dropped and t is added. Empty buckets are pruned. It returns whether t was
// added and the resulting count for t.
func (s *Store) ToggleReaction(id, reactor string, t ReactType) (isAdd bool, count int, err error) {
	e, ok := s.lookup(id)
	if !ok {
		return false, 0, errs.NewError(errs.ErrMessageNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return false, 0, errs.NewError(errs.ErrMessageNotFound)
	}

	if holders, ok := e.reactions[t]; ok {
		if _, held := holders[reactor]; held {
			delete(holders, reactor)
			if len(holders) == 0 {
				delete(e.reactions, t)
			}
			return false, len(holders), nil
		}
	}

	for other, holders := range e.reactions {
		delete(holders, reactor)
		if len(holders) == 0 {
			delete(e.reactions, other)
		}
	}

	holders, ok := e.reactions[t]
	if !ok {
		holders = make(map[string]struct{})
		e.reactions[t] = holders
	}
	holders[reactor] = struct{}{}

	return true, len(holders), nil
}

// MarkRead adds reader to the read-by set. added is true only on the first read by reader.
func (s *Store) MarkRead(id, reader string) (added bool, count int, err error) {
	e, ok := s.lookup(id)
	if !ok {
		return false, 0, errs.NewError(errs.ErrMessageNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return false, 0, errs.NewError(errs.ErrMessageNotFound)
	}

	if _, seen := e.readBy[reader]; seen {
		return false, len(e.readBy), nil
	}
	e.readBy[reader] = struct{}{}
	return true, len(e.readBy), nil
}

// Count returns the number of stored messages.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (e *entry) snapshot() Message {
	reactions := make(map[string][]string, len(e.reactions))
	for t, holders := range e.reactions {
		users := lo.Keys(holders)
		slices.Sort(users)
		reactions[string(t)] = users
	}

	readBy := lo.Keys(e.readBy)
	slices.Sort(readBy)

	return Message{
		ID:        e.id,
		FromUser:  e.fromUser,
		ToUser:    e.toUser,
		IsGroup:   e.isGroup,
		Content:   e.content,
		Timestamp: e.timestamp,
		AtUsers:   slices.Clone(e.atUsers),
		Reactions: reactions,
		ReadBy:    readBy,
	}
}

// newestFirst orders by timestamp descending, then id descending.
func newestFirst(a, b *entry) int {
	return cmp.Or(cmp.Compare(b.timestamp, a.timestamp), cmp.Compare(b.id, a.id))
}
