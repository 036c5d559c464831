package message

import (
	"slices"

	"chatcoord/internal/pkg/errs"
)

// Page is one page of history, oldest message first.
type Page struct {
	Messages       []Message `json:"messages"`
	HasMore        bool      `json:"hasMore"`
	NextBeforeTime *int64    `json:"nextBeforeTime,omitempty"`
}

// Page returns the most recent pageSize messages visible to viewer, optionally
// restricted to timestamps strictly before *before.
//
// A private message is visible to its sender and target; a group message is visible
// to the current members of its group. HasMore is set when the page is full, and
// NextBeforeTime carries the oldest timestamp of a non-empty page.
func (s *Store) Page(viewer string, before *int64, pageSize int, groups MembershipChecker) (Page, error) {
	if viewer == "" {
		return Page{}, errs.NewError(errs.ErrUnauthorized)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s.mu.RLock()
	candidates := make([]*entry, 0, len(s.messages))
	for _, e := range s.messages {
		if before != nil && e.timestamp >= *before {
			continue
		}
		candidates = append(candidates, e)
	}
	s.mu.RUnlock()

	visible := candidates[:0]
	for _, e := range candidates {
		if e.isGroup {
			if groups != nil && groups.IsMember(e.toUser, viewer) {
				visible = append(visible, e)
			}
			continue
		}
		if e.fromUser == viewer || e.toUser == viewer {
			visible = append(visible, e)
		}
	}

	slices.SortFunc(visible, newestFirst)
	if len(visible) > pageSize {
		visible = visible[:pageSize]
	}

	messages := make([]Message, 0, len(visible))
	for i := len(visible) - 1; i >= 0; i-- {
		e := visible[i]
		e.mu.Lock()
		if !e.deleted {
			messages = append(messages, e.snapshot())
		}
		e.mu.Unlock()
	}

	page := Page{
		Messages: messages,
		HasMore:  len(visible) == pageSize,
	}
	if len(messages) > 0 {
		oldest := messages[0].Timestamp
		page.NextBeforeTime = &oldest
	}

	return page, nil
}
