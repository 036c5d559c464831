package message

import (
	"strings"

	"chatcoord/internal/pkg/errs"
)

// ReactType is one of the fixed reaction kinds.
type ReactType string

const (
	ReactLike    ReactType = "like"
	ReactDislike ReactType = "dislike"
	ReactHeart   ReactType = "heart"
	ReactLaugh   ReactType = "laugh"
	ReactSad     ReactType = "sad"
	ReactAngry   ReactType = "angry"
)

var reactTypes = map[ReactType]struct{}{
	ReactLike:    {},
	ReactDislike: {},
	ReactHeart:   {},
	ReactLaugh:   {},
	ReactSad:     {},
	ReactAngry:   {},
}

// ParseReactType normalizes s (case-insensitive) and rejects anything outside the fixed set.
func ParseReactType(s string) (ReactType, error) {
	t := ReactType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := reactTypes[t]; !ok {
		return "", errs.NewError(errs.ErrInvalidReactType, s)
	}
	return t, nil
}
