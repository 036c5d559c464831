package chat

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chatcoord/internal/pkg/errs"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report wire names (json tags) instead of Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// bind decodes raw params into T and validates it. Any failure is a ValidationError
// naming the first offending field.
func bind[T any](raw json.RawMessage) (T, error) {
	var params T

	if err := json.Unmarshal(raw, &params); err != nil {
		field := "params"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return params, errs.NewError(errs.ErrInvalidParams, field)
	}

	if err := validate.Struct(params); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return params, errs.NewError(errs.ErrInvalidParams, fieldErrs[0].Field())
		}
		return params, errs.NewError(errs.ErrInvalidParams, "params")
	}

	return params, nil
}

// cleanNames trims, drops empties and de-duplicates a username list, keeping order.
func cleanNames(names []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(names, func(n string, _ int) string {
		return strings.TrimSpace(n)
	})))
}

type loginParams struct {
	Username string `json:"username" validate:"required,nonblank"`
	Password string `json:"password" validate:"max=72"`
	Token    string `json:"token"`
}

type sendParams struct {
	TargetUser string   `json:"targetUser" validate:"required,nonblank"`
	Content    string   `json:"content" validate:"required,nonblank"`
	AtUsers    []string `json:"atUsers"`
}

type msgParams struct {
	MsgID string `json:"msgId" validate:"required,nonblank"`
}

type reactParams struct {
	MsgID     string `json:"msgId" validate:"required,nonblank"`
	ReactType string `json:"reactType" validate:"required,nonblank"`
}

type historyParams struct {
	BeforeTime *int64 `json:"beforeTime" validate:"omitempty,gt=0"`
}

type targetParams struct {
	TargetUser string `json:"targetUser" validate:"required,nonblank"`
}

type muteParams struct {
	TargetUser      string `json:"targetUser" validate:"required,nonblank"`
	DurationSeconds *int64 `json:"durationSeconds"`
	Duration        *int64 `json:"duration"`
}

// seconds returns durationSeconds, falling back to the legacy duration field.
func (p muteParams) seconds() int64 {
	switch {
	case p.DurationSeconds != nil:
		return *p.DurationSeconds
	case p.Duration != nil:
		return *p.Duration
	default:
		return 0
	}
}

type createGroupParams struct {
	GroupName      string   `json:"groupName" validate:"required,nonblank"`
	InitialMembers []string `json:"initialMembers"`
}

type groupParams struct {
	GroupID string `json:"groupId" validate:"required,nonblank"`
}

type groupMemberParams struct {
	GroupID    string `json:"groupId" validate:"required,nonblank"`
	TargetUser string `json:"targetUser" validate:"required,nonblank"`
}

type groupRenameParams struct {
	GroupID   string `json:"groupId" validate:"required,nonblank"`
	GroupName string `json:"groupName" validate:"required,nonblank"`
}

type avatarParams struct {
	Avatar string `json:"avatar" validate:"max=512"`
}
