/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
ERROR frames and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Kind: KindValidation, Message: "Invalid parameter: %s.", Status: http.StatusBadRequest},
	ErrInvalidFrame:      {Code: ErrInvalidFrame, Kind: KindValidation, Message: "Malformed request frame.", Status: http.StatusBadRequest},
	ErrUnknownAction:     {Code: ErrUnknownAction, Kind: KindUnknownAction, Message: "unknown instruction", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Kind: KindRateLimited, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Message and Group Business Logic Errors
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Kind: KindNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrRecallExpired:         {Code: ErrRecallExpired, Kind: KindExpired, Message: "Message can no longer be recalled.", Status: http.StatusGone},
	ErrInvalidReactType:      {Code: ErrInvalidReactType, Kind: KindInvalidType, Message: "Unsupported reaction type: %s.", Status: http.StatusUnprocessableEntity},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Kind: KindValidation, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrGroupNotFound:         {Code: ErrGroupNotFound, Kind: KindNotFound, Message: "Group not found.", Status: http.StatusNotFound},
	ErrNotGroupMember:        {Code: ErrNotGroupMember, Kind: KindForbidden, Message: "You are not a member of this group.", Status: http.StatusForbidden},
	ErrGroupOwnerOnly:        {Code: ErrGroupOwnerOnly, Kind: KindForbidden, Message: "Only the group owner can do this.", Status: http.StatusForbidden},
	ErrGroupOwnerImmutable:   {Code: ErrGroupOwnerImmutable, Kind: KindForbidden, Message: "The group owner cannot be changed this way.", Status: http.StatusForbidden},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Kind: KindAuth, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Kind: KindAuth, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrSessionKicked:      {Code: ErrSessionKicked, Kind: KindAuth, Message: "You were signed in on another device.", Status: http.StatusBadRequest},
	ErrUserNotFound:       {Code: ErrUserNotFound, Kind: KindNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrUserOffline:        {Code: ErrUserOffline, Kind: KindNotFound, Message: "User is not online.", Status: http.StatusNotFound},
	ErrForbidden:          {Code: ErrForbidden, Kind: KindForbidden, Message: "You do not have permission to do this.", Status: http.StatusForbidden},
	ErrAdminOnly:          {Code: ErrAdminOnly, Kind: KindForbidden, Message: "Administrator privileges required.", Status: http.StatusForbidden},
	ErrUserMuted:          {Code: ErrUserMuted, Kind: KindForbidden, Message: "You are muted until %s.", Status: http.StatusForbidden},
	ErrUserBlocked:        {Code: ErrUserBlocked, Kind: KindForbidden, Message: "This user does not accept your messages.", Status: http.StatusForbidden},
	ErrInvalidToken:       {Code: ErrInvalidToken, Kind: KindAuth, Message: "Session token is invalid or expired.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
