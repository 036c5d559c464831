/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally within
the coordinator and in the ERROR frames delivered to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that a required parameter is missing, empty or malformed.
	ErrInvalidParams = 1001

	// ErrInvalidFrame indicates that an inbound frame could not be decoded.
	ErrInvalidFrame = 1002

	// ErrUnknownAction indicates that the frame names an action outside the catalogue.
	ErrUnknownAction = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Message and Group Business Logic Errors
const (
	// ErrMessageNotFound indicates that the referenced message does not exist (or was recalled).
	ErrMessageNotFound = 2101

	// ErrRecallExpired indicates that the recall window for the message has elapsed.
	ErrRecallExpired = 2102

	// ErrInvalidReactType indicates a reaction type outside the allowed set.
	ErrInvalidReactType = 2103

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrGroupNotFound indicates that the referenced group does not exist.
	ErrGroupNotFound = 2301

	// ErrNotGroupMember indicates that the operator is not a member of the group.
	ErrNotGroupMember = 2302

	// ErrGroupOwnerOnly indicates an operation reserved to the group owner.
	ErrGroupOwnerOnly = 2303

	// ErrGroupOwnerImmutable indicates an attempt to remove or demote the group owner.
	ErrGroupOwnerImmutable = 2304
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the connection carries no bound identity.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a credential mismatch for an existing user.
	ErrInvalidCredentials = 3002

	// ErrSessionKicked indicates that the current connection has been replaced or kicked.
	ErrSessionKicked = 3004

	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = 3005

	// ErrUserOffline indicates that the referenced user has no live session.
	ErrUserOffline = 3006

	// ErrForbidden indicates insufficient permission for the requested operation.
	ErrForbidden = 3007

	// ErrAdminOnly indicates an operation reserved to ADMIN users.
	ErrAdminOnly = 3008

	// ErrUserMuted indicates that the sender is muted.
	ErrUserMuted = 3009

	// ErrUserBlocked indicates that the target has blocked the sender.
	ErrUserBlocked = 3010

	// ErrInvalidToken indicates that a resume token failed verification.
	ErrInvalidToken = 3011
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
