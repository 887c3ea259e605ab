package room

import "errors"

// Kind classifies coordinator errors.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPermission
	KindCapacity
	KindNotFound
	KindInvariant
	KindTransport
	KindAuth
	KindConflict
	KindUnavailable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindPermission:
		return "PermissionError"
	case KindCapacity:
		return "CapacityError"
	case KindNotFound:
		return "NotFoundError"
	case KindInvariant:
		return "InvariantViolation"
	case KindTransport:
		return "TransportError"
	case KindAuth:
		return "AuthError"
	case KindConflict:
		return "ConflictError"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "InternalError"
	}
}

// Error is a classified error whose Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a classified error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation creates a ValidationError with the given message.
func Validation(message string) *Error {
	return NewError(KindValidation, message)
}

var (
	ErrAlreadyJoined      = NewError(KindConflict, "already joined room")
	ErrRoomFull           = NewError(KindCapacity, "room is full")
	ErrNotModerator       = NewError(KindPermission, "only the moderator can do this")
	ErrTargetNotFound     = NewError(KindNotFound, "target user is not in the room")
	ErrSelfKick           = NewError(KindPermission, "moderator cannot kick themself")
	ErrRoomNotFound       = NewError(KindNotFound, "room not found")
	ErrNotMember          = NewError(KindPermission, "not a member of this room")
	ErrInvalidCredentials = NewError(KindAuth, "Invalid credentials")
	ErrRoomNotEmpty       = NewError(KindConflict, "room is not empty")
	ErrUnavailable        = NewError(KindUnavailable, "service unavailable")
	ErrRateLimited        = NewError(KindValidation, "rate limit exceeded, please slow down")
	ErrWrongUser          = NewError(KindPermission, "user id does not match credentials")
)

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the message a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
