package chat

import "errors"

// Error codes shared with the websocket protocol layer.
const (
	ErrCodeInvalidArgument = "invalid_argument"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternal        = "internal"
)

var (
	// ErrInvalidArgument is returned for malformed identities or ids.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated is returned when no actor identity is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the actor lacks room access.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced user or room is missing.
	ErrNotFound = errors.New("not found")
)

// Code maps a service error to its protocol error code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeInternal
	}
}
