package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// NotFound
var (
	ErrRoomNotFound        = fmt.Errorf("room not found")
	ErrIssueNotFound       = fmt.Errorf("issue not found")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrUserNotFound        = fmt.Errorf("user not found")
)

// Forbidden
var (
	ErrNotAdmin       = fmt.Errorf("only admin can perform this action")
	ErrNotParticipant = fmt.Errorf("not a participant in this room")
	ErrNotPlayer      = fmt.Errorf("only players can vote")
	ErrVotingClosed   = fmt.Errorf("voting has ended")
	ErrSelfDemotion   = fmt.Errorf("admin cannot change their own role")
	ErrSelfKick       = fmt.Errorf("admin cannot kick themself")
)

// InvalidInput
var (
	ErrInvalidCommand   = fmt.Errorf("invalid command")
	ErrUnknownCommand   = fmt.Errorf("unknown command")
	ErrInvalidVote      = fmt.Errorf("invalid vote value")
	ErrInvalidRole      = fmt.Errorf("invalid role")
	ErrInvalidDuration  = fmt.Errorf("invalid timer duration")
	ErrAlreadyInRoom    = fmt.Errorf("leave the current room before joining another one")
	ErrNotInRoom        = fmt.Errorf("connection has not joined this room")
	ErrMaxRoomsExceeded = fmt.Errorf("maximum active rooms reached")
	ErrInvalidPassword  = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidRequest   = fmt.Errorf("invalid request")
)

// Authentication
var (
	ErrUnauthenticated    = fmt.Errorf("authentication required")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// StoreUnavailable
var ErrStoreUnavailable = fmt.Errorf("store unavailable, please retry")

// Kind groups sentinels the way transports need to report them.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindForbidden        Kind = "FORBIDDEN"
	KindInvalidInput     Kind = "INVALID_INPUT"
	KindUnauthenticated  Kind = "UNAUTHENTICATED"
	KindConflict         Kind = "CONFLICT"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	KindInternal         Kind = "INTERNAL"
)

var kinds = map[error]Kind{
	ErrRoomNotFound:        KindNotFound,
	ErrIssueNotFound:       KindNotFound,
	ErrParticipantNotFound: KindNotFound,
	ErrUserNotFound:        KindNotFound,

	ErrNotAdmin:       KindForbidden,
	ErrNotParticipant: KindForbidden,
	ErrNotPlayer:      KindForbidden,
	ErrVotingClosed:   KindForbidden,
	ErrSelfDemotion:   KindForbidden,
	ErrSelfKick:       KindForbidden,

	ErrInvalidCommand:   KindInvalidInput,
	ErrUnknownCommand:   KindInvalidInput,
	ErrInvalidVote:      KindInvalidInput,
	ErrInvalidRole:      KindInvalidInput,
	ErrInvalidDuration:  KindInvalidInput,
	ErrAlreadyInRoom:    KindInvalidInput,
	ErrNotInRoom:        KindInvalidInput,
	ErrMaxRoomsExceeded: KindInvalidInput,
	ErrInvalidPassword:  KindInvalidInput,
	ErrInvalidRequest:   KindInvalidInput,

	ErrUnauthenticated:    KindUnauthenticated,
	ErrInvalidToken:       KindUnauthenticated,
	ErrInvalidCredentials: KindUnauthenticated,

	ErrUserAlreadyExists: KindConflict,

	ErrStoreUnavailable: KindStoreUnavailable,
}

// KindOf returns the kind of the first known sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for sentinel, kind := range kinds {
		if stderrors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// Retryable reports whether the client may resend the same command.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// Code is the machine readable code sent next to user facing messages.
func Code(err error) string {
	if stderrors.Is(err, ErrMaxRoomsExceeded) {
		return "MAX_ROOMS_EXCEEDED"
	}
	return string(KindOf(err))
}

// Message hides internal failures behind a generic message.
func Message(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}

// MapToHTTPStatus converts domain errors into HTTP status codes.
func MapToHTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
