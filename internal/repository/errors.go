// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrDuplicateRequest signals that a user has
// already opened a request against a listing.
package repository

import (
	"errors"
	"strings"
)

// ErrListingNotFound is returned when a listing lookup yields no rows,
// including soft-deleted listings.
var ErrListingNotFound = errors.New("listing not found")

// ErrJobNotFound is returned when a listing has no attached job row.
var ErrJobNotFound = errors.New("job not found")

// ErrRequestNotFound is returned when a listing request lookup yields
// no rows visible to the caller.
var ErrRequestNotFound = errors.New("request not found")

// ErrUserNotFound is returned when a user lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registration collides with an
// existing account. Handlers should translate this into an HTTP 400
// duplicate-entry response.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicateRequest is returned when a user attempts to open a second
// request against the same listing.
var ErrDuplicateRequest = errors.New("request already exists")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNotParticipant is returned when a message sender or receiver is
// not part of the request's conversation.
var ErrNotParticipant = errors.New("user is not a conversation participant")

// ErrSelfMessage is returned when a message names the same user as
// both sender and receiver.
var ErrSelfMessage = errors.New("sender and receiver must differ")

// isDuplicate reports whether err came from a violated unique
// constraint. MySQL reports error 1062; the sqlite driver used in
// tests reports a "UNIQUE constraint failed" message.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1062") || strings.Contains(strings.ToLower(msg), "unique")
}
