package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. Callers match with errors.Is; the more
// specific sentinels wrap the coarse taxonomy so a handler can map either
// level to a transport status.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidReference = errors.New("invalid reference")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTransient        = errors.New("transient failure")

	// ErrInvalidParticipants is returned when a direct thread is requested
	// for a user pair that cannot form a conversation (userA == userB).
	ErrInvalidParticipants = errors.New("invalid participants")

	// ErrThreadReadOnly is returned when the sender lacks posting rights in
	// the thread (broadcast thread with replies disabled, or a per-participant
	// send override).
	ErrThreadReadOnly = fmt.Errorf("thread read-only: %w", ErrPermissionDenied)

	// ErrNotAuthor is returned when edit/delete is requested by someone other
	// than the original sender (or a thread admin, for delete).
	ErrNotAuthor = fmt.Errorf("not message author: %w", ErrPermissionDenied)

	// ErrInvalidReply is returned when reply_to does not reference a message
	// in the same thread.
	ErrInvalidReply = fmt.Errorf("reply target outside thread: %w", ErrInvalidReference)

	// ErrInvalidContent is returned when a message body fails variant
	// validation at the boundary.
	ErrInvalidContent = errors.New("invalid content")
)
