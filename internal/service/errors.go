package service

import "errors"

// Sentinel errors shared across the messaging and notification services.
// Services wrap them with detail via fmt.Errorf("%w: ..."); handlers map
// them to HTTP status codes with errors.Is.
var (
	// ErrInvalidRequest marks malformed or missing input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbidden marks a verified caller lacking rights over the target.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks an absent channel, room, post, user or notification.
	ErrNotFound = errors.New("not found")
)
