package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a funnel session id is unknown.
	ErrSessionNotFound = errors.New("funnel session not found")
	// ErrAlreadyCompleted guards the completion path against double registration.
	ErrAlreadyCompleted = errors.New("quiz already completed for session")
	// ErrLeadNotFound indicates no lead matched a correlation lookup.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrRemoteUnavailable indicates the remote store is missing or unreachable.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrInvalidPayload indicates a request body failed validation.
	ErrInvalidPayload = errors.New("invalid payload")
)
