package services

import "errors"

// Domain errors surfaced to callers with a human-readable reason.
var (
	ErrNoSessionForDate     = errors.New("no session for this date")
	ErrMemberNotFound       = errors.New("member not found")
	ErrDuplicateSessionDate = errors.New("a session already exists for this date")
)

// ErrRateLimited marks transient provider throttling. The live view pauses
// its background refresh on it; the batch writer only reports it.
var ErrRateLimited = errors.New("rate limited")
