package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound      = errors.New("domain: not found")
	ErrConflict      = errors.New("domain: conflict")
	ErrValidation    = errors.New("domain: validation failed")
	ErrNotArchived   = errors.New("domain: card is not archived")
	ErrDefaultColumn = errors.New("domain: default column cannot be deleted")
	ErrArchiveColumn = errors.New("domain: archive column cannot be modified")
	ErrTimerActive   = errors.New("domain: a timer is already active")
	ErrNoActiveTimer = errors.New("domain: no active timer")
	ErrTokenExpired  = errors.New("domain: auth token expired")
)
