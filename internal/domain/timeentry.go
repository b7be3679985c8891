package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TimeEntryType string

const (
	TimeEntryTimer  TimeEntryType = "timer"
	TimeEntryManual TimeEntryType = "manual"
)

// TimeEntry is a unit of logged work against a card. At most one active
// (unstopped) timer exists per user session; starting a new timer stops the
// previous one server-side first.
type TimeEntry struct {
	ID              uuid.UUID     `json:"id"`
	CardID          uuid.UUID     `json:"card_id"`
	UserID          uuid.UUID     `json:"user_id"`
	DurationSeconds int64         `json:"duration_seconds"`
	WorkDate        time.Time     `json:"work_date"`
	Type            TimeEntryType `json:"type"`
	Description     string        `json:"description,omitempty"`
}

// Validate checks entry invariants before a persistence call is issued.
func (e *TimeEntry) Validate() error {
	if e.DurationSeconds <= 0 {
		return fmt.Errorf("domain.TimeEntry.Validate: duration %d: %w", e.DurationSeconds, ErrValidation)
	}
	if e.Type != TimeEntryTimer && e.Type != TimeEntryManual {
		return fmt.Errorf("domain.TimeEntry.Validate: type %q: %w", e.Type, ErrValidation)
	}
	return nil
}
