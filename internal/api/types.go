package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// BoardState is the full authoritative board fetch used on startup and on
// every resynchronization.
type BoardState struct {
	Cards   []*domain.Card   `json:"cards"`
	Columns []*domain.Column `json:"columns"`
}

type CreateCardInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`
	Priority    domain.Priority `json:"priority,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

// CardUpdate is the wire form of a partial card edit. Nil fields are not
// sent; ClearDueDate distinguishes "remove the date" from "leave it".
type CardUpdate struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Priority     *domain.Priority `json:"priority,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	ClearDueDate bool             `json:"clear_due_date,omitempty"`
	Assignees    *[]domain.UserRef `json:"assignees,omitempty"`
}

type MoveCardInput struct {
	Status   string `json:"status"`
	Position int    `json:"position"`
}

type CreateColumnInput struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type ColumnUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

type ColumnOrderInput struct {
	OrderedIDs []uuid.UUID `json:"ordered_ids"`
}

type LabelInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type AttachmentInput struct {
	URL  string `json:"url"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
}

type ChecklistItemInput struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type ChecklistOrderInput struct {
	OrderedIDs []uuid.UUID `json:"ordered_ids"`
}

type CommentInput struct {
	Text string `json:"text"`
}

type EstimateInput struct {
	Seconds int64 `json:"seconds"`
}

type TimeEntryInput struct {
	DurationSeconds int64     `json:"duration_seconds"`
	WorkDate        time.Time `json:"work_date"`
	Description     string    `json:"description,omitempty"`
}

// TimerState is the server's view of the session user's running timer.
type TimerState struct {
	CardID    uuid.UUID `json:"card_id"`
	StartedAt time.Time `json:"started_at"`
}
