package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusArchive is the status key of the distinguished archive column.
// Archived cards carry this status and are excluded from lane partitions.
const StatusArchive = "archive"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// UserRef identifies a board member on card assignments and read receipts.
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Label struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

type Attachment struct {
	ID   uuid.UUID `json:"id"`
	URL  string    `json:"url"`
	MIME string    `json:"mime"`
	Size int64     `json:"size"`
}

type ChecklistItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	Author    UserRef   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Card is a work item on the board. Position is dense and zero-based within
// the (status, non-archived) partition. Number is the server-assigned display
// number users type into keyword searches ("#27").
type Card struct {
	ID             uuid.UUID       `json:"id"`
	Number         int             `json:"number"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
	Position       int             `json:"position"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Priority       Priority        `json:"priority"`
	Labels         []Label         `json:"labels"`
	Assignees      []UserRef       `json:"assignees"`
	Attachments    []Attachment    `json:"attachments"`
	Checklist      []ChecklistItem `json:"checklist"`
	Comments       []Comment       `json:"comments"`
	Archived       bool            `json:"archived"`
	TotalTimeSpent int64           `json:"total_time_spent"`
	EstimatedTime  int64           `json:"estimated_time"`
	ReadBy         []UserRef       `json:"read_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy. Store reads and snapshots hand out clones so
// callers can never mutate shared state in place.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}

	cp := *c
	if c.DueDate != nil {
		due := *c.DueDate
		cp.DueDate = &due
	}
	cp.Labels = append([]Label(nil), c.Labels...)
	cp.Assignees = append([]UserRef(nil), c.Assignees...)
	cp.Attachments = append([]Attachment(nil), c.Attachments...)
	cp.Checklist = append([]ChecklistItem(nil), c.Checklist...)
	cp.Comments = append([]Comment(nil), c.Comments...)
	cp.ReadBy = append([]UserRef(nil), c.ReadBy...)

	return &cp
}

// AssignedTo reports whether the card is assigned to the given user.
func (c *Card) AssignedTo(userID uuid.UUID) bool {
	for _, a := range c.Assignees {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// HasLabel reports whether the card carries the given label.
func (c *Card) HasLabel(labelID uuid.UUID) bool {
	for _, l := range c.Labels {
		if l.ID == labelID {
			return true
		}
	}
	return false
}
