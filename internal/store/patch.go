package store

import (
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

// CardPatch is a shallow field merge. Nil fields are left untouched; a set
// slice field replaces that nested collection wholesale, which is how
// sub-entity events patch one collection without clobbering the rest of the
// card. DueDate is guarded by SetDueDate so the patch can distinguish
// "clear the date" from "leave it alone".
type CardPatch struct {
	Title          *string
	Description    *string
	Status         *string
	Position       *int
	Priority       *domain.Priority
	Archived       *bool
	SetDueDate     bool
	DueDate        *time.Time
	TotalTimeSpent *int64
	EstimatedTime  *int64
	Labels         *[]domain.Label
	Assignees      *[]domain.UserRef
	Attachments    *[]domain.Attachment
	Checklist      *[]domain.ChecklistItem
	Comments       *[]domain.Comment
	ReadBy         *[]domain.UserRef
}

func (p CardPatch) apply(c *domain.Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Archived != nil {
		c.Archived = *p.Archived
	}
	if p.SetDueDate {
		if p.DueDate == nil {
			c.DueDate = nil
		} else {
			due := *p.DueDate
			c.DueDate = &due
		}
	}
	if p.TotalTimeSpent != nil {
		c.TotalTimeSpent = *p.TotalTimeSpent
	}
	if p.EstimatedTime != nil {
		c.EstimatedTime = *p.EstimatedTime
	}
	if p.Labels != nil {
		c.Labels = append([]domain.Label(nil), *p.Labels...)
	}
	if p.Assignees != nil {
		c.Assignees = append([]domain.UserRef(nil), *p.Assignees...)
	}
	if p.Attachments != nil {
		c.Attachments = append([]domain.Attachment(nil), *p.Attachments...)
	}
	if p.Checklist != nil {
		c.Checklist = append([]domain.ChecklistItem(nil), *p.Checklist...)
	}
	if p.Comments != nil {
		c.Comments = append([]domain.Comment(nil), *p.Comments...)
	}
	if p.ReadBy != nil {
		c.ReadBy = append([]domain.UserRef(nil), *p.ReadBy...)
	}
}

// Ptr is a convenience for building patches.
func Ptr[T any](v T) *T { return &v }
