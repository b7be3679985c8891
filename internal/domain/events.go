package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind discriminates the inbound event union.
type EventKind string

const (
	EventCardCreated          EventKind = "card_created"
	EventCardUpdated          EventKind = "card_updated"
	EventCardArchived         EventKind = "card_archived"
	EventCardRestored         EventKind = "card_restored"
	EventCardDeleted          EventKind = "card_deleted"
	EventStatusChanged        EventKind = "status_changed"
	EventColumnCreated        EventKind = "column_created"
	EventColumnUpdated        EventKind = "column_updated"
	EventColumnDeleted        EventKind = "column_deleted"
	EventColumnsReordered     EventKind = "columns_reordered"
	EventChecklistItemCreated EventKind = "checklist_item_created"
	EventChecklistItemUpdated EventKind = "checklist_item_updated"
	EventChecklistItemDeleted EventKind = "checklist_item_deleted"
	EventChecklistReordered   EventKind = "checklist_reordered"
	EventLabelAdded           EventKind = "label_added"
	EventLabelUpdated         EventKind = "label_updated"
	EventLabelRemoved         EventKind = "label_removed"
	EventAttachmentAdded      EventKind = "attachment_added"
	EventAttachmentRemoved    EventKind = "attachment_removed"
	EventCommentAdded         EventKind = "comment_added"
	EventTimerStopped         EventKind = "timer_stopped"
	EventTimeEntryAdded       EventKind = "time_entry_added"
	EventTimeEntryDeleted     EventKind = "time_entry_deleted"
	EventEstimateChanged      EventKind = "estimate_changed"
)

// Event is one inbound real-time message. Each kind has a fixed payload
// schema; DecodeEvent dispatches on the type field.
type Event interface {
	Kind() EventKind
	Actor() uuid.UUID
}

// EventHeader is embedded in every concrete event.
type EventHeader struct {
	Type         EventKind `json:"type"`
	ActingUserID uuid.UUID `json:"acting_user_id"`
}

func (h EventHeader) Kind() EventKind  { return h.Type }
func (h EventHeader) Actor() uuid.UUID { return h.ActingUserID }

// NewHeader builds the header for an outbound event.
func NewHeader(kind EventKind, actor uuid.UUID) EventHeader {
	return EventHeader{Type: kind, ActingUserID: actor}
}

// Card lifecycle events carry the server's full post-mutation entity, never a
// patch, so merges are whole-entity replaces.

type CardCreated struct {
	EventHeader
	Card *Card `json:"card"`
}

type CardUpdated struct {
	EventHeader
	Card *Card `json:"card"`
}

type CardArchived struct {
	EventHeader
	Card *Card `json:"card"`
}

type CardRestored struct {
	EventHeader
	Card *Card `json:"card"`
}

type CardDeleted struct {
	EventHeader
	CardID uuid.UUID `json:"card_id"`
}

type StatusChanged struct {
	EventHeader
	Card *Card `json:"card"`
}

type ColumnCreated struct {
	EventHeader
	Column *Column `json:"column"`
}

// ColumnUpdated carries the old status key so renames can cascade the
// regenerated key to every card still referencing the old one.
type ColumnUpdated struct {
	EventHeader
	Column       *Column `json:"column"`
	OldStatusKey string  `json:"old_status_key,omitempty"`
}

type ColumnDeleted struct {
	EventHeader
	ColumnID uuid.UUID `json:"column_id"`
}

type ColumnsReordered struct {
	EventHeader
	OrderedIDs []uuid.UUID `json:"ordered_ids"`
}

// Sub-entity events patch only the named nested collection of one card, to
// avoid clobbering concurrent edits to unrelated fields.

type ChecklistItemCreated struct {
	EventHeader
	CardID uuid.UUID     `json:"card_id"`
	Item   ChecklistItem `json:"item"`
}

type ChecklistItemUpdated struct {
	EventHeader
	CardID uuid.UUID     `json:"card_id"`
	Item   ChecklistItem `json:"item"`
}

type ChecklistItemDeleted struct {
	EventHeader
	CardID uuid.UUID `json:"card_id"`
	ItemID uuid.UUID `json:"item_id"`
}

type ChecklistReordered struct {
	EventHeader
	CardID     uuid.UUID   `json:"card_id"`
	OrderedIDs []uuid.UUID `json:"ordered_ids"`
}

type LabelAdded struct {
	EventHeader
	CardID uuid.UUID `json:"card_id"`
	Label  Label     `json:"label"`
}

type LabelUpdated struct {
	EventHeader
	CardID uuid.UUID `json:"card_id"`
	Label  Label     `json:"label"`
}

type LabelRemoved struct {
	EventHeader
	CardID  uuid.UUID `json:"card_id"`
	LabelID uuid.UUID `json:"label_id"`
}

type AttachmentAdded struct {
	EventHeader
	CardID     uuid.UUID  `json:"card_id"`
	Attachment Attachment `json:"attachment"`
}

type AttachmentRemoved struct {
	EventHeader
	CardID       uuid.UUID `json:"card_id"`
	AttachmentID uuid.UUID `json:"attachment_id"`
}

type CommentAdded struct {
	EventHeader
	CardID  uuid.UUID `json:"card_id"`
	Comment Comment   `json:"comment"`
}

// TimerStopped is broadcast when a user's running timer is stopped on any of
// their devices. TotalSeconds is the card's recomputed total.
type TimerStopped struct {
	EventHeader
	CardID       uuid.UUID `json:"card_id"`
	Entry        TimeEntry `json:"entry"`
	TotalSeconds int64     `json:"total_seconds"`
}

type TimeEntryAdded struct {
	EventHeader
	CardID       uuid.UUID `json:"card_id"`
	Entry        TimeEntry `json:"entry"`
	TotalSeconds int64     `json:"total_seconds"`
}

type TimeEntryDeleted struct {
	EventHeader
	CardID       uuid.UUID `json:"card_id"`
	EntryID      uuid.UUID `json:"entry_id"`
	TotalSeconds int64     `json:"total_seconds"`
}

type EstimateChanged struct {
	EventHeader
	CardID           uuid.UUID `json:"card_id"`
	EstimatedSeconds int64     `json:"estimated_seconds"`
}

// DecodeEvent parses one wire message into its concrete event type.
func DecodeEvent(data []byte) (Event, error) {
	var h EventHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("domain.DecodeEvent: header: %w", err)
	}

	var ev Event
	switch h.Type {
	case EventCardCreated:
		ev = &CardCreated{}
	case EventCardUpdated:
		ev = &CardUpdated{}
	case EventCardArchived:
		ev = &CardArchived{}
	case EventCardRestored:
		ev = &CardRestored{}
	case EventCardDeleted:
		ev = &CardDeleted{}
	case EventStatusChanged:
		ev = &StatusChanged{}
	case EventColumnCreated:
		ev = &ColumnCreated{}
	case EventColumnUpdated:
		ev = &ColumnUpdated{}
	case EventColumnDeleted:
		ev = &ColumnDeleted{}
	case EventColumnsReordered:
		ev = &ColumnsReordered{}
	case EventChecklistItemCreated:
		ev = &ChecklistItemCreated{}
	case EventChecklistItemUpdated:
		ev = &ChecklistItemUpdated{}
	case EventChecklistItemDeleted:
		ev = &ChecklistItemDeleted{}
	case EventChecklistReordered:
		ev = &ChecklistReordered{}
	case EventLabelAdded:
		ev = &LabelAdded{}
	case EventLabelUpdated:
		ev = &LabelUpdated{}
	case EventLabelRemoved:
		ev = &LabelRemoved{}
	case EventAttachmentAdded:
		ev = &AttachmentAdded{}
	case EventAttachmentRemoved:
		ev = &AttachmentRemoved{}
	case EventCommentAdded:
		ev = &CommentAdded{}
	case EventTimerStopped:
		ev = &TimerStopped{}
	case EventTimeEntryAdded:
		ev = &TimeEntryAdded{}
	case EventTimeEntryDeleted:
		ev = &TimeEntryDeleted{}
	case EventEstimateChanged:
		ev = &EstimateChanged{}
	default:
		return nil, fmt.Errorf("domain.DecodeEvent: unknown kind %q", h.Type)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("domain.DecodeEvent(%s): %w", h.Type, err)
	}

	return ev, nil
}

// EncodeEvent marshals a concrete event for the wire. The caller is expected
// to have built the header with NewHeader so the type tag is present.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeEvent(%s): %w", ev.Kind(), err)
	}
	return data, nil
}
