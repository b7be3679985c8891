package engine

import "github.com/google/uuid"

type NoticeKind string

const (
	// NoticeError is a transient user-facing failure notice.
	NoticeError NoticeKind = "error"
	// NoticeCardArchived signals that a card was archived remotely; any open
	// detail view of it should close.
	NoticeCardArchived NoticeKind = "card_archived"
)

type Notice struct {
	Kind    NoticeKind
	Message string
	CardID  uuid.UUID
}
