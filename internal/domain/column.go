package domain

import "github.com/google/uuid"

// Column is a status lane. StatusKey is the stable reference cards hold;
// renaming a column regenerates the key, which cascades to every card
// referencing the old key. The archive column is a distinguished singleton
// that is never reordered, renamed, or deleted and always renders last.
type Column struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StatusKey string    `json:"status_key"`
	Color     string    `json:"color"`
	Position  int       `json:"position"`
	IsDefault bool      `json:"is_default"`
}

// IsArchive reports whether this is the distinguished archive column.
func (c *Column) IsArchive() bool {
	return c.StatusKey == StatusArchive
}

// Clone returns a copy of the column.
func (c *Column) Clone() *Column {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
