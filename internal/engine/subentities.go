package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store"
)

// Sub-entity commands follow one shape: snapshot the card, patch only the
// named nested collection optimistically, persist, then replace with the
// authoritative card on success or restore the snapshot on failure. Locally
// minted ids on appended items are placeholders until the authoritative
// replace.

// beginCardPatch snapshots the card and applies the patch built from that
// snapshot, all under one lock so a racing remote merge cannot slip between
// the read and the write. Returns the correlation token.
func (e *Engine) beginCardPatch(cardID uuid.UUID, kind string, build func(prev *domain.Card) (store.CardPatch, error)) (uuid.UUID, error) {
	e.mu.Lock()
	prev, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return uuid.Nil, fmt.Errorf("engine: %s (%s): %w", kind, cardID, domain.ErrNotFound)
	}

	patch, err := build(prev)
	if err != nil {
		e.mu.Unlock()
		return uuid.Nil, fmt.Errorf("engine: %s (%s): %w", kind, cardID, err)
	}

	e.store.PatchCard(cardID, patch)
	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:   e.nextOrigin(),
		kind:     kind,
		prevCard: prev,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	return token, nil
}

// confirmCard settles a pending card command: authoritative replace on
// success, snapshot restore on failure.
func (e *Engine) confirmCard(token, cardID uuid.UUID, updated *domain.Card, err error, what string) (*domain.Card, error) {
	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.ReplaceCard(cardID, cmd.prevCard)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not " + what, CardID: cardID})
		return nil, fmt.Errorf("engine: %s (%s): %w", what, cardID, err)
	}
	e.store.ReplaceCard(cardID, updated)
	e.mu.Unlock()
	e.notifyUpdate()

	return updated, nil
}

func (e *Engine) AddLabel(ctx context.Context, cardID uuid.UUID, name, color string) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "add label", func(prev *domain.Card) (store.CardPatch, error) {
		labels := append(append([]domain.Label(nil), prev.Labels...), domain.Label{ID: uuid.New(), Name: name, Color: color})
		return store.CardPatch{Labels: &labels}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.AddLabel(ctx, cardID, api.LabelInput{Name: name, Color: color})
	return e.confirmCard(token, cardID, updated, err, "add label")
}

func (e *Engine) RemoveLabel(ctx context.Context, cardID, labelID uuid.UUID) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "remove label", func(prev *domain.Card) (store.CardPatch, error) {
		labels := make([]domain.Label, 0, len(prev.Labels))
		for _, l := range prev.Labels {
			if l.ID != labelID {
				labels = append(labels, l)
			}
		}
		return store.CardPatch{Labels: &labels}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.RemoveLabel(ctx, cardID, labelID)
	return e.confirmCard(token, cardID, updated, err, "remove label")
}

func (e *Engine) AddAttachment(ctx context.Context, cardID uuid.UUID, in api.AttachmentInput) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "add attachment", func(prev *domain.Card) (store.CardPatch, error) {
		atts := append(append([]domain.Attachment(nil), prev.Attachments...), domain.Attachment{
			ID: uuid.New(), URL: in.URL, MIME: in.MIME, Size: in.Size,
		})
		return store.CardPatch{Attachments: &atts}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.AddAttachment(ctx, cardID, in)
	return e.confirmCard(token, cardID, updated, err, "add attachment")
}

func (e *Engine) RemoveAttachment(ctx context.Context, cardID, attachmentID uuid.UUID) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "remove attachment", func(prev *domain.Card) (store.CardPatch, error) {
		atts := make([]domain.Attachment, 0, len(prev.Attachments))
		for _, a := range prev.Attachments {
			if a.ID != attachmentID {
				atts = append(atts, a)
			}
		}
		return store.CardPatch{Attachments: &atts}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.RemoveAttachment(ctx, cardID, attachmentID)
	return e.confirmCard(token, cardID, updated, err, "remove attachment")
}

func (e *Engine) AddChecklistItem(ctx context.Context, cardID uuid.UUID, title string) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "add checklist item", func(prev *domain.Card) (store.CardPatch, error) {
		items := append(append([]domain.ChecklistItem(nil), prev.Checklist...), domain.ChecklistItem{ID: uuid.New(), Title: title})
		return store.CardPatch{Checklist: &items}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.AddChecklistItem(ctx, cardID, api.ChecklistItemInput{Title: title})
	return e.confirmCard(token, cardID, updated, err, "add checklist item")
}

func (e *Engine) UpdateChecklistItem(ctx context.Context, cardID, itemID uuid.UUID, title string, completed bool) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "update checklist item", func(prev *domain.Card) (store.CardPatch, error) {
		items := append([]domain.ChecklistItem(nil), prev.Checklist...)
		for i := range items {
			if items[i].ID == itemID {
				items[i].Title = title
				items[i].Completed = completed
				return store.CardPatch{Checklist: &items}, nil
			}
		}
		return store.CardPatch{}, domain.ErrNotFound
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.UpdateChecklistItem(ctx, cardID, itemID, api.ChecklistItemInput{Title: title, Completed: completed})
	return e.confirmCard(token, cardID, updated, err, "update checklist item")
}

func (e *Engine) DeleteChecklistItem(ctx context.Context, cardID, itemID uuid.UUID) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "delete checklist item", func(prev *domain.Card) (store.CardPatch, error) {
		items := make([]domain.ChecklistItem, 0, len(prev.Checklist))
		for _, it := range prev.Checklist {
			if it.ID != itemID {
				items = append(items, it)
			}
		}
		return store.CardPatch{Checklist: &items}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.DeleteChecklistItem(ctx, cardID, itemID)
	return e.confirmCard(token, cardID, updated, err, "delete checklist item")
}

func (e *Engine) ReorderChecklist(ctx context.Context, cardID uuid.UUID, orderedIDs []uuid.UUID) (*domain.Card, error) {
	token, err := e.beginCardPatch(cardID, "reorder checklist", func(prev *domain.Card) (store.CardPatch, error) {
		items := reorderChecklist(prev.Checklist, orderedIDs)
		return store.CardPatch{Checklist: &items}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.ReorderChecklist(ctx, cardID, api.ChecklistOrderInput{OrderedIDs: orderedIDs})
	return e.confirmCard(token, cardID, updated, err, "reorder checklist")
}

// reorderChecklist applies the given id order; items missing from the order
// keep their relative position at the tail.
func reorderChecklist(items []domain.ChecklistItem, orderedIDs []uuid.UUID) []domain.ChecklistItem {
	byID := make(map[uuid.UUID]domain.ChecklistItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	out := make([]domain.ChecklistItem, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if it, ok := byID[id]; ok {
			out = append(out, it)
			seen[id] = true
		}
	}
	for _, it := range items {
		if !seen[it.ID] {
			out = append(out, it)
		}
	}

	return out
}

func (e *Engine) AddComment(ctx context.Context, cardID uuid.UUID, text string) (*domain.Card, error) {
	if text == "" {
		return nil, fmt.Errorf("engine.AddComment(%s): empty text: %w", cardID, domain.ErrValidation)
	}

	now := e.now()
	token, err := e.beginCardPatch(cardID, "add comment", func(prev *domain.Card) (store.CardPatch, error) {
		comments := append(append([]domain.Comment(nil), prev.Comments...), domain.Comment{
			ID:        uuid.New(),
			Author:    domain.UserRef{ID: e.userID},
			Text:      text,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return store.CardPatch{Comments: &comments}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.AddComment(ctx, cardID, api.CommentInput{Text: text})
	return e.confirmCard(token, cardID, updated, err, "add comment")
}

func (e *Engine) SetEstimate(ctx context.Context, cardID uuid.UUID, seconds int64) (*domain.Card, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("engine.SetEstimate(%s): negative estimate: %w", cardID, domain.ErrValidation)
	}

	token, err := e.beginCardPatch(cardID, "set estimate", func(*domain.Card) (store.CardPatch, error) {
		return store.CardPatch{EstimatedTime: store.Ptr(seconds)}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.SetEstimate(ctx, cardID, api.EstimateInput{Seconds: seconds})
	return e.confirmCard(token, cardID, updated, err, "set estimate")
}

// AddTimeEntry logs manual time. The optimistic apply bumps the running
// total; the confirmation replaces it with the server's recomputed figure, so
// totals converge no matter which confirmation lands first.
func (e *Engine) AddTimeEntry(ctx context.Context, cardID uuid.UUID, seconds int64, workDate time.Time, description string) (*domain.Card, error) {
	entry := domain.TimeEntry{
		CardID:          cardID,
		UserID:          e.userID,
		DurationSeconds: seconds,
		WorkDate:        workDate,
		Type:            domain.TimeEntryManual,
		Description:     description,
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("engine.AddTimeEntry(%s): %w", cardID, err)
	}

	token, err := e.beginCardPatch(cardID, "log time", func(prev *domain.Card) (store.CardPatch, error) {
		return store.CardPatch{TotalTimeSpent: store.Ptr(prev.TotalTimeSpent + seconds)}, nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.client.AddTimeEntry(ctx, cardID, api.TimeEntryInput{
		DurationSeconds: seconds,
		WorkDate:        workDate,
		Description:     description,
	})
	return e.confirmCard(token, cardID, updated, err, "log time")
}

// DeleteTimeEntry is confirmed-only: the client tracks totals, not the entry
// list, so there is nothing local to subtract from safely.
func (e *Engine) DeleteTimeEntry(ctx context.Context, entryID uuid.UUID) (*domain.Card, error) {
	updated, err := e.client.DeleteTimeEntry(ctx, entryID)
	if err != nil {
		e.notify(Notice{Kind: NoticeError, Message: "could not delete time entry"})
		return nil, fmt.Errorf("engine.DeleteTimeEntry(%s): %w", entryID, err)
	}

	e.mu.Lock()
	e.store.ReplaceCard(updated.ID, updated)
	e.mu.Unlock()
	e.notifyUpdate()

	return updated, nil
}
