package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store"
)

// CreateCardInput is the local command form of a new card.
type CreateCardInput struct {
	Title       string
	Description string
	Status      string
	Priority    domain.Priority
	DueDate     *time.Time
}

// CreateCard inserts a placeholder entity at the end of the target lane
// immediately, then persists. The placeholder's id is the client-generated
// correlation token; the server assigns the real id, so the confirmation is
// matched by token, not by id.
func (e *Engine) CreateCard(ctx context.Context, in CreateCardInput) (*domain.Card, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("engine.CreateCard: empty title: %w", domain.ErrValidation)
	}
	if _, ok := e.store.ColumnByStatus(in.Status); !ok {
		return nil, fmt.Errorf("engine.CreateCard: status %q: %w", in.Status, domain.ErrNotFound)
	}

	token := uuid.New()
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	e.mu.Lock()
	sentinel := &domain.Card{
		ID:          token,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Position:    len(e.store.Lane(in.Status)),
		Priority:    priority,
		DueDate:     in.DueDate,
	}
	e.store.AppendCard(sentinel)
	e.registerPending(token, &pendingCommand{
		origin:     e.nextOrigin(),
		kind:       "create_card",
		sentinelID: token,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	created, err := e.client.CreateCard(ctx, e.boardID, api.CreateCardInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    priority,
		DueDate:     in.DueDate,
	})

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.RemoveCard(cmd.sentinelID)
			e.store.ReindexLane(in.Status)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not create card"})
		return nil, fmt.Errorf("engine.CreateCard: %w", err)
	}
	if cmd != nil {
		e.store.RemoveCard(cmd.sentinelID)
	}
	e.store.AppendCard(created)
	e.store.ReindexLane(created.Status)
	e.mu.Unlock()
	e.notifyUpdate()

	return created, nil
}

// CardEdit is a partial local edit of card fields.
type CardEdit struct {
	Title        *string
	Description  *string
	Priority     *domain.Priority
	DueDate      *time.Time
	ClearDueDate bool
	Assignees    *[]domain.UserRef
}

// UpdateCard applies the edit optimistically and replaces it with the
// server's authoritative entity on success; the server may have recomputed
// derived fields. On failure the pre-patch snapshot is restored.
func (e *Engine) UpdateCard(ctx context.Context, cardID uuid.UUID, edit CardEdit) (*domain.Card, error) {
	e.mu.Lock()
	prev, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine.UpdateCard(%s): %w", cardID, domain.ErrNotFound)
	}

	patch := store.CardPatch{
		Title:       edit.Title,
		Description: edit.Description,
		Priority:    edit.Priority,
		Assignees:   edit.Assignees,
	}
	if edit.DueDate != nil || edit.ClearDueDate {
		patch.SetDueDate = true
		patch.DueDate = edit.DueDate
	}
	e.store.PatchCard(cardID, patch)

	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:   e.nextOrigin(),
		kind:     "update_card",
		prevCard: prev,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	updated, err := e.client.UpdateCard(ctx, cardID, api.CardUpdate{
		Title:        edit.Title,
		Description:  edit.Description,
		Priority:     edit.Priority,
		DueDate:      edit.DueDate,
		ClearDueDate: edit.ClearDueDate,
		Assignees:    edit.Assignees,
	})

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.ReplaceCard(cardID, cmd.prevCard)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not save card", CardID: cardID})
		return nil, fmt.Errorf("engine.UpdateCard(%s): %w", cardID, err)
	}
	e.store.ReplaceCard(cardID, updated)
	e.mu.Unlock()
	e.notifyUpdate()

	return updated, nil
}

// ArchiveCard moves the card to the archive partition optimistically. An
// active timer on the card is cleared; archiving ends tracking.
func (e *Engine) ArchiveCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	e.mu.Lock()
	prev, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine.ArchiveCard(%s): %w", cardID, domain.ErrNotFound)
	}

	e.store.PatchCard(cardID, store.CardPatch{
		Status:   store.Ptr(domain.StatusArchive),
		Archived: store.Ptr(true),
	})
	e.store.ReindexLane(prev.Status)
	if e.activeTimer == cardID {
		e.activeTimer = uuid.Nil
	}

	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:   e.nextOrigin(),
		kind:     "archive_card",
		prevCard: prev,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	archived, err := e.client.ArchiveCard(ctx, cardID)

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.ReplaceCard(cardID, cmd.prevCard)
			e.store.ReindexLane(cmd.prevCard.Status)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not archive card", CardID: cardID})
		return nil, fmt.Errorf("engine.ArchiveCard(%s): %w", cardID, err)
	}
	e.store.ReplaceCard(cardID, archived)
	e.mu.Unlock()
	e.notifyUpdate()

	return archived, nil
}

// RestoreCard brings an archived card back. The destination lane is the
// server's call: the client discarded the original status when it archived,
// so restore is confirmed-only, not optimistic.
func (e *Engine) RestoreCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	restored, err := e.client.RestoreCard(ctx, cardID)
	if err != nil {
		e.notify(Notice{Kind: NoticeError, Message: "could not restore card", CardID: cardID})
		return nil, fmt.Errorf("engine.RestoreCard(%s): %w", cardID, err)
	}

	e.mu.Lock()
	if !e.store.ReplaceCard(cardID, restored) {
		e.store.AppendCard(restored)
	}
	e.store.ReindexLane(restored.Status)
	e.mu.Unlock()
	e.notifyUpdate()

	return restored, nil
}

// DeleteCard permanently removes a card. Deletion requires the archived
// state; the guard runs client-side before any network call so the user gets
// immediate feedback, mirroring the server invariant.
func (e *Engine) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	e.mu.Lock()
	prev, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.DeleteCard(%s): %w", cardID, domain.ErrNotFound)
	}
	if !prev.Archived {
		e.mu.Unlock()
		return fmt.Errorf("engine.DeleteCard(%s): %w", cardID, domain.ErrNotArchived)
	}

	e.store.RemoveCard(cardID)
	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:   e.nextOrigin(),
		kind:     "delete_card",
		prevCard: prev,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	err := e.client.DeleteCard(ctx, cardID)

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.AppendCard(cmd.prevCard)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not delete card", CardID: cardID})
		return fmt.Errorf("engine.DeleteCard(%s): %w", cardID, err)
	}
	e.mu.Unlock()
	e.notifyUpdate()

	log.Debug().Stringer("card_id", cardID).Msg("engine: card deleted")
	return nil
}
