package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store"
)

// MoveCard implements drag-and-drop of a card to (targetStatus, targetIndex):
// capture the touched lanes, apply a locally consistent reordering with dense
// positions, persist, and on failure restore the captured lanes and refetch
// authoritative order. Remote events keep merging while the persistence call
// is in flight.
func (e *Engine) MoveCard(ctx context.Context, cardID uuid.UUID, targetStatus string, targetIndex int) error {
	e.mu.Lock()
	card, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.MoveCard(%s): %w", cardID, domain.ErrNotFound)
	}
	if card.Archived {
		e.mu.Unlock()
		return fmt.Errorf("engine.MoveCard(%s): archived card: %w", cardID, domain.ErrValidation)
	}
	if _, ok := e.store.ColumnByStatus(targetStatus); !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.MoveCard(%s): status %q: %w", cardID, targetStatus, domain.ErrNotFound)
	}

	sourceStatus := card.Status
	snaps := [][]*domain.Card{e.store.LaneSnapshot(sourceStatus)}
	statuses := []string{sourceStatus}
	if targetStatus != sourceStatus {
		snaps = append(snaps, e.store.LaneSnapshot(targetStatus))
		statuses = append(statuses, targetStatus)
	}

	targetIndex = e.applyMove(card, sourceStatus, targetStatus, targetIndex)

	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:       e.nextOrigin(),
		kind:         "move_card",
		prevCard:     card,
		laneSnaps:    snaps,
		laneStatuses: statuses,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	moved, err := e.client.MoveCard(ctx, cardID, api.MoveCardInput{
		Status:   targetStatus,
		Position: targetIndex,
	})

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.rollbackMove(cardID, cmd)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not move card", CardID: cardID})

		// The failure may mean someone else already moved it; the local
		// guess is worthless either way, so refetch authoritative order.
		if resyncErr := e.Resync(ctx); resyncErr != nil {
			log.Error().Err(resyncErr).Msg("engine: resync after failed move")
		}
		return fmt.Errorf("engine.MoveCard(%s): %w", cardID, err)
	}

	// Optimistic state already matches; merge server-confirmed ordering
	// fields non-destructively in case the server clamped differently.
	e.store.PatchCard(cardID, store.CardPatch{
		Status:   store.Ptr(moved.Status),
		Position: store.Ptr(moved.Position),
	})
	e.store.ReindexLane(sourceStatus)
	if targetStatus != sourceStatus {
		e.store.ReindexLane(targetStatus)
	}
	e.mu.Unlock()
	e.notifyUpdate()

	return nil
}

// applyMove rewrites both lanes' positions around the moved card and returns
// the clamped insertion index. Caller holds mu.
func (e *Engine) applyMove(card *domain.Card, sourceStatus, targetStatus string, targetIndex int) int {
	target := e.store.Lane(targetStatus)
	without := make([]*domain.Card, 0, len(target))
	for _, c := range target {
		if c.ID != card.ID {
			without = append(without, c)
		}
	}

	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(without) {
		targetIndex = len(without)
	}

	reordered := make([]*domain.Card, 0, len(without)+1)
	reordered = append(reordered, without[:targetIndex]...)
	reordered = append(reordered, card)
	reordered = append(reordered, without[targetIndex:]...)

	e.store.PatchCard(card.ID, store.CardPatch{
		Status:   store.Ptr(targetStatus),
		Position: store.Ptr(targetIndex),
	})
	for i, c := range reordered {
		e.store.PatchCard(c.ID, store.CardPatch{Position: store.Ptr(i)})
	}

	if targetStatus != sourceStatus {
		e.store.ReindexLane(sourceStatus)
	}

	return targetIndex
}

// rollbackMove restores the pre-drag lanes. If the card or a touched lane was
// remotely archived or deleted during the in-flight window the restore is
// skipped; the resync that follows re-establishes truth instead. Caller
// holds mu.
func (e *Engine) rollbackMove(cardID uuid.UUID, cmd *pendingCommand) {
	current, ok := e.store.Card(cardID)
	if !ok || current.Archived {
		log.Warn().Stringer("card_id", cardID).Msg("engine: move rollback skipped, card gone")
		return
	}
	for _, status := range cmd.laneStatuses {
		if _, ok := e.store.ColumnByStatus(status); !ok {
			log.Warn().Str("status", status).Msg("engine: move rollback skipped, lane gone")
			return
		}
	}

	for _, snap := range cmd.laneSnaps {
		e.store.RestoreLane(snap)
	}
}

// MoveColumn drags a column to targetIndex within the reorderable set. The
// archive column is never part of that set: it cannot be moved and other
// moves index past it.
func (e *Engine) MoveColumn(ctx context.Context, columnID uuid.UUID, targetIndex int) error {
	e.mu.Lock()
	col, ok := e.store.Column(columnID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.MoveColumn(%s): %w", columnID, domain.ErrNotFound)
	}
	if col.IsArchive() {
		e.mu.Unlock()
		return fmt.Errorf("engine.MoveColumn(%s): %w", columnID, domain.ErrArchiveColumn)
	}

	prevOrder := e.reorderableColumnIDs()
	next := make([]uuid.UUID, 0, len(prevOrder))
	for _, id := range prevOrder {
		if id != columnID {
			next = append(next, id)
		}
	}
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(next) {
		targetIndex = len(next)
	}
	next = append(next[:targetIndex], append([]uuid.UUID{columnID}, next[targetIndex:]...)...)

	e.store.SetColumnPositions(next)

	token := uuid.New()
	e.registerPending(token, &pendingCommand{
		origin:      e.nextOrigin(),
		kind:        "move_column",
		prevColumns: prevOrder,
	})
	e.mu.Unlock()
	e.notifyUpdate()

	cols, err := e.client.ReorderColumns(ctx, e.boardID, api.ColumnOrderInput{OrderedIDs: next})

	e.mu.Lock()
	cmd := e.takePending(token)
	if err != nil {
		if cmd != nil {
			e.store.SetColumnPositions(cmd.prevColumns)
		}
		e.mu.Unlock()
		e.notifyUpdate()
		e.notify(Notice{Kind: NoticeError, Message: "could not reorder columns"})
		if resyncErr := e.Resync(ctx); resyncErr != nil {
			log.Error().Err(resyncErr).Msg("engine: resync after failed column move")
		}
		return fmt.Errorf("engine.MoveColumn(%s): %w", columnID, err)
	}
	for _, c := range cols {
		e.upsertColumn(c)
	}
	e.mu.Unlock()
	e.notifyUpdate()

	return nil
}

// reorderableColumnIDs returns the column order excluding the archive
// column. Caller holds mu.
func (e *Engine) reorderableColumnIDs() []uuid.UUID {
	cols := e.store.Columns()
	ids := make([]uuid.UUID, 0, len(cols))
	for _, c := range cols {
		if !c.IsArchive() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// upsertColumn merges an authoritative column. Caller holds mu.
func (e *Engine) upsertColumn(c *domain.Column) {
	if !e.store.ReplaceColumn(c.ID, c) {
		e.store.AppendColumn(c)
	}
}

// CreateColumn adds a lane. Column ids and status keys are server-assigned,
// so creation is confirmed-only.
func (e *Engine) CreateColumn(ctx context.Context, name, color string) (*domain.Column, error) {
	if name == "" {
		return nil, fmt.Errorf("engine.CreateColumn: empty name: %w", domain.ErrValidation)
	}

	created, err := e.client.CreateColumn(ctx, e.boardID, api.CreateColumnInput{Name: name, Color: color})
	if err != nil {
		e.notify(Notice{Kind: NoticeError, Message: "could not create column"})
		return nil, fmt.Errorf("engine.CreateColumn: %w", err)
	}

	e.mu.Lock()
	e.store.AppendColumn(created)
	e.mu.Unlock()
	e.notifyUpdate()

	return created, nil
}

// RenameColumn renames a lane. The server regenerates the status key; the
// store cascades the new key to every card referencing the old one when the
// authoritative column replaces the stale entry.
func (e *Engine) RenameColumn(ctx context.Context, columnID uuid.UUID, name string) (*domain.Column, error) {
	e.mu.Lock()
	col, ok := e.store.Column(columnID)
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine.RenameColumn(%s): %w", columnID, domain.ErrNotFound)
	}
	if col.IsArchive() {
		return nil, fmt.Errorf("engine.RenameColumn(%s): %w", columnID, domain.ErrArchiveColumn)
	}
	if name == "" {
		return nil, fmt.Errorf("engine.RenameColumn(%s): empty name: %w", columnID, domain.ErrValidation)
	}

	updated, err := e.client.UpdateColumn(ctx, columnID, api.ColumnUpdate{Name: &name})
	if err != nil {
		e.notify(Notice{Kind: NoticeError, Message: "could not rename column"})
		return nil, fmt.Errorf("engine.RenameColumn(%s): %w", columnID, err)
	}

	e.mu.Lock()
	e.upsertColumn(updated)
	e.mu.Unlock()
	e.notifyUpdate()

	return updated, nil
}

// DeleteColumn removes a lane. Default and archive columns are protected
// client-side before any network call.
func (e *Engine) DeleteColumn(ctx context.Context, columnID uuid.UUID) error {
	e.mu.Lock()
	col, ok := e.store.Column(columnID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine.DeleteColumn(%s): %w", columnID, domain.ErrNotFound)
	}
	if col.IsArchive() {
		return fmt.Errorf("engine.DeleteColumn(%s): %w", columnID, domain.ErrArchiveColumn)
	}
	if col.IsDefault {
		return fmt.Errorf("engine.DeleteColumn(%s): %w", columnID, domain.ErrDefaultColumn)
	}

	if err := e.client.DeleteColumn(ctx, columnID); err != nil {
		e.notify(Notice{Kind: NoticeError, Message: "could not delete column"})
		return fmt.Errorf("engine.DeleteColumn(%s): %w", columnID, err)
	}

	e.mu.Lock()
	e.store.RemoveColumn(columnID)
	e.mu.Unlock()
	e.notifyUpdate()

	// The server relocated the lane's cards; fetch where they went.
	if err := e.Resync(ctx); err != nil {
		log.Error().Err(err).Msg("engine: resync after column delete")
	}

	return nil
}
