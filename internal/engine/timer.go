package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// StartTimer starts tracking on a card. At most one timer is active per
// session: if one is already running, it is stopped server-side first, and
// the local state does not show the new timer as running until the whole
// stop+start round trip completes.
func (e *Engine) StartTimer(ctx context.Context, cardID uuid.UUID) error {
	e.mu.Lock()
	if e.timerBusy {
		e.mu.Unlock()
		return fmt.Errorf("engine.StartTimer(%s): %w", cardID, domain.ErrTimerActive)
	}
	card, ok := e.store.Card(cardID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.StartTimer(%s): %w", cardID, domain.ErrNotFound)
	}
	if card.Archived {
		e.mu.Unlock()
		return fmt.Errorf("engine.StartTimer(%s): archived card: %w", cardID, domain.ErrValidation)
	}
	previous := e.activeTimer
	e.timerBusy = true
	e.mu.Unlock()

	if previous != uuid.Nil {
		stopped, err := e.client.StopTimer(ctx)
		switch {
		case err == nil:
			e.mu.Lock()
			e.store.ReplaceCard(stopped.ID, stopped)
			e.activeTimer = uuid.Nil
			e.mu.Unlock()
			e.notifyUpdate()
		case errors.Is(err, domain.ErrNotFound):
			// Nothing was running server-side; stale local state.
			e.mu.Lock()
			e.activeTimer = uuid.Nil
			e.mu.Unlock()
		default:
			e.mu.Lock()
			e.timerBusy = false
			e.mu.Unlock()
			return fmt.Errorf("engine.StartTimer(%s): stop previous: %w", cardID, err)
		}
	}

	state, err := e.client.StartTimer(ctx, cardID)

	e.mu.Lock()
	e.timerBusy = false
	if err != nil {
		e.mu.Unlock()
		e.notify(Notice{Kind: NoticeError, Message: "could not start timer", CardID: cardID})
		return fmt.Errorf("engine.StartTimer(%s): %w", cardID, err)
	}
	e.activeTimer = state.CardID
	e.mu.Unlock()
	e.notifyUpdate()

	log.Debug().Stringer("card_id", state.CardID).Msg("engine: timer started")
	return nil
}

// StopTimer stops the session's active timer. The server responds with the
// card the produced time entry was logged against, total recomputed.
func (e *Engine) StopTimer(ctx context.Context) (*domain.Card, error) {
	e.mu.Lock()
	if e.timerBusy {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine.StopTimer: %w", domain.ErrTimerActive)
	}
	if e.activeTimer == uuid.Nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine.StopTimer: %w", domain.ErrNoActiveTimer)
	}
	e.timerBusy = true
	e.mu.Unlock()

	stopped, err := e.client.StopTimer(ctx)

	e.mu.Lock()
	e.timerBusy = false
	if err != nil {
		// The timer keeps running server-side; local state stays active.
		e.mu.Unlock()
		e.notify(Notice{Kind: NoticeError, Message: "could not stop timer"})
		return nil, fmt.Errorf("engine.StopTimer: %w", err)
	}
	e.activeTimer = uuid.Nil
	e.store.ReplaceCard(stopped.ID, stopped)
	e.mu.Unlock()
	e.notifyUpdate()

	return stopped, nil
}

// ActiveTimerCard returns the card the session timer is running against, or
// uuid.Nil. During a stop+start round trip nothing is reported as running.
func (e *Engine) ActiveTimerCard() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timerBusy {
		return uuid.Nil
	}
	return e.activeTimer
}

// handleOwnTimerStopped reacts to a timer-stopped broadcast for this
// session's own user. Unlike other self-originated events it is not a pure
// echo: another device of the same account may have stopped the timer this
// client believes is running. The local singleton is cleared and the card
// total patched; everything else about the event is left to the device that
// acted.
func (e *Engine) handleOwnTimerStopped(ev *domain.TimerStopped) {
	e.mu.Lock()
	if e.timerBusy || e.activeTimer != ev.CardID {
		// Either our own stop is already settling the state, or we never
		// thought this timer was running. Plain echo; discard.
		e.mu.Unlock()
		return
	}
	e.activeTimer = uuid.Nil
	e.patchTotal(ev.CardID, ev.TotalSeconds)
	e.mu.Unlock()
	e.notifyUpdate()

	log.Debug().Stringer("card_id", ev.CardID).Msg("engine: timer stopped on another device")
}
