// Package engine is the reconciliation core of the board client. It applies
// local commands optimistically, confirms or reverts them against the
// persistence API, merges remote events from other sessions, and suppresses
// echoes of this session's own actions.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/filter"
	"github.com/gosuda/boardsync/internal/store"
)

// APIClient is the persistence surface the engine mutates through.
// *api.Client satisfies it; tests substitute function-field mocks.
type APIClient interface {
	FetchBoard(ctx context.Context, boardID uuid.UUID) (*api.BoardState, error)

	CreateCard(ctx context.Context, boardID uuid.UUID, in api.CreateCardInput) (*domain.Card, error)
	UpdateCard(ctx context.Context, cardID uuid.UUID, in api.CardUpdate) (*domain.Card, error)
	MoveCard(ctx context.Context, cardID uuid.UUID, in api.MoveCardInput) (*domain.Card, error)
	ArchiveCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	RestoreCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	DeleteCard(ctx context.Context, cardID uuid.UUID) error

	CreateColumn(ctx context.Context, boardID uuid.UUID, in api.CreateColumnInput) (*domain.Column, error)
	UpdateColumn(ctx context.Context, columnID uuid.UUID, in api.ColumnUpdate) (*domain.Column, error)
	DeleteColumn(ctx context.Context, columnID uuid.UUID) error
	ReorderColumns(ctx context.Context, boardID uuid.UUID, in api.ColumnOrderInput) ([]*domain.Column, error)

	AddLabel(ctx context.Context, cardID uuid.UUID, in api.LabelInput) (*domain.Card, error)
	RemoveLabel(ctx context.Context, cardID, labelID uuid.UUID) (*domain.Card, error)
	AddAttachment(ctx context.Context, cardID uuid.UUID, in api.AttachmentInput) (*domain.Card, error)
	RemoveAttachment(ctx context.Context, cardID, attachmentID uuid.UUID) (*domain.Card, error)
	AddChecklistItem(ctx context.Context, cardID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error)
	UpdateChecklistItem(ctx context.Context, cardID, itemID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error)
	DeleteChecklistItem(ctx context.Context, cardID, itemID uuid.UUID) (*domain.Card, error)
	ReorderChecklist(ctx context.Context, cardID uuid.UUID, in api.ChecklistOrderInput) (*domain.Card, error)
	AddComment(ctx context.Context, cardID uuid.UUID, in api.CommentInput) (*domain.Card, error)
	SetEstimate(ctx context.Context, cardID uuid.UUID, in api.EstimateInput) (*domain.Card, error)
	AddTimeEntry(ctx context.Context, cardID uuid.UUID, in api.TimeEntryInput) (*domain.Card, error)
	DeleteTimeEntry(ctx context.Context, entryID uuid.UUID) (*domain.Card, error)
	StartTimer(ctx context.Context, cardID uuid.UUID) (*api.TimerState, error)
	StopTimer(ctx context.Context) (*domain.Card, error)
}

// EventSource is the inbound half of the real-time transport.
// *realtime.Subscriber satisfies it.
type EventSource interface {
	Events() <-chan domain.Event
	Resyncs() <-chan struct{}
}

// OriginToken correlates an outgoing command with its eventual broadcast
// echo: the session user's id plus a monotonically increasing local sequence.
type OriginToken struct {
	UserID uuid.UUID
	Seq    int64
}

// pendingCommand is one optimistic mutation awaiting confirmation. The revert
// data lives here, in a first-class map keyed by correlation token, so
// revert-on-failure stays reachable no matter what happens to the caller.
type pendingCommand struct {
	origin OriginToken
	kind   string

	sentinelID   uuid.UUID      // creates: local placeholder entity id
	prevCard     *domain.Card   // updates: pre-patch snapshot
	laneSnaps    [][]*domain.Card // moves: ordered lanes captured pre-drag
	laneStatuses []string
	prevColumns  []uuid.UUID // column moves: pre-drag order
}

type Engine struct {
	boardID uuid.UUID
	userID  uuid.UUID

	client APIClient
	store  *store.Store

	// mu serializes every composite store mutation: optimistic applies,
	// confirmations, reverts, and remote-event merges. API calls themselves
	// run outside the lock so remote events keep flowing during the in-flight
	// window.
	mu       sync.Mutex
	criteria domain.FilterCriteria
	pending  map[uuid.UUID]*pendingCommand
	seq      atomic.Int64

	// activeTimer is the session-scoped timer singleton. timerBusy is set
	// while a stop+start round trip is in flight; the snapshot must not show
	// a timer as running until the round trip completes.
	activeTimer uuid.UUID
	timerBusy   bool

	updates chan struct{}
	notices chan Notice

	now func() time.Time
}

func New(client APIClient, boardID, userID uuid.UUID) *Engine {
	return &Engine{
		boardID: boardID,
		userID:  userID,
		client:  client,
		store:   store.New(),
		pending: make(map[uuid.UUID]*pendingCommand),
		updates: make(chan struct{}, 1),
		notices: make(chan Notice, 16),
		now:     time.Now,
	}
}

// BoardSnapshot is the read-only state published to the UI layer. Every slice
// holds clones; mutating a snapshot never touches engine state.
type BoardSnapshot struct {
	Cards             []*domain.Card
	Columns           []*domain.Column
	VisibleCards      []*domain.Card
	ActiveTimerCardID uuid.UUID
}

// Snapshot renders the current board state through the active filter.
// VisibleCards is a computed projection, never independently tracked state.
func (e *Engine) Snapshot() BoardSnapshot {
	e.mu.Lock()
	criteria := e.criteria
	timer := e.activeTimer
	if e.timerBusy {
		timer = uuid.Nil
	}
	e.mu.Unlock()

	cards := e.store.Cards()
	nonArchived := make([]*domain.Card, 0, len(cards))
	for _, c := range cards {
		if !c.Archived {
			nonArchived = append(nonArchived, c)
		}
	}

	return BoardSnapshot{
		Cards:             cards,
		Columns:           e.store.Columns(),
		VisibleCards:      filter.Visible(nonArchived, criteria, e.userID, e.now()),
		ActiveTimerCardID: timer,
	}
}

// SetFilterCriteria replaces the active filter.
func (e *Engine) SetFilterCriteria(c domain.FilterCriteria) {
	e.mu.Lock()
	e.criteria = c
	e.mu.Unlock()
	e.notifyUpdate()
}

// Updates delivers coalesced change notifications. Consumers re-read
// Snapshot after each tick.
func (e *Engine) Updates() <-chan struct{} { return e.updates }

// Notices delivers user-facing notices (failed commands, remotely archived
// cards whose detail views should close).
func (e *Engine) Notices() <-chan Notice { return e.notices }

// Run consumes the event source until ctx is canceled or the source closes.
func (e *Engine) Run(ctx context.Context, src EventSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}
			e.handleRemote(ev)
		case _, ok := <-src.Resyncs():
			if !ok {
				return nil
			}
			if err := e.Resync(ctx); err != nil {
				log.Error().Err(err).Msg("engine: resync after reconnect failed")
				e.notify(Notice{Kind: NoticeError, Message: "resynchronization failed"})
			}
		}
	}
}

// Resync refetches full authoritative board state and replaces the store
// wholesale. Pending optimistic commands are dropped: their confirmations
// still merge authoritative entities, but their reverts must not resurrect
// pre-resync state.
func (e *Engine) Resync(ctx context.Context) error {
	state, err := e.client.FetchBoard(ctx, e.boardID)
	if err != nil {
		return fmt.Errorf("engine.Resync: %w", err)
	}

	e.mu.Lock()
	e.store.Reset(state.Cards, state.Columns)
	e.pending = make(map[uuid.UUID]*pendingCommand)
	e.mu.Unlock()

	e.notifyUpdate()
	return nil
}

// nextOrigin mints the origin token recorded with each outgoing command.
func (e *Engine) nextOrigin() OriginToken {
	return OriginToken{UserID: e.userID, Seq: e.seq.Add(1)}
}

// registerPending must be called with mu held.
func (e *Engine) registerPending(token uuid.UUID, cmd *pendingCommand) {
	e.pending[token] = cmd
}

// takePending removes and returns the pending command, or nil if a resync
// already invalidated it. Must be called with mu held.
func (e *Engine) takePending(token uuid.UUID) *pendingCommand {
	cmd, ok := e.pending[token]
	if !ok {
		return nil
	}
	delete(e.pending, token)
	return cmd
}

// PendingCommands reports the number of in-flight optimistic commands.
func (e *Engine) PendingCommands() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) notifyUpdate() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

func (e *Engine) notify(n Notice) {
	select {
	case e.notices <- n:
	default:
		log.Debug().Str("message", n.Message).Msg("engine: notice dropped, channel full")
	}
}
