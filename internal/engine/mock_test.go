package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
)

var errNotStubbed = errors.New("mock: call not stubbed")

// mockClient implements APIClient with function fields; unset calls fail with
// errNotStubbed so a test never silently exercises an unintended path.
type mockClient struct {
	FetchBoardFn func(ctx context.Context, boardID uuid.UUID) (*api.BoardState, error)

	CreateCardFn  func(ctx context.Context, boardID uuid.UUID, in api.CreateCardInput) (*domain.Card, error)
	UpdateCardFn  func(ctx context.Context, cardID uuid.UUID, in api.CardUpdate) (*domain.Card, error)
	MoveCardFn    func(ctx context.Context, cardID uuid.UUID, in api.MoveCardInput) (*domain.Card, error)
	ArchiveCardFn func(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	RestoreCardFn func(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	DeleteCardFn  func(ctx context.Context, cardID uuid.UUID) error

	CreateColumnFn   func(ctx context.Context, boardID uuid.UUID, in api.CreateColumnInput) (*domain.Column, error)
	UpdateColumnFn   func(ctx context.Context, columnID uuid.UUID, in api.ColumnUpdate) (*domain.Column, error)
	DeleteColumnFn   func(ctx context.Context, columnID uuid.UUID) error
	ReorderColumnsFn func(ctx context.Context, boardID uuid.UUID, in api.ColumnOrderInput) ([]*domain.Column, error)

	AddLabelFn            func(ctx context.Context, cardID uuid.UUID, in api.LabelInput) (*domain.Card, error)
	RemoveLabelFn         func(ctx context.Context, cardID, labelID uuid.UUID) (*domain.Card, error)
	AddAttachmentFn       func(ctx context.Context, cardID uuid.UUID, in api.AttachmentInput) (*domain.Card, error)
	RemoveAttachmentFn    func(ctx context.Context, cardID, attachmentID uuid.UUID) (*domain.Card, error)
	AddChecklistItemFn    func(ctx context.Context, cardID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error)
	UpdateChecklistItemFn func(ctx context.Context, cardID, itemID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error)
	DeleteChecklistItemFn func(ctx context.Context, cardID, itemID uuid.UUID) (*domain.Card, error)
	ReorderChecklistFn    func(ctx context.Context, cardID uuid.UUID, in api.ChecklistOrderInput) (*domain.Card, error)
	AddCommentFn          func(ctx context.Context, cardID uuid.UUID, in api.CommentInput) (*domain.Card, error)
	SetEstimateFn         func(ctx context.Context, cardID uuid.UUID, in api.EstimateInput) (*domain.Card, error)
	AddTimeEntryFn        func(ctx context.Context, cardID uuid.UUID, in api.TimeEntryInput) (*domain.Card, error)
	DeleteTimeEntryFn     func(ctx context.Context, entryID uuid.UUID) (*domain.Card, error)
	StartTimerFn          func(ctx context.Context, cardID uuid.UUID) (*api.TimerState, error)
	StopTimerFn           func(ctx context.Context) (*domain.Card, error)
}

func (m *mockClient) FetchBoard(ctx context.Context, boardID uuid.UUID) (*api.BoardState, error) {
	if m.FetchBoardFn == nil {
		return nil, errNotStubbed
	}
	return m.FetchBoardFn(ctx, boardID)
}

func (m *mockClient) CreateCard(ctx context.Context, boardID uuid.UUID, in api.CreateCardInput) (*domain.Card, error) {
	if m.CreateCardFn == nil {
		return nil, errNotStubbed
	}
	return m.CreateCardFn(ctx, boardID, in)
}

func (m *mockClient) UpdateCard(ctx context.Context, cardID uuid.UUID, in api.CardUpdate) (*domain.Card, error) {
	if m.UpdateCardFn == nil {
		return nil, errNotStubbed
	}
	return m.UpdateCardFn(ctx, cardID, in)
}

func (m *mockClient) MoveCard(ctx context.Context, cardID uuid.UUID, in api.MoveCardInput) (*domain.Card, error) {
	if m.MoveCardFn == nil {
		return nil, errNotStubbed
	}
	return m.MoveCardFn(ctx, cardID, in)
}

func (m *mockClient) ArchiveCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	if m.ArchiveCardFn == nil {
		return nil, errNotStubbed
	}
	return m.ArchiveCardFn(ctx, cardID)
}

func (m *mockClient) RestoreCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	if m.RestoreCardFn == nil {
		return nil, errNotStubbed
	}
	return m.RestoreCardFn(ctx, cardID)
}

func (m *mockClient) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	if m.DeleteCardFn == nil {
		return errNotStubbed
	}
	return m.DeleteCardFn(ctx, cardID)
}

func (m *mockClient) CreateColumn(ctx context.Context, boardID uuid.UUID, in api.CreateColumnInput) (*domain.Column, error) {
	if m.CreateColumnFn == nil {
		return nil, errNotStubbed
	}
	return m.CreateColumnFn(ctx, boardID, in)
}

func (m *mockClient) UpdateColumn(ctx context.Context, columnID uuid.UUID, in api.ColumnUpdate) (*domain.Column, error) {
	if m.UpdateColumnFn == nil {
		return nil, errNotStubbed
	}
	return m.UpdateColumnFn(ctx, columnID, in)
}

func (m *mockClient) DeleteColumn(ctx context.Context, columnID uuid.UUID) error {
	if m.DeleteColumnFn == nil {
		return errNotStubbed
	}
	return m.DeleteColumnFn(ctx, columnID)
}

func (m *mockClient) ReorderColumns(ctx context.Context, boardID uuid.UUID, in api.ColumnOrderInput) ([]*domain.Column, error) {
	if m.ReorderColumnsFn == nil {
		return nil, errNotStubbed
	}
	return m.ReorderColumnsFn(ctx, boardID, in)
}

func (m *mockClient) AddLabel(ctx context.Context, cardID uuid.UUID, in api.LabelInput) (*domain.Card, error) {
	if m.AddLabelFn == nil {
		return nil, errNotStubbed
	}
	return m.AddLabelFn(ctx, cardID, in)
}

func (m *mockClient) RemoveLabel(ctx context.Context, cardID, labelID uuid.UUID) (*domain.Card, error) {
	if m.RemoveLabelFn == nil {
		return nil, errNotStubbed
	}
	return m.RemoveLabelFn(ctx, cardID, labelID)
}

func (m *mockClient) AddAttachment(ctx context.Context, cardID uuid.UUID, in api.AttachmentInput) (*domain.Card, error) {
	if m.AddAttachmentFn == nil {
		return nil, errNotStubbed
	}
	return m.AddAttachmentFn(ctx, cardID, in)
}

func (m *mockClient) RemoveAttachment(ctx context.Context, cardID, attachmentID uuid.UUID) (*domain.Card, error) {
	if m.RemoveAttachmentFn == nil {
		return nil, errNotStubbed
	}
	return m.RemoveAttachmentFn(ctx, cardID, attachmentID)
}

func (m *mockClient) AddChecklistItem(ctx context.Context, cardID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error) {
	if m.AddChecklistItemFn == nil {
		return nil, errNotStubbed
	}
	return m.AddChecklistItemFn(ctx, cardID, in)
}

func (m *mockClient) UpdateChecklistItem(ctx context.Context, cardID, itemID uuid.UUID, in api.ChecklistItemInput) (*domain.Card, error) {
	if m.UpdateChecklistItemFn == nil {
		return nil, errNotStubbed
	}
	return m.UpdateChecklistItemFn(ctx, cardID, itemID, in)
}

func (m *mockClient) DeleteChecklistItem(ctx context.Context, cardID, itemID uuid.UUID) (*domain.Card, error) {
	if m.DeleteChecklistItemFn == nil {
		return nil, errNotStubbed
	}
	return m.DeleteChecklistItemFn(ctx, cardID, itemID)
}

func (m *mockClient) ReorderChecklist(ctx context.Context, cardID uuid.UUID, in api.ChecklistOrderInput) (*domain.Card, error) {
	if m.ReorderChecklistFn == nil {
		return nil, errNotStubbed
	}
	return m.ReorderChecklistFn(ctx, cardID, in)
}

func (m *mockClient) AddComment(ctx context.Context, cardID uuid.UUID, in api.CommentInput) (*domain.Card, error) {
	if m.AddCommentFn == nil {
		return nil, errNotStubbed
	}
	return m.AddCommentFn(ctx, cardID, in)
}

func (m *mockClient) SetEstimate(ctx context.Context, cardID uuid.UUID, in api.EstimateInput) (*domain.Card, error) {
	if m.SetEstimateFn == nil {
		return nil, errNotStubbed
	}
	return m.SetEstimateFn(ctx, cardID, in)
}

func (m *mockClient) AddTimeEntry(ctx context.Context, cardID uuid.UUID, in api.TimeEntryInput) (*domain.Card, error) {
	if m.AddTimeEntryFn == nil {
		return nil, errNotStubbed
	}
	return m.AddTimeEntryFn(ctx, cardID, in)
}

func (m *mockClient) DeleteTimeEntry(ctx context.Context, entryID uuid.UUID) (*domain.Card, error) {
	if m.DeleteTimeEntryFn == nil {
		return nil, errNotStubbed
	}
	return m.DeleteTimeEntryFn(ctx, entryID)
}

func (m *mockClient) StartTimer(ctx context.Context, cardID uuid.UUID) (*api.TimerState, error) {
	if m.StartTimerFn == nil {
		return nil, errNotStubbed
	}
	return m.StartTimerFn(ctx, cardID)
}

func (m *mockClient) StopTimer(ctx context.Context) (*domain.Card, error) {
	if m.StopTimerFn == nil {
		return nil, errNotStubbed
	}
	return m.StopTimerFn(ctx)
}

// ---------------------------------------------------------------------------
// Shared fixtures
// ---------------------------------------------------------------------------

// newTestEngine builds an engine over the mock with two lanes plus the archive
// column already in the store.
func newTestEngine(t *testing.T, client *mockClient) (*Engine, uuid.UUID) {
	t.Helper()

	userID := uuid.New()
	e := New(client, uuid.New(), userID)
	e.store.Reset(nil, []*domain.Column{
		{ID: uuid.New(), Name: "Todo", StatusKey: "todo", Position: 0, IsDefault: true},
		{ID: uuid.New(), Name: "Doing", StatusKey: "doing", Position: 1},
		{ID: uuid.New(), Name: "Archive", StatusKey: domain.StatusArchive, Position: 99},
	})

	return e, userID
}

func seedCard(t *testing.T, e *Engine, title, status string, position int) *domain.Card {
	t.Helper()

	c := &domain.Card{
		ID:       uuid.New(),
		Number:   position + 1,
		Title:    title,
		Status:   status,
		Position: position,
		Priority: domain.PriorityMedium,
	}
	require.True(t, e.store.AppendCard(c))
	return c
}

func laneOrder(e *Engine, status string) []string {
	lane := e.store.Lane(status)
	out := make([]string, 0, len(lane))
	for _, c := range lane {
		out = append(out, c.Title)
	}
	return out
}

func requireDensePositions(t *testing.T, e *Engine, status string) {
	t.Helper()

	for i, c := range e.store.Lane(status) {
		require.Equal(t, i, c.Position, "lane %q position %d not dense", status, i)
	}
}
