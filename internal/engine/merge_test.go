package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
)

// ---------------------------------------------------------------------------
// Echo suppression
// ---------------------------------------------------------------------------

func TestHandleRemote_OwnEventsAreDiscarded(t *testing.T) {
	t.Parallel()

	e, userID := newTestEngine(t, &mockClient{})
	seedCard(t, e, "existing", "todo", 0)

	echo := &domain.Card{ID: uuid.New(), Title: "echo", Status: "todo", Position: 1}
	e.handleRemote(&domain.CardCreated{
		EventHeader: domain.NewHeader(domain.EventCardCreated, userID),
		Card:        echo,
	})

	_, ok := e.store.Card(echo.ID)
	assert.False(t, ok, "a self-originated event must not apply twice")
	assert.Equal(t, []string{"existing"}, laneOrder(e, "todo"))
}

func TestHandleRemote_OtherUsersEventsApply(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	seedCard(t, e, "existing", "todo", 0)

	remote := &domain.Card{ID: uuid.New(), Title: "remote", Status: "todo", Position: 1}
	e.handleRemote(&domain.CardCreated{
		EventHeader: domain.NewHeader(domain.EventCardCreated, uuid.New()),
		Card:        remote,
	})

	assert.Equal(t, []string{"existing", "remote"}, laneOrder(e, "todo"))
	requireDensePositions(t, e, "todo")
}

func TestHandleRemote_RedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	remote := &domain.Card{ID: uuid.New(), Title: "once", Status: "todo", Position: 0}
	ev := &domain.CardCreated{
		EventHeader: domain.NewHeader(domain.EventCardCreated, uuid.New()),
		Card:        remote,
	}

	e.handleRemote(ev)
	e.handleRemote(ev)

	assert.Equal(t, []string{"once"}, laneOrder(e, "todo"))
}

// ---------------------------------------------------------------------------
// Card lifecycle merges
// ---------------------------------------------------------------------------

func TestHandleRemote_StatusChangedReindexesBothLanes(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	a := seedCard(t, e, "a", "todo", 0)
	seedCard(t, e, "b", "todo", 1)
	seedCard(t, e, "x", "doing", 0)

	moved := a.Clone()
	moved.Status = "doing"
	moved.Position = 1
	e.handleRemote(&domain.StatusChanged{
		EventHeader: domain.NewHeader(domain.EventStatusChanged, uuid.New()),
		Card:        moved,
	})

	assert.Equal(t, []string{"b"}, laneOrder(e, "todo"))
	assert.Equal(t, []string{"x", "a"}, laneOrder(e, "doing"))
	requireDensePositions(t, e, "todo")
	requireDensePositions(t, e, "doing")
}

func TestHandleRemote_CardArchivedEmitsNoticeAndClearsTimer(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "tracked", "todo", 0)
	e.activeTimer = card.ID

	archived := card.Clone()
	archived.Archived = true
	archived.Status = domain.StatusArchive
	e.handleRemote(&domain.CardArchived{
		EventHeader: domain.NewHeader(domain.EventCardArchived, uuid.New()),
		Card:        archived,
	})

	assert.Equal(t, uuid.Nil, e.ActiveTimerCard())
	assert.Empty(t, laneOrder(e, "todo"))

	select {
	case n := <-e.Notices():
		assert.Equal(t, NoticeCardArchived, n.Kind)
		assert.Equal(t, card.ID, n.CardID)
	default:
		t.Fatal("expected an archived notice so an open detail view closes")
	}
}

func TestHandleRemote_CardDeletedRemoves(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "doomed", "todo", 0)

	e.handleRemote(&domain.CardDeleted{
		EventHeader: domain.NewHeader(domain.EventCardDeleted, uuid.New()),
		CardID:      card.ID,
	})

	_, ok := e.store.Card(card.ID)
	assert.False(t, ok)
}

func TestHandleRemote_CardRestoredMergesIntoLane(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	seedCard(t, e, "a", "todo", 0)

	restored := &domain.Card{ID: uuid.New(), Title: "back", Status: "todo", Position: 1}
	e.handleRemote(&domain.CardRestored{
		EventHeader: domain.NewHeader(domain.EventCardRestored, uuid.New()),
		Card:        restored,
	})

	assert.Equal(t, []string{"a", "back"}, laneOrder(e, "todo"))
	requireDensePositions(t, e, "todo")
}

// ---------------------------------------------------------------------------
// Column merges
// ---------------------------------------------------------------------------

func TestHandleRemote_ColumnUpdatedCascadesStatusKey(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "rides along", "todo", 0)

	col, ok := e.store.ColumnByStatus("todo")
	require.True(t, ok)
	renamed := col.Clone()
	renamed.Name = "Backlog"
	renamed.StatusKey = "backlog_zz11"

	e.handleRemote(&domain.ColumnUpdated{
		EventHeader:  domain.NewHeader(domain.EventColumnUpdated, uuid.New()),
		Column:       renamed,
		OldStatusKey: "todo",
	})

	got, ok := e.store.Card(card.ID)
	require.True(t, ok)
	assert.Equal(t, "backlog_zz11", got.Status)
}

func TestHandleRemote_ColumnsReordered(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	todo, _ := e.store.ColumnByStatus("todo")
	doing, _ := e.store.ColumnByStatus("doing")

	e.handleRemote(&domain.ColumnsReordered{
		EventHeader: domain.NewHeader(domain.EventColumnsReordered, uuid.New()),
		OrderedIDs:  []uuid.UUID{doing.ID, todo.ID},
	})

	assert.Equal(t, []string{"Doing", "Todo", "Archive"}, columnNames(e))
}

// ---------------------------------------------------------------------------
// Sub-entity merges
// ---------------------------------------------------------------------------

func TestHandleRemote_ChecklistMergesAreTargeted(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "with list", "todo", 0)
	actor := uuid.New()

	item := domain.ChecklistItem{ID: uuid.New(), Title: "step one"}
	e.handleRemote(&domain.ChecklistItemCreated{
		EventHeader: domain.NewHeader(domain.EventChecklistItemCreated, actor),
		CardID:      card.ID,
		Item:        item,
	})
	// Redelivered create must not duplicate the item.
	e.handleRemote(&domain.ChecklistItemCreated{
		EventHeader: domain.NewHeader(domain.EventChecklistItemCreated, actor),
		CardID:      card.ID,
		Item:        item,
	})

	got, ok := e.store.Card(card.ID)
	require.True(t, ok)
	require.Len(t, got.Checklist, 1)

	done := item
	done.Completed = true
	e.handleRemote(&domain.ChecklistItemUpdated{
		EventHeader: domain.NewHeader(domain.EventChecklistItemUpdated, actor),
		CardID:      card.ID,
		Item:        done,
	})

	got, _ = e.store.Card(card.ID)
	assert.True(t, got.Checklist[0].Completed)

	e.handleRemote(&domain.ChecklistItemDeleted{
		EventHeader: domain.NewHeader(domain.EventChecklistItemDeleted, actor),
		CardID:      card.ID,
		ItemID:      item.ID,
	})

	got, _ = e.store.Card(card.ID)
	assert.Empty(t, got.Checklist)
}

func TestHandleRemote_LabelAddIsIdempotent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "labeled", "todo", 0)
	actor := uuid.New()

	label := domain.Label{ID: uuid.New(), Name: "bug", Color: "#ff0000"}
	ev := &domain.LabelAdded{
		EventHeader: domain.NewHeader(domain.EventLabelAdded, actor),
		CardID:      card.ID,
		Label:       label,
	}
	e.handleRemote(ev)
	e.handleRemote(ev)

	got, ok := e.store.Card(card.ID)
	require.True(t, ok)
	assert.Len(t, got.Labels, 1)
}

func TestHandleRemote_TimeTotalsAreAuthoritative(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "timed", "todo", 0)
	actor := uuid.New()

	e.handleRemote(&domain.TimeEntryAdded{
		EventHeader:  domain.NewHeader(domain.EventTimeEntryAdded, actor),
		CardID:       card.ID,
		TotalSeconds: 3600,
	})
	e.handleRemote(&domain.TimeEntryAdded{
		EventHeader:  domain.NewHeader(domain.EventTimeEntryAdded, actor),
		CardID:       card.ID,
		TotalSeconds: 5400,
	})

	got, ok := e.store.Card(card.ID)
	require.True(t, ok)
	assert.Equal(t, int64(5400), got.TotalTimeSpent, "the total is replaced, never summed locally")
}

func TestHandleRemote_EstimateChanged(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	card := seedCard(t, e, "estimated", "todo", 0)

	e.handleRemote(&domain.EstimateChanged{
		EventHeader:      domain.NewHeader(domain.EventEstimateChanged, uuid.New()),
		CardID:           card.ID,
		EstimatedSeconds: 7200,
	})

	got, ok := e.store.Card(card.ID)
	require.True(t, ok)
	assert.Equal(t, int64(7200), got.EstimatedTime)
}

// ---------------------------------------------------------------------------
// Snapshot and filter integration
// ---------------------------------------------------------------------------

func TestSnapshot_VisibleCardsFollowCriteria(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, &mockClient{})
	seedCard(t, e, "fix crash", "todo", 0)
	seedCard(t, e, "write docs", "todo", 1)
	buried := seedCard(t, e, "archived card", domain.StatusArchive, 0)
	e.store.PatchCard(buried.ID, cardArchivedPatch())

	snap := e.Snapshot()
	assert.Len(t, snap.Cards, 3)
	assert.Len(t, snap.VisibleCards, 2, "archived cards never reach the visible set")

	e.SetFilterCriteria(domain.FilterCriteria{Keyword: "crash"})
	snap = e.Snapshot()
	require.Len(t, snap.VisibleCards, 1)
	assert.Equal(t, "fix crash", snap.VisibleCards[0].Title)

	e.SetFilterCriteria(domain.FilterCriteria{})
	snap = e.Snapshot()
	assert.Len(t, snap.VisibleCards, 2)
}
