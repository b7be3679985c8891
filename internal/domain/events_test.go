package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_RoundTripsConcreteTypes(t *testing.T) {
	t.Parallel()

	actor := uuid.New()
	cardID := uuid.New()

	tests := []struct {
		name string
		ev   Event
	}{
		{
			name: "card created",
			ev: &CardCreated{
				EventHeader: NewHeader(EventCardCreated, actor),
				Card:        &Card{ID: cardID, Title: "hello", Status: "todo"},
			},
		},
		{
			name: "card deleted",
			ev: &CardDeleted{
				EventHeader: NewHeader(EventCardDeleted, actor),
				CardID:      cardID,
			},
		},
		{
			name: "column updated carries old status key",
			ev: &ColumnUpdated{
				EventHeader:  NewHeader(EventColumnUpdated, actor),
				Column:       &Column{ID: uuid.New(), Name: "Backlog", StatusKey: "backlog_a1b2"},
				OldStatusKey: "todo_c3d4",
			},
		},
		{
			name: "timer stopped carries recomputed total",
			ev: &TimerStopped{
				EventHeader:  NewHeader(EventTimerStopped, actor),
				CardID:       cardID,
				Entry:        TimeEntry{ID: uuid.New(), CardID: cardID, DurationSeconds: 600, Type: TimeEntryTimer},
				TotalSeconds: 5400,
			},
		},
		{
			name: "checklist reordered",
			ev: &ChecklistReordered{
				EventHeader: NewHeader(EventChecklistReordered, actor),
				CardID:      cardID,
				OrderedIDs:  []uuid.UUID{uuid.New(), uuid.New()},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := EncodeEvent(tc.ev)
			require.NoError(t, err)

			decoded, err := DecodeEvent(data)
			require.NoError(t, err)

			assert.Equal(t, tc.ev.Kind(), decoded.Kind())
			assert.Equal(t, actor, decoded.Actor())
			assert.Equal(t, tc.ev, decoded)
		})
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeEvent([]byte(`{"type":"board_exploded","acting_user_id":"` + uuid.New().String() + `"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "board_exploded")
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeEvent([]byte(`{not json`))
		assert.Error(t, err)
	})
}

func TestTimeEntry_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   TimeEntry
		wantErr bool
	}{
		{name: "valid manual entry", entry: TimeEntry{DurationSeconds: 60, Type: TimeEntryManual}},
		{name: "valid timer entry", entry: TimeEntry{DurationSeconds: 1, Type: TimeEntryTimer}},
		{name: "zero duration", entry: TimeEntry{DurationSeconds: 0, Type: TimeEntryManual}, wantErr: true},
		{name: "negative duration", entry: TimeEntry{DurationSeconds: -5, Type: TimeEntryManual}, wantErr: true},
		{name: "unknown type", entry: TimeEntry{DurationSeconds: 60, Type: "guess"}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.entry.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCard_Clone(t *testing.T) {
	t.Parallel()

	orig := &Card{
		ID:     uuid.New(),
		Title:  "original",
		Labels: []Label{{ID: uuid.New(), Name: "bug"}},
	}

	cp := orig.Clone()
	cp.Title = "mutated"
	cp.Labels[0].Name = "mutated"

	assert.Equal(t, "original", orig.Title)
	assert.Equal(t, "bug", orig.Labels[0].Name)
}
