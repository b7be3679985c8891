package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/boardtest"
	"github.com/gosuda/boardsync/internal/domain"
)

func TestSubscriber_DeliversBroadcastEvents(t *testing.T) {
	t.Parallel()

	srv := boardtest.NewServer()
	defer srv.Close()

	userID := uuid.New()
	sub := New(srv.URL(), boardtest.Token(userID), srv.BoardID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	// Broadcast after the session is up; retry until the room sees us.
	card := &domain.Card{ID: uuid.New(), Title: "pushed", Status: "todo"}
	ev := &domain.CardCreated{
		EventHeader: domain.NewHeader(domain.EventCardCreated, uuid.New()),
		Card:        card,
	}

	var got domain.Event
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

waiting:
	for {
		select {
		case <-ticker.C:
			srv.Broadcast(ev)
		case got = <-sub.Events():
			break waiting
		case <-deadline:
			t.Fatal("no event arrived")
		}
	}

	created, ok := got.(*domain.CardCreated)
	require.True(t, ok)
	assert.Equal(t, card.ID, created.Card.ID)
	assert.Equal(t, "pushed", created.Card.Title)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscriber_ChannelsCloseOnCancel(t *testing.T) {
	t.Parallel()

	srv := boardtest.NewServer()
	defer srv.Close()

	sub := New(srv.URL(), boardtest.Token(uuid.New()), srv.BoardID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	_, eventsOpen := <-sub.Events()
	assert.False(t, eventsOpen)
	_, resyncsOpen := <-sub.Resyncs()
	assert.False(t, resyncsOpen)
}

func TestSubscriber_DialFailureKeepsRetrying(t *testing.T) {
	t.Parallel()

	// Nothing listens on this address; Run must keep retrying rather than
	// return, until the context gives up.
	sub := New("http://127.0.0.1:1", "token", uuid.New())
	sub.SetBackoff(10*time.Millisecond, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := sub.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
