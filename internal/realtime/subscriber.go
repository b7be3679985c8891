// Package realtime binds to the board's real-time transport. It joins the
// per-board channel room on Run, normalizes inbound payloads into the event
// union, and forwards them for reconciliation. After a dropped connection it
// reconnects and signals a resync: the gap in the stream cannot be trusted,
// so the engine refetches full board state instead.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

type Subscriber struct {
	baseURL string
	token   string
	boardID uuid.UUID

	reconnectMin time.Duration
	reconnectMax time.Duration

	events  chan domain.Event
	resyncs chan struct{}
}

// New creates a subscriber for one board room. baseURL is the http(s) server
// address; the websocket scheme is derived from it.
func New(baseURL, token string, boardID uuid.UUID) *Subscriber {
	return &Subscriber{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		boardID:      boardID,
		reconnectMin: time.Second,
		reconnectMax: 30 * time.Second,
		events:       make(chan domain.Event, 64),
		resyncs:      make(chan struct{}, 1),
	}
}

// SetBackoff overrides the reconnect backoff bounds.
func (s *Subscriber) SetBackoff(minDelay, maxDelay time.Duration) {
	s.reconnectMin = minDelay
	s.reconnectMax = maxDelay
}

// Events delivers decoded remote events in arrival order.
func (s *Subscriber) Events() <-chan domain.Event { return s.events }

// Resyncs fires after every reconnect. The receiver must refetch full board
// state rather than trust a gap-filled event stream.
func (s *Subscriber) Resyncs() <-chan struct{} { return s.resyncs }

// Run dials the board room and pumps events until ctx is canceled. Both
// channels are closed on return; canceling ctx is how a board view leaves its
// room on exit.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.events)
	defer close(s.resyncs)

	delay := s.reconnectMin
	first := true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.session(ctx, first)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			// Clean session: reset backoff.
			delay = s.reconnectMin
		} else {
			log.Warn().Err(err).Stringer("board_id", s.boardID).Msg("realtime: connection lost, reconnecting")
		}
		first = false

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, s.reconnectMax)
	}
}

func (s *Subscriber) session(ctx context.Context, first bool) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	if !first {
		select {
		case s.resyncs <- struct{}{}:
		default:
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("realtime.Subscriber: read: %w", err)
		}

		ev, err := domain.DecodeEvent(data)
		if err != nil {
			// An unknown kind is a server/client version skew, not fatal.
			log.Warn().Err(err).Msg("realtime: dropping undecodable event")
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	url := s.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	url += "/ws/boards/" + s.boardID.String()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("realtime.Subscriber: dial %s: %w", url, err)
	}
	conn.SetReadLimit(1 << 20)

	return conn, nil
}
