// Package boardtest provides an in-process board server for tests: the
// persistence API over a chi router plus the per-board websocket room that
// broadcasts events to every connected session. State lives in maps; there is
// no storage behind it.
package boardtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

const tokenSecret = "boardtest-secret"

// Token mints a bearer token for the given user, valid for an hour.
func Token(userID uuid.UUID) string {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tokenSecret))
	if err != nil {
		panic(err)
	}
	return tok
}

// ExpiredToken mints a token whose exp claim is already in the past.
func ExpiredToken(userID uuid.UUID) string {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tokenSecret))
	if err != nil {
		panic(err)
	}
	return tok
}

type Server struct {
	BoardID uuid.UUID

	mu         sync.Mutex
	cards      map[uuid.UUID]*domain.Card
	columns    map[uuid.UUID]*domain.Column
	entries    map[uuid.UUID]*domain.TimeEntry
	prevStatus map[uuid.UUID]string // pre-archive lane, for restore
	timers     map[uuid.UUID]timerState
	nextNumber int
	failures   map[string]failure
	subs       map[chan []byte]struct{}

	httpSrv *httptest.Server
}

type timerState struct {
	cardID    uuid.UUID
	startedAt time.Time
}

type failure struct {
	count  int
	status int
}

func NewServer() *Server {
	s := &Server{
		BoardID:    uuid.New(),
		cards:      make(map[uuid.UUID]*domain.Card),
		columns:    make(map[uuid.UUID]*domain.Column),
		entries:    make(map[uuid.UUID]*domain.TimeEntry),
		prevStatus: make(map[uuid.UUID]string),
		timers:     make(map[uuid.UUID]timerState),
		nextNumber: 1,
		failures:   make(map[string]failure),
		subs:       make(map[chan []byte]struct{}),
	}

	// Every board carries the archive singleton.
	archive := &domain.Column{ID: uuid.New(), Name: "Archive", StatusKey: domain.StatusArchive, Position: 1 << 30}
	s.columns[archive.ID] = archive

	r := chi.NewRouter()
	r.Get("/api/boards/{boardID}", s.handleGetBoard)
	r.Post("/api/boards/{boardID}/cards", s.handleCreateCard)
	r.Post("/api/boards/{boardID}/columns", s.handleCreateColumn)
	r.Put("/api/boards/{boardID}/column-order", s.handleColumnOrder)
	r.Patch("/api/cards/{cardID}", s.handleUpdateCard)
	r.Post("/api/cards/{cardID}/move", s.handleMoveCard)
	r.Post("/api/cards/{cardID}/archive", s.handleArchiveCard)
	r.Post("/api/cards/{cardID}/restore", s.handleRestoreCard)
	r.Delete("/api/cards/{cardID}", s.handleDeleteCard)
	r.Patch("/api/columns/{columnID}", s.handleUpdateColumn)
	r.Delete("/api/columns/{columnID}", s.handleDeleteColumn)
	r.Post("/api/cards/{cardID}/labels", s.handleAddLabel)
	r.Delete("/api/cards/{cardID}/labels/{labelID}", s.handleRemoveLabel)
	r.Post("/api/cards/{cardID}/attachments", s.handleAddAttachment)
	r.Delete("/api/cards/{cardID}/attachments/{attachmentID}", s.handleRemoveAttachment)
	r.Post("/api/cards/{cardID}/checklist", s.handleAddChecklistItem)
	r.Patch("/api/cards/{cardID}/checklist/{itemID}", s.handleUpdateChecklistItem)
	r.Delete("/api/cards/{cardID}/checklist/{itemID}", s.handleDeleteChecklistItem)
	r.Put("/api/cards/{cardID}/checklist-order", s.handleChecklistOrder)
	r.Post("/api/cards/{cardID}/comments", s.handleAddComment)
	r.Put("/api/cards/{cardID}/estimate", s.handleEstimate)
	r.Post("/api/cards/{cardID}/time-entries", s.handleAddTimeEntry)
	r.Delete("/api/time-entries/{entryID}", s.handleDeleteTimeEntry)
	r.Post("/api/cards/{cardID}/timer/start", s.handleStartTimer)
	r.Post("/api/timer/stop", s.handleStopTimer)
	r.Get("/ws/boards/{boardID}", s.handleWS)

	s.httpSrv = httptest.NewServer(r)

	return s
}

func (s *Server) URL() string { return s.httpSrv.URL }

func (s *Server) Close() {
	s.httpSrv.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// Subscribers reports how many websocket sessions are connected. Tests wait
// on it before broadcasting so no session misses an event.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// FailNext makes the next n calls of the named operation fail with the given
// HTTP status. Operation names match the handler, e.g. "move_card".
func (s *Server) FailNext(op string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{count: n, status: status}
}

func (s *Server) takeFailure(op string, w http.ResponseWriter) bool {
	s.mu.Lock()
	f := s.failures[op]
	if f.count > 0 {
		f.count--
		s.failures[op] = f
		s.mu.Unlock()
		writeError(w, f.status, "injected failure")
		return true
	}
	s.mu.Unlock()
	return false
}

// SeedColumn registers a column directly, bypassing the API.
func (s *Server) SeedColumn(name, statusKey string, isDefault bool) *domain.Column {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := &domain.Column{
		ID:        uuid.New(),
		Name:      name,
		StatusKey: statusKey,
		Position:  s.columnCountLocked(),
		IsDefault: isDefault,
	}
	s.columns[col.ID] = col
	return col.Clone()
}

// SeedCard registers a card directly, appended to its lane.
func (s *Server) SeedCard(title, status string) *domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	card := &domain.Card{
		ID:       uuid.New(),
		Number:   s.nextNumber,
		Title:    title,
		Status:   status,
		Position: len(s.laneLocked(status)),
		Priority: domain.PriorityMedium,
	}
	s.nextNumber++
	s.cards[card.ID] = card
	return card.Clone()
}

func (s *Server) columnCountLocked() int {
	n := 0
	for _, c := range s.columns {
		if !c.IsArchive() {
			n++
		}
	}
	return n
}

func (s *Server) laneLocked(status string) []*domain.Card {
	out := make([]*domain.Card, 0)
	for _, c := range s.cards {
		if c.Status == status && !c.Archived {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *Server) reindexLaneLocked(status string) {
	for i, c := range s.laneLocked(status) {
		c.Position = i
	}
}

// Broadcast pushes an event to every connected websocket session.
func (s *Server) Broadcast(ev domain.Event) {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		panic(fmt.Sprintf("boardtest: encode event: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

func (s *Server) userFrom(r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return uuid.Nil, false
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser().ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(tokenSecret), nil
	})
	if err != nil {
		return uuid.Nil, false
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ch := make(chan []byte, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "server closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return false
	}
	return true
}
