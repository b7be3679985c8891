package boardtest

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
)

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("get_board", w) {
		return
	}

	s.mu.Lock()
	cards := make([]*domain.Card, 0, len(s.cards))
	for _, c := range s.cards {
		cards = append(cards, c.Clone())
	}
	columns := make([]*domain.Column, 0, len(s.columns))
	for _, c := range s.columns {
		columns = append(columns, c.Clone())
	}
	s.mu.Unlock()

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Status != cards[j].Status {
			return cards[i].Status < cards[j].Status
		}
		return cards[i].Position < cards[j].Position
	})
	sort.Slice(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })

	writeJSON(w, http.StatusOK, api.BoardState{Cards: cards, Columns: columns})
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("create_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	var in api.CreateCardInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title required")
		return
	}

	s.mu.Lock()
	now := time.Now()
	card := &domain.Card{
		ID:          uuid.New(),
		Number:      s.nextNumber,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Position:    len(s.laneLocked(in.Status)),
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextNumber++
	s.cards[card.ID] = card
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.CardCreated{EventHeader: domain.NewHeader(domain.EventCardCreated, actor), Card: out})
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) cardOr404(w http.ResponseWriter, r *http.Request) (*domain.Card, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return nil, false
	}

	s.mu.Lock()
	card, ok := s.cards[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return nil, false
	}
	return card, true
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("update_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	card, ok := s.cardOr404(w, r)
	if !ok {
		return
	}
	var in api.CardUpdate
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	if in.Title != nil {
		card.Title = *in.Title
	}
	if in.Description != nil {
		card.Description = *in.Description
	}
	if in.Priority != nil {
		card.Priority = *in.Priority
	}
	if in.ClearDueDate {
		card.DueDate = nil
	} else if in.DueDate != nil {
		card.DueDate = in.DueDate
	}
	if in.Assignees != nil {
		card.Assignees = append([]domain.UserRef(nil), *in.Assignees...)
	}
	card.UpdatedAt = time.Now()
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.CardUpdated{EventHeader: domain.NewHeader(domain.EventCardUpdated, actor), Card: out})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("move_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	card, ok := s.cardOr404(w, r)
	if !ok {
		return
	}
	var in api.MoveCardInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	source := card.Status
	lane := s.laneLocked(in.Status)
	limit := len(lane)
	if source == in.Status {
		limit--
	}
	if in.Position < 0 {
		in.Position = 0
	}
	if in.Position > limit {
		in.Position = limit
	}

	// Shift occupants at and after the insertion point, then drop the card
	// in and compact both lanes.
	card.Status = in.Status
	card.Position = in.Position
	for _, c := range lane {
		if c.ID != card.ID && c.Position >= in.Position {
			c.Position++
		}
	}
	s.reindexLaneLocked(source)
	if source != in.Status {
		s.reindexLaneLocked(in.Status)
	}
	card.UpdatedAt = time.Now()
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.StatusChanged{EventHeader: domain.NewHeader(domain.EventStatusChanged, actor), Card: out})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleArchiveCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("archive_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	card, ok := s.cardOr404(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	source := card.Status
	s.prevStatus[card.ID] = source
	card.Archived = true
	card.Status = domain.StatusArchive
	card.UpdatedAt = time.Now()
	s.reindexLaneLocked(source)
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.CardArchived{EventHeader: domain.NewHeader(domain.EventCardArchived, actor), Card: out})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRestoreCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("restore_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	card, ok := s.cardOr404(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	status, remembered := s.prevStatus[card.ID]
	if !remembered {
		status = s.firstStatusLocked()
	}
	delete(s.prevStatus, card.ID)
	card.Archived = false
	card.Status = status
	card.Position = len(s.laneLocked(status))
	card.UpdatedAt = time.Now()
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.CardRestored{EventHeader: domain.NewHeader(domain.EventCardRestored, actor), Card: out})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) firstStatusLocked() string {
	cols := make([]*domain.Column, 0, len(s.columns))
	for _, c := range s.columns {
		if !c.IsArchive() {
			cols = append(cols, c)
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	if len(cols) == 0 {
		return ""
	}
	return cols[0].StatusKey
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("delete_card", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	card, ok := s.cardOr404(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	if !card.Archived {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "card must be archived first")
		return
	}
	delete(s.cards, card.ID)
	s.mu.Unlock()

	s.Broadcast(&domain.CardDeleted{EventHeader: domain.NewHeader(domain.EventCardDeleted, actor), CardID: card.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("create_column", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	var in api.CreateColumnInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name required")
		return
	}

	s.mu.Lock()
	col := &domain.Column{
		ID:        uuid.New(),
		Name:      in.Name,
		StatusKey: statusKeyFor(in.Name),
		Color:     in.Color,
		Position:  s.columnCountLocked(),
	}
	s.columns[col.ID] = col
	out := col.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ColumnCreated{EventHeader: domain.NewHeader(domain.EventColumnCreated, actor), Column: out})
	writeJSON(w, http.StatusCreated, out)
}

// statusKeyFor regenerates a status key from a column name. A fresh suffix
// makes renames produce a new key every time, as the cascade contract
// requires.
func statusKeyFor(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	return slug + "_" + uuid.NewString()[:8]
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("update_column", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "columnID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid column id")
		return
	}
	var in api.ColumnUpdate
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	col, ok := s.columns[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "column not found")
		return
	}
	if col.IsArchive() {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "archive column cannot be modified")
		return
	}

	oldKey := col.StatusKey
	if in.Name != nil && *in.Name != col.Name {
		col.Name = *in.Name
		col.StatusKey = statusKeyFor(*in.Name)
		for _, c := range s.cards {
			if c.Status == oldKey {
				c.Status = col.StatusKey
			}
		}
	}
	if in.Color != nil {
		col.Color = *in.Color
	}
	out := col.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ColumnUpdated{
		EventHeader:  domain.NewHeader(domain.EventColumnUpdated, actor),
		Column:       out,
		OldStatusKey: oldKey,
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("delete_column", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "columnID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid column id")
		return
	}

	s.mu.Lock()
	col, ok := s.columns[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "column not found")
		return
	}
	if col.IsArchive() || col.IsDefault {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "column cannot be deleted")
		return
	}

	// Orphaned cards land at the end of the first lane.
	dest := s.firstStatusLocked()
	for _, c := range s.cards {
		if c.Status == col.StatusKey {
			c.Status = dest
			c.Position = len(s.laneLocked(dest)) - 1
		}
	}
	delete(s.columns, id)
	s.reindexLaneLocked(dest)
	s.mu.Unlock()

	s.Broadcast(&domain.ColumnDeleted{EventHeader: domain.NewHeader(domain.EventColumnDeleted, actor), ColumnID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleColumnOrder(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("column_order", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	var in api.ColumnOrderInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	pos := 0
	for _, id := range in.OrderedIDs {
		col, ok := s.columns[id]
		if !ok || col.IsArchive() {
			continue
		}
		col.Position = pos
		pos++
	}
	out := make([]*domain.Column, 0, len(s.columns))
	for _, c := range s.columns {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	s.Broadcast(&domain.ColumnsReordered{EventHeader: domain.NewHeader(domain.EventColumnsReordered, actor), OrderedIDs: in.OrderedIDs})
	writeJSON(w, http.StatusOK, out)
}
