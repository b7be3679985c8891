// Package store holds the canonical client-side snapshot of board entities.
// It is the single source of truth the published board snapshot renders from;
// all mutation goes through Append/Remove/Replace/Patch so every path is
// auditable.
package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// Store is the in-memory entity store. Reads hand out clones; callers never
// see shared pointers. Patch/Replace on an unknown id is a logged no-op, not
// an error: it signals an inconsistency the caller recovers from by resync.
type Store struct {
	mu      sync.RWMutex
	cards   map[uuid.UUID]*domain.Card
	columns map[uuid.UUID]*domain.Column
}

func New() *Store {
	return &Store{
		cards:   make(map[uuid.UUID]*domain.Card),
		columns: make(map[uuid.UUID]*domain.Column),
	}
}

// Reset replaces the whole store contents with an authoritative board fetch.
func (s *Store) Reset(cards []*domain.Card, columns []*domain.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = make(map[uuid.UUID]*domain.Card, len(cards))
	for _, c := range cards {
		s.cards[c.ID] = c.Clone()
	}
	s.columns = make(map[uuid.UUID]*domain.Column, len(columns))
	for _, col := range columns {
		s.columns[col.ID] = col.Clone()
	}
}

// Card returns a clone of the card with the given id.
func (s *Store) Card(id uuid.UUID) (*domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Column returns a clone of the column with the given id.
func (s *Store) Column(id uuid.UUID) (*domain.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.columns[id]
	if !ok {
		return nil, false
	}
	return col.Clone(), true
}

// ColumnByStatus returns a clone of the column owning the given status key.
func (s *Store) ColumnByStatus(status string) (*domain.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, col := range s.columns {
		if col.StatusKey == status {
			return col.Clone(), true
		}
	}
	return nil, false
}

// Cards returns clones of all cards ordered by (status, position, number).
func (s *Store) Cards() []*domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Number < out[j].Number
	})

	return out
}

// Columns returns clones of all columns in render order: by position, with
// the archive column forced last.
func (s *Store) Columns() []*domain.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Column, 0, len(s.columns))
	for _, col := range s.columns {
		out = append(out, col.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsArchive() != out[j].IsArchive() {
			return out[j].IsArchive()
		}
		return out[i].Position < out[j].Position
	})

	return out
}

// AppendCard inserts a card. Inserting an id that is already present is a
// no-op so redelivered created-events stay idempotent.
func (s *Store) AppendCard(c *domain.Card) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[c.ID]; ok {
		log.Debug().Stringer("card_id", c.ID).Msg("store: append skipped, id already present")
		return false
	}
	s.cards[c.ID] = c.Clone()

	return true
}

// RemoveCard deletes a card by id.
func (s *Store) RemoveCard(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return false
	}
	delete(s.cards, id)

	return true
}

// ReplaceCard overwrites a card wholesale with an authoritative entity.
func (s *Store) ReplaceCard(id uuid.UUID, c *domain.Card) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		log.Warn().Stringer("card_id", id).Msg("store: replace on unknown card")
		return false
	}
	delete(s.cards, id)
	s.cards[c.ID] = c.Clone()

	return true
}

// PatchCard shallow-merges the set fields of p into the card.
func (s *Store) PatchCard(id uuid.UUID, p CardPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		log.Warn().Stringer("card_id", id).Msg("store: patch on unknown card")
		return false
	}
	p.apply(c)

	return true
}

// AppendColumn inserts a column, idempotent by id.
func (s *Store) AppendColumn(col *domain.Column) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[col.ID]; ok {
		return false
	}
	s.columns[col.ID] = col.Clone()

	return true
}

// RemoveColumn deletes a column by id.
func (s *Store) RemoveColumn(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[id]; !ok {
		return false
	}
	delete(s.columns, id)

	return true
}

// ReplaceColumn overwrites a column wholesale. If the status key changed, the
// new key cascades to every card still referencing the old one.
func (s *Store) ReplaceColumn(id uuid.UUID, col *domain.Column) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.columns[id]
	if !ok {
		log.Warn().Stringer("column_id", id).Msg("store: replace on unknown column")
		return false
	}

	if old.StatusKey != col.StatusKey {
		for _, c := range s.cards {
			if c.Status == old.StatusKey {
				c.Status = col.StatusKey
			}
		}
	}

	delete(s.columns, id)
	s.columns[col.ID] = col.Clone()

	return true
}

// SetColumnPositions applies an authoritative column order. Unknown ids are
// skipped; the archive column keeps its forced-last render slot regardless.
func (s *Store) SetColumnPositions(orderedIDs []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := 0
	for _, id := range orderedIDs {
		col, ok := s.columns[id]
		if !ok || col.IsArchive() {
			continue
		}
		col.Position = pos
		pos++
	}
}

// Lane returns clones of the non-archived cards with the given status,
// ordered by position.
func (s *Store) Lane(status string) []*domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.laneLocked(status)
}

func (s *Store) laneLocked(status string) []*domain.Card {
	out := make([]*domain.Card, 0)
	for _, c := range s.cards {
		if c.Status == status && !c.Archived {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Number < out[j].Number
	})

	return out
}

// ReindexLane rewrites positions in the given lane to a dense 0..n-1 run,
// preserving the current order.
func (s *Store) ReindexLane(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.laneLocked(status)
	for i, c := range ordered {
		s.cards[c.ID].Position = i
	}
}

// ReorderWithinLane moves the card at from to to within one lane and
// reindexes. Indices outside [0, len) are clamped.
func (s *Store) ReorderWithinLane(status string, from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.laneLocked(status)
	n := len(ordered)
	if n == 0 {
		return false
	}
	from = clamp(from, 0, n-1)
	to = clamp(to, 0, n-1)

	moved := ordered[from]
	ordered = append(ordered[:from], ordered[from+1:]...)
	ordered = append(ordered[:to], append([]*domain.Card{moved}, ordered[to:]...)...)

	for i, c := range ordered {
		s.cards[c.ID].Position = i
	}

	return true
}

// LaneSnapshot captures the ordered lane contents for drag rollback.
func (s *Store) LaneSnapshot(status string) []*domain.Card {
	return s.Lane(status)
}

// RestoreLane puts every card of a snapshot back exactly as captured. Cards
// that vanished from the store since the capture are re-appended.
func (s *Store) RestoreLane(snapshot []*domain.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range snapshot {
		s.cards[c.ID] = c.Clone()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
