package boardtest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/domain"
)

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("add_label", w) {
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
	var in api.LabelInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	label := domain.Label{ID: uuid.New(), Name: in.Name, Color: in.Color}
	card.Labels = append(card.Labels, label)
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.LabelAdded{EventHeader: domain.NewHeader(domain.EventLabelAdded, actor), CardID: card.ID, Label: label})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("remove_label", w) {
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
	labelID, err := uuid.Parse(chi.URLParam(r, "labelID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label id")
		return
	}

	s.mu.Lock()
	labels := card.Labels[:0]
	for _, l := range card.Labels {
		if l.ID != labelID {
			labels = append(labels, l)
		}
	}
	card.Labels = labels
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.LabelRemoved{EventHeader: domain.NewHeader(domain.EventLabelRemoved, actor), CardID: card.ID, LabelID: labelID})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("add_attachment", w) {
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
	var in api.AttachmentInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	att := domain.Attachment{ID: uuid.New(), URL: in.URL, MIME: in.MIME, Size: in.Size}
	card.Attachments = append(card.Attachments, att)
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.AttachmentAdded{EventHeader: domain.NewHeader(domain.EventAttachmentAdded, actor), CardID: card.ID, Attachment: att})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("remove_attachment", w) {
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
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	s.mu.Lock()
	atts := card.Attachments[:0]
	for _, a := range card.Attachments {
		if a.ID != attachmentID {
			atts = append(atts, a)
		}
	}
	card.Attachments = atts
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.AttachmentRemoved{EventHeader: domain.NewHeader(domain.EventAttachmentRemoved, actor), CardID: card.ID, AttachmentID: attachmentID})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddChecklistItem(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("add_checklist_item", w) {
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
	var in api.ChecklistItemInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	item := domain.ChecklistItem{ID: uuid.New(), Title: in.Title, Completed: in.Completed}
	card.Checklist = append(card.Checklist, item)
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ChecklistItemCreated{EventHeader: domain.NewHeader(domain.EventChecklistItemCreated, actor), CardID: card.ID, Item: item})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateChecklistItem(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("update_checklist_item", w) {
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
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var in api.ChecklistItemInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	var item domain.ChecklistItem
	found := false
	for i := range card.Checklist {
		if card.Checklist[i].ID == itemID {
			card.Checklist[i].Title = in.Title
			card.Checklist[i].Completed = in.Completed
			item = card.Checklist[i]
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "checklist item not found")
		return
	}
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ChecklistItemUpdated{EventHeader: domain.NewHeader(domain.EventChecklistItemUpdated, actor), CardID: card.ID, Item: item})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteChecklistItem(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("delete_checklist_item", w) {
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
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	s.mu.Lock()
	items := card.Checklist[:0]
	for _, it := range card.Checklist {
		if it.ID != itemID {
			items = append(items, it)
		}
	}
	card.Checklist = items
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ChecklistItemDeleted{EventHeader: domain.NewHeader(domain.EventChecklistItemDeleted, actor), CardID: card.ID, ItemID: itemID})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChecklistOrder(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("checklist_order", w) {
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
	var in api.ChecklistOrderInput
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	byID := make(map[uuid.UUID]domain.ChecklistItem, len(card.Checklist))
	for _, it := range card.Checklist {
		byID[it.ID] = it
	}
	items := make([]domain.ChecklistItem, 0, len(card.Checklist))
	seen := make(map[uuid.UUID]bool)
	for _, id := range in.OrderedIDs {
		if it, ok := byID[id]; ok {
			items = append(items, it)
			seen[id] = true
		}
	}
	for _, it := range card.Checklist {
		if !seen[it.ID] {
			items = append(items, it)
		}
	}
	card.Checklist = items
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.ChecklistReordered{EventHeader: domain.NewHeader(domain.EventChecklistReordered, actor), CardID: card.ID, OrderedIDs: in.OrderedIDs})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("add_comment", w) {
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
	var in api.CommentInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "text required")
		return
	}

	s.mu.Lock()
	now := time.Now()
	comment := domain.Comment{
		ID:        uuid.New(),
		Author:    domain.UserRef{ID: actor},
		Text:      in.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	card.Comments = append(card.Comments, comment)
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.CommentAdded{EventHeader: domain.NewHeader(domain.EventCommentAdded, actor), CardID: card.ID, Comment: comment})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("set_estimate", w) {
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
	var in api.EstimateInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Seconds < 0 {
		writeError(w, http.StatusUnprocessableEntity, "estimate must be non-negative")
		return
	}

	s.mu.Lock()
	card.EstimatedTime = in.Seconds
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.EstimateChanged{EventHeader: domain.NewHeader(domain.EventEstimateChanged, actor), CardID: card.ID, EstimatedSeconds: in.Seconds})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddTimeEntry(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("add_time_entry", w) {
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
	var in api.TimeEntryInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.DurationSeconds <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "duration must be positive")
		return
	}

	s.mu.Lock()
	entry := &domain.TimeEntry{
		ID:              uuid.New(),
		CardID:          card.ID,
		UserID:          actor,
		DurationSeconds: in.DurationSeconds,
		WorkDate:        in.WorkDate,
		Type:            domain.TimeEntryManual,
		Description:     in.Description,
	}
	s.entries[entry.ID] = entry
	card.TotalTimeSpent += in.DurationSeconds
	total := card.TotalTimeSpent
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.TimeEntryAdded{
		EventHeader:  domain.NewHeader(domain.EventTimeEntryAdded, actor),
		CardID:       card.ID,
		Entry:        *entry,
		TotalSeconds: total,
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("delete_time_entry", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	s.mu.Lock()
	entry, ok := s.entries[entryID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "time entry not found")
		return
	}
	card, ok := s.cards[entry.CardID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	delete(s.entries, entryID)
	card.TotalTimeSpent -= entry.DurationSeconds
	total := card.TotalTimeSpent
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.TimeEntryDeleted{
		EventHeader:  domain.NewHeader(domain.EventTimeEntryDeleted, actor),
		CardID:       card.ID,
		EntryID:      entryID,
		TotalSeconds: total,
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("start_timer", w) {
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
	if _, running := s.timers[actor]; running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "timer already running")
		return
	}
	state := timerState{cardID: card.ID, startedAt: time.Now()}
	s.timers[actor] = state
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.TimerState{CardID: state.cardID, StartedAt: state.startedAt})
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure("stop_timer", w) {
		return
	}
	actor, ok := s.userFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	s.mu.Lock()
	state, running := s.timers[actor]
	if !running {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no active timer")
		return
	}
	delete(s.timers, actor)

	card, ok := s.cards[state.cardID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "card not found")
		return
	}

	seconds := int64(time.Since(state.startedAt) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	entry := &domain.TimeEntry{
		ID:              uuid.New(),
		CardID:          card.ID,
		UserID:          actor,
		DurationSeconds: seconds,
		WorkDate:        state.startedAt,
		Type:            domain.TimeEntryTimer,
	}
	s.entries[entry.ID] = entry
	card.TotalTimeSpent += seconds
	total := card.TotalTimeSpent
	out := card.Clone()
	s.mu.Unlock()

	s.Broadcast(&domain.TimerStopped{
		EventHeader:  domain.NewHeader(domain.EventTimerStopped, actor),
		CardID:       card.ID,
		Entry:        *entry,
		TotalSeconds: total,
	})
	writeJSON(w, http.StatusOK, out)
}
