package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store"
)

// handleRemote merges one inbound event. The central anti-duplication rule
// lives here: an event whose acting user is this session's own user is an
// echo of a command already applied through the optimistic-then-confirmed
// path, and is discarded. The one exception is timer-stopped, which may
// describe another device of the same account.
func (e *Engine) handleRemote(ev domain.Event) {
	if ev.Actor() == e.userID {
		if ts, ok := ev.(*domain.TimerStopped); ok {
			e.handleOwnTimerStopped(ts)
			return
		}
		log.Debug().Str("kind", string(ev.Kind())).Msg("engine: echo suppressed")
		return
	}

	e.mu.Lock()
	switch ev := ev.(type) {
	case *domain.CardCreated:
		// Events may be delivered more than once; append is idempotent by id.
		e.store.AppendCard(ev.Card)
		e.store.ReindexLane(ev.Card.Status)

	case *domain.CardUpdated:
		e.replaceAcrossLanes(ev.Card)

	case *domain.StatusChanged:
		e.replaceAcrossLanes(ev.Card)

	case *domain.CardArchived:
		e.replaceAcrossLanes(ev.Card)
		if e.activeTimer == ev.Card.ID {
			e.activeTimer = uuid.Nil
		}
		e.mu.Unlock()
		e.notifyUpdate()
		// An open detail view of the card must close now that it is archived.
		e.notify(Notice{Kind: NoticeCardArchived, CardID: ev.Card.ID})
		return

	case *domain.CardRestored:
		// Merged like any other authoritative update rather than forcing a
		// full refetch; see the open-question decision in DESIGN.md.
		if ok := e.store.ReplaceCard(ev.Card.ID, ev.Card); !ok {
			e.store.AppendCard(ev.Card)
		}
		e.store.ReindexLane(ev.Card.Status)

	case *domain.CardDeleted:
		e.store.RemoveCard(ev.CardID)

	case *domain.ColumnCreated:
		e.store.AppendColumn(ev.Column)

	case *domain.ColumnUpdated:
		// ReplaceColumn cascades a regenerated status key to every card
		// still holding the old one.
		e.upsertColumn(ev.Column)

	case *domain.ColumnDeleted:
		e.store.RemoveColumn(ev.ColumnID)

	case *domain.ColumnsReordered:
		e.store.SetColumnPositions(ev.OrderedIDs)

	case *domain.ChecklistItemCreated:
		e.patchChecklist(ev.CardID, func(items []domain.ChecklistItem) []domain.ChecklistItem {
			for _, it := range items {
				if it.ID == ev.Item.ID {
					return items
				}
			}
			return append(items, ev.Item)
		})

	case *domain.ChecklistItemUpdated:
		e.patchChecklist(ev.CardID, func(items []domain.ChecklistItem) []domain.ChecklistItem {
			for i := range items {
				if items[i].ID == ev.Item.ID {
					items[i] = ev.Item
				}
			}
			return items
		})

	case *domain.ChecklistItemDeleted:
		e.patchChecklist(ev.CardID, func(items []domain.ChecklistItem) []domain.ChecklistItem {
			out := items[:0]
			for _, it := range items {
				if it.ID != ev.ItemID {
					out = append(out, it)
				}
			}
			return out
		})

	case *domain.ChecklistReordered:
		e.patchChecklist(ev.CardID, func(items []domain.ChecklistItem) []domain.ChecklistItem {
			return reorderChecklist(items, ev.OrderedIDs)
		})

	case *domain.LabelAdded:
		e.patchLabels(ev.CardID, func(labels []domain.Label) []domain.Label {
			for _, l := range labels {
				if l.ID == ev.Label.ID {
					return labels
				}
			}
			return append(labels, ev.Label)
		})

	case *domain.LabelUpdated:
		e.patchLabels(ev.CardID, func(labels []domain.Label) []domain.Label {
			for i := range labels {
				if labels[i].ID == ev.Label.ID {
					labels[i] = ev.Label
				}
			}
			return labels
		})

	case *domain.LabelRemoved:
		e.patchLabels(ev.CardID, func(labels []domain.Label) []domain.Label {
			out := labels[:0]
			for _, l := range labels {
				if l.ID != ev.LabelID {
					out = append(out, l)
				}
			}
			return out
		})

	case *domain.AttachmentAdded:
		if card, ok := e.store.Card(ev.CardID); ok {
			atts := append([]domain.Attachment(nil), card.Attachments...)
			exists := false
			for _, a := range atts {
				if a.ID == ev.Attachment.ID {
					exists = true
				}
			}
			if !exists {
				atts = append(atts, ev.Attachment)
				e.store.PatchCard(ev.CardID, store.CardPatch{Attachments: &atts})
			}
		}

	case *domain.AttachmentRemoved:
		if card, ok := e.store.Card(ev.CardID); ok {
			atts := make([]domain.Attachment, 0, len(card.Attachments))
			for _, a := range card.Attachments {
				if a.ID != ev.AttachmentID {
					atts = append(atts, a)
				}
			}
			e.store.PatchCard(ev.CardID, store.CardPatch{Attachments: &atts})
		}

	case *domain.CommentAdded:
		if card, ok := e.store.Card(ev.CardID); ok {
			comments := append([]domain.Comment(nil), card.Comments...)
			exists := false
			for _, c := range comments {
				if c.ID == ev.Comment.ID {
					exists = true
				}
			}
			if !exists {
				comments = append(comments, ev.Comment)
				e.store.PatchCard(ev.CardID, store.CardPatch{Comments: &comments})
			}
		}

	case *domain.TimerStopped:
		e.patchTotal(ev.CardID, ev.TotalSeconds)

	case *domain.TimeEntryAdded:
		e.patchTotal(ev.CardID, ev.TotalSeconds)

	case *domain.TimeEntryDeleted:
		e.patchTotal(ev.CardID, ev.TotalSeconds)

	case *domain.EstimateChanged:
		e.store.PatchCard(ev.CardID, store.CardPatch{EstimatedTime: store.Ptr(ev.EstimatedSeconds)})

	default:
		log.Warn().Str("kind", string(ev.Kind())).Msg("engine: unhandled event kind")
	}
	e.mu.Unlock()
	e.notifyUpdate()
}

// replaceAcrossLanes replaces a card with an authoritative entity and keeps
// positions dense in every lane the change touched. The broadcast payload is
// the server's full post-mutation entity, never a patch, so a whole-entity
// replace cannot drift. Caller holds mu.
func (e *Engine) replaceAcrossLanes(c *domain.Card) {
	prev, had := e.store.Card(c.ID)
	if ok := e.store.ReplaceCard(c.ID, c); !ok {
		e.store.AppendCard(c)
	}

	if had && prev.Status != c.Status {
		e.store.ReindexLane(prev.Status)
	}
	if !c.Archived {
		e.store.ReindexLane(c.Status)
	}
}

// patchChecklist applies a targeted mutation of one card's checklist only,
// leaving every other field untouched. Caller holds mu.
func (e *Engine) patchChecklist(cardID uuid.UUID, mutate func([]domain.ChecklistItem) []domain.ChecklistItem) {
	card, ok := e.store.Card(cardID)
	if !ok {
		log.Warn().Stringer("card_id", cardID).Msg("engine: checklist event for unknown card")
		return
	}
	items := mutate(append([]domain.ChecklistItem(nil), card.Checklist...))
	e.store.PatchCard(cardID, store.CardPatch{Checklist: &items})
}

// patchLabels applies a targeted mutation of one card's labels only. Caller
// holds mu.
func (e *Engine) patchLabels(cardID uuid.UUID, mutate func([]domain.Label) []domain.Label) {
	card, ok := e.store.Card(cardID)
	if !ok {
		log.Warn().Stringer("card_id", cardID).Msg("engine: label event for unknown card")
		return
	}
	labels := mutate(append([]domain.Label(nil), card.Labels...))
	e.store.PatchCard(cardID, store.CardPatch{Labels: &labels})
}

// patchTotal sets a card's authoritative recomputed time total. Caller
// holds mu.
func (e *Engine) patchTotal(cardID uuid.UUID, totalSeconds int64) {
	e.store.PatchCard(cardID, store.CardPatch{TotalTimeSpent: store.Ptr(totalSeconds)})
}
