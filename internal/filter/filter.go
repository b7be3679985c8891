// Package filter computes the visible card subset for the current criteria.
// It is pure: no state, no clock of its own, no store access.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// Visible returns the cards matching the criteria. Categories AND together;
// selections inside a category OR together. Empty criteria short-circuit to
// the input slice unchanged, preserving order, so "no filter" is defined as
// identity rather than as running every predicate.
//
// selfID resolves the assigned-to-me selection; now anchors the due-date
// buckets.
func Visible(cards []*domain.Card, crit domain.FilterCriteria, selfID uuid.UUID, now time.Time) []*domain.Card {
	if crit.Empty() {
		return cards
	}

	out := make([]*domain.Card, 0, len(cards))
	for _, c := range cards {
		if matches(c, crit, selfID, now) {
			out = append(out, c)
		}
	}

	return out
}

func matches(c *domain.Card, crit domain.FilterCriteria, selfID uuid.UUID, now time.Time) bool {
	if crit.Keyword != "" && !matchKeyword(c, crit.Keyword) {
		return false
	}
	if memberFilterActive(crit) && !matchMembers(c, crit, selfID) {
		return false
	}
	if len(crit.DueBuckets) > 0 && !matchDue(c, crit.DueBuckets, now) {
		return false
	}
	if labelFilterActive(crit) && !matchLabels(c, crit) {
		return false
	}
	return true
}

// matchKeyword compares case-insensitively against title, description,
// display number, label names, and assignee names. A leading "#" is stripped
// so "#27" and "27" both reach card number 27. Number matching is by
// substring: "7" matches card 17. That false-positive is intentional,
// preserved behavior, not a bug.
func matchKeyword(c *domain.Card, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return true
	}

	if strings.Contains(strings.ToLower(c.Title), kw) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Description), kw) {
		return true
	}

	num := strings.TrimPrefix(kw, "#")
	if num != "" && strings.Contains(strconv.Itoa(c.Number), num) {
		return true
	}

	for _, l := range c.Labels {
		if strings.Contains(strings.ToLower(l.Name), kw) {
			return true
		}
	}
	for _, a := range c.Assignees {
		if strings.Contains(strings.ToLower(a.Name), kw) {
			return true
		}
	}

	return false
}

func memberFilterActive(crit domain.FilterCriteria) bool {
	return crit.NoMembers || crit.AssignedToMe || len(crit.Members) > 0
}

func matchMembers(c *domain.Card, crit domain.FilterCriteria, selfID uuid.UUID) bool {
	if crit.NoMembers && len(c.Assignees) == 0 {
		return true
	}
	if crit.AssignedToMe && c.AssignedTo(selfID) {
		return true
	}
	for _, id := range crit.Members {
		if c.AssignedTo(id) {
			return true
		}
	}
	return false
}

func matchDue(c *domain.Card, buckets []domain.DueBucket, now time.Time) bool {
	for _, b := range buckets {
		if inBucket(c.DueDate, b, now) {
			return true
		}
	}
	return false
}

func inBucket(due *time.Time, bucket domain.DueBucket, now time.Time) bool {
	if bucket == domain.DueNoDate {
		return due == nil
	}
	if due == nil {
		return false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, now.Location())

	switch bucket {
	case domain.DueOverdue:
		return day.Before(today)
	case domain.DueToday:
		return day.Equal(today)
	case domain.DueNext7Days:
		return !day.Before(today) && day.Before(today.AddDate(0, 0, 8))
	case domain.DueNext30Days:
		return !day.Before(today) && day.Before(today.AddDate(0, 0, 31))
	default:
		return false
	}
}

func labelFilterActive(crit domain.FilterCriteria) bool {
	return crit.NoLabels || len(crit.Labels) > 0
}

func matchLabels(c *domain.Card, crit domain.FilterCriteria) bool {
	if crit.NoLabels && len(c.Labels) == 0 {
		return true
	}
	for _, id := range crit.Labels {
		if c.HasLabel(id) {
			return true
		}
	}
	return false
}
