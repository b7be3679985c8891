package domain

import "github.com/google/uuid"

// DueBucket is a relative due-date window a filter can select.
type DueBucket string

const (
	DueOverdue    DueBucket = "overdue"
	DueToday      DueBucket = "today"
	DueNext7Days  DueBucket = "next_7_days"
	DueNext30Days DueBucket = "next_30_days"
	DueNoDate     DueBucket = "no_date"
)

// FilterCriteria narrows the visible card set. Categories compose with AND;
// selections within one category compose with OR.
type FilterCriteria struct {
	Keyword      string
	NoMembers    bool
	AssignedToMe bool
	Members      []uuid.UUID
	DueBuckets   []DueBucket
	NoLabels     bool
	Labels       []uuid.UUID
}

// Empty reports whether no criterion is active. An empty criteria set means
// "show all" and filtering short-circuits without running predicates.
func (f FilterCriteria) Empty() bool {
	return f.Keyword == "" &&
		!f.NoMembers && !f.AssignedToMe && len(f.Members) == 0 &&
		len(f.DueBuckets) == 0 &&
		!f.NoLabels && len(f.Labels) == 0
}
