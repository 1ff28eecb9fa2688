package collaborator

import (
	"context"
	"time"

	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/view"
)

// MaxPageSize caps every problem fetch.
const MaxPageSize = 200

// Query is the server-side filter passed to the record store. Empty or "all"
// facet values mean no constraint; ActiveOnly nil means both.
type Query struct {
	Category   string
	Priority   string
	State      string
	ActiveOnly *bool
	DateRange  string
	Limit      int
}

// PageSize returns Limit clamped to (0, MaxPageSize].
func (q Query) PageSize() int {
	if q.Limit <= 0 || q.Limit > MaxPageSize {
		return MaxPageSize
	}
	return q.Limit
}

// UpdatedSince returns the earliest update time admitted by DateRange: the
// start of today, or 7 or 30 days before now. ok is false for "all" and
// unknown windows.
func (q Query) UpdatedSince(now time.Time) (since time.Time, ok bool) {
	switch q.DateRange {
	case view.RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case view.RangeWeek:
		return now.AddDate(0, 0, -7), true
	case view.RangeMonth:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// Ack is the record store's answer to a write.
type Ack struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
}

// RecordService is the remote record store the portal reads from and writes
// community feedback to. Problems come back newest-updated first.
type RecordService interface {
	FetchProblems(ctx context.Context, q Query) ([]model.ProblemRecord, error)
	SearchProblems(ctx context.Context, term string, q Query) ([]model.ProblemRecord, error)
	FetchRelatedSolutions(ctx context.Context, problemID string) ([]model.SolutionArticle, error)
	SubmitSolution(ctx context.Context, problemID, body string) (Ack, error)
	SubmitVote(ctx context.Context, solutionID string, helpful bool) (Ack, error)
	FetchChoiceList(ctx context.Context, entityKind, fieldName string) ([]model.Choice, error)
	FetchStats(ctx context.Context) (model.Stats, error)
}
