package stats

import (
	"time"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// UnknownKey buckets records whose group-by field is empty.
const UnknownKey = "Unknown"

// Summarize counts every record once in Total, once in Active or Inactive and
// once in each group-by map.
func Summarize(records []model.ProblemRecord) model.Stats {
	s := model.NewStats()
	for _, p := range records {
		s.Total++
		if p.IsActive() {
			s.Active++
		} else {
			s.Inactive++
		}
		s.ByPriority[bucket(p.Priority)]++
		s.ByState[bucket(p.State)]++
		s.ByCategory[bucket(p.Category)]++
	}
	return s
}

func bucket(f model.Field) string {
	if v := f.Value(); v != "" {
		return v
	}
	return UnknownKey
}

// Activity is the portal's weekly activity summary.
type Activity struct {
	NewProblems      int `json:"new_problems"`
	ResolvedProblems int `json:"resolved_problems"`
	TotalActive      int `json:"total_active"`
}

const activityWindow = 7 * 24 * time.Hour

// SummarizeActivity counts problems created in the last seven days, problems
// resolved in the last seven days and problems not yet closed.
func SummarizeActivity(records []model.ProblemRecord, now time.Time) Activity {
	var a Activity
	since := now.Add(-activityWindow)
	for _, p := range records {
		if created, ok := p.CreatedAt.Time(); ok && !created.Before(since) {
			a.NewProblems++
		}
		state := p.State.Value()
		if state == model.StateResolved {
			if updated, ok := p.Updated(); ok && !updated.Before(since) {
				a.ResolvedProblems++
			}
		}
		if state != model.StateClosed {
			a.TotalActive++
		}
	}
	return a
}
