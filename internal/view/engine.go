package view

import (
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// Apply returns the records visible under f, in input order. The input slice
// is never modified.
func Apply(records []model.ProblemRecord, f FilterState, now time.Time) []model.ProblemRecord {
	out := make([]model.ProblemRecord, 0, len(records))
	if f.Searching() {
		term := strings.ToLower(strings.TrimSpace(f.SearchTerm))
		for _, p := range records {
			if MatchesSearch(p, term) {
				out = append(out, p)
			}
		}
		return out
	}
	for _, p := range records {
		if MatchesFacets(p, f, now) {
			out = append(out, p)
		}
	}
	return out
}

// MatchesSearch reports whether the lowercase term occurs in the title,
// description or number.
func MatchesSearch(p model.ProblemRecord, term string) bool {
	for _, field := range []model.Field{p.Title, p.Description, p.Number} {
		if strings.Contains(strings.ToLower(field.Display()), term) {
			return true
		}
	}
	return false
}

// MatchesFacets reports whether p satisfies every facet of f.
func MatchesFacets(p model.ProblemRecord, f FilterState, now time.Time) bool {
	return matchValue(p.Category, f.Facet(FacetCategory)) &&
		matchValue(p.Priority, f.Facet(FacetPriority)) &&
		matchValue(p.State, f.Facet(FacetState)) &&
		matchActive(p, f.Facet(FacetActive)) &&
		matchRange(p, f.Facet(FacetDateRange), now)
}

func matchValue(field model.Field, want string) bool {
	if want == All {
		return true
	}
	return field.Value() == want
}

func matchActive(p model.ProblemRecord, want string) bool {
	if want == All {
		return true
	}
	return strconv.FormatBool(p.IsActive()) == want
}

// matchRange fails records without a parsable update time.
func matchRange(p model.ProblemRecord, window string, now time.Time) bool {
	if window == All {
		return true
	}
	limit, ok := rangeDays[window]
	if !ok {
		return false
	}
	updated, ok := p.Updated()
	if !ok {
		return false
	}
	return DaysSince(updated, now) <= limit
}

// DaysSince is the fractional number of days from t to now.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
