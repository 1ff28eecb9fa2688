package view

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func problem(id, title, category, priority, state string, active interface{}, updated time.Time) model.ProblemRecord {
	p := model.ProblemRecord{
		ID:          model.Scalar(id),
		Number:      model.Pair("PRB"+id, "PRB"+id),
		Title:       model.Pair(title, title),
		Description: model.Pair(title+" details", title+" details"),
		Category:    model.Pair(category, category),
		Priority:    model.Pair(priority+" - label", priority),
		State:       model.Pair("label", state),
		Active:      model.Scalar(active),
	}
	if !updated.IsZero() {
		ts := updated.Format("2006-01-02 15:04:05")
		p.UpdatedAt = model.Pair(ts, ts)
	}
	return p
}

func fixture() []model.ProblemRecord {
	return []model.ProblemRecord{
		problem("1", "Login fails", "software", "1", "101", "true", now.Add(-2*time.Hour)),
		problem("2", "Switch outage", "network", "2", "104", true, now.Add(-3*24*time.Hour)),
		problem("3", "Disk full", "hardware", "3", "106", "false", now.Add(-20*24*time.Hour)),
		problem("4", "Slow queries", "database", "1", "107", false, now.Add(-60*24*time.Hour)),
		problem("5", "Unknown thing", "", "", "", nil, time.Time{}),
	}
}

func ids(records []model.ProblemRecord) []string {
	out := make([]string, 0, len(records))
	for _, p := range records {
		out = append(out, p.ID.Value())
	}
	return out
}

func TestApply_AllFacetsIsIdentity(t *testing.T) {
	in := fixture()
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(Apply(in, NewFilterState(), now)))
}

func TestApply_FacetsCompareUnderlyingValue(t *testing.T) {
	f, err := NewFilterState().WithFacet(FacetPriority, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, ids(Apply(fixture(), f, now)))

	f, err = NewFilterState().WithFacet(FacetState, "label")
	require.NoError(t, err)
	assert.Empty(t, Apply(fixture(), f, now), "display strings must not match")
}

func TestApply_ActiveNormalization(t *testing.T) {
	f, _ := NewFilterState().WithFacet(FacetActive, "true")
	assert.Equal(t, []string{"1", "2"}, ids(Apply(fixture(), f, now)))

	f, _ = NewFilterState().WithFacet(FacetActive, "false")
	assert.Equal(t, []string{"3", "4", "5"}, ids(Apply(fixture(), f, now)))
}

func TestApply_FacetsAreAnded(t *testing.T) {
	f, _ := NewFilterState().WithFacet(FacetPriority, "1")
	f, _ = f.WithFacet(FacetActive, "false")
	assert.Equal(t, []string{"4"}, ids(Apply(fixture(), f, now)))
}

func TestApply_EmptyFieldNeverMatchesConcreteFacet(t *testing.T) {
	for _, facet := range []Facet{FacetCategory, FacetPriority, FacetState} {
		f, _ := NewFilterState().WithFacet(facet, "x")
		assert.NotContains(t, ids(Apply(fixture(), f, now)), "5", string(facet))
	}
}

func TestApply_DateWindows(t *testing.T) {
	twoDaysAgo := []model.ProblemRecord{problem("a", "t", "c", "1", "101", "true", now.Add(-48*time.Hour))}
	for window, want := range map[string]int{RangeToday: 0, RangeWeek: 1, RangeMonth: 1, All: 1} {
		f, err := NewFilterState().WithFacet(FacetDateRange, window)
		require.NoError(t, err)
		assert.Len(t, Apply(twoDaysAgo, f, now), want, window)
	}

	f, _ := NewFilterState().WithFacet(FacetDateRange, RangeMonth)
	assert.Equal(t, []string{"1", "2", "3"}, ids(Apply(fixture(), f, now)))
}

func TestApply_MissingOrBadDateFailsEveryWindow(t *testing.T) {
	bad := problem("b", "t", "c", "1", "101", "true", time.Time{})
	bad.UpdatedAt = model.Scalar("not a date")
	missing := problem("m", "t", "c", "1", "101", "true", time.Time{})
	in := []model.ProblemRecord{bad, missing}
	for _, window := range []string{RangeToday, RangeWeek, RangeMonth} {
		f, _ := NewFilterState().WithFacet(FacetDateRange, window)
		assert.Empty(t, Apply(in, f, now), window)
	}
	assert.Len(t, Apply(in, NewFilterState(), now), 2)
}

func TestApply_SearchIgnoresFacets(t *testing.T) {
	f, _ := NewFilterState().WithFacet(FacetCategory, "hardware")
	f = f.WithSearch("LOGIN")
	assert.Equal(t, "hardware", f.Category, "facets are kept, only ignored")
	assert.Equal(t, []string{"1"}, ids(Apply(fixture(), f, now)))
}

func TestApply_SearchMatchesTitleDescriptionOrNumber(t *testing.T) {
	in := fixture()
	assert.Equal(t, []string{"3"}, ids(Apply(in, NewFilterState().WithSearch("disk"), now)))
	assert.Equal(t, []string{"2"}, ids(Apply(in, NewFilterState().WithSearch("outage DETAILS"), now)))
	assert.Equal(t, []string{"4"}, ids(Apply(in, NewFilterState().WithSearch("prb4"), now)))
	assert.Empty(t, Apply(in, NewFilterState().WithSearch("nothing matches"), now))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	before := ids(in)
	f, _ := NewFilterState().WithFacet(FacetActive, "true")
	_ = Apply(in, f, now)
	assert.Equal(t, before, ids(in))
}

func TestApply_FacetResultSatisfiesEveryConstraint(t *testing.T) {
	in := fixture()
	states := []FilterState{NewFilterState()}
	for _, c := range []string{All, "software", "network"} {
		for _, a := range []string{All, "true", "false"} {
			for _, r := range []string{All, RangeToday, RangeMonth} {
				f, _ := NewFilterState().WithFacet(FacetCategory, c)
				f, _ = f.WithFacet(FacetActive, a)
				f, _ = f.WithFacet(FacetDateRange, r)
				states = append(states, f)
			}
		}
	}
	for _, f := range states {
		got := Apply(in, f, now)
		assert.LessOrEqual(t, len(got), len(in))
		for _, p := range got {
			assert.True(t, MatchesFacets(p, f, now))
			if f.Category != All {
				assert.Equal(t, f.Category, p.Category.Value())
			}
			if f.Active != All {
				assert.Equal(t, f.Active == "true", p.IsActive())
			}
		}
	}
}

func TestFilterState_Exclusivity(t *testing.T) {
	f := NewFilterState().WithSearch("vpn")
	assert.True(t, f.Searching())

	f, err := f.WithFacet(FacetState, "106")
	require.NoError(t, err)
	assert.False(t, f.SearchMode)
	assert.Empty(t, f.SearchTerm)
	assert.Equal(t, "106", f.State)

	f = f.WithSearch("vpn")
	f, err = f.WithFacet(FacetPriority, All)
	require.NoError(t, err)
	assert.True(t, f.Searching(), "resetting a facet to all keeps the search")

	assert.False(t, f.WithSearch("   ").SearchMode)
}

func TestFilterState_Validation(t *testing.T) {
	_, err := NewFilterState().WithFacet(FacetActive, "yes")
	assert.True(t, errors.Is(err, errs.ErrInvalidFilter))
	_, err = NewFilterState().WithFacet(FacetDateRange, "year")
	assert.True(t, errors.Is(err, errs.ErrInvalidFilter))
	_, err = NewFilterState().WithFacet(Facet("owner"), "x")
	assert.True(t, errors.Is(err, errs.ErrInvalidFilter))

	f, err := NewFilterState().WithFacet(FacetDateRange, "")
	require.NoError(t, err)
	assert.Equal(t, All, f.DateRange)

	assert.NoError(t, FilterState{}.Validate())
	assert.Error(t, FilterState{Active: "maybe"}.Validate())
	assert.Equal(t, NewFilterState(), f.WithSearch("x").Reset())
}
