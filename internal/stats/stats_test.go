package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/problem-portal/internal/model"
)

func rec(priority, state, category string, active interface{}) model.ProblemRecord {
	return model.ProblemRecord{
		Priority: model.Scalar(priority),
		State:    model.Pair("label", state),
		Category: model.Scalar(category),
		Active:   model.Scalar(active),
	}
}

func TestSummarize_Counts(t *testing.T) {
	in := []model.ProblemRecord{
		rec("1", "101", "software", "true"),
		rec("1", "106", "software", true),
		rec("3", "106", "", "false"),
		rec("", "", "network", nil),
	}
	s := Summarize(in)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Active)
	assert.Equal(t, 2, s.Inactive)
	assert.Equal(t, map[string]int{"1": 2, "3": 1, UnknownKey: 1}, s.ByPriority)
	assert.Equal(t, map[string]int{"101": 1, "106": 2, UnknownKey: 1}, s.ByState)
	assert.Equal(t, map[string]int{"software": 2, "network": 1, UnknownKey: 1}, s.ByCategory)
}

func TestSummarize_DisplayOnlyStateIsUnknown(t *testing.T) {
	var r model.ProblemRecord
	require.NoError(t, json.Unmarshal([]byte(`{"display_value":"Resolved"}`), &r.State))

	s := Summarize([]model.ProblemRecord{r})
	assert.Equal(t, map[string]int{UnknownKey: 1}, s.ByState)
}

func TestSummarize_Invariants(t *testing.T) {
	for _, in := range [][]model.ProblemRecord{
		nil,
		{rec("", "", "", nil)},
		{rec("2", "102", "hardware", "TRUE"), rec("2", "102", "hardware", true)},
	} {
		s := Summarize(in)
		assert.Equal(t, len(in), s.Total)
		assert.Equal(t, len(in), s.Active+s.Inactive)
		for _, m := range []map[string]int{s.ByPriority, s.ByState, s.ByCategory} {
			sum := 0
			for _, n := range m {
				sum += n
			}
			assert.Equal(t, len(in), sum)
		}
	}
}

func TestSummarizeActivity(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	day := func(d int) model.Field {
		return model.Scalar(now.AddDate(0, 0, -d).Format(time.RFC3339))
	}
	in := []model.ProblemRecord{
		{State: model.Scalar("101"), CreatedAt: day(2), UpdatedAt: day(1)},
		{State: model.Scalar(model.StateResolved), CreatedAt: day(30), UpdatedAt: day(3)},
		{State: model.Scalar(model.StateResolved), CreatedAt: day(30), UpdatedAt: day(10)},
		{State: model.Scalar(model.StateClosed), CreatedAt: day(40), UpdatedAt: day(1)},
		{State: model.Scalar("102")},
	}
	a := SummarizeActivity(in, now)
	assert.Equal(t, Activity{NewProblems: 1, ResolvedProblems: 1, TotalActive: 4}, a)
}
