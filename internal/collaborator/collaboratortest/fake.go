// Package collaboratortest provides an in-memory RecordService for tests.
package collaboratortest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/model"
)

var ErrUnavailable = errors.New("fake: record store unavailable")

// Fake serves canned data and counts calls. Set a *Err field to make the
// matching method fail. Hooks, when set, run before the method returns and
// may block to simulate slow responses.
type Fake struct {
	mu sync.Mutex

	Problems  []model.ProblemRecord
	Solutions map[string][]model.SolutionArticle
	Choices   map[string][]model.Choice
	Stats     *model.Stats
	Ack       collaborator.Ack

	FetchErr    error
	SearchErr   error
	SolutionErr error
	SubmitErr   error
	VoteErr     error
	ChoiceErr   error
	StatsErr    error

	OnFetch     func(ctx context.Context)
	OnSearch    func(ctx context.Context, term string)
	OnSolutions func(ctx context.Context, problemID string)

	calls map[string]int

	SubmittedSolutions []string
	Votes              []Vote
}

type Vote struct {
	SolutionID string
	Helpful    bool
}

var _ collaborator.RecordService = (*Fake)(nil)

func New() *Fake {
	return &Fake{Ack: collaborator.Ack{Accepted: true}}
}

// ChoiceKey builds the key used in Fake.Choices.
func ChoiceKey(entityKind, fieldName string) string {
	return entityKind + "." + fieldName
}

func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
}

func (f *Fake) FetchProblems(ctx context.Context, q collaborator.Query) ([]model.ProblemRecord, error) {
	f.count("FetchProblems")
	if f.OnFetch != nil {
		f.OnFetch(ctx)
	}
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	out := make([]model.ProblemRecord, len(f.Problems))
	copy(out, f.Problems)
	if len(out) > q.PageSize() {
		out = out[:q.PageSize()]
	}
	return out, nil
}

func (f *Fake) SearchProblems(ctx context.Context, term string, q collaborator.Query) ([]model.ProblemRecord, error) {
	f.count("SearchProblems")
	if f.OnSearch != nil {
		f.OnSearch(ctx, term)
	}
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	term = strings.ToLower(term)
	var out []model.ProblemRecord
	for _, p := range f.Problems {
		for _, field := range []model.Field{p.Title, p.Description, p.Number} {
			if strings.Contains(strings.ToLower(field.Display()), term) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (f *Fake) FetchRelatedSolutions(ctx context.Context, problemID string) ([]model.SolutionArticle, error) {
	f.count("FetchRelatedSolutions")
	if f.OnSolutions != nil {
		f.OnSolutions(ctx, problemID)
	}
	if f.SolutionErr != nil {
		return nil, f.SolutionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.Solutions[problemID]
	out := make([]model.SolutionArticle, len(src))
	copy(out, src)
	return out, nil
}

func (f *Fake) SubmitSolution(_ context.Context, problemID, body string) (collaborator.Ack, error) {
	f.count("SubmitSolution")
	if f.SubmitErr != nil {
		return collaborator.Ack{}, f.SubmitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubmittedSolutions = append(f.SubmittedSolutions, body)
	if f.Ack.Accepted {
		if f.Solutions == nil {
			f.Solutions = map[string][]model.SolutionArticle{}
		}
		f.Solutions[problemID] = append(f.Solutions[problemID], model.SolutionArticle{
			ID:       "submitted-" + problemID,
			Title:    "Community Solution for Problem: " + problemID,
			BodyHTML: body,
		})
	}
	return f.Ack, nil
}

func (f *Fake) SubmitVote(_ context.Context, solutionID string, helpful bool) (collaborator.Ack, error) {
	f.count("SubmitVote")
	if f.VoteErr != nil {
		return collaborator.Ack{}, f.VoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Votes = append(f.Votes, Vote{SolutionID: solutionID, Helpful: helpful})
	return f.Ack, nil
}

func (f *Fake) FetchChoiceList(_ context.Context, entityKind, fieldName string) ([]model.Choice, error) {
	f.count("FetchChoiceList")
	if f.ChoiceErr != nil {
		return nil, f.ChoiceErr
	}
	return f.Choices[ChoiceKey(entityKind, fieldName)], nil
}

func (f *Fake) FetchStats(_ context.Context) (model.Stats, error) {
	f.count("FetchStats")
	if f.StatsErr != nil {
		return model.Stats{}, f.StatsErr
	}
	if f.Stats == nil {
		return model.Stats{}, ErrUnavailable
	}
	return *f.Stats, nil
}
