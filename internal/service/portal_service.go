package service

import (
	"context"
	"strings"
	"time"

	"github.com/psds-microservice/problem-portal/internal/choice"
	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/dedup"
	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/kafka"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/solution"
	"github.com/psds-microservice/problem-portal/internal/stats"
	"github.com/psds-microservice/problem-portal/internal/view"
)

// PortalServicer is what the HTTP handlers need from the portal.
type PortalServicer interface {
	ListProblems(ctx context.Context, p ListParams) (ProblemList, error)
	Stats(ctx context.Context) StatsResult
	Solutions(ctx context.Context, problemID string) SolutionList
	SubmitSolution(ctx context.Context, problemID, body string) (collaborator.Ack, error)
	Vote(ctx context.Context, solutionID string, helpful bool) (collaborator.Ack, error)
	Choices(ctx context.Context, entityKind, fieldName string) choice.Resolution
}

// ListParams is one listing request. A non-blank Term selects search mode
// and the facets in Filter are then ignored.
type ListParams struct {
	Term   string
	Filter view.FilterState
	Dedup  bool
}

type ProblemList struct {
	Problems       []model.ProblemRecord `json:"problems"`
	Total          int                   `json:"total"`
	DuplicateCount int                   `json:"duplicate_count"`
	SearchMode     bool                  `json:"search_mode"`
	Source         collaborator.Source   `json:"source"`
}

type StatsResult struct {
	model.Stats
	Activity stats.Activity      `json:"activity"`
	Source   collaborator.Source `json:"source"`
}

type SolutionList struct {
	Solutions []solution.View     `json:"solutions"`
	Source    collaborator.Source `json:"source"`
}

// PortalService serves the portal over request/response: every call reads
// fresh from the record store, except choice lists which the resolver caches.
type PortalService struct {
	src     *collaborator.Safe
	choices *choice.Resolver
	events  kafka.EventPublisher
	now     func() time.Time
}

var _ PortalServicer = (*PortalService)(nil)

func NewPortalService(src *collaborator.Safe, choices *choice.Resolver, events kafka.EventPublisher) *PortalService {
	return &PortalService{src: src, choices: choices, events: events, now: time.Now}
}

func (s *PortalService) ListProblems(ctx context.Context, p ListParams) (ProblemList, error) {
	f := p.Filter
	if err := f.Validate(); err != nil {
		return ProblemList{}, err
	}
	f = f.WithSearch(p.Term)

	var res collaborator.Result[[]model.ProblemRecord]
	if f.Searching() {
		res = s.src.Search(ctx, f.SearchTerm, collaborator.Query{})
	} else {
		res = s.src.Problems(ctx, QueryFor(f))
	}
	d := dedup.Deduplicate(res.Data, p.Dedup)
	visible := view.Apply(d.Records, f, s.now())
	return ProblemList{
		Problems:       visible,
		Total:          len(visible),
		DuplicateCount: d.DuplicateCount,
		SearchMode:     f.Searching(),
		Source:         res.Source,
	}, nil
}

// QueryFor pushes the facet filter down to the record store.
func QueryFor(f view.FilterState) collaborator.Query {
	q := collaborator.Query{
		Category:  f.Facet(view.FacetCategory),
		Priority:  f.Facet(view.FacetPriority),
		State:     f.Facet(view.FacetState),
		DateRange: f.Facet(view.FacetDateRange),
	}
	switch f.Facet(view.FacetActive) {
	case "true":
		v := true
		q.ActiveOnly = &v
	case "false":
		v := false
		q.ActiveOnly = &v
	}
	return q
}

func (s *PortalService) Stats(ctx context.Context) StatsResult {
	res := s.src.Stats(ctx)
	out := StatsResult{Stats: res.Data, Source: res.Source}
	recent := s.src.Problems(ctx, collaborator.Query{})
	out.Activity = stats.SummarizeActivity(recent.Data, s.now())
	return out
}

func (s *PortalService) Solutions(ctx context.Context, problemID string) SolutionList {
	res := s.src.Solutions(ctx, problemID)
	return SolutionList{Solutions: solution.PresentAll(res.Data), Source: res.Source}
}

func (s *PortalService) SubmitSolution(ctx context.Context, problemID, body string) (collaborator.Ack, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return collaborator.Ack{}, errs.ErrEmptySolution
	}
	ack, err := s.src.SubmitSolution(ctx, problemID, body)
	if err != nil {
		return ack, err
	}
	s.publish(kafka.EventSolutionSubmitted, problemID, map[string]interface{}{
		"problem_id":  problemID,
		"solution_id": ack.ID,
	})
	return ack, nil
}

func (s *PortalService) Vote(ctx context.Context, solutionID string, helpful bool) (collaborator.Ack, error) {
	ack, err := s.src.SubmitVote(ctx, solutionID, helpful)
	if err != nil {
		return ack, err
	}
	s.publish(kafka.EventSolutionVoted, solutionID, map[string]interface{}{
		"solution_id": solutionID,
		"helpful":     helpful,
	})
	return ack, nil
}

func (s *PortalService) Choices(ctx context.Context, entityKind, fieldName string) choice.Resolution {
	return s.choices.Resolve(ctx, entityKind, fieldName)
}

func (s *PortalService) publish(event, key string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.events.Publish(ctx, event, key, payload)
	}()
}
