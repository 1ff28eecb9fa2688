package collaborator

import (
	"context"
	"fmt"

	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/stats"
)

// Source tells whether a read result came from the record store or was
// substituted after a failure.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// Result is a read that never fails: on error Data holds the substitute and
// Err the cause.
type Result[T any] struct {
	Data   T
	Source Source
	Err    error
}

func (r Result[T]) Degraded() bool {
	return r.Source == SourceFallback
}

// Safe wraps a RecordService with the portal read policy: failures become
// empty results marked SourceFallback. Writes pass through with errors
// wrapped in errs.ErrCollaboratorUnavailable or errs.ErrNotAccepted.
type Safe struct {
	svc RecordService
	log *logger.Logger
}

func NewSafe(svc RecordService, log *logger.Logger) *Safe {
	if log == nil {
		log = logger.Nop()
	}
	return &Safe{svc: svc, log: log.With("component", "collaborator")}
}

func (s *Safe) Problems(ctx context.Context, q Query) Result[[]model.ProblemRecord] {
	records, err := s.svc.FetchProblems(ctx, q)
	if err != nil {
		s.log.Warn("fetch problems failed, serving empty list", "error", err)
		return Result[[]model.ProblemRecord]{Data: []model.ProblemRecord{}, Source: SourceFallback, Err: err}
	}
	return Result[[]model.ProblemRecord]{Data: nonNil(records), Source: SourceLive}
}

func (s *Safe) Search(ctx context.Context, term string, q Query) Result[[]model.ProblemRecord] {
	records, err := s.svc.SearchProblems(ctx, term, q)
	if err != nil {
		s.log.Warn("search problems failed, serving empty list", "term", term, "error", err)
		return Result[[]model.ProblemRecord]{Data: []model.ProblemRecord{}, Source: SourceFallback, Err: err}
	}
	return Result[[]model.ProblemRecord]{Data: nonNil(records), Source: SourceLive}
}

func (s *Safe) Solutions(ctx context.Context, problemID string) Result[[]model.SolutionArticle] {
	articles, err := s.svc.FetchRelatedSolutions(ctx, problemID)
	if err != nil {
		s.log.Warn("fetch solutions failed, serving empty list", "problem_id", problemID, "error", err)
		return Result[[]model.SolutionArticle]{Data: []model.SolutionArticle{}, Source: SourceFallback, Err: err}
	}
	if articles == nil {
		articles = []model.SolutionArticle{}
	}
	return Result[[]model.SolutionArticle]{Data: articles, Source: SourceLive}
}

// Stats asks the record store for pre-aggregated stats, then falls back to
// summarizing a plain fetch, then to zero stats.
func (s *Safe) Stats(ctx context.Context) Result[model.Stats] {
	st, err := s.svc.FetchStats(ctx)
	if err == nil {
		return Result[model.Stats]{Data: fillMaps(st), Source: SourceLive}
	}
	s.log.Warn("fetch stats failed, summarizing locally", "error", err)
	records, ferr := s.svc.FetchProblems(ctx, Query{})
	if ferr != nil {
		s.log.Warn("fetch problems for stats failed, serving zero stats", "error", ferr)
		return Result[model.Stats]{Data: model.NewStats(), Source: SourceFallback, Err: err}
	}
	return Result[model.Stats]{Data: stats.Summarize(records), Source: SourceFallback, Err: err}
}

// Choices returns the record store's choice list; an empty list counts as a
// failure so the caller can substitute its own fallback.
func (s *Safe) Choices(ctx context.Context, entityKind, fieldName string) Result[[]model.Choice] {
	choices, err := s.svc.FetchChoiceList(ctx, entityKind, fieldName)
	if err != nil {
		return Result[[]model.Choice]{Data: nil, Source: SourceFallback, Err: err}
	}
	if len(choices) == 0 {
		return Result[[]model.Choice]{Data: nil, Source: SourceFallback}
	}
	return Result[[]model.Choice]{Data: choices, Source: SourceLive}
}

func (s *Safe) SubmitSolution(ctx context.Context, problemID, body string) (Ack, error) {
	ack, err := s.svc.SubmitSolution(ctx, problemID, body)
	return s.write(ack, err, "submit solution")
}

func (s *Safe) SubmitVote(ctx context.Context, solutionID string, helpful bool) (Ack, error) {
	ack, err := s.svc.SubmitVote(ctx, solutionID, helpful)
	return s.write(ack, err, "submit vote")
}

func (s *Safe) write(ack Ack, err error, op string) (Ack, error) {
	if err != nil {
		s.log.Warn(op+" failed", "error", err)
		return ack, fmt.Errorf("%s: %w: %v", op, errs.ErrCollaboratorUnavailable, err)
	}
	if !ack.Accepted {
		return ack, fmt.Errorf("%s: %w", op, errs.ErrNotAccepted)
	}
	return ack, nil
}

func nonNil(records []model.ProblemRecord) []model.ProblemRecord {
	if records == nil {
		return []model.ProblemRecord{}
	}
	return records
}

func fillMaps(st model.Stats) model.Stats {
	if st.ByPriority == nil {
		st.ByPriority = map[string]int{}
	}
	if st.ByState == nil {
		st.ByState = map[string]int{}
	}
	if st.ByCategory == nil {
		st.ByCategory = map[string]int{}
	}
	return st
}
