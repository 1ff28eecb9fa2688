// Package store is the RecordService backed by the portal's own Postgres
// schema, for deployments without a remote record store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
)

const (
	solutionLimit     = 10
	workflowDraft     = "draft"
	workflowPublished = "published"
	communityCategory = "community_solutions"
)

type problemRow struct {
	SysID       string    `gorm:"column:sys_id;primaryKey"`
	Number      string    `gorm:"column:number"`
	Title       string    `gorm:"column:title"`
	Description string    `gorm:"column:description"`
	Priority    string    `gorm:"column:priority"`
	State       string    `gorm:"column:state"`
	Category    string    `gorm:"column:category"`
	Active      bool      `gorm:"column:active"`
	AssignedTo  string    `gorm:"column:assigned_to"`
	Impact      string    `gorm:"column:impact"`
	Urgency     string    `gorm:"column:urgency"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (problemRow) TableName() string { return "problems" }

func (r problemRow) record() model.ProblemRecord {
	return model.ProblemRecord{
		ID:          model.Scalar(r.SysID),
		Number:      model.Scalar(r.Number),
		Title:       model.Scalar(r.Title),
		Description: model.Scalar(r.Description),
		Priority:    priorityField(r.Priority),
		State:       model.Scalar(r.State),
		Category:    model.Scalar(r.Category),
		Active:      model.Scalar(r.Active),
		Assignee:    model.Scalar(r.AssignedTo),
		Impact:      model.Scalar(r.Impact),
		Urgency:     model.Scalar(r.Urgency),
		CreatedAt:   model.Scalar(r.CreatedAt.UTC().Format(time.RFC3339)),
		UpdatedAt:   model.Scalar(r.UpdatedAt.UTC().Format(time.RFC3339)),
	}
}

func priorityField(code string) model.Field {
	if code == "" {
		return model.Field{}
	}
	return model.Pair(code+" - "+model.PriorityLabel(code), code)
}

type solutionRow struct {
	ID              string     `gorm:"column:id;primaryKey"`
	ProblemID       string     `gorm:"column:problem_id"`
	Title           string     `gorm:"column:title"`
	BodyHTML        string     `gorm:"column:body_html"`
	Author          string     `gorm:"column:author"`
	WorkflowState   string     `gorm:"column:workflow_state"`
	KBCategory      string     `gorm:"column:kb_category"`
	HelpfulCount    int        `gorm:"column:helpful_count"`
	NotHelpfulCount int        `gorm:"column:not_helpful_count"`
	PublishedAt     *time.Time `gorm:"column:published_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (solutionRow) TableName() string { return "solutions" }

func (r solutionRow) article() model.SolutionArticle {
	published := r.CreatedAt
	if r.PublishedAt != nil {
		published = *r.PublishedAt
	}
	return model.SolutionArticle{
		ID:              r.ID,
		Title:           r.Title,
		BodyHTML:        r.BodyHTML,
		Author:          r.Author,
		PublishedAt:     published,
		HelpfulCount:    r.HelpfulCount,
		NotHelpfulCount: r.NotHelpfulCount,
	}
}

type voteRow struct {
	ID         string    `gorm:"column:id;primaryKey"`
	SolutionID string    `gorm:"column:solution_id"`
	Helpful    bool      `gorm:"column:helpful"`
	Comments   string    `gorm:"column:comments"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (voteRow) TableName() string { return "solution_votes" }

type choiceRow struct {
	Value string `gorm:"column:value"`
	Label string `gorm:"column:label"`
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
	log *logger.Logger
}

var _ collaborator.RecordService = (*Store)(nil)

func New(db *gorm.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, now: time.Now, log: log.With("component", "store")}
}

func (s *Store) FetchProblems(ctx context.Context, q collaborator.Query) ([]model.ProblemRecord, error) {
	query, args, err := ProblemsSQL(q, s.now())
	if err != nil {
		return nil, fmt.Errorf("build problems query: %w", err)
	}
	return s.problems(ctx, query, args)
}

func (s *Store) SearchProblems(ctx context.Context, term string, q collaborator.Query) ([]model.ProblemRecord, error) {
	query, args, err := SearchSQL(term, q)
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	return s.problems(ctx, query, args)
}

func (s *Store) problems(ctx context.Context, query string, args []interface{}) ([]model.ProblemRecord, error) {
	var rows []problemRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	out := make([]model.ProblemRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// EachProblem walks every stored problem in pages of batch, newest first.
func (s *Store) EachProblem(ctx context.Context, batch int, fn func(model.ProblemRecord) error) error {
	if batch <= 0 {
		batch = collaborator.MaxPageSize
	}
	for offset := 0; ; offset += batch {
		var rows []problemRow
		err := s.db.WithContext(ctx).Order("updated_at DESC").Order("sys_id").
			Limit(batch).Offset(offset).Find(&rows).Error
		if err != nil {
			return fmt.Errorf("list problems: %w", err)
		}
		for _, r := range rows {
			if err := fn(r.record()); err != nil {
				return err
			}
		}
		if len(rows) < batch {
			return nil
		}
	}
}

func (s *Store) FetchRelatedSolutions(ctx context.Context, problemID string) ([]model.SolutionArticle, error) {
	var rows []solutionRow
	err := s.db.WithContext(ctx).
		Where("problem_id = ? AND workflow_state = ?", problemID, workflowPublished).
		Order("COALESCE(published_at, created_at) DESC").
		Limit(solutionLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	out := make([]model.SolutionArticle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.article())
	}
	return out, nil
}

// SubmitSolution stores body as a draft for moderation. Unknown problems are
// not accepted.
func (s *Store) SubmitSolution(ctx context.Context, problemID, body string) (collaborator.Ack, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&problemRow{}).Where("sys_id = ?", problemID).Count(&n).Error; err != nil {
		return collaborator.Ack{}, fmt.Errorf("check problem: %w", err)
	}
	if n == 0 {
		return collaborator.Ack{Accepted: false}, nil
	}
	row := solutionRow{
		ID:            uuid.NewString(),
		ProblemID:     problemID,
		Title:         "Community Solution for Problem: " + problemID,
		BodyHTML:      body,
		WorkflowState: workflowDraft,
		KBCategory:    communityCategory,
		CreatedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return collaborator.Ack{}, fmt.Errorf("insert solution: %w", err)
	}
	return collaborator.Ack{Accepted: true, ID: row.ID}, nil
}

var errNoSuchSolution = errors.New("no such solution")

// SubmitVote records the vote and bumps the matching counter in one
// transaction. Votes for unknown solutions are not accepted.
func (s *Store) SubmitVote(ctx context.Context, solutionID string, helpful bool) (collaborator.Ack, error) {
	if _, err := uuid.Parse(solutionID); err != nil {
		return collaborator.Ack{Accepted: false}, nil
	}
	counter := "not_helpful_count"
	comments := "This did not resolve my issue."
	if helpful {
		counter = "helpful_count"
		comments = "This solution worked for me!"
	}
	vote := voteRow{ID: uuid.NewString(), SolutionID: solutionID, Helpful: helpful, Comments: comments, CreatedAt: s.now()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&solutionRow{}).Where("id = ?", solutionID).
			UpdateColumn(counter, gorm.Expr(counter+" + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoSuchSolution
		}
		return tx.Create(&vote).Error
	})
	if errors.Is(err, errNoSuchSolution) {
		return collaborator.Ack{Accepted: false}, nil
	}
	if err != nil {
		return collaborator.Ack{}, fmt.Errorf("record vote: %w", err)
	}
	return collaborator.Ack{Accepted: true, ID: vote.ID}, nil
}

func (s *Store) FetchChoiceList(ctx context.Context, entityKind, fieldName string) ([]model.Choice, error) {
	var rows []choiceRow
	err := s.db.WithContext(ctx).Table("choices").
		Select("value", "label").
		Where("entity_kind = ? AND field_name = ? AND inactive = ?", entityKind, fieldName, false).
		Order("sequence").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query choices: %w", err)
	}
	out := make([]model.Choice, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Choice{Value: r.Value, Label: r.Label})
	}
	return out, nil
}

// FetchStats aggregates in SQL over the whole table.
func (s *Store) FetchStats(ctx context.Context) (model.Stats, error) {
	st := model.NewStats()
	var totals struct {
		Total  int
		Active int
	}
	err := s.db.WithContext(ctx).Model(&problemRow{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE active) AS active").
		Scan(&totals).Error
	if err != nil {
		return model.Stats{}, fmt.Errorf("count problems: %w", err)
	}
	st.Total, st.Active, st.Inactive = totals.Total, totals.Active, totals.Total-totals.Active

	groups := map[string]map[string]int{
		"priority": st.ByPriority,
		"state":    st.ByState,
		"category": st.ByCategory,
	}
	for col, into := range groups {
		query, args, err := GroupCountSQL(col)
		if err != nil {
			return model.Stats{}, fmt.Errorf("build %s counts: %w", col, err)
		}
		var rows []struct {
			Key string
			N   int
		}
		if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
			return model.Stats{}, fmt.Errorf("count by %s: %w", col, err)
		}
		for _, r := range rows {
			into[r.Key] = r.N
		}
	}
	return st, nil
}

// UpsertProblem inserts or replaces a problem; used by seeding and imports.
func (s *Store) UpsertProblem(ctx context.Context, p model.ProblemRecord) error {
	row := problemRow{
		SysID:       p.ID.Value(),
		Number:      p.Number.Value(),
		Title:       p.Title.Display(),
		Description: p.Description.Display(),
		Priority:    p.Priority.Value(),
		State:       p.State.Value(),
		Category:    p.Category.Value(),
		Active:      p.IsActive(),
		AssignedTo:  p.Assignee.Display(),
		Impact:      p.Impact.Value(),
		Urgency:     p.Urgency.Value(),
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if t, ok := p.CreatedAt.Time(); ok {
		row.CreatedAt = t
	}
	if t, ok := p.Updated(); ok {
		row.UpdatedAt = t
	}
	if row.SysID == "" {
		row.SysID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Save(&row).Error
}
