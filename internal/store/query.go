package store

import (
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/stats"
	"github.com/psds-microservice/problem-portal/internal/view"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var problemColumns = []string{
	"sys_id", "number", "title", "description", "priority", "state", "category",
	"active", "assigned_to", "impact", "urgency", "created_at", "updated_at",
}

const searchLimit = 100

// ProblemsSQL builds the facet load: equality per non-"all" facet, the
// active flag, the date window, newest-updated first.
func ProblemsSQL(q collaborator.Query, now time.Time) (string, []interface{}, error) {
	b := psql.Select(problemColumns...).From("problems")
	facets := []struct{ col, value string }{
		{"category", q.Category},
		{"priority", q.Priority},
		{"state", q.State},
	}
	for _, f := range facets {
		if f.value != "" && f.value != view.All {
			b = b.Where(sq.Eq{f.col: f.value})
		}
	}
	if q.ActiveOnly != nil {
		b = b.Where(sq.Eq{"active": *q.ActiveOnly})
	}
	if since, ok := q.UpdatedSince(now); ok {
		b = b.Where(sq.GtOrEq{"updated_at": since})
	}
	return b.OrderBy("updated_at DESC").Limit(uint64(q.PageSize())).ToSql()
}

// SearchSQL matches term case-insensitively in title, description or number.
func SearchSQL(term string, q collaborator.Query) (string, []interface{}, error) {
	pattern := "%" + escapeLike(term) + "%"
	b := psql.Select(problemColumns...).From("problems").
		Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
			sq.ILike{"number": pattern},
		})
	if q.ActiveOnly != nil {
		b = b.Where(sq.Eq{"active": *q.ActiveOnly})
	}
	limit := q.PageSize()
	if limit > searchLimit {
		limit = searchLimit
	}
	return b.OrderBy("updated_at DESC").Limit(uint64(limit)).ToSql()
}

// GroupCountSQL counts problems per value of col, empty values under
// stats.UnknownKey. col must be a trusted column name.
func GroupCountSQL(col string) (string, []interface{}, error) {
	key := "COALESCE(NULLIF(" + col + ", ''), '" + stats.UnknownKey + "')"
	return psql.Select(key+" AS key", "COUNT(*) AS n").
		From("problems").
		GroupBy(key).
		ToSql()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
