package tableapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/view"
)

const orderNewestFirst = "ORDERBYDESCsys_updated_on"

var sysIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// literal drops the "^" separator so a caller-supplied value cannot add
// conditions of its own.
func literal(value string) string {
	return strings.ReplaceAll(value, "^", "")
}

// ValidSysID reports whether id is a 32 character lower-case hex sys_id.
func ValidSysID(id string) bool {
	return sysIDPattern.MatchString(id)
}

// encodedQuery joins conditions with the record store's "^" AND operator.
type encodedQuery []string

func (q *encodedQuery) add(cond string) {
	*q = append(*q, cond)
}

func (q *encodedQuery) eq(field, value string) {
	if value == "" || value == view.All {
		return
	}
	q.add(field + "=" + literal(value))
}

func (q encodedQuery) String() string {
	return strings.Join(q, "^")
}

// ProblemQuery builds the encoded query for a facet load. Facets equal to
// "all" are omitted and results are ordered newest-updated first.
func ProblemQuery(q collaborator.Query, now time.Time) string {
	var eq encodedQuery
	eq.eq("category", q.Category)
	eq.eq("priority", q.Priority)
	eq.eq("state", q.State)
	if q.ActiveOnly != nil {
		eq.add("active=" + strconv.FormatBool(*q.ActiveOnly))
	}
	if since, ok := q.UpdatedSince(now); ok {
		eq.add("sys_updated_on>=" + since.Format("2006-01-02"))
	}
	eq.add(orderNewestFirst)
	return eq.String()
}

// SearchQuery matches term against title, description and number. Only the
// active constraint of q applies in search mode.
func SearchQuery(term string, q collaborator.Query) string {
	var eq encodedQuery
	term = literal(term)
	eq.add("short_descriptionLIKE" + term + "^ORdescriptionLIKE" + term + "^ORnumberLIKE" + term)
	if q.ActiveOnly != nil {
		eq.add("active=" + strconv.FormatBool(*q.ActiveOnly))
	}
	eq.add(orderNewestFirst)
	return eq.String()
}

// RelatedSolutionsQuery finds published articles mentioning the problem id.
// Only sys_ids are accepted.
func RelatedSolutionsQuery(problemID string) (string, error) {
	if !ValidSysID(problemID) {
		return "", fmt.Errorf("tableapi: problem id %q: %w", problemID, errs.ErrInvalidID)
	}
	var eq encodedQuery
	eq.add("workflow_state=published")
	eq.add("short_descriptionLIKE" + problemID + "^ORtextLIKE" + problemID)
	eq.add(orderNewestFirst)
	return eq.String(), nil
}

func ChoiceQuery(entityKind, fieldName string) string {
	return encodedQuery{"name=" + literal(entityKind), "element=" + literal(fieldName), "inactive=false"}.String()
}
