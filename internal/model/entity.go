package model

import "time"

// Entity kind and field names understood by the record store.
const (
	EntityProblem = "problem"

	FieldCategory = "category"
	FieldPriority = "priority"
	FieldState    = "state"
)

// Lifecycle state codes used by the portal summaries.
const (
	StateResolved = "106"
	StateClosed   = "107"
)

// ProblemRecord is one known problem as fetched from the record store.
// Records are read-only snapshots; derived views are new slices.
type ProblemRecord struct {
	ID          Field `json:"sys_id"`
	Number      Field `json:"number"`
	Title       Field `json:"short_description"`
	Description Field `json:"description"`
	Priority    Field `json:"priority"`
	State       Field `json:"state"`
	Category    Field `json:"category"`
	Active      Field `json:"active"`
	UpdatedAt   Field `json:"sys_updated_on"`
	CreatedAt   Field `json:"sys_created_on"`
	Assignee    Field `json:"assigned_to"`
	Impact      Field `json:"impact"`
	Urgency     Field `json:"urgency"`
}

func (p ProblemRecord) IsActive() bool {
	return p.Active.IsTrue()
}

// Updated returns the last-update time; ok is false when missing or unparsable.
func (p ProblemRecord) Updated() (time.Time, bool) {
	return p.UpdatedAt.Time()
}

// PriorityLabel maps the 1-5 priority code to its badge text.
func PriorityLabel(code string) string {
	switch code {
	case "1":
		return "Critical"
	case "2":
		return "High"
	case "3":
		return "Moderate"
	case "4":
		return "Low"
	case "5":
		return "Planning"
	default:
		return "Unknown"
	}
}

// Choice is one legal value of an enumerated field.
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// SolutionArticle is a community or knowledge-base solution tied to a problem.
type SolutionArticle struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	BodyHTML        string    `json:"body_html"`
	Author          string    `json:"author"`
	PublishedAt     time.Time `json:"published_at"`
	HelpfulCount    int       `json:"helpful_count"`
	NotHelpfulCount int       `json:"not_helpful_count"`
}

func (a SolutionArticle) TotalVotes() int {
	return a.HelpfulCount + a.NotHelpfulCount
}

// Stats are dashboard counts over a record set.
type Stats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	Inactive   int            `json:"inactive"`
	ByPriority map[string]int `json:"by_priority"`
	ByState    map[string]int `json:"by_state"`
	ByCategory map[string]int `json:"by_category"`
}

// NewStats returns zeroed stats with initialized maps.
func NewStats() Stats {
	return Stats{
		ByPriority: map[string]int{},
		ByState:    map[string]int{},
		ByCategory: map[string]int{},
	}
}
