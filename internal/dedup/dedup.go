package dedup

import (
	"strings"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// Result is the deduplicated view plus how many records were collapsed.
type Result struct {
	Records        []model.ProblemRecord
	DuplicateCount int
}

// Key is the normalized title used to detect duplicates.
func Key(p model.ProblemRecord) string {
	return strings.ToLower(strings.TrimSpace(p.Title.Display()))
}

// Deduplicate keeps the first record per normalized title, preserving order.
// With enabled=false the input slice is returned as is.
func Deduplicate(records []model.ProblemRecord, enabled bool) Result {
	if !enabled {
		return Result{Records: records}
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]model.ProblemRecord, 0, len(records))
	for _, p := range records {
		k := Key(p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return Result{Records: out, DuplicateCount: len(records) - len(out)}
}
