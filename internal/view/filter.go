package view

import (
	"fmt"
	"strings"

	"github.com/psds-microservice/problem-portal/internal/errs"
)

// All is the facet value meaning "no constraint".
const All = "all"

// Facet names a filterable attribute.
type Facet string

const (
	FacetCategory  Facet = "category"
	FacetPriority  Facet = "priority"
	FacetState     Facet = "state"
	FacetActive    Facet = "active"
	FacetDateRange Facet = "range"
)

// Date windows accepted by FacetDateRange.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
)

var rangeDays = map[string]float64{
	RangeToday: 1,
	RangeWeek:  7,
	RangeMonth: 30,
}

// FilterState is the listing filter. Search mode and facet mode are mutually
// exclusive: an active search ignores every facet, and choosing a concrete
// facet value leaves search mode.
type FilterState struct {
	Category   string `json:"category"`
	Priority   string `json:"priority"`
	State      string `json:"state"`
	Active     string `json:"active"`
	DateRange  string `json:"date_range"`
	SearchTerm string `json:"search_term"`
	SearchMode bool   `json:"search_mode"`
}

// NewFilterState returns a state with every facet set to All.
func NewFilterState() FilterState {
	return FilterState{Category: All, Priority: All, State: All, Active: All, DateRange: All}
}

// WithSearch enters search mode. A blank term is the same as ClearSearch.
// Facet values are kept but ignored while searching.
func (f FilterState) WithSearch(term string) FilterState {
	term = strings.TrimSpace(term)
	if term == "" {
		return f.ClearSearch()
	}
	f.SearchTerm = term
	f.SearchMode = true
	return f
}

func (f FilterState) ClearSearch() FilterState {
	f.SearchTerm = ""
	f.SearchMode = false
	return f
}

// WithFacet sets one facet. A concrete value clears the search term and
// switches to facet mode.
func (f FilterState) WithFacet(facet Facet, value string) (FilterState, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = All
	}
	if err := validateFacet(facet, value); err != nil {
		return f, err
	}
	switch facet {
	case FacetCategory:
		f.Category = value
	case FacetPriority:
		f.Priority = value
	case FacetState:
		f.State = value
	case FacetActive:
		f.Active = value
	case FacetDateRange:
		f.DateRange = value
	}
	if value != All {
		f = f.ClearSearch()
	}
	return f, nil
}

// Reset returns every facet to All and leaves search mode.
func (f FilterState) Reset() FilterState {
	return NewFilterState()
}

// Searching reports whether the search branch applies.
func (f FilterState) Searching() bool {
	return f.SearchMode && strings.TrimSpace(f.SearchTerm) != ""
}

// Facet returns the value of one facet, with "" read as All.
func (f FilterState) Facet(facet Facet) string {
	var v string
	switch facet {
	case FacetCategory:
		v = f.Category
	case FacetPriority:
		v = f.Priority
	case FacetState:
		v = f.State
	case FacetActive:
		v = f.Active
	case FacetDateRange:
		v = f.DateRange
	}
	if v == "" {
		return All
	}
	return v
}

// Validate rejects unknown active and date-range values.
func (f FilterState) Validate() error {
	for _, facet := range []Facet{FacetActive, FacetDateRange} {
		if err := validateFacet(facet, f.Facet(facet)); err != nil {
			return err
		}
	}
	return nil
}

func validateFacet(facet Facet, value string) error {
	switch facet {
	case FacetCategory, FacetPriority, FacetState:
		return nil
	case FacetActive:
		if value == All || value == "true" || value == "false" {
			return nil
		}
		return fmt.Errorf("%w: active must be all, true or false, got %q", errs.ErrInvalidFilter, value)
	case FacetDateRange:
		if _, ok := rangeDays[value]; ok || value == All {
			return nil
		}
		return fmt.Errorf("%w: range must be all, today, week or month, got %q", errs.ErrInvalidFilter, value)
	default:
		return fmt.Errorf("%w: unknown facet %q", errs.ErrInvalidFilter, facet)
	}
}
