package choice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// FallbackTable holds the choice lists used when the record store has none.
type FallbackTable map[Key][]model.Choice

// DefaultFallback returns the built-in table for the problem entity.
func DefaultFallback() FallbackTable {
	return FallbackTable{
		{model.EntityProblem, model.FieldCategory}: {
			{Value: "software", Label: "Software"},
			{Value: "hardware", Label: "Hardware"},
			{Value: "network", Label: "Network"},
			{Value: "database", Label: "Database"},
		},
		{model.EntityProblem, model.FieldPriority}: {
			{Value: "1", Label: "1 - Critical"},
			{Value: "2", Label: "2 - High"},
			{Value: "3", Label: "3 - Moderate"},
			{Value: "4", Label: "4 - Low"},
			{Value: "5", Label: "5 - Planning"},
		},
		{model.EntityProblem, model.FieldState}: {
			{Value: "101", Label: "New"},
			{Value: "102", Label: "Assess"},
			{Value: "103", Label: "Root Cause Analysis"},
			{Value: "104", Label: "Fix in Progress"},
			{Value: model.StateResolved, Label: "Resolved"},
			{Value: model.StateClosed, Label: "Closed"},
		},
	}
}

func (t FallbackTable) Lookup(key Key) []model.Choice {
	choices, ok := t[key]
	if !ok {
		return []model.Choice{}
	}
	return clone(choices)
}

// Merge returns a copy of t with every list of override replacing its key.
func (t FallbackTable) Merge(override FallbackTable) FallbackTable {
	out := make(FallbackTable, len(t)+len(override))
	for k, v := range t {
		out[k] = clone(v)
	}
	for k, v := range override {
		out[k] = clone(v)
	}
	return out
}

// fallbackFile is the YAML layout: entity kind -> field name -> choices.
type fallbackFile map[string]map[string][]model.Choice

// LoadFallbackFile reads a YAML fallback table such as
//
//	problem:
//	  category:
//	    - {value: storage, label: Storage}
func LoadFallbackFile(path string) (FallbackTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	var file fallbackFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse fallback file %s: %w", path, err)
	}
	table := FallbackTable{}
	for kind, fields := range file {
		for field, choices := range fields {
			table[Key{EntityKind: kind, FieldName: field}] = choices
		}
	}
	return table, nil
}
