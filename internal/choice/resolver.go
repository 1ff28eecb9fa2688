// Package choice resolves the legal values of enumerated problem fields.
// Lists come from the record store, are cached for the session, and fall
// back to a built-in table when the store returns nothing.
package choice

import (
	"context"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
)

// Resolution is a resolved choice list and where it came from.
type Resolution struct {
	Choices []model.Choice      `json:"choices"`
	Source  collaborator.Source `json:"source"`
}

type Resolver struct {
	source   *collaborator.Safe
	cache    Cache
	fallback FallbackTable
	log      *logger.Logger
}

// NewResolver builds a resolver. A nil cache gets a fresh MemoryCache and a
// nil fallback table gets DefaultFallback.
func NewResolver(source *collaborator.Safe, cache Cache, fallback FallbackTable, log *logger.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if fallback == nil {
		fallback = DefaultFallback()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{source: source, cache: cache, fallback: fallback, log: log.With("component", "choice")}
}

// Resolve never fails. Whatever list is returned is cached first, fallback
// lists included, so the record store is asked at most once per key.
func (r *Resolver) Resolve(ctx context.Context, entityKind, fieldName string) Resolution {
	key := Key{EntityKind: entityKind, FieldName: fieldName}
	if cached, ok := r.cache.Get(ctx, key); ok {
		return Resolution{Choices: cached, Source: collaborator.SourceCache}
	}

	res := r.source.Choices(ctx, entityKind, fieldName)
	choices := res.Data
	if res.Degraded() {
		if res.Err != nil {
			r.log.Warn("choice list unavailable, using built-in table", "key", key.String(), "error", res.Err)
		} else {
			r.log.Debug("choice list empty, using built-in table", "key", key.String())
		}
		choices = r.fallback.Lookup(key)
	}
	r.cache.Put(ctx, key, choices)
	return Resolution{Choices: clone(choices), Source: res.Source}
}

func (r *Resolver) Choices(ctx context.Context, entityKind, fieldName string) []model.Choice {
	return r.Resolve(ctx, entityKind, fieldName).Choices
}

func (r *Resolver) Categories(ctx context.Context) []model.Choice {
	return r.Choices(ctx, model.EntityProblem, model.FieldCategory)
}

func (r *Resolver) Priorities(ctx context.Context) []model.Choice {
	return r.Choices(ctx, model.EntityProblem, model.FieldPriority)
}

func (r *Resolver) States(ctx context.Context) []model.Choice {
	return r.Choices(ctx, model.EntityProblem, model.FieldState)
}

// Label returns the label for value, or value itself when unknown.
func (r *Resolver) Label(ctx context.Context, entityKind, fieldName, value string) string {
	for _, c := range r.Choices(ctx, entityKind, fieldName) {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}
