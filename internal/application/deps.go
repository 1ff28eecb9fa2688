package application

import (
	"context"
	"fmt"

	"github.com/psds-microservice/problem-portal/internal/choice"
	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/config"
	"github.com/psds-microservice/problem-portal/internal/database"
	"github.com/psds-microservice/problem-portal/internal/kafka"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/store"
	"github.com/psds-microservice/problem-portal/internal/tableapi"
)

// Deps are the collaborators shared by every entry point.
type Deps struct {
	Records  collaborator.RecordService
	Safe     *collaborator.Safe
	Choices  *choice.Resolver
	Producer *kafka.Producer
	Store    *store.Store

	closers []func() error
}

// Build connects the configured record store, choice cache and event
// producer. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Deps, error) {
	d := &Deps{}
	switch cfg.Collaborator {
	case config.CollaboratorPostgres:
		st, err := OpenStore(cfg, log)
		if err != nil {
			return nil, err
		}
		d.Store = st
		d.Records = st
	default:
		d.Records = tableapi.NewClient(cfg.TableAPI.URL, cfg.TableAPI.Token, cfg.TableAPI.Timeout, log)
	}
	d.Safe = collaborator.NewSafe(d.Records, log)

	fallback := choice.DefaultFallback()
	if cfg.ChoiceFallbackFile != "" {
		override, err := choice.LoadFallbackFile(cfg.ChoiceFallbackFile)
		if err != nil {
			return nil, err
		}
		fallback = fallback.Merge(override)
	}

	var cache choice.Cache = choice.NewMemoryCache()
	if cfg.ChoiceCache == config.ChoiceCacheRedis {
		rc, err := choice.NewRedisCache(ctx, cfg.RedisURL, cfg.ChoiceCacheTTL, log)
		if err != nil {
			return nil, fmt.Errorf("choice cache: %w", err)
		}
		d.closers = append(d.closers, rc.Close)
		cache = rc
	}
	d.Choices = choice.NewResolver(d.Safe, cache, fallback, log)

	d.Producer = kafka.NewProducer(kafka.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, log)
	d.closers = append(d.closers, d.Producer.Close)
	return d, nil
}

// OpenStore migrates and opens the Postgres-backed record store.
func OpenStore(cfg *config.Config, log *logger.Logger) (*store.Store, error) {
	if err := cfg.ValidateDB(); err != nil {
		return nil, err
	}
	if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN(), !cfg.IsProduction() && cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return store.New(db, log), nil
}

func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
