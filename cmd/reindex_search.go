package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/problem-portal/internal/application"
	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/config"
	"github.com/psds-microservice/problem-portal/internal/kafka"
	"github.com/psds-microservice/problem-portal/internal/model"
)

var reindexSearchCmd = &cobra.Command{
	Use:   "reindex-search",
	Short: "Publish a problem.updated event for every problem so search indexers can rebuild",
	RunE:  runReindexSearch,
}

func init() {
	rootCmd.AddCommand(reindexSearchCmd)
}

func runReindexSearch(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, log)
	defer producer.Close()
	if !producer.Enabled() {
		log.Warn("reindex-search: KAFKA_BROKERS not set, nothing to publish")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	sent := 0
	publish := func(p model.ProblemRecord) error {
		producer.Publish(ctx, kafka.EventProblemUpdated, p.ID.Value(), ProblemPayload(p))
		sent++
		if sent%50 == 0 {
			log.Info("reindex-search: progress", "sent", sent)
		}
		return nil
	}

	if cfg.Collaborator == config.CollaboratorPostgres {
		st, err := application.OpenStore(cfg, log)
		if err != nil {
			return err
		}
		if err := st.EachProblem(ctx, collaborator.MaxPageSize, publish); err != nil {
			return err
		}
	} else {
		deps, err := application.Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer deps.Close()
		// The table API serves one page per query.
		records, err := deps.Records.FetchProblems(ctx, collaborator.Query{})
		if err != nil {
			return fmt.Errorf("fetch problems: %w", err)
		}
		for _, p := range records {
			_ = publish(p)
		}
	}
	log.Info("reindex-search: done", "sent", sent, "topic", cfg.KafkaTopic)
	return nil
}

// ProblemPayload is the event body for one problem.
func ProblemPayload(p model.ProblemRecord) map[string]interface{} {
	payload := map[string]interface{}{
		"problem_id":  p.ID.Value(),
		"number":      p.Number.Value(),
		"title":       p.Title.Display(),
		"description": p.Description.Display(),
		"category":    p.Category.Value(),
		"priority":    p.Priority.Value(),
		"state":       p.State.Value(),
		"active":      p.IsActive(),
	}
	if t, ok := p.Updated(); ok {
		payload["updated_at"] = t.UTC().Format(time.RFC3339)
	}
	return payload
}
