package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/problem-portal/internal/application"
	"github.com/psds-microservice/problem-portal/internal/choice"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/portal"
	"github.com/psds-microservice/problem-portal/internal/view"
)

type browseOptions struct {
	search   string
	category string
	priority string
	state    string
	active   string
	dateRng  string
	dedup    bool
	selectID string
	asJSON   bool
}

var browseOpts browseOptions

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List known problems in the terminal, optionally opening one",
	RunE:  runBrowse,
}

func init() {
	f := browseCmd.Flags()
	f.StringVar(&browseOpts.search, "search", "", "search term (facets are ignored while searching)")
	f.StringVar(&browseOpts.category, "category", view.All, "category value")
	f.StringVar(&browseOpts.priority, "priority", view.All, "priority value (1-5)")
	f.StringVar(&browseOpts.state, "state", view.All, "state value")
	f.StringVar(&browseOpts.active, "active", view.All, "all, true or false")
	f.StringVar(&browseOpts.dateRng, "range", view.All, "all, today, week or month")
	f.BoolVar(&browseOpts.dedup, "dedup", false, "collapse problems with the same title")
	f.StringVar(&browseOpts.selectID, "select", "", "problem sys_id to open with its solutions")
	f.BoolVar(&browseOpts.asJSON, "json", false, "print the session snapshot as JSON")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	deps, err := application.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	o := portal.New(deps.Safe, portal.Options{
		Dedup:  browseOpts.dedup || cfg.DedupDefault,
		Events: deps.Producer,
		Log:    log,
	})
	o.Mount(ctx)
	if err := applyBrowseFilters(ctx, o, browseOpts); err != nil {
		return err
	}
	if browseOpts.selectID != "" {
		if err := o.Select(ctx, browseOpts.selectID); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	snap := o.Snapshot()
	if browseOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	if snap.Screen == portal.ScreenDetail {
		return renderDetail(out, snap)
	}
	return renderListing(ctx, out, snap, deps.Choices)
}

func applyBrowseFilters(ctx context.Context, o *portal.Orchestrator, opts browseOptions) error {
	facets := []struct {
		facet view.Facet
		value string
	}{
		{view.FacetCategory, opts.category},
		{view.FacetPriority, opts.priority},
		{view.FacetState, opts.state},
		{view.FacetActive, opts.active},
		{view.FacetDateRange, opts.dateRng},
	}
	for _, f := range facets {
		if err := o.SetFacet(ctx, f.facet, f.value); err != nil {
			return err
		}
	}
	if strings.TrimSpace(opts.search) != "" {
		return o.Search(ctx, opts.search)
	}
	return nil
}

func renderListing(ctx context.Context, w io.Writer, snap portal.Snapshot, choices *choice.Resolver) error {
	l := snap.Listing
	fmt.Fprintf(w, "Problems: %d shown", l.Total)
	if l.DuplicateCount > 0 {
		fmt.Fprintf(w, ", %d duplicates hidden", l.DuplicateCount)
	}
	if l.SearchMode {
		fmt.Fprintf(w, ", search %q", snap.Filter.SearchTerm)
	}
	if l.Source != "" {
		fmt.Fprintf(w, " (source: %s)", l.Source)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d total, %d active, %d inactive; this week %d new, %d resolved\n\n",
		snap.Stats.Total, snap.Stats.Active, snap.Stats.Inactive,
		snap.Activity.NewProblems, snap.Activity.ResolvedProblems)

	if l.Total == 0 {
		fmt.Fprintln(w, "No problems match the current filters.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tPRIORITY\tSTATE\tCATEGORY\tUPDATED\tTITLE")
	for _, p := range l.Problems {
		updated := "-"
		if t, ok := p.Updated(); ok {
			updated = t.Format("2006-01-02")
		}
		state := choices.Label(ctx, model.EntityProblem, model.FieldState, p.State.Value())
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Number.Display(),
			model.PriorityLabel(p.Priority.Value()),
			state,
			p.Category.Display(),
			updated,
			p.Title.Display(),
		)
	}
	return tw.Flush()
}

func renderDetail(w io.Writer, snap portal.Snapshot) error {
	p := snap.Selected
	fmt.Fprintf(w, "%s  %s\n", p.Number.Display(), p.Title.Display())
	fmt.Fprintf(w, "Priority: %s  State: %s  Category: %s\n\n",
		model.PriorityLabel(p.Priority.Value()), p.State.Display(), p.Category.Display())
	if d := strings.TrimSpace(p.Description.Display()); d != "" {
		fmt.Fprintln(w, d)
		fmt.Fprintln(w)
	}

	sols := snap.Solutions
	sort.SliceStable(sols, func(i, j int) bool { return sols[i].HelpfulPercentage > sols[j].HelpfulPercentage })
	fmt.Fprintf(w, "Solutions: %d\n", len(sols))
	for _, s := range sols {
		fmt.Fprintf(w, "- [%s] %s (%d%% helpful, %d votes)\n  %s\n",
			s.ID, s.Title, s.HelpfulPercentage, s.TotalVotes, s.Excerpt)
	}
	return nil
}
