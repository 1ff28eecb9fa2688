// Package portal drives the problem portal screens: the listing with its
// search and facet filters, and the detail view with community solutions.
package portal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/dedup"
	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/kafka"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/solution"
	"github.com/psds-microservice/problem-portal/internal/stats"
	"github.com/psds-microservice/problem-portal/internal/view"
)

const eventTimeout = 5 * time.Second

// Options configure an Orchestrator. Zero values are usable.
type Options struct {
	Dedup  bool
	Now    func() time.Time
	Events kafka.EventPublisher
	Log    *logger.Logger
}

// Orchestrator holds one portal session. Methods are safe for concurrent
// use; collaborator calls run without the lock held and a response is applied
// only if no newer request of the same kind was issued meanwhile.
type Orchestrator struct {
	src    *collaborator.Safe
	now    func() time.Time
	events kafka.EventPublisher
	log    *logger.Logger

	mu     sync.Mutex
	screen Screen
	filter view.FilterState
	dedup  bool

	records       []model.ProblemRecord
	recordsSource collaborator.Source
	searchLoaded  bool
	loading       bool
	loadSeq       uint64

	stats       model.Stats
	statsSource collaborator.Source

	selected        *model.ProblemRecord
	board           *solution.Board
	solutionsSource collaborator.Source
	solutionSeq     uint64

	notifications []Notification
	nextNote      int
}

func New(src *collaborator.Safe, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Orchestrator{
		src:     src,
		now:     opts.Now,
		events:  opts.Events,
		log:     opts.Log.With("component", "portal"),
		screen:  ScreenListing,
		filter:  view.NewFilterState(),
		dedup:   opts.Dedup,
		records: []model.ProblemRecord{},
		stats:   model.NewStats(),
		board:   solution.NewBoard(nil),
	}
}

// Mount runs the initial full load and the stats load concurrently. Either
// may fall back without affecting the other.
func (o *Orchestrator) Mount(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		o.load(ctx, "")
		return nil
	})
	g.Go(func() error {
		o.loadStats(ctx)
		return nil
	})
	_ = g.Wait()
}

// Search replaces the record set with a search load. A blank term clears
// the search.
func (o *Orchestrator) Search(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return o.ClearSearch(ctx)
	}
	o.mu.Lock()
	if o.screen != ScreenListing {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("search from %s: %w", screen, errs.ErrInvalidTransition)
	}
	o.filter = o.filter.WithSearch(term)
	o.mu.Unlock()
	o.load(ctx, term)
	return nil
}

// ClearSearch leaves search mode and reloads the full set.
func (o *Orchestrator) ClearSearch(ctx context.Context) error {
	o.mu.Lock()
	if o.screen != ScreenListing {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("clear search from %s: %w", screen, errs.ErrInvalidTransition)
	}
	o.filter = o.filter.ClearSearch()
	o.mu.Unlock()
	o.load(ctx, "")
	return nil
}

// SetFacet changes one facet. Facets filter the loaded set locally; when the
// change leaves search mode the full set is reloaded first.
func (o *Orchestrator) SetFacet(ctx context.Context, facet view.Facet, value string) error {
	o.mu.Lock()
	if o.screen != ScreenListing {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("filter from %s: %w", screen, errs.ErrInvalidTransition)
	}
	next, err := o.filter.WithFacet(facet, value)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	reload := o.searchLoaded && !next.Searching()
	o.filter = next
	o.mu.Unlock()
	if reload {
		o.load(ctx, "")
	}
	return nil
}

// ResetFilters returns every facet to "all" and leaves search mode.
func (o *Orchestrator) ResetFilters(ctx context.Context) error {
	o.mu.Lock()
	if o.screen != ScreenListing {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("reset filters from %s: %w", screen, errs.ErrInvalidTransition)
	}
	o.filter = o.filter.Reset()
	reload := o.searchLoaded
	o.mu.Unlock()
	if reload {
		o.load(ctx, "")
	}
	return nil
}

func (o *Orchestrator) SetDedup(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dedup = enabled
}

// Listing is the derived record view shown on the listing screen.
type Listing struct {
	Problems       []model.ProblemRecord `json:"problems"`
	Total          int                   `json:"total"`
	Loaded         int                   `json:"loaded"`
	DuplicateCount int                   `json:"duplicate_count"`
	SearchMode     bool                  `json:"search_mode"`
	Source         collaborator.Source   `json:"source"`
	Loading        bool                  `json:"loading"`
}

// Visible deduplicates the loaded set when enabled, then applies the filter.
func (o *Orchestrator) Visible() Listing {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visibleLocked()
}

func (o *Orchestrator) visibleLocked() Listing {
	d := dedup.Deduplicate(o.records, o.dedup)
	visible := view.Apply(d.Records, o.filter, o.now())
	return Listing{
		Problems:       visible,
		Total:          len(visible),
		Loaded:         len(o.records),
		DuplicateCount: d.DuplicateCount,
		SearchMode:     o.filter.Searching(),
		Source:         o.recordsSource,
		Loading:        o.loading,
	}
}

// Select opens the detail screen for a loaded problem and loads its solutions.
func (o *Orchestrator) Select(ctx context.Context, problemID string) error {
	o.mu.Lock()
	if o.screen != ScreenListing {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("select from %s: %w", screen, errs.ErrInvalidTransition)
	}
	var found *model.ProblemRecord
	for i := range o.records {
		if o.records[i].ID.Value() == problemID {
			rec := o.records[i]
			found = &rec
			break
		}
	}
	if found == nil {
		o.mu.Unlock()
		return fmt.Errorf("select %q: %w", problemID, errs.ErrProblemNotFound)
	}
	o.screen = ScreenDetail
	o.selected = found
	o.board = solution.NewBoard(nil)
	o.solutionsSource = ""
	o.mu.Unlock()

	o.loadSolutions(ctx, problemID)
	return nil
}

// Back returns to the listing. A listing that came from a search is replaced
// by a full load.
func (o *Orchestrator) Back(ctx context.Context) error {
	o.mu.Lock()
	if o.screen != ScreenDetail {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("back from %s: %w", screen, errs.ErrInvalidTransition)
	}
	o.screen = ScreenListing
	o.selected = nil
	o.board = solution.NewBoard(nil)
	o.solutionSeq++
	reload := o.searchLoaded
	if reload {
		o.filter = o.filter.ClearSearch()
	}
	o.mu.Unlock()

	if reload {
		o.load(ctx, "")
	}
	return nil
}

// Vote sends a vote for a solution of the selected problem. The local
// counter changes only once the record store accepts the vote; failures
// leave an error notification.
func (o *Orchestrator) Vote(ctx context.Context, solutionID string, helpful bool) error {
	o.mu.Lock()
	if o.screen != ScreenDetail {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("vote from %s: %w", screen, errs.ErrInvalidTransition)
	}
	board := o.board
	o.mu.Unlock()

	if _, err := o.src.SubmitVote(ctx, solutionID, helpful); err != nil {
		o.notify(LevelError, msgVoteFailed)
		return err
	}
	updated, ok := board.Vote(solutionID, helpful)
	if ok {
		o.publish(kafka.EventSolutionVoted, solutionID, map[string]interface{}{
			"solution_id":       solutionID,
			"helpful":           helpful,
			"helpful_count":     updated.HelpfulCount,
			"not_helpful_count": updated.NotHelpfulCount,
		})
	}
	return nil
}

// SubmitSolution submits a trimmed, non-empty solution for the selected
// problem and reloads its solutions on success.
func (o *Orchestrator) SubmitSolution(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	o.mu.Lock()
	if o.screen != ScreenDetail || o.selected == nil {
		screen := o.screen
		o.mu.Unlock()
		return fmt.Errorf("submit solution from %s: %w", screen, errs.ErrInvalidTransition)
	}
	problemID := o.selected.ID.Value()
	o.mu.Unlock()
	if body == "" {
		return errs.ErrEmptySolution
	}

	ack, err := o.src.SubmitSolution(ctx, problemID, body)
	if err != nil {
		o.notify(LevelError, msgSolutionFailed)
		return err
	}
	o.notify(LevelSuccess, msgSolutionSubmitted)
	o.publish(kafka.EventSolutionSubmitted, problemID, map[string]interface{}{
		"problem_id":  problemID,
		"solution_id": ack.ID,
	})
	o.loadSolutions(ctx, problemID)
	return nil
}

func (o *Orchestrator) Notifications() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Notification, len(o.notifications))
	copy(out, o.notifications)
	return out
}

// Dismiss removes a notification; it reports whether one was removed.
func (o *Orchestrator) Dismiss(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, n := range o.notifications {
		if n.ID == id {
			o.notifications = append(o.notifications[:i], o.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot is everything a UI needs to render the current screen.
type Snapshot struct {
	Screen          Screen               `json:"screen"`
	Filter          view.FilterState     `json:"filter"`
	Dedup           bool                 `json:"dedup"`
	Listing         Listing              `json:"listing"`
	Stats           model.Stats          `json:"stats"`
	StatsSource     collaborator.Source  `json:"stats_source"`
	Activity        stats.Activity       `json:"activity"`
	Selected        *model.ProblemRecord `json:"selected,omitempty"`
	Solutions       []solution.View      `json:"solutions"`
	SolutionsSource collaborator.Source  `json:"solutions_source,omitempty"`
	Notifications   []Notification       `json:"notifications"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Screen:          o.screen,
		Filter:          o.filter,
		Dedup:           o.dedup,
		Listing:         o.visibleLocked(),
		Stats:           o.stats,
		StatsSource:     o.statsSource,
		Activity:        stats.SummarizeActivity(o.records, o.now()),
		Solutions:       solution.PresentAll(o.board.Articles()),
		SolutionsSource: o.solutionsSource,
		Notifications:   make([]Notification, len(o.notifications)),
	}
	copy(s.Notifications, o.notifications)
	if o.selected != nil {
		sel := *o.selected
		s.Selected = &sel
	}
	return s
}

func (o *Orchestrator) Screen() Screen {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.screen
}

func (o *Orchestrator) Filter() view.FilterState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filter
}

// load fetches the full set, or the search results for a non-empty term.
func (o *Orchestrator) load(ctx context.Context, term string) {
	o.mu.Lock()
	o.loadSeq++
	id := o.loadSeq
	o.loading = true
	o.mu.Unlock()

	var res collaborator.Result[[]model.ProblemRecord]
	if term != "" {
		res = o.src.Search(ctx, term, collaborator.Query{})
	} else {
		res = o.src.Problems(ctx, collaborator.Query{})
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if id != o.loadSeq {
		o.log.Debug("discarding stale load", "request", id, "latest", o.loadSeq)
		return
	}
	o.records = res.Data
	o.recordsSource = res.Source
	o.searchLoaded = term != ""
	o.loading = false
}

func (o *Orchestrator) loadStats(ctx context.Context) {
	res := o.src.Stats(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = res.Data
	o.statsSource = res.Source
}

func (o *Orchestrator) loadSolutions(ctx context.Context, problemID string) {
	o.mu.Lock()
	o.solutionSeq++
	id := o.solutionSeq
	o.mu.Unlock()

	res := o.src.Solutions(ctx, problemID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if id != o.solutionSeq || o.selected == nil || o.selected.ID.Value() != problemID {
		o.log.Debug("discarding stale solutions", "problem_id", problemID)
		return
	}
	o.board = solution.NewBoard(res.Data)
	o.solutionsSource = res.Source
}

func (o *Orchestrator) notify(level, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextNote++
	o.notifications = append(o.notifications, Notification{
		ID:      o.nextNote,
		Level:   level,
		Message: message,
		At:      o.now(),
	})
}

// publish sends the event in the background with its own timeout so a slow
// broker never holds up the session.
func (o *Orchestrator) publish(event, key string, payload map[string]interface{}) {
	if o.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		o.events.Publish(ctx, event, key, payload)
	}()
}
