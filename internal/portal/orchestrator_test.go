package portal_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/collaborator/collaboratortest"
	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/portal"
	"github.com/psds-microservice/problem-portal/internal/view"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func problem(id, title, category string) model.ProblemRecord {
	return model.ProblemRecord{
		ID:        model.Pair(id, id),
		Number:    model.Pair("PRB"+id, "PRB"+id),
		Title:     model.Pair(title, title),
		Category:  model.Pair(category, category),
		Active:    model.Pair("true", "true"),
		UpdatedAt: model.Scalar(now.Add(-48 * time.Hour).Format(time.RFC3339)),
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(_ context.Context, event, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newPortal(t *testing.T, fake *collaboratortest.Fake, opts portal.Options) *portal.Orchestrator {
	t.Helper()
	opts.Now = func() time.Time { return now }
	return portal.New(collaborator.NewSafe(fake, nil), opts)
}

func titles(records []model.ProblemRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Title.Display())
	}
	return out
}

func TestMount_DedupEndToEnd(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{
		problem("1", "A", "network"),
		problem("2", "a ", "network"),
		problem("3", "B", "software"),
	}
	o := newPortal(t, fake, portal.Options{Dedup: true})
	o.Mount(context.Background())

	l := o.Visible()
	assert.Equal(t, []string{"A", "B"}, titles(l.Problems))
	assert.Equal(t, 2, l.Total)
	assert.Equal(t, 1, l.DuplicateCount)
	assert.Equal(t, collaborator.SourceLive, l.Source)

	o.SetDedup(false)
	assert.Equal(t, 3, o.Visible().Total)
}

func TestMount_StatsAndRecordsFailIndependently(t *testing.T) {
	fake := collaboratortest.New()
	fake.Stats = &model.Stats{Total: 7}
	fake.FetchErr = collaboratortest.ErrUnavailable
	o := newPortal(t, fake, portal.Options{})
	o.Mount(context.Background())

	snap := o.Snapshot()
	assert.Empty(t, snap.Listing.Problems)
	assert.Equal(t, collaborator.SourceFallback, snap.Listing.Source)
	assert.Equal(t, 7, snap.Stats.Total)
	assert.Equal(t, collaborator.SourceLive, snap.StatsSource)
}

func TestSearchAndFacetExclusivity(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{
		problem("1", "VPN drops", "network"),
		problem("2", "Printer jams", "hardware"),
	}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)

	require.NoError(t, o.Search(ctx, "vpn"))
	l := o.Visible()
	assert.True(t, l.SearchMode)
	assert.Equal(t, []string{"VPN drops"}, titles(l.Problems))

	require.NoError(t, o.SetFacet(ctx, view.FacetCategory, "hardware"))
	f := o.Filter()
	assert.False(t, f.SearchMode)
	assert.Empty(t, f.SearchTerm)
	assert.Equal(t, []string{"Printer jams"}, titles(o.Visible().Problems))
	assert.Equal(t, 2, fake.Calls("FetchProblems"))

	require.NoError(t, o.Search(ctx, "printer"))
	assert.Equal(t, "hardware", o.Filter().Category)
	assert.Equal(t, []string{"Printer jams"}, titles(o.Visible().Problems))

	require.NoError(t, o.ClearSearch(ctx))
	assert.False(t, o.Visible().SearchMode)
	assert.Equal(t, 3, fake.Calls("FetchProblems"))
}

func TestSetFacet_InvalidValue(t *testing.T) {
	o := newPortal(t, collaboratortest.New(), portal.Options{})
	err := o.SetFacet(context.Background(), view.FacetDateRange, "year")
	assert.ErrorIs(t, err, errs.ErrInvalidFilter)
}

func TestSearch_BlankTermClears(t *testing.T) {
	fake := collaboratortest.New()
	o := newPortal(t, fake, portal.Options{})
	require.NoError(t, o.Search(context.Background(), "   "))
	assert.Equal(t, 0, fake.Calls("SearchProblems"))
	assert.Equal(t, 1, fake.Calls("FetchProblems"))
}

func TestSelectAndBack(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	fake.Solutions = map[string][]model.SolutionArticle{
		"p1": {{ID: "kb1", Title: "Restart", BodyHTML: "<p>Restart the agent</p>", HelpfulCount: 3, NotHelpfulCount: 1}},
	}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)

	assert.ErrorIs(t, o.Back(ctx), errs.ErrInvalidTransition)
	assert.ErrorIs(t, o.Select(ctx, "missing"), errs.ErrProblemNotFound)

	require.NoError(t, o.Select(ctx, "p1"))
	snap := o.Snapshot()
	assert.Equal(t, portal.ScreenDetail, snap.Screen)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "p1", snap.Selected.ID.Value())
	require.Len(t, snap.Solutions, 1)
	assert.Equal(t, 75, snap.Solutions[0].HelpfulPercentage)
	assert.Equal(t, "Restart the agent", snap.Solutions[0].Excerpt)

	assert.ErrorIs(t, o.Search(ctx, "x"), errs.ErrInvalidTransition)
	assert.ErrorIs(t, o.Select(ctx, "p1"), errs.ErrInvalidTransition)

	require.NoError(t, o.Back(ctx))
	assert.Equal(t, portal.ScreenListing, o.Screen())
	assert.Equal(t, 1, fake.Calls("FetchProblems"))
}

func TestInvalidTransitionsUnderConcurrentNavigation(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := o.Select(ctx, "p1"); err == nil {
				_ = o.Back(ctx)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			for _, err := range []error{
				o.Search(ctx, "vpn"),
				o.ClearSearch(ctx),
				o.SetFacet(ctx, view.FacetCategory, "network"),
				o.ResetFilters(ctx),
			} {
				if err != nil {
					assert.ErrorIs(t, err, errs.ErrInvalidTransition)
				}
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, portal.ScreenListing, o.Screen())
}

func TestBack_AfterSearchReloadsFullSet(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{
		problem("p1", "VPN drops", "network"),
		problem("p2", "Printer jams", "hardware"),
	}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)

	require.NoError(t, o.Search(ctx, "vpn"))
	require.NoError(t, o.Select(ctx, "p1"))
	require.NoError(t, o.Back(ctx))

	assert.Equal(t, 2, fake.Calls("FetchProblems"))
	l := o.Visible()
	assert.False(t, l.SearchMode)
	assert.Equal(t, 2, l.Total)
}

func TestVote(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	fake.Solutions = map[string][]model.SolutionArticle{
		"p1": {{ID: "kb1", HelpfulCount: 5, NotHelpfulCount: 2}},
	}
	rec := &recorder{}
	o := newPortal(t, fake, portal.Options{Events: rec})
	ctx := context.Background()
	o.Mount(ctx)

	assert.ErrorIs(t, o.Vote(ctx, "kb1", true), errs.ErrInvalidTransition)
	require.NoError(t, o.Select(ctx, "p1"))

	require.NoError(t, o.Vote(ctx, "kb1", true))
	sol := o.Snapshot().Solutions[0]
	assert.Equal(t, 6, sol.HelpfulCount)
	assert.Equal(t, 2, sol.NotHelpfulCount)
	assert.Eventually(t, func() bool { return len(rec.Events()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "solution.voted", rec.Events()[0])

	fake.VoteErr = collaboratortest.ErrUnavailable
	err := o.Vote(ctx, "kb1", false)
	assert.ErrorIs(t, err, errs.ErrCollaboratorUnavailable)
	snap := o.Snapshot()
	assert.Equal(t, 2, snap.Solutions[0].NotHelpfulCount)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, portal.LevelError, snap.Notifications[0].Level)

	assert.True(t, o.Dismiss(snap.Notifications[0].ID))
	assert.False(t, o.Dismiss(snap.Notifications[0].ID))
	assert.Empty(t, o.Notifications())
}

func TestVote_NotAcceptedKeepsCounters(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	fake.Solutions = map[string][]model.SolutionArticle{"p1": {{ID: "kb1", HelpfulCount: 1}}}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)
	require.NoError(t, o.Select(ctx, "p1"))

	fake.Ack = collaborator.Ack{Accepted: false}
	assert.ErrorIs(t, o.Vote(ctx, "kb1", true), errs.ErrNotAccepted)
	assert.Equal(t, 1, o.Snapshot().Solutions[0].HelpfulCount)
	assert.Len(t, o.Notifications(), 1)
}

func TestSubmitSolution(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)
	require.NoError(t, o.Select(ctx, "p1"))

	assert.ErrorIs(t, o.SubmitSolution(ctx, "   "), errs.ErrEmptySolution)
	assert.Equal(t, 0, fake.Calls("SubmitSolution"))

	require.NoError(t, o.SubmitSolution(ctx, "  Flush the DNS cache  "))
	assert.Equal(t, []string{"Flush the DNS cache"}, fake.SubmittedSolutions)
	assert.Equal(t, 2, fake.Calls("FetchRelatedSolutions"))

	snap := o.Snapshot()
	assert.Len(t, snap.Solutions, 1)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, portal.LevelSuccess, snap.Notifications[0].Level)
	assert.Equal(t, "Thank you! Your solution has been submitted and will be reviewed.", snap.Notifications[0].Message)
}

func TestStaleSearchIsDiscarded(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{
		problem("p1", "slow disk", "hardware"),
		problem("p2", "VPN drops", "network"),
	}
	release := make(chan struct{})
	fake.OnSearch = func(_ context.Context, term string) {
		if term == "slow" {
			<-release
		}
	}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Search(ctx, "slow")
	}()
	require.Eventually(t, func() bool { return fake.Calls("SearchProblems") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, o.ClearSearch(ctx))
	close(release)
	<-done

	l := o.Visible()
	assert.False(t, l.SearchMode)
	assert.Equal(t, 2, l.Total)
}

func TestSolutionsForPreviousSelectionAreDiscarded(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{
		problem("p1", "slow disk", "hardware"),
		problem("p2", "VPN drops", "network"),
	}
	fake.Solutions = map[string][]model.SolutionArticle{
		"p1": {{ID: "kb-disk", Title: "Replace the disk"}},
		"p2": {{ID: "kb-vpn", Title: "Reinstall the client"}},
	}
	release := make(chan struct{})
	fake.OnSolutions = func(_ context.Context, problemID string) {
		if problemID == "p1" {
			<-release
		}
	}
	o := newPortal(t, fake, portal.Options{})
	ctx := context.Background()
	o.Mount(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Select(ctx, "p1")
	}()
	require.Eventually(t, func() bool { return fake.Calls("FetchRelatedSolutions") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Back(ctx))
	require.NoError(t, o.Select(ctx, "p2"))
	close(release)
	<-done

	snap := o.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "p2", snap.Selected.ID.Value())
	require.Len(t, snap.Solutions, 1)
	assert.Equal(t, "kb-vpn", snap.Solutions[0].ID)
}

func TestSnapshot_JSON(t *testing.T) {
	fake := collaboratortest.New()
	fake.Problems = []model.ProblemRecord{problem("p1", "VPN drops", "network")}
	o := newPortal(t, fake, portal.Options{})
	o.Mount(context.Background())

	raw, err := json.Marshal(o.Snapshot())
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "listing", got["screen"])
	assert.Equal(t, "fallback", got["stats_source"])
}
