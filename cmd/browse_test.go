package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/problem-portal/internal/choice"
	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/collaborator/collaboratortest"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/portal"
)

func browseFixture() (*collaboratortest.Fake, *collaborator.Safe) {
	fake := collaboratortest.New()
	updated := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	fake.Problems = []model.ProblemRecord{
		{ID: model.Scalar("p1"), Number: model.Scalar("PRB001"), Title: model.Scalar("VPN drops"),
			Category: model.Scalar("network"), Priority: model.Scalar("1"), State: model.Scalar("101"),
			Active: model.Scalar("true"), UpdatedAt: model.Scalar(updated)},
		{ID: model.Scalar("p2"), Number: model.Scalar("PRB002"), Title: model.Scalar("Printer jams"),
			Category: model.Scalar("hardware"), Priority: model.Scalar("4"), State: model.Scalar("106"),
			Active: model.Scalar("false"), UpdatedAt: model.Scalar(updated)},
	}
	fake.Solutions = map[string][]model.SolutionArticle{
		"p1": {{ID: "kb1", Title: "Reconnect", BodyHTML: "<p>Reconnect the client</p>", HelpfulCount: 1}},
	}
	return fake, collaborator.NewSafe(fake, nil)
}

func TestRenderListing(t *testing.T) {
	_, safe := browseFixture()
	ctx := context.Background()
	o := portal.New(safe, portal.Options{})
	o.Mount(ctx)
	require.NoError(t, applyBrowseFilters(ctx, o, browseOptions{
		category: "network", priority: "all", state: "all", active: "all", dateRng: "week",
	}))

	var buf bytes.Buffer
	require.NoError(t, renderListing(ctx, &buf, o.Snapshot(), choice.NewResolver(safe, nil, nil, nil)))
	out := buf.String()
	assert.Contains(t, out, "Problems: 1 shown")
	assert.Contains(t, out, "PRB001")
	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "New")
	assert.NotContains(t, out, "Printer jams")
}

func TestRenderDetail(t *testing.T) {
	_, safe := browseFixture()
	ctx := context.Background()
	o := portal.New(safe, portal.Options{})
	o.Mount(ctx)
	require.NoError(t, o.Select(ctx, "p1"))

	var buf bytes.Buffer
	require.NoError(t, renderDetail(&buf, o.Snapshot()))
	assert.Contains(t, buf.String(), "Solutions: 1")
	assert.Contains(t, buf.String(), "100% helpful")
	assert.Contains(t, buf.String(), "Reconnect the client")
}

func TestProblemPayload(t *testing.T) {
	fake, _ := browseFixture()
	payload := ProblemPayload(fake.Problems[1])
	assert.Equal(t, "p2", payload["problem_id"])
	assert.Equal(t, false, payload["active"])
	assert.Contains(t, payload, "updated_at")
}
