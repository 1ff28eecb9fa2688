package choice_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/problem-portal/internal/choice"
	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/collaborator/collaboratortest"
	"github.com/psds-microservice/problem-portal/internal/model"
)

func TestResolve_FallbackPriorities(t *testing.T) {
	fake := collaboratortest.New()
	fake.ChoiceErr = collaboratortest.ErrUnavailable
	r := choice.NewResolver(collaborator.NewSafe(fake, nil), nil, nil, nil)

	res := r.Resolve(context.Background(), model.EntityProblem, model.FieldPriority)
	assert.Equal(t, collaborator.SourceFallback, res.Source)
	require.Len(t, res.Choices, 5)
	assert.Equal(t, model.Choice{Value: "1", Label: "1 - Critical"}, res.Choices[0])
	assert.Equal(t, model.Choice{Value: "5", Label: "5 - Planning"}, res.Choices[4])
}

func TestResolve_SecondCallServedFromCache(t *testing.T) {
	fake := collaboratortest.New()
	fake.Choices = map[string][]model.Choice{
		collaboratortest.ChoiceKey("problem", "category"): {{Value: "storage", Label: "Storage"}},
	}
	r := choice.NewResolver(collaborator.NewSafe(fake, nil), nil, nil, nil)
	ctx := context.Background()

	first := r.Resolve(ctx, "problem", "category")
	second := r.Resolve(ctx, "problem", "category")

	assert.Equal(t, collaborator.SourceLive, first.Source)
	assert.Equal(t, collaborator.SourceCache, second.Source)
	assert.Equal(t, first.Choices, second.Choices)
	assert.Equal(t, 1, fake.Calls("FetchChoiceList"))
}

func TestResolve_FallbackIsCached(t *testing.T) {
	fake := collaboratortest.New()
	r := choice.NewResolver(collaborator.NewSafe(fake, nil), nil, nil, nil)
	ctx := context.Background()

	assert.Len(t, r.States(ctx), 6)
	assert.Len(t, r.States(ctx), 6)
	assert.Equal(t, 1, fake.Calls("FetchChoiceList"))
}

func TestResolve_UnknownFieldIsEmpty(t *testing.T) {
	fake := collaboratortest.New()
	r := choice.NewResolver(collaborator.NewSafe(fake, nil), nil, nil, nil)

	res := r.Resolve(context.Background(), "incident", "subcategory")
	assert.NotNil(t, res.Choices)
	assert.Empty(t, res.Choices)
}

func TestResolve_CallerCannotMutateCache(t *testing.T) {
	fake := collaboratortest.New()
	r := choice.NewResolver(collaborator.NewSafe(fake, nil), nil, nil, nil)
	ctx := context.Background()

	got := r.Categories(ctx)
	got[0].Label = "changed"
	assert.Equal(t, "Software", r.Categories(ctx)[0].Label)
}

func TestLabel(t *testing.T) {
	r := choice.NewResolver(collaborator.NewSafe(collaboratortest.New(), nil), nil, nil, nil)
	ctx := context.Background()
	assert.Equal(t, "Resolved", r.Label(ctx, model.EntityProblem, model.FieldState, "106"))
	assert.Equal(t, "999", r.Label(ctx, model.EntityProblem, model.FieldState, "999"))
}

func TestLoadFallbackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "choices.yaml")
	content := `problem:
  category:
    - value: storage
      label: Storage
    - value: cloud
      label: Cloud
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	override, err := choice.LoadFallbackFile(path)
	require.NoError(t, err)
	table := choice.DefaultFallback().Merge(override)

	cats := table.Lookup(choice.Key{EntityKind: "problem", FieldName: "category"})
	assert.Equal(t, []model.Choice{{Value: "storage", Label: "Storage"}, {Value: "cloud", Label: "Cloud"}}, cats)
	assert.Len(t, table.Lookup(choice.Key{EntityKind: "problem", FieldName: "priority"}), 5)
}

func TestLoadFallbackFile_Errors(t *testing.T) {
	_, err := choice.LoadFallbackFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("problem: [unclosed"), 0o600))
	_, err = choice.LoadFallbackFile(path)
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	c := choice.NewMemoryCache()
	ctx := context.Background()
	key := choice.Key{EntityKind: "problem", FieldName: "state"}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Put(ctx, key, []model.Choice{{Value: "101", Label: "New"}})
	got, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, c.Len())
}
