package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/templates"
	pkgerrors "herald/pkg/errors"
)

func TestTemplatesRepository_CreateAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := templates.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("acme", "booking-confirmation")
	tmpl.Criteria = map[string]string{"clinic.region": "north"}
	tmpl.ResendInterval = 2 * time.Hour
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))
	assert.NotEmpty(t, tmpl.ID)

	got, err := repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "booking-confirmation", got.Name)
	assert.Equal(t, map[string]string{"clinic.region": "north"}, got.Criteria)
	assert.Equal(t, 2*time.Hour, got.ResendInterval)
	assert.True(t, got.Enabled)
}

func TestTemplatesRepository_Create_Conflict(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := templates.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.CreateTemplate(ctx, createTestTemplate("acme", "dup")))
	err := repo.CreateTemplate(ctx, createTestTemplate("acme", "dup"))

	assert.True(t, pkgerrors.IsConflict(err))
	require.NoError(t, repo.CreateTemplate(ctx, createTestTemplate("globex", "dup")))
}

func TestTemplatesRepository_ListAndEnabled(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := templates.NewRepository(infra.PostgresDB)

	disabled := createTestTemplate("acme", "disabled")
	disabled.Enabled = false
	require.NoError(t, repo.CreateTemplate(ctx, createTestTemplate("acme", "first")))
	require.NoError(t, repo.CreateTemplate(ctx, disabled))
	require.NoError(t, repo.CreateTemplate(ctx, createTestTemplate("globex", "other")))

	acme, err := repo.ListTemplates(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	all, err := repo.ListTemplates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	enabled, err := repo.GetEnabledTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled, 2)
}

func TestTemplatesRepository_UpdateAndDelete(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := templates.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("acme", "update-me")
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	time.Sleep(timestampDelay)
	tmpl.MaxSend = 5
	tmpl.Condition = `verb == "booked"`
	require.NoError(t, repo.UpdateTemplate(ctx, tmpl))

	got, err := repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MaxSend)
	assert.Equal(t, `verb == "booked"`, got.Condition)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, repo.DeleteTemplate(ctx, tmpl.ID))
	_, err = repo.GetTemplate(ctx, tmpl.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(repo.DeleteTemplate(ctx, tmpl.ID)))
}

func TestTemplatesService_CandidateIndex(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := templates.NewRepository(infra.PostgresDB)
	svc := templates.NewService(repo, config.TemplatesConfig{}, createTestLogger())

	tmpl := createTestTemplate("acme", "indexed")
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))
	require.NoError(t, svc.Load(ctx))

	candidates, err := svc.GetCandidateTemplates(ctx, "acme", "appointment", "booked")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, tmpl.ID, candidates[0].ID)

	none, err := svc.GetCandidateTemplates(ctx, "acme", "appointment", "cancelled")
	require.NoError(t, err)
	assert.Empty(t, none)

	tmpl.Enabled = false
	require.NoError(t, repo.UpdateTemplate(ctx, tmpl))
	require.NoError(t, svc.ReloadTemplates(ctx))

	candidates, err = svc.GetCandidateTemplates(ctx, "acme", "appointment", "booked")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
