package templates

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type fakeRepository struct {
	Repository
	templates []decision.Template
	err       error
	calls     int
}

func (r *fakeRepository) GetEnabledTemplates(context.Context) ([]decision.Template, error) {
	r.calls++
	return r.templates, r.err
}

func orderTemplates() []decision.Template {
	return []decision.Template{
		{ID: "t1", TenantID: "acme", Subject: "order", Verb: "shipped", Enabled: true},
		{ID: "t2", TenantID: "acme", Subject: "order", Verb: "shipped", Enabled: true},
		{ID: "t3", TenantID: "acme", Subject: "order", Verb: "cancelled", Enabled: true},
		{ID: "t4", TenantID: "globex", Subject: "order", Verb: "shipped", Enabled: true},
	}
}

func TestService_GetCandidateTemplates(t *testing.T) {
	repo := &fakeRepository{templates: orderTemplates()}
	svc := NewService(repo, config.TemplatesConfig{}, logger.NopLogger())
	require.NoError(t, svc.Load(context.Background()))

	got, err := svc.GetCandidateTemplates(context.Background(), "acme", "order", "shipped")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)

	got, err = svc.GetCandidateTemplates(context.Background(), "acme", "invoice", "paid")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_CandidatesAreCopies(t *testing.T) {
	svc := NewService(&fakeRepository{templates: orderTemplates()}, config.TemplatesConfig{}, logger.NopLogger())
	require.NoError(t, svc.Load(context.Background()))

	got, _ := svc.GetCandidateTemplates(context.Background(), "acme", "order", "shipped")
	got[0].ID = "mutated"

	again, _ := svc.GetCandidateTemplates(context.Background(), "acme", "order", "shipped")
	assert.Equal(t, "t1", again[0].ID)
}

func TestService_ReloadFailureKeepsPreviousIndex(t *testing.T) {
	repo := &fakeRepository{templates: orderTemplates()}
	svc := NewService(repo, config.TemplatesConfig{}, logger.NopLogger())
	require.NoError(t, svc.Load(context.Background()))

	repo.err = errors.New("connection refused")
	assert.Error(t, svc.ReloadTemplates(context.Background()))

	got, _ := svc.GetCandidateTemplates(context.Background(), "globex", "order", "shipped")
	assert.Len(t, got, 1)
}

func TestService_ReloadJitterHonoursCancellation(t *testing.T) {
	repo := &fakeRepository{templates: orderTemplates()}
	cfg := config.TemplatesConfig{Reload: config.ReloadConfig{JitterMaxMilliseconds: 60000}}
	svc := NewService(repo, cfg, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.ReloadTemplates(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, repo.calls)
	}
}

func TestHandler_ReloadsOnTemplateEvent(t *testing.T) {
	repo := &fakeRepository{templates: orderTemplates()}
	svc := NewService(repo, config.TemplatesConfig{}, logger.NopLogger())
	h := NewHandler(svc, logger.NopLogger())

	err := h.HandleConfigUpdateEvent(context.Background(), models.MessageEnvelope{
		ID: "cfg-1",
		Payload: map[string]interface{}{
			"event_type":   models.EventTypeTemplateUpdated,
			"service_type": models.ServiceTypeDispatch,
			"action":       models.ActionCreate,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}

func TestService_GetTemplate(t *testing.T) {
	svc := NewService(&fakeRepository{templates: orderTemplates()}, config.TemplatesConfig{}, logger.NopLogger())
	require.NoError(t, svc.Load(context.Background()))

	tmpl, err := svc.GetTemplate(context.Background(), "t3")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", tmpl.Verb)

	_, err = svc.GetTemplate(context.Background(), "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}
