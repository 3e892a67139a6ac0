package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/dispatch"
	"herald/internal/history"
	"herald/internal/idempotency"
	"herald/internal/preferences"
	"herald/internal/templates"
	"herald/pkg/cel"
	"herald/pkg/models"
)

type capturingPublisher struct {
	mu       sync.Mutex
	messages []models.MessageEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type dispatchStack struct {
	service   *dispatch.Service
	releaser  *dispatch.Releaser
	history   history.Repository
	templates *templates.Service
	prefs     *preferences.CachedRepository
	publisher *capturingPublisher
	inspector *asynq.Inspector
}

func newDispatchStack(t *testing.T, infra *TestInfra, tmpl *decision.Template, extra ...dispatch.Option) *dispatchStack {
	t.Helper()
	ctx := context.Background()
	log := createTestLogger()

	templateRepo := templates.NewRepository(infra.PostgresDB)
	require.NoError(t, templateRepo.CreateTemplate(ctx, tmpl))
	tmplSvc := templates.NewService(templateRepo, config.TemplatesConfig{}, log)
	require.NoError(t, tmplSvc.Load(ctx))

	historyRepo := history.NewRepository(infra.PostgresDB)
	prefs := preferences.NewCachedRepository(
		preferences.NewRepository(infra.MongoDB, testPreferencesCollection),
		infra.RedisClient, time.Minute, log,
	)

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	merger := decision.NewMerger([]decision.Filter{
		decision.NewCriteriaFilter(),
		decision.NewConditionFilter(evaluator),
		decision.NewSendRateFilter(historyRepo, nil),
		decision.NewPreferenceFilter(historyRepo, prefs, nil),
	}, decision.WithConcurrency(4))

	redisOpt := asynq.RedisClientOpt{Addr: infra.RedisClient.Options().Addr}
	queueClient := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		queueClient.Close()
		inspector.Close()
	})

	publisher := &capturingPublisher{}
	guard := idempotency.NewService(idempotency.NewRepository(infra.RedisClient), createTestIdempotencyConfig(), log)

	opts := append([]dispatch.Option{
		dispatch.WithPreferences(prefs),
		dispatch.WithGuard(guard),
		dispatch.WithPublisher(publisher, "deliveries"),
		dispatch.WithScheduler(dispatch.NewAsynqScheduler(queueClient, config.QueueConfig{Name: "deliveries", MaxRetry: 3})),
	}, extra...)
	svc := dispatch.NewService(tmplSvc, merger, historyRepo, createTestDispatchConfig(), log, opts...)

	return &dispatchStack{
		service:   svc,
		releaser:  dispatch.NewReleaser(svc, historyRepo, tmplSvc),
		history:   historyRepo,
		templates: tmplSvc,
		prefs:     prefs,
		publisher: publisher,
		inspector: inspector,
	}
}

func TestDispatch_SendNowThenMaxSend(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	stack := newDispatchStack(t, infra, createTestTemplate("acme", "confirm"))
	require.NoError(t, stack.prefs.UpsertPreferences(ctx, &decision.RecipientPreferences{
		Recipient: "pat@example.com", Sender: "clinic", AllowedClasses: []string{"reminder"},
	}))

	outcome, err := stack.service.Dispatch(ctx, createTestEvent("evt-1", "pat@example.com"))
	require.NoError(t, err)
	require.Len(t, outcome.Created, 1)
	assert.Equal(t, decision.StatusPendingDelivery, outcome.Created[0].Status)
	assert.Equal(t, 1, stack.publisher.count())

	rec, err := stack.history.GetDelivery(ctx, outcome.Created[0].DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", rec.Recipient)
	assert.Equal(t, "A-1", rec.IdentityValue)

	// Redelivery of the same event is absorbed by the idempotency guard.
	outcome, err = stack.service.Dispatch(ctx, createTestEvent("evt-1", "pat@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Duplicates)
	assert.Empty(t, outcome.Created)

	// A second occurrence of the same trigger hits max_send.
	outcome, err = stack.service.Dispatch(ctx, createTestEvent("evt-2", "pat@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Vetoed)
	assert.Equal(t, 1, stack.publisher.count())
}

func TestDispatch_NoPreferencesVetoes(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	stack := newDispatchStack(t, infra, createTestTemplate("acme", "confirm"))

	outcome, err := stack.service.Dispatch(ctx, createTestEvent("evt-1", "nobody@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Vetoed)
	assert.Equal(t, 0, stack.publisher.count())
}

func TestDispatch_DeferAndRelease(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	stack := newDispatchStack(t, infra, createTestTemplate("acme", "confirm"))

	closedHour := (time.Now().UTC().Hour() + 2) % 24
	require.NoError(t, stack.prefs.UpsertPreferences(ctx, &decision.RecipientPreferences{
		Recipient:      "pat@example.com",
		Sender:         "clinic",
		AllowedClasses: []string{"reminder"},
		Window:         &decision.DeliveryWindow{StartHour: closedHour, EndHour: closedHour, Timezone: "UTC"},
	}))

	outcome, err := stack.service.Dispatch(ctx, createTestEvent("evt-1", "pat@example.com"))
	require.NoError(t, err)
	require.Len(t, outcome.Created, 1)
	assert.Equal(t, decision.StatusPendingRetry, outcome.Created[0].Status)
	assert.Equal(t, 0, stack.publisher.count())

	deliveryID := outcome.Created[0].DeliveryID
	rec, err := stack.history.GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	require.NotNil(t, rec.DeliverAfter)
	assert.Equal(t, closedHour, rec.DeliverAfter.UTC().Hour())

	scheduled, err := stack.inspector.ListScheduledTasks("deliveries")
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	payload, err := dispatch.ParseReleasePayload(scheduled[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, deliveryID, payload.DeliveryID)

	// The recipient widens the window; the release goes out.
	require.NoError(t, stack.prefs.UpsertPreferences(ctx, &decision.RecipientPreferences{
		Recipient: "pat@example.com", Sender: "clinic", AllowedClasses: []string{"reminder"},
	}))
	require.NoError(t, stack.releaser.Release(ctx, deliveryID, payload.Deferrals))

	rec, err = stack.history.GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusPendingDelivery, rec.Status)
	assert.Equal(t, 1, stack.publisher.count())

	// A duplicate wake-up is ignored.
	require.NoError(t, stack.releaser.Release(ctx, deliveryID, payload.Deferrals))
	assert.Equal(t, 1, stack.publisher.count())
}

func TestDispatch_SweeperRecoversLostTask(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	stack := newDispatchStack(t, infra, createTestTemplate("acme", "confirm"))

	past := time.Now().UTC().Add(-time.Hour)
	rec := createTestDelivery("t-lost", "pat@example.com", decision.StatusPendingRetry, past.Add(-time.Hour))
	rec.DeliverAfter = &past
	_, err := stack.history.CreateDelivery(ctx, rec)
	require.NoError(t, err)

	redisOpt := asynq.RedisClientOpt{Addr: infra.RedisClient.Options().Addr}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	sweeper := dispatch.NewSweeper(stack.history,
		dispatch.NewAsynqScheduler(queueClient, config.QueueConfig{Name: "deliveries"}),
		config.SweepConfig{IntervalSeconds: 60, StaleThresholdSeconds: 60, BatchSize: 10},
		nil,
		createTestLogger(),
	)

	assert.Equal(t, 1, sweeper.Sweep(ctx))

	pending, err := stack.inspector.ListPendingTasks("deliveries")
	require.NoError(t, err)
	scheduled, err := stack.inspector.ListScheduledTasks("deliveries")
	require.NoError(t, err)
	assert.Len(t, append(pending, scheduled...), 1)
}
