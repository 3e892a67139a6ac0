// Package dispatch drives the decision engine for each triggering event and
// turns accepted decisions into delivery records.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/logger"
	"herald/pkg/clock"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/models"
	"herald/pkg/retry"
	"herald/pkg/tracing"
)

// Publisher hands a ready delivery to the downstream sender.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
}

// Scheduler arranges for a deferred delivery to be re-evaluated at a later
// instant.
type Scheduler interface {
	ScheduleRelease(ctx context.Context, deliveryID string, deferrals int, at time.Time) error
}

// Guard enforces at most one record per (event, template).
type Guard interface {
	Claim(ctx context.Context, eventID, templateID string) (bool, error)
	Release(ctx context.Context, eventID, templateID string) error
}

// StatusStore is the part of the history store the release path needs.
type StatusStore interface {
	decision.HistoryStore
	GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error)
	UpdateStatus(ctx context.Context, id string, status decision.Status, message string, deliverAfter *time.Time) error
	Reschedule(ctx context.Context, id string, message string, deliverAfter time.Time, deferrals int) error
}

// TemplateLookup resolves a single enabled template by id.
type TemplateLookup interface {
	GetTemplate(ctx context.Context, id string) (*decision.Template, error)
}

type Service struct {
	templates   decision.TemplateSource
	merger      *decision.Merger
	sink        decision.DeliverySink
	prefs       decision.PreferenceStore
	guard       Guard
	publisher   Publisher
	outputTopic string
	scheduler   Scheduler
	clock       clock.Clock
	cfg         config.DispatchConfig
	logger      logger.Logger
}

type Option func(*Service)

// WithPreferences lets the service place deferred deliveries at the opening
// of the recipient's delivery window.
func WithPreferences(prefs decision.PreferenceStore) Option {
	return func(s *Service) { s.prefs = prefs }
}

func WithGuard(g Guard) Option {
	return func(s *Service) { s.guard = g }
}

func WithPublisher(p Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.outputTopic = topic
	}
}

func WithScheduler(sch Scheduler) Option {
	return func(s *Service) { s.scheduler = sch }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

func NewService(templates decision.TemplateSource, merger *decision.Merger, sink decision.DeliverySink, cfg config.DispatchConfig, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		templates: templates,
		merger:    merger,
		sink:      sink,
		clock:     clock.Real(),
		cfg:       cfg,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatedDelivery describes one record written for an event.
type CreatedDelivery struct {
	DeliveryID string           `json:"delivery_id"`
	TemplateID string           `json:"template_id"`
	Recipient  string           `json:"recipient"`
	Verdict    decision.Verdict `json:"verdict"`
	Status     decision.Status  `json:"status"`
}

// Outcome summarises what Dispatch did with one event.
type Outcome struct {
	EventID     string                `json:"event_id"`
	Candidates  int                   `json:"candidates"`
	Created     []CreatedDelivery     `json:"created"`
	Vetoed      int                   `json:"vetoed"`
	Skipped     int                   `json:"skipped"`
	Duplicates  int                   `json:"duplicates"`
	Evaluations []decision.Evaluation `json:"-"`
}

// Dispatch evaluates evt against its candidate templates and creates one
// delivery record per template that is not vetoed. A lookup failure aborts
// the event before any record is written. Cancellation between templates
// leaves the remaining templates without records.
func (s *Service) Dispatch(ctx context.Context, evt *decision.TriggeringEvent) (outcome *Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch", "dispatch.event",
		attribute.String("event_id", evt.ID),
		attribute.String("tenant_id", evt.TenantID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	defer func(start time.Time) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ObserveDispatchDuration(time.Since(start), status)
	}(time.Now())

	outcome = &Outcome{EventID: evt.ID}

	candidates, err := s.templates.GetCandidateTemplates(ctx, evt.TenantID, evt.Subject, evt.Verb)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate templates: %w", err)
	}
	outcome.Candidates = len(candidates)
	if len(candidates) == 0 {
		s.logger.DebugwCtx(ctx, "No candidate templates for event",
			"subject", evt.Subject,
			"verb", evt.Verb,
		)
		return outcome, nil
	}

	evaluations, err := s.merger.Evaluate(ctx, evt, candidates)
	if err != nil {
		return nil, err
	}
	outcome.Evaluations = evaluations

	for i := range evaluations {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if err := s.apply(ctx, evt, &evaluations[i], outcome); err != nil {
			return outcome, err
		}
	}

	s.logger.InfowCtx(ctx, "Event dispatched",
		"candidates", outcome.Candidates,
		"created", len(outcome.Created),
		"vetoed", outcome.Vetoed,
		"skipped", outcome.Skipped,
		"duplicates", outcome.Duplicates,
	)
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, evt *decision.TriggeringEvent, ev *decision.Evaluation, outcome *Outcome) error {
	tmplCtx := logging.WithTemplateID(ctx, ev.Template.ID)

	if ev.Skipped() {
		outcome.Skipped++
		metrics.IncTemplateSkipped("recipient_unresolved")
		s.logger.WarnwCtx(tmplCtx, "Template skipped", "error", ev.Err)
		return nil
	}

	metrics.IncVerdict(ev.Decision.Verdict.String())
	if ev.Decision.Verdict == decision.SendNever {
		outcome.Vetoed++
		s.logger.DebugwCtx(tmplCtx, "Template vetoed", "reason", ev.Decision.Reason)
		return nil
	}

	status, err := decision.StatusFor(ev.Decision.Verdict)
	if err != nil {
		return err
	}

	if s.guard != nil {
		claimed, err := s.guard.Claim(tmplCtx, evt.ID, ev.Template.ID)
		if err != nil {
			return fmt.Errorf("failed to claim delivery for template %s: %w", ev.Template.ID, err)
		}
		if !claimed {
			outcome.Duplicates++
			metrics.IncTemplateSkipped("duplicate")
			s.logger.InfowCtx(tmplCtx, "Delivery already recorded for event, skipping")
			return nil
		}
	}

	rec := &decision.DeliveryRecord{
		TemplateID:    ev.Template.ID,
		TenantID:      evt.TenantID,
		EventID:       evt.ID,
		Sender:        ev.Template.Sender,
		Recipient:     ev.Recipient,
		Status:        status,
		StatusMessage: ev.Decision.Reason,
		IdentityKey:   evt.IdentityKey,
		IdentityValue: evt.IdentityValue,
		CreatedAt:     s.clock.Now().UTC(),
	}

	var releaseAt time.Time
	if status == decision.StatusPendingRetry {
		releaseAt = s.nextAttempt(tmplCtx, &ev.Template, ev.Recipient)
		rec.DeliverAfter = &releaseAt
	}

	id, err := s.sink.CreateDelivery(tmplCtx, rec)
	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(tmplCtx, evt.ID, ev.Template.ID); relErr != nil {
				s.logger.WarnwCtx(tmplCtx, "Failed to release idempotency claim", "error", relErr)
			}
		}
		return fmt.Errorf("failed to create delivery for template %s: %w", ev.Template.ID, err)
	}
	rec.ID = id

	metrics.IncDeliveryCreated(string(status))
	outcome.Created = append(outcome.Created, CreatedDelivery{
		DeliveryID: id,
		TemplateID: ev.Template.ID,
		Recipient:  ev.Recipient,
		Verdict:    ev.Decision.Verdict,
		Status:     status,
	})

	switch status {
	case decision.StatusPendingDelivery:
		s.publish(tmplCtx, rec)
	case decision.StatusPendingRetry:
		s.schedule(tmplCtx, rec.ID, 0, releaseAt)
	}
	return nil
}

// nextAttempt picks when a deferred delivery should be looked at again: the
// opening of the recipient's window if there is one, otherwise DeferDelay.
func (s *Service) nextAttempt(ctx context.Context, tmpl *decision.Template, recipient string) time.Time {
	now := s.clock.Now()
	fallback := now.Add(s.deferDelay())

	if s.prefs == nil {
		return fallback
	}
	prefs, err := s.prefs.GetPreferences(ctx, recipient, tmpl.Sender)
	if err != nil || prefs == nil || prefs.Window == nil {
		return fallback
	}
	opening, err := prefs.Window.NextOpening(now)
	if err != nil || !opening.After(now) {
		return fallback
	}
	return opening
}

func (s *Service) deferDelay() time.Duration {
	if s.cfg.DeferDelay > 0 {
		return s.cfg.DeferDelay
	}
	return 15 * time.Minute
}

// publish retries briefly. A record that still cannot be published stays
// pending_delivery in the store, which is the source of truth.
func (s *Service) publish(ctx context.Context, rec *decision.DeliveryRecord) {
	if s.publisher == nil {
		return
	}

	env := NewDeliveryEnvelope(rec, decision.Decision{Verdict: decision.SendNow, Reason: rec.StatusMessage}, s.clock.Now())
	env.Metadata.TraceID = logging.GetTraceID(ctx)

	policy := retry.DefaultPolicy()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	if s.cfg.PublishRetries > 0 {
		policy.MaxAttempts = s.cfg.PublishRetries
	}

	err := retry.Retry(ctx, policy, func() error {
		return s.publisher.Publish(ctx, s.outputTopic, env)
	})
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish delivery",
			"error", err,
			"delivery_id", rec.ID,
			"topic", s.outputTopic,
		)
		return
	}
	s.logger.DebugwCtx(ctx, "Delivery published", "delivery_id", rec.ID, "topic", s.outputTopic)
}

func (s *Service) schedule(ctx context.Context, deliveryID string, deferrals int, at time.Time) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleRelease(ctx, deliveryID, deferrals, at); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to schedule deferred delivery, leaving it to the sweeper",
			"error", err,
			"delivery_id", deliveryID,
			"release_at", at,
		)
	}
}

// NewDeliveryEnvelope builds the message published for a ready delivery.
func NewDeliveryEnvelope(rec *decision.DeliveryRecord, d decision.Decision, decidedAt time.Time) models.MessageEnvelope {
	payload := models.DeliveryPayload{
		DeliveryID:    rec.ID,
		TemplateID:    rec.TemplateID,
		EventID:       rec.EventID,
		TenantID:      rec.TenantID,
		Sender:        rec.Sender,
		Recipient:     rec.Recipient,
		Status:        string(decision.StatusPendingDelivery),
		IdentityKey:   rec.IdentityKey,
		IdentityValue: rec.IdentityValue,
		CreatedAt:     rec.CreatedAt,
	}

	return *models.NewMessageEnvelopeBuilder().
		WithID(rec.ID).
		WithSource(models.SourceDispatchService).
		WithTimestamp(decidedAt.UTC()).
		WithPayload(payload.ToPayload()).
		WithTenantID(rec.TenantID).
		WithDecision(models.DecisionInfo{
			TemplateID: rec.TemplateID,
			Verdict:    d.Verdict.String(),
			Reason:     d.Reason,
			DecidedAt:  decidedAt.UTC(),
		}).
		Build()
}

// MetricsObserver records per-filter opinions and latency.
func MetricsObserver(_ *decision.Template, op decision.Opinion) {
	metrics.ObserveFilterOpinion(op.Filter, op.Decision.Verdict.String(), op.Duration)
}
