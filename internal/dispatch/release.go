package dispatch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

const (
	ReasonReleased         = "released after deferral"
	ReasonTemplateDisabled = "template no longer enabled"
	ReasonMaxDeferrals     = "max deferrals reached"
)

// Releaser re-evaluates deferred deliveries once their release time comes.
// Only the time-dependent filters run again: criteria and conditions were
// settled against the original event, which is not retained.
type Releaser struct {
	svc       *Service
	store     StatusStore
	templates TemplateLookup
	merger    *decision.Merger
}

func NewReleaser(svc *Service, store StatusStore, templates TemplateLookup) *Releaser {
	history := &excludingHistory{HistoryStore: store}
	filters := []decision.Filter{decision.NewSendRateFilter(history, svc.clock)}
	if svc.prefs != nil {
		filters = append(filters, decision.NewPreferenceFilter(history, svc.prefs, svc.clock))
	}

	return &Releaser{
		svc:       svc,
		store:     store,
		templates: templates,
		merger:    decision.NewMerger(filters, decision.WithObserver(MetricsObserver)),
	}
}

// Release handles one wake-up of a deferred delivery. Records that are gone
// or no longer pending_retry are ignored so duplicate tasks are harmless.
func (r *Releaser) Release(ctx context.Context, deliveryID string, deferrals int) (err error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch", "dispatch.release",
		attribute.String("delivery_id", deliveryID),
		attribute.Int("deferrals", deferrals),
	)
	defer func() { tracing.EndSpan(span, err) }()

	rec, err := r.store.GetDelivery(ctx, deliveryID)
	if pkgerrors.IsNotFound(err) {
		metrics.IncDeferredRelease("missing")
		r.svc.logger.WarnwCtx(ctx, "Deferred delivery not found", "delivery_id", deliveryID)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Status != decision.StatusPendingRetry {
		metrics.IncDeferredRelease("stale")
		return nil
	}
	// The stored count wins over a task that was re-enqueued without it.
	deferrals = max(deferrals, rec.Deferrals)

	ctx = logging.WithEventID(ctx, rec.EventID)
	ctx = logging.WithTenantID(ctx, rec.TenantID)
	ctx = logging.WithTemplateID(ctx, rec.TemplateID)

	tmpl, err := r.templates.GetTemplate(ctx, rec.TemplateID)
	if pkgerrors.IsNotFound(err) {
		return r.void(ctx, rec, ReasonTemplateDisabled)
	}
	if err != nil {
		return err
	}

	d, err := r.evaluate(ctx, rec, tmpl)
	if err != nil {
		return err
	}

	switch d.Verdict {
	case decision.SendNow:
		return r.deliver(ctx, rec)
	case decision.SendLater:
		if r.svc.cfg.MaxDeferrals > 0 && deferrals+1 >= r.svc.cfg.MaxDeferrals {
			return r.void(ctx, rec, ReasonMaxDeferrals)
		}
		return r.reschedule(ctx, rec, tmpl, d, deferrals+1)
	default:
		return r.void(ctx, rec, d.Reason)
	}
}

func (r *Releaser) evaluate(ctx context.Context, rec *decision.DeliveryRecord, tmpl *decision.Template) (decision.Decision, error) {
	evt := &decision.TriggeringEvent{
		ID:            rec.EventID,
		TenantID:      rec.TenantID,
		Subject:       tmpl.Subject,
		Verb:          tmpl.Verb,
		Context:       map[string]string{tmpl.RecipientKey: rec.Recipient},
		IdentityKey:   rec.IdentityKey,
		IdentityValue: rec.IdentityValue,
	}

	evaluations, err := r.merger.Evaluate(withExcluded(ctx, rec.ID), evt, []decision.Template{*tmpl})
	if err != nil {
		return decision.Decision{}, err
	}
	if evaluations[0].Skipped() {
		return decision.Never(evaluations[0].Err.Error()), nil
	}
	return evaluations[0].Decision, nil
}

func (r *Releaser) deliver(ctx context.Context, rec *decision.DeliveryRecord) error {
	if err := r.store.UpdateStatus(ctx, rec.ID, decision.StatusPendingDelivery, ReasonReleased, nil); err != nil {
		return fmt.Errorf("failed to release delivery %s: %w", rec.ID, err)
	}
	rec.Status = decision.StatusPendingDelivery
	rec.StatusMessage = ReasonReleased

	metrics.IncDeferredRelease("released")
	r.svc.logger.InfowCtx(ctx, "Deferred delivery released", "delivery_id", rec.ID)
	r.svc.publish(ctx, rec)
	return nil
}

func (r *Releaser) reschedule(ctx context.Context, rec *decision.DeliveryRecord, tmpl *decision.Template, d decision.Decision, deferrals int) error {
	next := r.svc.nextAttempt(ctx, tmpl, rec.Recipient)
	if err := r.store.Reschedule(ctx, rec.ID, d.Reason, next, deferrals); err != nil {
		return fmt.Errorf("failed to reschedule delivery %s: %w", rec.ID, err)
	}

	metrics.IncDeferredRelease("rescheduled")
	r.svc.logger.InfowCtx(ctx, "Deferred delivery rescheduled",
		"delivery_id", rec.ID,
		"reason", d.Reason,
		"release_at", next,
		"deferrals", deferrals,
	)
	r.svc.schedule(ctx, rec.ID, deferrals, next)
	return nil
}

func (r *Releaser) void(ctx context.Context, rec *decision.DeliveryRecord, reason string) error {
	if err := r.store.UpdateStatus(ctx, rec.ID, decision.StatusVoid, reason, nil); err != nil {
		return fmt.Errorf("failed to void delivery %s: %w", rec.ID, err)
	}
	metrics.IncDeferredRelease("voided")
	r.svc.logger.InfowCtx(ctx, "Deferred delivery voided", "delivery_id", rec.ID, "reason", reason)
	return nil
}

type excludedKey struct{}

func withExcluded(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, excludedKey{}, id)
}

// excludingHistory hides the record being released from its own rate and
// resend checks.
type excludingHistory struct {
	decision.HistoryStore
}

func (h *excludingHistory) FindDeliveries(ctx context.Context, q decision.DeliveryQuery) ([]decision.DeliveryRecord, error) {
	records, err := h.HistoryStore.FindDeliveries(ctx, q)
	if err != nil {
		return nil, err
	}
	id, _ := ctx.Value(excludedKey{}).(string)
	if id == "" {
		return records, nil
	}
	kept := records[:0:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}
