package dispatch

import (
	"context"
	"errors"

	"herald/internal/decision"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/models"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// HandleMessage is the broker.HandlerFunc for triggering events. Malformed
// events are fatal so the consumer dead-letters them without retrying.
func (h *Handler) HandleMessage(ctx context.Context, msg models.MessageEnvelope) error {
	evt, err := EventFromEnvelope(&msg)
	if err != nil {
		metrics.DispatchEventsTotal.WithLabelValues("invalid").Inc()
		h.logger.WarnwCtx(ctx, "Rejecting invalid event", "error", err)
		return pkgerrors.ErrInvalidEvent.WithCause(err)
	}

	ctx = logging.WithTenantID(ctx, evt.TenantID)

	_, err = h.service.Dispatch(ctx, evt)
	if err != nil {
		metrics.DispatchEventsTotal.WithLabelValues("error").Inc()
		var lookupErr *decision.LookupError
		if errors.As(err, &lookupErr) {
			h.logger.ErrorwCtx(ctx, "Store lookup failed during evaluation",
				"filter", lookupErr.Filter,
				"template_id", lookupErr.TemplateID,
				"error", lookupErr.Err,
			)
			return pkgerrors.ErrLookupFailed.WithCause(err)
		}
		return err
	}

	metrics.DispatchEventsTotal.WithLabelValues("processed").Inc()
	return nil
}

// EventFromEnvelope decodes a bus envelope into a TriggeringEvent.
func EventFromEnvelope(msg *models.MessageEnvelope) (*decision.TriggeringEvent, error) {
	p, err := models.ParseEventPayload(msg)
	if err != nil {
		return nil, err
	}
	return &decision.TriggeringEvent{
		ID:            msg.ID,
		TenantID:      p.TenantID,
		Subject:       p.Subject,
		Verb:          p.Verb,
		Context:       p.Context,
		IdentityKey:   p.IdentityKey,
		IdentityValue: p.IdentityValue,
		OccurredAt:    p.OccurredAt,
	}, nil
}
