package config_handler

import (
	"context"
	"encoding/json"

	"herald/internal/logger"
	"herald/pkg/models"
)

type ConfigReloader interface {
	ReloadTemplates(ctx context.Context) error
}

// CacheInvalidator drops cached state for a single resource.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, resourceID string) error
}

type Handler struct {
	expectedEventType   string
	expectedServiceType string
	reloader            ConfigReloader
	invalidator         CacheInvalidator
	logger              logger.Logger
}

func NewHandler(expectedEventType, expectedServiceType string, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType:   expectedEventType,
		expectedServiceType: expectedServiceType,
		logger:              log,
	}
}

func NewHandlerWithReloader(expectedEventType, expectedServiceType string, reloader ConfigReloader, log logger.Logger) *Handler {
	return NewHandler(expectedEventType, expectedServiceType, log).WithReloader(reloader)
}

func NewHandlerWithInvalidator(expectedEventType, expectedServiceType string, invalidator CacheInvalidator, log logger.Logger) *Handler {
	return NewHandler(expectedEventType, expectedServiceType, log).WithInvalidator(invalidator)
}

func (h *Handler) WithReloader(reloader ConfigReloader) *Handler {
	h.reloader = reloader
	return h
}

func (h *Handler) WithInvalidator(invalidator CacheInvalidator) *Handler {
	h.invalidator = invalidator
	return h
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType := envelope.GetPayloadString("event_type")
	if eventType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}
	if eventType != h.expectedEventType {
		return nil
	}

	serviceType := envelope.GetPayloadString("service_type")
	if serviceType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing service_type", "id", envelope.ID)
		return nil
	}
	if serviceType != h.expectedServiceType {
		return nil
	}

	var event models.ConfigUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to marshal event payload", "error", err, "id", envelope.ID)
		return err
	}

	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"resource_id", event.ResourceID,
	)

	if h.reloader != nil {
		if err := h.reloader.ReloadTemplates(ctx); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to reload templates after config update", "error", err)
			return err
		}
		h.logger.InfowCtx(ctx, "Templates reloaded after config update", "action", event.Action)
	}

	if h.invalidator != nil && event.ResourceID != "" {
		if err := h.invalidator.Invalidate(ctx, event.ResourceID); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to invalidate cache after config update",
				"error", err,
				"resource_id", event.ResourceID,
			)
			return err
		}
	}

	return nil
}
