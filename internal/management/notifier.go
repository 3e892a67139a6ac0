package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"herald/internal/broker"
	"herald/pkg/logging"
	"herald/pkg/models"
)

const SourceManagementService = "management-service"

// ConfigEventProducer tells the dispatch service that templates or
// preferences changed so it can reload or invalidate.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishTemplateEvent(ctx context.Context, action, templateID, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType:   models.EventTypeTemplateUpdated,
		ServiceType: models.ServiceTypeDispatch,
		ResourceID:  templateID,
		Action:      action,
		Timestamp:   time.Now().UTC(),
		ChangedBy:   changedBy,
	})
}

func (p *ConfigEventProducer) PublishPreferenceEvent(ctx context.Context, action, resourceID, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType:   models.EventTypePreferenceUpdated,
		ServiceType: models.ServiceTypeDispatch,
		ResourceID:  resourceID,
		Action:      action,
		Timestamp:   time.Now().UTC(),
		ChangedBy:   changedBy,
	})
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithID(uuid.New().String()).
		WithSource(SourceManagementService).
		WithTimestamp(event.Timestamp).
		WithPayload(payload).
		WithTraceID(logging.GetTraceID(ctx)).
		Build()

	return p.producer.Publish(ctx, p.topic, *envelope)
}
