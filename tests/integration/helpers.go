package integration

import (
	"fmt"
	"time"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/logger"
)

const (
	containerStartupTimeout   = 60
	timestampDelay            = 10 * time.Millisecond
	testPreferencesCollection = "recipient_preferences"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestIdempotencyConfig() config.IdempotencyConfig {
	return config.IdempotencyConfig{
		Enabled:       true,
		HashAlgorithm: "sha256",
		TTLSeconds:    300,
		OnRedisError:  "deny",
	}
}

func createTestDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Concurrency:    4,
		DeferDelay:     15 * time.Minute,
		MaxDeferrals:   3,
		PublishRetries: 1,
	}
}

func createTestTemplate(tenantID, name string) *decision.Template {
	return &decision.Template{
		TenantID:     tenantID,
		Subject:      "appointment",
		Verb:         "booked",
		Name:         name,
		Sender:       "clinic",
		RecipientKey: "patient.email",
		MessageClass: "reminder",
		MaxSend:      1,
		Enabled:      true,
	}
}

func createTestDelivery(templateID, recipient string, status decision.Status, createdAt time.Time) *decision.DeliveryRecord {
	return &decision.DeliveryRecord{
		TemplateID:    templateID,
		TenantID:      "acme",
		EventID:       fmt.Sprintf("evt-%d", createdAt.UnixNano()),
		Sender:        "clinic",
		Recipient:     recipient,
		Status:        status,
		IdentityKey:   "appointment_id",
		IdentityValue: "A-1",
		CreatedAt:     createdAt,
	}
}

func createTestEvent(id, recipient string) *decision.TriggeringEvent {
	return &decision.TriggeringEvent{
		ID:            id,
		TenantID:      "acme",
		Subject:       "appointment",
		Verb:          "booked",
		IdentityKey:   "appointment_id",
		IdentityValue: "A-1",
		Context:       map[string]string{"patient.email": recipient},
		OccurredAt:    time.Now().UTC(),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
