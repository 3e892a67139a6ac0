package models

import "time"

const SourceDispatchService = "dispatch-service"

// DeliveryPayload is what the dispatch service publishes for a delivery that
// is ready to be handed to a sender.
type DeliveryPayload struct {
	DeliveryID    string    `json:"delivery_id"`
	TemplateID    string    `json:"template_id"`
	EventID       string    `json:"event_id"`
	TenantID      string    `json:"tenant_id"`
	Sender        string    `json:"sender"`
	Recipient     string    `json:"recipient"`
	Status        string    `json:"status"`
	IdentityKey   string    `json:"identity_key,omitempty"`
	IdentityValue string    `json:"identity_value,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (d DeliveryPayload) ToPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"delivery_id": d.DeliveryID,
		"template_id": d.TemplateID,
		"event_id":    d.EventID,
		"tenant_id":   d.TenantID,
		"sender":      d.Sender,
		"recipient":   d.Recipient,
		"status":      d.Status,
		"created_at":  d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if d.IdentityKey != "" {
		payload["identity_key"] = d.IdentityKey
		payload["identity_value"] = d.IdentityValue
	}
	return payload
}
