package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "message envelope cannot be nil"}
	}
	if msg.ID == "" {
		return &ValidationError{Field: "id", Message: "message ID is required"}
	}
	if msg.Source == "" {
		return &ValidationError{Field: "source", Message: "message source is required"}
	}
	if msg.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "message timestamp is required"}
	}
	if msg.Payload == nil {
		return &ValidationError{Field: "payload", Message: "message payload cannot be nil"}
	}
	return nil
}

func ValidateEventPayload(p *EventPayload) error {
	switch {
	case p.TenantID == "":
		return &ValidationError{Field: FieldTenantID, Message: "tenant ID is required"}
	case p.Subject == "":
		return &ValidationError{Field: FieldSubject, Message: "subject is required"}
	case p.Verb == "":
		return &ValidationError{Field: FieldVerb, Message: "verb is required"}
	case p.IdentityKey != "" && p.IdentityValue == "":
		return &ValidationError{Field: FieldIdentityValue, Message: "identity value is required when identity key is set"}
	}
	return nil
}
