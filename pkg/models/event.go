package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Payload field names of a triggering event envelope.
const (
	FieldTenantID      = "tenant_id"
	FieldSubject       = "subject"
	FieldVerb          = "verb"
	FieldIdentityKey   = "identity_key"
	FieldIdentityValue = "identity_value"
	FieldContext       = "context"
	FieldOccurredAt    = "occurred_at"
)

// EventPayload is the decoded business content of a triggering event.
type EventPayload struct {
	TenantID      string
	Subject       string
	Verb          string
	IdentityKey   string
	IdentityValue string
	Context       map[string]string
	OccurredAt    time.Time
}

// ParseEventPayload reads an EventPayload out of an envelope. The nested
// context object is flattened into dot-joined keys.
func ParseEventPayload(msg *MessageEnvelope) (*EventPayload, error) {
	if err := ValidateMessageEnvelope(msg); err != nil {
		return nil, err
	}

	p := &EventPayload{
		TenantID:      msg.GetPayloadString(FieldTenantID),
		Subject:       msg.GetPayloadString(FieldSubject),
		Verb:          msg.GetPayloadString(FieldVerb),
		IdentityKey:   msg.GetPayloadString(FieldIdentityKey),
		IdentityValue: msg.GetPayloadString(FieldIdentityValue),
		OccurredAt:    msg.Timestamp,
	}
	if p.TenantID == "" && msg.Metadata.TenantID != "" {
		p.TenantID = msg.Metadata.TenantID
	}

	if raw := msg.GetPayloadString(FieldOccurredAt); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &ValidationError{Field: FieldOccurredAt, Message: fmt.Sprintf("invalid timestamp %q", raw)}
		}
		p.OccurredAt = ts
	}

	switch ctx := msg.Payload[FieldContext].(type) {
	case nil:
		p.Context = map[string]string{}
	case map[string]interface{}:
		p.Context = FlattenContext(ctx)
	default:
		return nil, &ValidationError{Field: FieldContext, Message: "context must be an object"}
	}

	if err := ValidateEventPayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ToPayload is the inverse of ParseEventPayload for an already flat context.
func (p *EventPayload) ToPayload() map[string]interface{} {
	ctx := make(map[string]interface{}, len(p.Context))
	for k, v := range p.Context {
		ctx[k] = v
	}
	payload := map[string]interface{}{
		FieldTenantID: p.TenantID,
		FieldSubject:  p.Subject,
		FieldVerb:     p.Verb,
		FieldContext:  ctx,
	}
	if p.IdentityKey != "" {
		payload[FieldIdentityKey] = p.IdentityKey
		payload[FieldIdentityValue] = p.IdentityValue
	}
	if !p.OccurredAt.IsZero() {
		payload[FieldOccurredAt] = p.OccurredAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// FlattenContext turns nested objects into dot-joined keys and renders every
// leaf as a string. Arrays use their index as the key segment.
func FlattenContext(in map[string]interface{}) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]string, prefix string, v interface{}) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(out, join(k), val[k])
		}
	case []interface{}:
		for i, item := range val {
			flattenInto(out, join(strconv.Itoa(i)), item)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		out[prefix] = scalarString(val)
	}
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
