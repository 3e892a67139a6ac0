package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenContext(t *testing.T) {
	in := map[string]interface{}{
		"patient": map[string]interface{}{
			"email": "a@b.example",
			"age":   float64(42),
		},
		"tags":     []interface{}{"vip", true},
		"priority": "high",
		"missing":  nil,
	}

	assert.Equal(t, map[string]string{
		"patient.email": "a@b.example",
		"patient.age":   "42",
		"tags.0":        "vip",
		"tags.1":        "true",
		"priority":      "high",
		"missing":       "",
	}, FlattenContext(in))
}

func TestParseEventPayload(t *testing.T) {
	env := NewMessageEnvelopeBuilder().
		WithID("evt-1").
		WithSource("appointments").
		WithTimestamp(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)).
		WithPayload(map[string]interface{}{
			FieldTenantID:      "t1",
			FieldSubject:       "appointment",
			FieldVerb:          "created",
			FieldIdentityKey:   "appointment_id",
			FieldIdentityValue: "A1",
			FieldContext: map[string]interface{}{
				"patient": map[string]interface{}{"email": "a@b.example"},
			},
		}).
		Build()

	p, err := ParseEventPayload(env)
	require.NoError(t, err)
	assert.Equal(t, "t1", p.TenantID)
	assert.Equal(t, "appointment", p.Subject)
	assert.Equal(t, "created", p.Verb)
	assert.Equal(t, "A1", p.IdentityValue)
	assert.Equal(t, "a@b.example", p.Context["patient.email"])
	assert.Equal(t, env.Timestamp, p.OccurredAt)
}

func TestParseEventPayload_Invalid(t *testing.T) {
	base := func(payload map[string]interface{}) *MessageEnvelope {
		return NewMessageEnvelopeBuilder().WithID("e").WithSource("s").WithPayload(payload).Build()
	}

	tests := []struct {
		name    string
		payload map[string]interface{}
		field   string
	}{
		{"missing tenant", map[string]interface{}{FieldSubject: "a", FieldVerb: "b"}, FieldTenantID},
		{"missing verb", map[string]interface{}{FieldTenantID: "t", FieldSubject: "a"}, FieldVerb},
		{"context not object", map[string]interface{}{FieldTenantID: "t", FieldSubject: "a", FieldVerb: "b", FieldContext: "x"}, FieldContext},
		{"bad occurred_at", map[string]interface{}{FieldTenantID: "t", FieldSubject: "a", FieldVerb: "b", FieldOccurredAt: "yesterday"}, FieldOccurredAt},
		{"identity without value", map[string]interface{}{FieldTenantID: "t", FieldSubject: "a", FieldVerb: "b", FieldIdentityKey: "k"}, FieldIdentityValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEventPayload(base(tt.payload))
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestParseEventPayload_TenantFromMetadata(t *testing.T) {
	env := NewMessageEnvelopeBuilder().WithID("e").WithSource("s").WithTenantID("t9").
		WithPayload(map[string]interface{}{FieldSubject: "a", FieldVerb: "b"}).Build()

	p, err := ParseEventPayload(env)
	require.NoError(t, err)
	assert.Equal(t, "t9", p.TenantID)
	assert.Empty(t, p.Context)
}
