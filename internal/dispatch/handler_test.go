package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
	"herald/pkg/retry"
)

func bookedEnvelope(id string) models.MessageEnvelope {
	return *models.NewMessageEnvelopeBuilder().
		WithID(id).
		WithSource("scheduling").
		WithTimestamp(dispatchNow).
		WithPayload(map[string]interface{}{
			"tenant_id":      "acme",
			"subject":        "appointment",
			"verb":           "booked",
			"identity_key":   "appointment_id",
			"identity_value": "A-100",
			"context": map[string]interface{}{
				"patient": map[string]interface{}{"email": "pat@example.com"},
			},
		}).
		Build()
}

func TestHandler_DispatchesEvent(t *testing.T) {
	h := newHarness(t, config.DispatchConfig{}, reminderTemplate())
	handler := NewHandler(h.svc, logger.NopLogger())

	require.NoError(t, handler.HandleMessage(context.Background(), bookedEnvelope("e1")))

	records := h.store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].EventID)
	assert.Equal(t, "pat@example.com", records[0].Recipient)
}

func TestHandler_InvalidEventIsFatal(t *testing.T) {
	h := newHarness(t, config.DispatchConfig{}, reminderTemplate())
	handler := NewHandler(h.svc, logger.NopLogger())

	env := bookedEnvelope("e1")
	delete(env.Payload, "verb")

	err := handler.HandleMessage(context.Background(), env)
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidEvent)
}

func TestHandler_LookupFailureIsRetryable(t *testing.T) {
	h := newHarness(t, config.DispatchConfig{}, reminderTemplate())
	h.store.findErr = errors.New("connection refused")
	handler := NewHandler(h.svc, logger.NopLogger())

	err := handler.HandleMessage(context.Background(), bookedEnvelope("e1"))
	require.Error(t, err)
	assert.False(t, retry.IsFatal(err))
	assert.True(t, pkgerrors.IsLookupFailed(err))
}

func TestEventFromEnvelope(t *testing.T) {
	env := bookedEnvelope("e7")
	evt, err := EventFromEnvelope(&env)
	require.NoError(t, err)

	assert.Equal(t, "e7", evt.ID)
	assert.Equal(t, "acme", evt.TenantID)
	assert.Equal(t, "A-100", evt.IdentityValue)
	assert.True(t, evt.OccurredAt.Equal(dispatchNow))
	v, ok := evt.Lookup("patient.email")
	assert.True(t, ok)
	assert.Equal(t, "pat@example.com", v)
}
