package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/decision"
)

type stubRepository struct {
	Repository
	records []decision.DeliveryRecord
	err     error
	calls   int
}

func (s *stubRepository) FindDeliveries(context.Context, decision.DeliveryQuery) ([]decision.DeliveryRecord, error) {
	s.calls++
	return s.records, s.err
}

func TestCircuitBreakerRepository_PassThrough(t *testing.T) {
	stub := &stubRepository{records: []decision.DeliveryRecord{{ID: "d1"}}}
	repo := NewCircuitBreakerRepository(stub, config.CircuitBreakerConfig{Enabled: false})

	got, err := repo.FindDeliveries(context.Background(), decision.DeliveryQuery{TemplateID: "t1"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "disabled", repo.State())
}

func TestCircuitBreakerRepository_OpensOnFailures(t *testing.T) {
	stub := &stubRepository{err: errors.New("connection refused")}
	repo := NewCircuitBreakerRepository(stub, config.CircuitBreakerConfig{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		Timeout:      time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := repo.FindDeliveries(context.Background(), decision.DeliveryQuery{})
		require.Error(t, err)
	}
	require.True(t, repo.IsOpen())

	_, err := repo.FindDeliveries(context.Background(), decision.DeliveryQuery{})
	assert.ErrorContains(t, err, "circuit breaker is open for postgres-deliveries")
	assert.Equal(t, 2, stub.calls)
}

func TestNullTime(t *testing.T) {
	assert.False(t, nullTime(nil).Valid)
	assert.False(t, nullTime(&time.Time{}).Valid)

	now := time.Now()
	nt := nullTime(&now)
	assert.True(t, nt.Valid)
	assert.True(t, now.Equal(nt.Time))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(decision.StatusDelivered))
	assert.True(t, isTerminal(decision.StatusVoid))
	assert.True(t, isTerminal(decision.StatusFailed))
	assert.False(t, isTerminal(decision.StatusPendingDelivery))
	assert.False(t, isTerminal(decision.StatusPendingRetry))
}
