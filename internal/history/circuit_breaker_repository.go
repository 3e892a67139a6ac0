package history

import (
	"context"
	"time"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/pkg/circuitbreaker"
)

// CircuitBreakerRepository fails fast while Postgres is unhealthy so that a
// stalled history lookup surfaces as a LookupError instead of a hung consumer.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewFromSettings("postgres-deliveries", cfg),
	}
}

func (r *CircuitBreakerRepository) FindDeliveries(ctx context.Context, q decision.DeliveryQuery) ([]decision.DeliveryRecord, error) {
	return circuitbreaker.Call(ctx, r.cb, func() ([]decision.DeliveryRecord, error) {
		return r.repo.FindDeliveries(ctx, q)
	})
}

func (r *CircuitBreakerRepository) CreateDelivery(ctx context.Context, rec *decision.DeliveryRecord) (string, error) {
	return circuitbreaker.Call(ctx, r.cb, func() (string, error) {
		return r.repo.CreateDelivery(ctx, rec)
	})
}

func (r *CircuitBreakerRepository) GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error) {
	return circuitbreaker.Call(ctx, r.cb, func() (*decision.DeliveryRecord, error) {
		return r.repo.GetDelivery(ctx, id)
	})
}

func (r *CircuitBreakerRepository) UpdateStatus(ctx context.Context, id string, status decision.Status, message string, deliverAfter *time.Time) error {
	_, err := circuitbreaker.Call(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.UpdateStatus(ctx, id, status, message, deliverAfter)
	})
	return err
}

func (r *CircuitBreakerRepository) Reschedule(ctx context.Context, id string, message string, deliverAfter time.Time, deferrals int) error {
	_, err := circuitbreaker.Call(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.Reschedule(ctx, id, message, deliverAfter, deferrals)
	})
	return err
}

func (r *CircuitBreakerRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error) {
	return circuitbreaker.Call(ctx, r.cb, func() ([]decision.DeliveryRecord, error) {
		return r.repo.ListByRecipient(ctx, recipient, limit)
	})
}

func (r *CircuitBreakerRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]decision.DeliveryRecord, error) {
	return circuitbreaker.Call(ctx, r.cb, func() ([]decision.DeliveryRecord, error) {
		return r.repo.ListOverdue(ctx, before, limit)
	})
}

func (r *CircuitBreakerRepository) State() string {
	return r.cb.State()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	return r.cb.IsOpen()
}
