package preferences

import (
	"context"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/pkg/circuitbreaker"
)

type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewFromSettings("mongodb-preferences", cfg),
	}
}

func (r *CircuitBreakerRepository) GetPreferences(ctx context.Context, recipient, sender string) (*decision.RecipientPreferences, error) {
	return circuitbreaker.Call(ctx, r.cb, func() (*decision.RecipientPreferences, error) {
		return r.repo.GetPreferences(ctx, recipient, sender)
	})
}

func (r *CircuitBreakerRepository) UpsertPreferences(ctx context.Context, prefs *decision.RecipientPreferences) error {
	_, err := circuitbreaker.Call(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.UpsertPreferences(ctx, prefs)
	})
	return err
}

func (r *CircuitBreakerRepository) DeletePreferences(ctx context.Context, recipient, sender string) error {
	_, err := circuitbreaker.Call(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.DeletePreferences(ctx, recipient, sender)
	})
	return err
}

func (r *CircuitBreakerRepository) ListPreferences(ctx context.Context, recipient string) ([]decision.RecipientPreferences, error) {
	return circuitbreaker.Call(ctx, r.cb, func() ([]decision.RecipientPreferences, error) {
		return r.repo.ListPreferences(ctx, recipient)
	})
}

func (r *CircuitBreakerRepository) State() string {
	return r.cb.State()
}
