// Package idempotency guarantees at most one delivery record per (event
// occurrence, template) when the bus redelivers an event.
package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

type Service struct {
	repo   Repository
	hasher *Hasher
	cfg    config.IdempotencyConfig
	logger logger.Logger
}

func NewService(repo Repository, cfg config.IdempotencyConfig, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: NewHasher(cfg.HashAlgorithm),
		cfg:    cfg,
		logger: log,
	}
}

func (s *Service) key(eventID, templateID string) (string, error) {
	hash, err := s.hasher.ComputeHash(eventID, templateID)
	if err != nil {
		return "", err
	}
	return constants.CacheKeyPrefixIdempotency + hash, nil
}

// Claim reports whether the caller is the first to act on the pair. When
// Redis is unavailable the configured fallback decides.
func (s *Service) Claim(ctx context.Context, eventID, templateID string) (bool, error) {
	if s == nil || !s.cfg.Enabled {
		return true, nil
	}

	ctx, span := tracing.StartSpan(ctx, "idempotency", "idempotency.claim",
		attribute.String("event_id", eventID),
		attribute.String("template_id", templateID),
	)
	defer span.End()

	key, err := s.key(eventID, templateID)
	if err != nil {
		return false, err
	}

	claimed, err := s.repo.SetNX(ctx, key, time.Now().Unix(), time.Duration(s.cfg.TTLSeconds)*time.Second)
	if err != nil {
		metrics.IncIdempotencyCheck("error")
		return s.handleRedisError(ctx, err, eventID, templateID)
	}

	if claimed {
		metrics.IncIdempotencyCheck("claimed")
	} else {
		metrics.IncIdempotencyCheck("duplicate")
	}
	return claimed, nil
}

// Release gives a claim back so a retried event can try again.
func (s *Service) Release(ctx context.Context, eventID, templateID string) error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	key, err := s.key(eventID, templateID)
	if err != nil {
		return err
	}
	return s.repo.Del(ctx, key)
}

func (s *Service) handleRedisError(ctx context.Context, err error, eventID, templateID string) (bool, error) {
	if strings.EqualFold(s.cfg.OnRedisError, constants.FallbackAllow) {
		metrics.FallbackUsageTotal.WithLabelValues("idempotency", "allow_on_error", "redis_error").Inc()
		s.logger.WarnwCtx(ctx, "Redis error during idempotency claim, proceeding (fallback: allow)",
			"error", err,
			"template_id", templateID,
		)
		return true, nil
	}

	metrics.FallbackUsageTotal.WithLabelValues("idempotency", "deny_on_error", "redis_error").Inc()
	return false, fmt.Errorf("redis error during idempotency claim for event %s template %s: %w", eventID, templateID, err)
}
