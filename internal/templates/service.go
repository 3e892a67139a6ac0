// Package templates keeps the dispatch service's in-memory view of enabled
// templates, indexed by the (tenant, subject, verb) triple events carry.
package templates

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

type indexKey struct {
	tenantID string
	subject  string
	verb     string
}

type Service struct {
	repo    Repository
	index   map[indexKey][]decision.Template
	byID    map[string]decision.Template
	indexMu sync.RWMutex
	cfg     config.TemplatesConfig
	logger  logger.Logger
}

func NewService(repo Repository, cfg config.TemplatesConfig, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		index:  make(map[indexKey][]decision.Template),
		byID:   make(map[string]decision.Template),
		cfg:    cfg,
		logger: log,
	}
}

// GetCandidateTemplates returns a copy of the cached templates for the triple.
func (s *Service) GetCandidateTemplates(ctx context.Context, tenantID, subject, verb string) ([]decision.Template, error) {
	_, span := tracing.StartSpan(ctx, "templates", "templates.candidates",
		attribute.String("tenant_id", tenantID),
		attribute.String("subject", subject),
		attribute.String("verb", verb),
	)
	defer span.End()

	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	cached := s.index[indexKey{tenantID: tenantID, subject: subject, verb: verb}]
	result := make([]decision.Template, len(cached))
	copy(result, cached)
	span.SetAttributes(attribute.Int("templates.count", len(result)))
	return result, nil
}

// GetTemplate returns an enabled template by id. Disabled or deleted
// templates are reported as not found.
func (s *Service) GetTemplate(_ context.Context, id string) (*decision.Template, error) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	tmpl, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("template %s is not enabled", id)
	}
	return &tmpl, nil
}

// Load replaces the cache from the repository without jitter.
func (s *Service) Load(ctx context.Context) error {
	templates, err := s.repo.GetEnabledTemplates(ctx)
	if err != nil {
		return err
	}
	s.updateIndex(ctx, templates)
	return nil
}

// ReloadTemplates is Load preceded by a random delay so that a fleet of
// dispatchers reacting to one config event does not hit Postgres at once.
func (s *Service) ReloadTemplates(ctx context.Context) error {
	if err := s.applyJitter(ctx); err != nil {
		return err
	}
	return s.Load(ctx)
}

func (s *Service) applyJitter(ctx context.Context) error {
	if s.cfg.Reload.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.cfg.Reload.JitterMaxMilliseconds)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Reload scheduled with jitter", "jitter_ms", jitter.Milliseconds())

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) updateIndex(ctx context.Context, templates []decision.Template) {
	index := make(map[indexKey][]decision.Template)
	byID := make(map[string]decision.Template, len(templates))
	for _, tmpl := range templates {
		key := indexKey{tenantID: tmpl.TenantID, subject: tmpl.Subject, verb: tmpl.Verb}
		index[key] = append(index[key], tmpl)
		byID[tmpl.ID] = tmpl
	}

	s.indexMu.Lock()
	s.index = index
	s.byID = byID
	s.indexMu.Unlock()

	metrics.SetActiveTemplates(len(templates))
	s.logger.InfowCtx(ctx, "Successfully reloaded templates",
		"templates_count", len(templates),
		"triples_count", len(index),
	)
}

func (s *Service) StartReloader(ctx context.Context) error {
	interval := time.Duration(s.cfg.Reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadTemplates(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload templates", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
