package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type memoryStore struct {
	mu        sync.Mutex
	records   map[string]*decision.DeliveryRecord
	seq       int
	createErr error
	findErr   error
	updates   []decision.Status
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*decision.DeliveryRecord)}
}

func (s *memoryStore) put(rec decision.DeliveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &rec
}

func (s *memoryStore) all() []decision.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]decision.DeliveryRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) FindDeliveries(_ context.Context, q decision.DeliveryQuery) ([]decision.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []decision.DeliveryRecord
	for _, r := range s.records {
		if r.TemplateID != q.TemplateID || r.Recipient != q.Recipient || !r.Status.Counted() {
			continue
		}
		if r.IdentityKey != q.IdentityKey || r.IdentityValue != q.IdentityValue {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveAt().After(out[j].EffectiveAt()) })
	return out, nil
}

func (s *memoryStore) CreateDelivery(_ context.Context, rec *decision.DeliveryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.seq++
	cp := *rec
	cp.ID = fmt.Sprintf("d%d", s.seq)
	s.records[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryStore) GetDelivery(_ context.Context, id string) (*decision.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("delivery %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id string, status decision.Status, message string, deliverAfter *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	r.Status = status
	r.StatusMessage = message
	r.DeliverAfter = deliverAfter
	s.updates = append(s.updates, status)
	return nil
}

func (s *memoryStore) Reschedule(_ context.Context, id string, message string, deliverAfter time.Time, deferrals int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Status != decision.StatusPendingRetry {
		return pkgerrors.ErrNotFound
	}
	r.StatusMessage = message
	r.DeliverAfter = &deliverAfter
	r.Deferrals = deferrals
	s.updates = append(s.updates, decision.StatusPendingRetry)
	return nil
}

func (s *memoryStore) ListOverdue(_ context.Context, before time.Time, limit int) ([]decision.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []decision.DeliveryRecord
	for _, r := range s.records {
		if r.Status == decision.StatusPendingRetry && r.DeliverAfter != nil && r.DeliverAfter.Before(before) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliverAfter.Before(*out[j].DeliverAfter) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type staticTemplates struct {
	templates []decision.Template
	err       error
}

func (s *staticTemplates) GetCandidateTemplates(_ context.Context, tenantID, subject, verb string) ([]decision.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []decision.Template
	for _, t := range s.templates {
		if t.TenantID == tenantID && t.Subject == subject && t.Verb == verb {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *staticTemplates) GetTemplate(_ context.Context, id string) (*decision.Template, error) {
	for _, t := range s.templates {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithMessage("template %s is not enabled", id)
}

type staticPreferences map[string]*decision.RecipientPreferences

func (p staticPreferences) GetPreferences(_ context.Context, recipient, sender string) (*decision.RecipientPreferences, error) {
	return p[recipient+"|"+sender], nil
}

type memoryGuard struct {
	mu       sync.Mutex
	claims   map[string]bool
	released int
	err      error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{claims: make(map[string]bool)}
}

func (g *memoryGuard) Claim(_ context.Context, eventID, templateID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	key := eventID + "|" + templateID
	if g.claims[key] {
		return false, nil
	}
	g.claims[key] = true
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, eventID, templateID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, eventID+"|"+templateID)
	g.released++
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []models.MessageEnvelope
	topics   []string
	failures int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return fmt.Errorf("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	p.topics = append(p.topics, topic)
	return nil
}

type scheduledRelease struct {
	deliveryID string
	deferrals  int
	at         time.Time
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduledRelease
	err   error
}

func (s *recordingScheduler) ScheduleRelease(_ context.Context, deliveryID string, deferrals int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, scheduledRelease{deliveryID: deliveryID, deferrals: deferrals, at: at})
	return nil
}

func (s *recordingScheduler) RequeueRelease(ctx context.Context, deliveryID string, deferrals int, at time.Time) (bool, error) {
	if err := s.ScheduleRelease(ctx, deliveryID, deferrals, at); err != nil {
		return false, err
	}
	return true, nil
}
