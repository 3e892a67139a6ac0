package management

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
)

type memoryTemplates struct {
	mu   sync.Mutex
	seq  int
	data map[string]decision.Template
	err  error
}

func newMemoryTemplates(list ...decision.Template) *memoryTemplates {
	m := &memoryTemplates{data: map[string]decision.Template{}}
	for _, t := range list {
		m.data[t.ID] = t
	}
	return m
}

func (m *memoryTemplates) GetEnabledTemplates(ctx context.Context) ([]decision.Template, error) {
	all, err := m.ListTemplates(ctx, "")
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTemplates) CreateTemplate(_ context.Context, tmpl *decision.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, t := range m.data {
		if t.TenantID == tmpl.TenantID && t.Name == tmpl.Name {
			return pkgerrors.ErrConflict.WithMessage("template %s already exists", tmpl.Name)
		}
	}
	m.seq++
	tmpl.ID = fmt.Sprintf("t%d", m.seq)
	m.data[tmpl.ID] = *tmpl
	return nil
}

func (m *memoryTemplates) GetTemplate(_ context.Context, id string) (*decision.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.data[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("template %s not found", id)
	}
	return &t, nil
}

func (m *memoryTemplates) ListTemplates(_ context.Context, tenantID string) ([]decision.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []decision.Template{}
	for _, t := range m.data {
		if tenantID == "" || t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryTemplates) UpdateTemplate(_ context.Context, tmpl *decision.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[tmpl.ID]; !ok {
		return pkgerrors.ErrNotFound.WithMessage("template %s not found", tmpl.ID)
	}
	m.data[tmpl.ID] = *tmpl
	return nil
}

func (m *memoryTemplates) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return pkgerrors.ErrNotFound.WithMessage("template %s not found", id)
	}
	delete(m.data, id)
	return nil
}

type memoryPreferences struct {
	mu   sync.Mutex
	data map[string]decision.RecipientPreferences
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{data: map[string]decision.RecipientPreferences{}}
}

func (m *memoryPreferences) GetPreferences(_ context.Context, recipient, sender string) (*decision.RecipientPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[recipient+"|"+sender]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryPreferences) UpsertPreferences(_ context.Context, prefs *decision.RecipientPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[prefs.Recipient+"|"+prefs.Sender] = *prefs
	return nil
}

func (m *memoryPreferences) DeletePreferences(_ context.Context, recipient, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recipient + "|" + sender
	if _, ok := m.data[key]; !ok {
		return pkgerrors.ErrNotFound.WithMessage("preferences for %s from %s not found", recipient, sender)
	}
	delete(m.data, key)
	return nil
}

func (m *memoryPreferences) ListPreferences(_ context.Context, recipient string) ([]decision.RecipientPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []decision.RecipientPreferences{}
	for _, p := range m.data {
		if p.Recipient == recipient {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryDeliveries struct {
	records []decision.DeliveryRecord
	err     error
}

func (m *memoryDeliveries) GetDelivery(_ context.Context, id string) (*decision.DeliveryRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithMessage("delivery %s not found", id)
}

func (m *memoryDeliveries) ListByRecipient(_ context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []decision.DeliveryRecord
	for _, r := range m.records {
		if r.Recipient == recipient && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryDeliveries) FindDeliveries(_ context.Context, q decision.DeliveryQuery) ([]decision.DeliveryRecord, error) {
	return nil, m.err
}

type memoryVersioning struct {
	mu       sync.Mutex
	versions []TemplateVersion
	logs     []AuditLog
}

func (m *memoryVersioning) CreateVersion(_ context.Context, v *TemplateVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, *v)
	return nil
}

func (m *memoryVersioning) GetVersions(_ context.Context, templateID string) ([]TemplateVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TemplateVersion
	for _, v := range m.versions {
		if v.TemplateID == templateID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryVersioning) GetVersion(ctx context.Context, templateID string, version int) (*TemplateVersion, error) {
	versions, _ := m.GetVersions(ctx, templateID)
	for _, v := range versions {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (m *memoryVersioning) GetNextVersion(ctx context.Context, templateID string) (int, error) {
	versions, _ := m.GetVersions(ctx, templateID)
	return len(versions) + 1, nil
}

func (m *memoryVersioning) CreateAuditLog(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memoryVersioning) GetAuditLogs(_ context.Context, resourceID *string, resourceType string, limit int) ([]AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditLog
	for _, l := range m.logs {
		if resourceID != nil && (l.ResourceID == nil || *l.ResourceID != *resourceID) {
			continue
		}
		if resourceType != "" && l.ResourceType != resourceType {
			continue
		}
		out = append(out, l)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
