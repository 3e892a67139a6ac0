package management

import (
	"context"

	"herald/internal/decision"
)

type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*TemplateView, error)
	ListTemplates(ctx context.Context, tenantID string) ([]TemplateView, error)
	GetTemplate(ctx context.Context, id string) (*TemplateView, error)
	UpdateTemplate(ctx context.Context, id string, req UpdateTemplateRequest) (*TemplateView, error)
	DeleteTemplate(ctx context.Context, id string) error
	GetTemplateVersions(ctx context.Context, templateID string) ([]TemplateVersion, error)
	GetAuditLogs(ctx context.Context, resourceID *string, resourceType string, limit int) ([]AuditLog, error)

	GetPreferences(ctx context.Context, recipient, sender string) (*PreferencesView, error)
	ListPreferences(ctx context.Context, recipient string) ([]PreferencesView, error)
	PutPreferences(ctx context.Context, recipient, sender string, req PutPreferencesRequest) (*PreferencesView, error)
	DeletePreferences(ctx context.Context, recipient, sender string) error

	ListDeliveries(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error)
	GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error)

	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error)
}

// DeliveryReader is the read side of the delivery history.
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error)
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error)
}
